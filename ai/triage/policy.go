package triage

import (
	"log/slog"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// Policy decides what a triage result means for routing.
type Policy struct {
	// ShortCircuitAt is the lowest level routed straight to the crisis strategy.
	ShortCircuitAt RiskLevel
	// FollowUpAt is the lowest level flagged for follow-up.
	FollowUpAt RiskLevel

	expr    string
	program cel.Program
	logger  *slog.Logger
}

// DefaultPolicy short-circuits at high and asks for follow-up from medium.
func DefaultPolicy() *Policy {
	return &Policy{ShortCircuitAt: RiskHigh, FollowUpAt: RiskMedium, logger: slog.Default()}
}

// NewPolicy builds a policy. A non-empty expr is a CEL boolean expression
// that replaces the ShortCircuitAt comparison. Variables: risk_level,
// indicators, requires_immediate_intervention, fail_safe and the level
// constants NONE, LOW, MEDIUM, HIGH, CRITICAL.
func NewPolicy(shortCircuitAt, followUpAt RiskLevel, expr string, logger *slog.Logger) (*Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !shortCircuitAt.Valid() || !followUpAt.Valid() {
		return nil, errors.New("invalid policy risk level")
	}
	p := &Policy{ShortCircuitAt: shortCircuitAt, FollowUpAt: followUpAt, logger: logger}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return p, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("risk_level", cel.IntType),
		cel.Variable("indicators", cel.ListType(cel.StringType)),
		cel.Variable("requires_immediate_intervention", cel.BoolType),
		cel.Variable("fail_safe", cel.BoolType),
		cel.Variable("NONE", cel.IntType),
		cel.Variable("LOW", cel.IntType),
		cel.Variable("MEDIUM", cel.IntType),
		cel.Variable("HIGH", cel.IntType),
		cel.Variable("CRITICAL", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}
	celAST, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid escalation expression: %s", expr)
	}
	if !celAST.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("escalation expression must return bool, got %s", celAST.OutputType())
	}
	program, err := env.Program(celAST)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build escalation program")
	}
	p.expr = expr
	p.program = program
	return p, nil
}

// Expression returns the configured CEL expression, if any.
func (p *Policy) Expression() string {
	return p.expr
}

// ShouldShortCircuit reports whether the crisis strategy must handle the
// turn. Fail-safe results always short-circuit.
func (p *Policy) ShouldShortCircuit(r *Result) bool {
	if r.FailSafe {
		return true
	}
	a := r.Assessment
	if p.program == nil {
		return a.RiskLevel.AtLeast(p.ShortCircuitAt)
	}

	out, _, err := p.program.Eval(map[string]any{
		"risk_level":                      int64(a.RiskLevel),
		"indicators":                      a.Indicators,
		"requires_immediate_intervention": a.RequiresImmediateIntervention,
		"fail_safe":                       r.FailSafe,
		"NONE":                            int64(RiskNone),
		"LOW":                             int64(RiskLow),
		"MEDIUM":                          int64(RiskMedium),
		"HIGH":                            int64(RiskHigh),
		"CRITICAL":                        int64(RiskCritical),
	})
	if err == nil {
		if v, ok := out.Value().(bool); ok {
			return v
		}
	}
	// Evaluation errors fall back to the threshold.
	p.logger.Warn("escalation expression failed, using threshold", "expr", p.expr, "error", err)
	return a.RiskLevel.AtLeast(p.ShortCircuitAt)
}

// RequiresFollowUp reports whether the turn should be flagged for follow-up.
func (p *Policy) RequiresFollowUp(r *Result) bool {
	return r.FailSafe || r.Assessment.RiskLevel.AtLeast(p.FollowUpAt) || p.ShouldShortCircuit(r)
}
