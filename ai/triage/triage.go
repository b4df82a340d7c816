// Package triage classifies the risk of an inbound message.
package triage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/internal/strutil"
)

// Reasons reported on a fail-safe Result.
const (
	ReasonUpstreamError   = "upstream_error"
	ReasonInvalidResponse = "invalid_response"
)

// Result is the outcome of one triage call. Assessment is never nil.
type Result struct {
	Assessment *CrisisAssessment
	// FailSafe is set when Assessment was substituted after a failure.
	FailSafe bool
	Reason   string
	Err      error
}

// Triager runs risk assessment through the generation service.
type Triager struct {
	llm     llm.Service
	logger  *slog.Logger
	timeout time.Duration
}

// NewTriager creates a Triager. A non-positive timeout disables the
// per-call deadline.
func NewTriager(svc llm.Service, timeout time.Duration, logger *slog.Logger) *Triager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Triager{
		llm:     svc,
		logger:  logger.With("component", "triage"),
		timeout: timeout,
	}
}

// Assess classifies text alone. It never fails open: any upstream or
// validation error yields the fail-safe assessment.
func (t *Triager) Assess(ctx context.Context, text string) *Result {
	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	content, err := t.llm.Complete(callCtx, &llm.Request{
		Instructions: assessmentInstructions,
		Messages:     []llm.Message{llm.UserMessage(assessmentPrompt(text))},
		Temperature:  assessmentTemperature,
		MaxTokens:    assessmentMaxTokens,
		Schema:       assessmentSchema,
		SchemaName:   assessmentSchemaName,
	})
	if err != nil {
		t.logger.Warn("triage call failed, using fail-safe assessment",
			"kind", llm.KindOf(err),
			"error", err,
		)
		return failSafe(ReasonUpstreamError, err)
	}

	assessment, err := ParseAssessment(content)
	if err != nil {
		t.logger.Warn("triage output rejected, using fail-safe assessment",
			"error", err,
			"output", strutil.Truncate(content, 200),
		)
		return failSafe(ReasonInvalidResponse, err)
	}

	t.logger.Debug("triage complete",
		"risk_level", assessment.RiskLevel.String(),
		"indicators", len(assessment.Indicators),
	)
	return &Result{Assessment: assessment}
}

func failSafe(reason string, err error) *Result {
	return &Result{
		Assessment: FailSafeAssessment(),
		FailSafe:   true,
		Reason:     reason,
		Err:        err,
	}
}

// IsUpstream reports whether a fail-safe result came from the generation call.
func (r *Result) IsUpstream() bool {
	var upstream *llm.UpstreamGenerationError
	return r.FailSafe && errors.As(r.Err, &upstream)
}
