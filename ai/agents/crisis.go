package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/mindcare/ai/resources"
	"github.com/hrygo/mindcare/ai/triage"
)

const (
	crisisUnavailableText = "Unable to complete crisis assessment. If you are in immediate danger, please call 911 or text 988."
	crisisContactText     = "If you are in immediate danger, please call 911, or call or text 988 (Suicide & Crisis Lifeline) any time."
)

// CrisisStrategy renders the triage assessment with emergency resources.
// It makes no generation call, so it cannot fail on the upstream.
type CrisisStrategy struct {
	catalog resources.Catalog
}

func NewCrisisStrategy(catalog resources.Catalog) *CrisisStrategy {
	return &CrisisStrategy{catalog: catalog}
}

func (s *CrisisStrategy) Name() ChatRouteType {
	return RouteTypeCrisis
}

func (s *CrisisStrategy) Process(_ context.Context, _ string, sc *StrategyContext) (*Response, error) {
	res := sc.Triage
	if res == nil {
		res = &triage.Result{Assessment: triage.FailSafeAssessment(), FailSafe: true}
	}
	a := res.Assessment

	var b strings.Builder
	if res.FailSafe {
		b.WriteString(crisisUnavailableText)
		b.WriteString("\n")
		s.writeEmergency(&b)
	} else {
		fmt.Fprintf(&b, "Crisis Assessment: %s\n", strings.ToUpper(a.RiskLevel.String()))
		if len(a.Indicators) > 0 {
			b.WriteString("\nDetected Indicators:\n")
			for i, ind := range a.Indicators {
				if i > 0 {
					b.WriteString("\n")
				}
				b.WriteString("- " + ind)
			}
		}
		b.WriteString("\n\nRecommended Action: " + a.RecommendedAction)
		// Every crisis reply carries the hotlines; the full list only on intervention.
		if a.RequiresImmediateIntervention {
			b.WriteString("\n")
			s.writeEmergency(&b)
		} else {
			b.WriteString("\n\n" + crisisContactText)
		}
	}

	return &Response{
		Content:          b.String(),
		RequiresFollowUp: true,
		Metadata: map[string]any{
			"riskLevel":  a.RiskLevel.String(),
			"indicators": append([]string{}, a.Indicators...),
		},
	}, nil
}

func (s *CrisisStrategy) writeEmergency(b *strings.Builder) {
	b.WriteString("\n🚨 IMMEDIATE HELP AVAILABLE:\n")
	for _, r := range s.catalog.Emergency() {
		b.WriteString("\n" + r.Title)
		if r.Phone != "" {
			b.WriteString(" - Call/Text: " + r.Phone)
		}
		b.WriteString("\n" + r.Description)
	}
}
