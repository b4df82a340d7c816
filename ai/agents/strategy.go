package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/triage"
	"github.com/hrygo/mindcare/store"
)

// StrategyContext carries what a strategy may use beyond the input text.
type StrategyContext struct {
	Triage      *triage.Result
	History     []store.Message
	UserContext map[string]json.RawMessage
}

// Response is the outcome of a strategy.
type Response struct {
	Content          string
	Metadata         map[string]any
	RequiresFollowUp bool
	// Degraded marks a fallback reply produced after a generation failure.
	Degraded bool
}

// Strategy produces the reply for one routed turn.
//
// On a generation failure a strategy returns both a degraded Response and
// the error, so the caller can reply and still record the failure.
type Strategy interface {
	Name() ChatRouteType
	Process(ctx context.Context, input string, sc *StrategyContext) (*Response, error)
}

// generate runs one call with an optional per-call deadline.
func generate(ctx context.Context, svc llm.Service, timeout time.Duration, req *llm.Request) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return svc.Complete(ctx, req)
}
