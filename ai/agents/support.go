package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/internal/strutil"
	"github.com/hrygo/mindcare/store"
)

// SupportStrategy is the default empathetic conversation.
type SupportStrategy struct {
	llm          llm.Service
	timeout      time.Duration
	historyLimit int
	logger       *slog.Logger
}

// NewSupportStrategy creates a SupportStrategy. A non-positive
// historyLimit uses DefaultHistoryLimit.
func NewSupportStrategy(svc llm.Service, historyLimit int, timeout time.Duration, logger *slog.Logger) *SupportStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &SupportStrategy{
		llm:          svc,
		timeout:      timeout,
		historyLimit: historyLimit,
		logger:       logger.With("strategy", RouteTypeSupport),
	}
}

func (s *SupportStrategy) Name() ChatRouteType {
	return RouteTypeSupport
}

// Process sends the last historyLimit prior turns followed by input.
func (s *SupportStrategy) Process(ctx context.Context, input string, sc *StrategyContext) (*Response, error) {
	var history []store.Message
	var userCtx map[string]json.RawMessage
	if sc != nil {
		history = sc.History
		userCtx = sc.UserContext
	}
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case store.RoleUser:
			messages = append(messages, llm.UserMessage(m.Content))
		case store.RoleAssistant:
			messages = append(messages, llm.AssistantMessage(m.Content))
		}
	}
	messages = append(messages, llm.UserMessage(input))

	text, err := generate(ctx, s.llm, s.timeout, &llm.Request{
		Instructions: supportInstructions + userContextSummary(userCtx),
		Messages:     messages,
		Temperature:  supportTemperature,
		MaxTokens:    supportMaxTokens,
	})
	if err != nil {
		s.logger.Warn("support generation failed, replying with fallback",
			"kind", llm.KindOf(err),
			"history", len(history),
			"error", err,
		)
		return &Response{Content: supportFallbackText, Degraded: true}, err
	}
	return &Response{Content: text}, nil
}

// userContextSummary renders remembered user fields as a sorted bullet
// list appended to the instructions.
func userContextSummary(fields map[string]json.RawMessage) string {
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\n\nWhat you know about this user:")
	for _, name := range names {
		b.WriteString("\n- " + name + ": " + strutil.Truncate(string(fields[name]), 200))
	}
	return b.String()
}
