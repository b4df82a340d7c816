package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/internal/strutil"
	"github.com/hrygo/mindcare/ai/resources"
)

const maxRecommendedResources = 3

// categoryKeywords maps request wording to a catalog category.
// Checked in order; the first matching rule wins.
var categoryKeywords = []struct {
	category resources.Category
	words    []string
}{
	{resources.CategoryCrisis, []string{"crisis", "emergency", "suicide"}},
	{resources.CategoryTherapy, []string{"therapy", "therapist", "counseling"}},
	{resources.CategorySupportGroup, []string{"support group", "community"}},
	{resources.CategorySelfHelp, []string{"app", "meditation", "self-help"}},
}

// ResourceStrategy recommends catalog resources for a request.
type ResourceStrategy struct {
	llm     llm.Service
	catalog resources.Catalog
	timeout time.Duration
	logger  *slog.Logger
}

func NewResourceStrategy(svc llm.Service, catalog resources.Catalog, timeout time.Duration, logger *slog.Logger) *ResourceStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceStrategy{
		llm:     svc,
		catalog: catalog,
		timeout: timeout,
		logger:  logger.With("strategy", RouteTypeResource),
	}
}

func (s *ResourceStrategy) Name() ChatRouteType {
	return RouteTypeResource
}

// Process uses the input alone; history and user context are ignored.
func (s *ResourceStrategy) Process(ctx context.Context, input string, _ *StrategyContext) (*Response, error) {
	relevant := s.Match(input)

	catalogJSON, err := json.MarshalIndent(s.catalog.All(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource catalog: %w", err)
	}

	resp := &Response{
		Metadata: map[string]any{"recommendedResources": relevant},
	}

	text, genErr := generate(ctx, s.llm, s.timeout, &llm.Request{
		Instructions: resourceInstructions,
		Messages: []llm.Message{llm.UserMessage(fmt.Sprintf(
			"Based on this request, recommend appropriate mental health resources:\n\n%q\n\nAvailable resources:\n%s",
			input, catalogJSON,
		))},
		Temperature: resourceTemperature,
		MaxTokens:   resourceMaxTokens,
	})
	if genErr != nil {
		s.logger.Warn("resource generation failed, replying with catalog only",
			"kind", llm.KindOf(genErr),
			"input", strutil.Truncate(input, 50),
			"error", genErr,
		)
		text = resourceFallbackText
		resp.Degraded = true
	}

	resp.Content = text + "\n\n" + renderResources(relevant)
	return resp, genErr
}

// Match selects at most three resources for the request. Free-text
// search is used when no category keyword applies; an empty search
// falls back to the emergency resources.
func (s *ResourceStrategy) Match(input string) []resources.Resource {
	var matched []resources.Resource
	categorized := false
	for _, rule := range categoryKeywords {
		if _, ok := strutil.ContainsAnyFold(input, rule.words); ok {
			matched = s.catalog.ByCategory(rule.category)
			categorized = true
			break
		}
	}
	if !categorized {
		matched = s.catalog.Search(input)
	}
	if len(matched) == 0 {
		matched = s.catalog.Emergency()
	}
	if len(matched) > maxRecommendedResources {
		matched = matched[:maxRecommendedResources]
	}
	return matched
}

func renderResources(list []resources.Resource) string {
	var b strings.Builder
	b.WriteString("📚 Recommended Resources:\n\n")
	for _, r := range list {
		fmt.Fprintf(&b, "**%s**\n%s\n", r.Title, r.Description)
		if r.Phone != "" {
			fmt.Fprintf(&b, "📞 %s\n", r.Phone)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "🔗 %s\n", r.URL)
		}
		if r.Available24x7 {
			b.WriteString("⏰ Available 24/7\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
