package agent

import (
	"log/slog"

	"github.com/hrygo/mindcare/ai/internal/strutil"
)

// ChatRouteType represents the strategy a turn is routed to.
type ChatRouteType string

const (
	// RouteTypeCrisis handles turns that triage escalated.
	RouteTypeCrisis ChatRouteType = "crisis"

	// RouteTypeResource recommends hotlines, services and apps.
	RouteTypeResource ChatRouteType = "resource"

	// RouteTypeSupport is the default empathetic conversation.
	RouteTypeSupport ChatRouteType = "support"
)

// Routing methods reported in ChatRouteResult.Method.
const (
	RouteMethodKeyword = "keyword"
	RouteMethodDefault = "default"
)

// resourceKeywords mark a request for concrete resources.
var resourceKeywords = []string{
	"resource",
	"help line",
	"hotline",
	"therapist",
	"therapy",
	"counselor",
	"support group",
	"where can i",
	"how do i find",
	"recommend",
	"suggestion",
	"app",
	"service",
}

// ChatRouteResult represents the routing classification result.
type ChatRouteResult struct {
	Route   ChatRouteType `json:"route"`
	Method  string        `json:"method"`
	Keyword string        `json:"keyword,omitempty"`
}

// ChatRouter classifies non-crisis turns by intent.
type ChatRouter struct {
	keywords []string
	logger   *slog.Logger
}

// NewChatRouter creates a router over the built-in resource vocabulary.
func NewChatRouter(logger *slog.Logger) *ChatRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatRouter{keywords: resourceKeywords, logger: logger}
}

// Route picks resource when any keyword appears as a case-insensitive
// substring of input, support otherwise.
func (r *ChatRouter) Route(input string) *ChatRouteResult {
	if kw, ok := strutil.ContainsAnyFold(input, r.keywords); ok {
		r.logger.Debug("routed by keyword", "route", RouteTypeResource, "keyword", kw, "input", strutil.Truncate(input, 30))
		return &ChatRouteResult{Route: RouteTypeResource, Method: RouteMethodKeyword, Keyword: kw}
	}
	return &ChatRouteResult{Route: RouteTypeSupport, Method: RouteMethodDefault}
}
