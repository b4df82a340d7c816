package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	agent "github.com/hrygo/mindcare/ai/agents"
	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/internal/strutil"
	"github.com/hrygo/mindcare/ai/metrics"
	"github.com/hrygo/mindcare/ai/resources"
	"github.com/hrygo/mindcare/ai/triage"
	"github.com/hrygo/mindcare/store"
)

const (
	// DefaultGenerationTimeout bounds each generation call.
	DefaultGenerationTimeout = 30 * time.Second

	crisisExcerptLength = 100
	unavailableText     = "I'm sorry, something went wrong on my side. If you need to talk to someone right now, you can call or text 988."
)

// Orchestrator coordinates triage, routing and the stores for every turn.
// It holds no conversational state of its own.
type Orchestrator struct {
	store      *store.Store
	llm        llm.Service
	triager    *triage.Triager
	policy     *triage.Policy
	router     *agent.ChatRouter
	strategies map[agent.ChatRouteType]agent.Strategy
	metrics    *metrics.PrometheusExporter
	sem        *semaphore.Weighted
	config     *Config
	logger     *slog.Logger
}

// Config holds the orchestrator settings.
type Config struct {
	Policy            *triage.Policy
	Catalog           resources.Catalog
	Metrics           *metrics.PrometheusExporter
	Logger            *slog.Logger
	HistoryLimit      int
	GenerationTimeout time.Duration
	// MaxConcurrentPipelines caps in-flight turns; zero means unlimited.
	MaxConcurrentPipelines int64
	Now                    func() time.Time

	strategies []agent.Strategy
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() *Config {
	return &Config{
		Policy:            triage.DefaultPolicy(),
		Catalog:           resources.Default(),
		HistoryLimit:      agent.DefaultHistoryLimit,
		GenerationTimeout: DefaultGenerationTimeout,
		Now:               time.Now,
	}
}

// Option configures the orchestrator.
type Option func(*Config)

func WithPolicy(p *triage.Policy) Option {
	return func(c *Config) {
		if p != nil {
			c.Policy = p
		}
	}
}

func WithCatalog(catalog resources.Catalog) Option {
	return func(c *Config) {
		if catalog != nil {
			c.Catalog = catalog
		}
	}
}

func WithMetrics(m *metrics.PrometheusExporter) Option {
	return func(c *Config) { c.Metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithHistoryLimit sets how many prior turns the support strategy sees.
func WithHistoryLimit(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.HistoryLimit = n
		}
	}
}

// WithGenerationTimeout sets the per-call deadline for triage and strategies.
func WithGenerationTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.GenerationTimeout = d
		}
	}
}

func WithMaxConcurrentPipelines(n int64) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxConcurrentPipelines = n
		}
	}
}

// WithStrategy replaces the built-in strategy for s.Name().
func WithStrategy(s agent.Strategy) Option {
	return func(c *Config) { c.strategies = append(c.strategies, s) }
}

// WithClock overrides time.Now for timestamps written to memory and moods.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

// New creates an orchestrator over st and svc.
func New(st *store.Store, svc llm.Service, opts ...Option) *Orchestrator {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		store:   st,
		llm:     svc,
		triager: triage.NewTriager(svc, config.GenerationTimeout, logger),
		policy:  config.Policy,
		router:  agent.NewChatRouter(logger),
		metrics: config.Metrics,
		config:  config,
		logger:  logger.With("component", "orchestrator"),
	}
	if config.MaxConcurrentPipelines > 0 {
		o.sem = semaphore.NewWeighted(config.MaxConcurrentPipelines)
	}

	o.strategies = map[agent.ChatRouteType]agent.Strategy{}
	for _, s := range []agent.Strategy{
		agent.NewCrisisStrategy(config.Catalog),
		agent.NewResourceStrategy(svc, config.Catalog, config.GenerationTimeout, logger),
		agent.NewSupportStrategy(svc, config.HistoryLimit, config.GenerationTimeout, logger),
	} {
		o.strategies[s.Name()] = s
	}
	for _, s := range config.strategies {
		o.strategies[s.Name()] = s
	}
	return o
}

// Start loads every store from the backend.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.store.Load(ctx); err != nil {
		return fmt.Errorf("load stores: %w", err)
	}
	o.logger.Info("orchestrator started",
		"driver", o.store.GetDriver().Name(),
		"short_circuit_at", o.policy.ShortCircuitAt.String(),
		"escalation_expr", o.policy.Expression(),
	)
	return nil
}

// Shutdown flushes pending writes and closes the backend.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.store.Close(ctx)
}

// turn carries per-message state through the pipeline.
type turn struct {
	id        string
	userID    string
	sessionID string
	message   string
	start     time.Time
	logger    *slog.Logger
}

func (t *turn) enter(stage Stage, args ...any) {
	t.logger.Debug("turn stage", append([]any{"stage", stage}, args...)...)
}

// ProcessMessage runs one inbound message through the pipeline. An empty
// or unknown sessionID starts a new session.
func (o *Orchestrator) ProcessMessage(ctx context.Context, userID, sessionID, message string) (*Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Field: "message", Reason: "must not be empty"}
	}

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer o.sem.Release(1)
	}
	defer o.metrics.PipelineStarted()()

	session, err := o.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	t := &turn{
		id:        uuid.NewString(),
		userID:    userID,
		sessionID: session.ID,
		message:   message,
		start:     time.Now(),
	}
	t.logger = o.logger.With("turn_id", t.id, "user_id", userID, "session_id", session.ID)

	if err := o.store.Sessions.AddMessage(ctx, session.ID, store.Message{Role: store.RoleUser, Content: message}); err != nil {
		return nil, err
	}
	t.enter(StageReceived, "input", strutil.Truncate(message, 30))

	assessed := o.triager.Assess(ctx, message)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if assessed.FailSafe {
		o.metrics.RecordFailSafe(assessed.Reason)
		if assessed.IsUpstream() {
			o.metrics.RecordUpstreamError(string(llm.KindOf(assessed.Err)), "triage")
		}
	}
	risk := assessed.Assessment.RiskLevel
	t.enter(StageTriaged, "risk_level", risk.String(), "fail_safe", assessed.FailSafe)

	if o.policy.ShouldShortCircuit(assessed) {
		return o.crisis(ctx, t, assessed)
	}

	route := o.router.Route(message)
	sc := &agent.StrategyContext{Triage: assessed}
	if route.Route == agent.RouteTypeSupport {
		sc.History = o.priorMessages(ctx, t)
		sc.UserContext = o.store.Memory.GetUserContext(ctx, userID)
	}
	t.enter(StageRouted, "route", route.Route, "method", route.Method)

	resp, err := o.dispatch(ctx, t, route.Route, sc)
	if err != nil {
		return nil, err
	}

	if err := o.store.Sessions.AddMessage(ctx, session.ID, store.Message{Role: store.RoleAssistant, Content: resp.Content}); err != nil {
		return nil, err
	}
	o.remember(ctx, t)

	md := Metadata{
		RiskLevel:        risk.String(),
		AgentUsed:        string(route.Route),
		SessionID:        session.ID,
		RequiresFollowUp: resp.RequiresFollowUp || o.policy.RequiresFollowUp(assessed),
		Degraded:         resp.Degraded,
		FailSafe:         assessed.FailSafe,
	}
	return o.finish(ctx, t, resp.Content, md), nil
}

// crisis short-circuits the turn. No other strategy runs.
func (o *Orchestrator) crisis(ctx context.Context, t *turn, assessed *triage.Result) (*Result, error) {
	t.enter(StageCrisisTerminal)
	resp, err := o.dispatch(ctx, t, agent.RouteTypeCrisis, &agent.StrategyContext{Triage: assessed})
	if err != nil {
		return nil, err
	}

	if err := o.store.Sessions.AddMessage(ctx, t.sessionID, store.Message{Role: store.RoleAssistant, Content: resp.Content}); err != nil {
		return nil, err
	}

	a := assessed.Assessment
	event := store.CrisisEvent{
		Timestamp: o.config.Now(),
		RiskLevel: a.RiskLevel.String(),
		Message:   strutil.Prefix(t.message, crisisExcerptLength),
		FailSafe:  assessed.FailSafe,
	}
	if err := o.store.Memory.StoreUserContext(ctx, t.userID, store.UserFieldLastCrisisEvent, event); err != nil {
		t.logger.Error("failed to record crisis event", "error", err)
	}
	o.remember(ctx, t)
	t.logger.Warn("crisis response sent", "risk_level", a.RiskLevel.String(), "fail_safe", assessed.FailSafe)

	md := Metadata{
		RiskLevel:        a.RiskLevel.String(),
		AgentUsed:        string(agent.RouteTypeCrisis),
		SessionID:        t.sessionID,
		RequiresFollowUp: true,
		Indicators:       append([]string(nil), a.Indicators...),
		FailSafe:         assessed.FailSafe,
	}
	return o.finish(ctx, t, resp.Content, md), nil
}

// dispatch runs the strategy for route. Generation failures degrade the
// reply instead of failing the turn; caller cancellation fails it.
func (o *Orchestrator) dispatch(ctx context.Context, t *turn, route agent.ChatRouteType, sc *agent.StrategyContext) (*agent.Response, error) {
	s, ok := o.strategies[route]
	if !ok {
		return nil, fmt.Errorf("no strategy registered for route %q", route)
	}

	resp, err := s.Process(ctx, t.message, sc)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		var upstream *llm.UpstreamGenerationError
		if errors.As(err, &upstream) {
			o.metrics.RecordUpstreamError(string(upstream.Kind), string(route))
		}
		t.logger.Warn("strategy failed, replying degraded", "route", route, "error", err)
		if resp == nil {
			resp = &agent.Response{Content: unavailableText}
		}
		resp.Degraded = true
	}
	return resp, nil
}

// resolveSession returns the caller's session, creating one when the id is
// empty, unknown or owned by another user.
func (o *Orchestrator) resolveSession(ctx context.Context, userID, sessionID string) (*store.Session, error) {
	if sessionID != "" {
		if s := o.store.Sessions.GetSession(ctx, sessionID); s != nil {
			if s.UserID == userID {
				return s, nil
			}
			o.logger.Warn("session belongs to another user, starting a new one", "session_id", sessionID, "user_id", userID)
		}
	}
	return o.store.Sessions.CreateSession(ctx, userID)
}

// priorMessages returns up to HistoryLimit turns before the current one.
func (o *Orchestrator) priorMessages(ctx context.Context, t *turn) []store.Message {
	limit := o.config.HistoryLimit
	recent := o.store.Sessions.GetRecentMessages(ctx, t.sessionID, limit+1)
	if n := len(recent); n > 0 {
		if last := recent[n-1]; last.Role == store.RoleUser && last.Content == t.message {
			recent = recent[:n-1]
		}
	}
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	return recent
}

// remember updates the user's memory namespace. Failures are logged only.
func (o *Orchestrator) remember(ctx context.Context, t *turn) {
	if err := o.store.Memory.StoreUserContext(ctx, t.userID, store.UserFieldLastInteraction, o.config.Now()); err != nil {
		t.logger.Error("failed to record last interaction", "error", err)
	}
	key := store.UserKey{Owner: t.userID, Field: store.UserFieldMessageCount}.String()
	if _, err := o.store.Memory.Increment(ctx, key); err != nil {
		t.logger.Error("failed to increment message count", "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, t *turn, content string, md Metadata) *Result {
	values := map[string]any{
		store.MetadataKeySessionID:        md.SessionID,
		store.MetadataKeyRiskLevel:        md.RiskLevel,
		store.MetadataKeyAgentUsed:        md.AgentUsed,
		store.MetadataKeyRequiresFollowUp: md.RequiresFollowUp,
		store.MetadataKeyDegraded:         md.Degraded,
		store.MetadataKeyFailSafe:         md.FailSafe,
	}
	if md.Indicators != nil {
		values[store.MetadataKeyIndicators] = md.Indicators
	}
	if err := o.store.Sessions.UpdateMetadata(ctx, t.sessionID, values); err != nil {
		t.logger.Error("failed to update session metadata", "error", err)
	}

	latency := time.Since(t.start)
	o.metrics.RecordPipeline(md.AgentUsed, md.RiskLevel, latency, md.Degraded)
	t.enter(StagePersisted)
	t.logger.Info("turn complete",
		"agent", md.AgentUsed,
		"risk_level", md.RiskLevel,
		"degraded", md.Degraded,
		"latency_ms", latency.Milliseconds(),
	)
	return &Result{Response: content, Metadata: md}
}
