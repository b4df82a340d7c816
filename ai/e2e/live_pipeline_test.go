//go:build e2e_manual

package e2e_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/mindcare/ai/agents/orchestrator"
	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/e2e"
	"github.com/hrygo/mindcare/ai/e2e/fixtures"
	"github.com/hrygo/mindcare/ai/triage"
	"github.com/hrygo/mindcare/internal/profile"
	"github.com/hrygo/mindcare/store"
	"github.com/hrygo/mindcare/store/db/memory"
)

func newLiveOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	p := &profile.Profile{}
	p.FromEnv()

	svc, err := llm.NewService(&llm.Config{
		Provider: p.LLMProvider,
		Model:    p.LLMModel,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Timeout:  p.LLMTimeout,
	})
	require.NoError(t, err)

	o := orchestrator.New(store.New(memory.NewDB()), svc, orchestrator.WithGenerationTimeout(p.GenerationTimeout))
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })
	return o
}

func TestLivePipeline_Scenarios(t *testing.T) {
	e2e.RequireManualE2E(t)
	o := newLiveOrchestrator(t)

	for _, sc := range fixtures.Scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			res, err := o.ProcessMessage(ctx, "e2e-user", "", sc.Message)
			require.NoError(t, err)
			assert.NotEmpty(t, res.Response)
			assert.False(t, res.Metadata.FailSafe, "live triage should classify the message")
			assert.False(t, res.Metadata.Degraded)
			assert.Equal(t, sc.Agent, res.Metadata.AgentUsed)

			got, err := triage.ParseRiskLevel(res.Metadata.RiskLevel)
			require.NoError(t, err)
			want, err := triage.ParseRiskLevel(sc.MinRisk)
			require.NoError(t, err)
			assert.True(t, got.AtLeast(want), "risk %s below %s", got, want)

			t.Logf("[%s] risk=%s agent=%s\n%s", sc.Name, res.Metadata.RiskLevel, res.Metadata.AgentUsed, res.Response)
		})
	}
}

func TestLivePipeline_SessionContinuity(t *testing.T) {
	e2e.RequireManualE2E(t)
	o := newLiveOrchestrator(t)
	ctx := context.Background()

	first, err := o.ProcessMessage(ctx, "e2e-user", "", "I've been feeling lonely since I moved cities.")
	require.NoError(t, err)
	second, err := o.ProcessMessage(ctx, "e2e-user", first.Metadata.SessionID, "What could I try this weekend?")
	require.NoError(t, err)

	assert.Equal(t, first.Metadata.SessionID, second.Metadata.SessionID)
	sessions := o.ListSessions(ctx, "e2e-user")
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Messages, 4)
}
