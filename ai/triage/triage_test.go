package triage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/mindcare/ai/core/llm"
	"github.com/hrygo/mindcare/ai/e2e/mocks"
)

func TestSchemaNameMatchesMocks(t *testing.T) {
	assert.Equal(t, mocks.TriageSchemaName, assessmentSchemaName)
}

func TestRiskLevel_OrderingAndJSON(t *testing.T) {
	assert.True(t, RiskCritical.AtLeast(RiskHigh))
	assert.False(t, RiskMedium.AtLeast(RiskHigh))
	assert.Equal(t, "medium", RiskMedium.String())

	b, err := json.Marshal(RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, `"high"`, string(b))

	var r RiskLevel
	require.NoError(t, json.Unmarshal([]byte(`"critical"`), &r))
	assert.Equal(t, RiskCritical, r)
	assert.Error(t, json.Unmarshal([]byte(`"severe"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`3`), &r))

	_, err = json.Marshal(RiskLevel(9))
	assert.Error(t, err)
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *CrisisAssessment
		wantErr bool
	}{
		{
			name:    "plain",
			content: `{"riskLevel":"low","indicators":["tired"],"recommendedAction":"listen","requiresImmediateIntervention":false}`,
			want:    &CrisisAssessment{RiskLevel: RiskLow, Indicators: []string{"tired"}, RecommendedAction: "listen"},
		},
		{
			name:    "fenced",
			content: "```json\n{\"riskLevel\":\"critical\",\"indicators\":[],\"recommendedAction\":\"call 988\",\"requiresImmediateIntervention\":true}\n```",
			want:    &CrisisAssessment{RiskLevel: RiskCritical, Indicators: []string{}, RecommendedAction: "call 988", RequiresImmediateIntervention: true},
		},
		{name: "not json", content: "I think they are fine", wantErr: true},
		{name: "unknown level", content: `{"riskLevel":"severe","indicators":[],"recommendedAction":"x","requiresImmediateIntervention":false}`, wantErr: true},
		{name: "missing indicators", content: `{"riskLevel":"low","recommendedAction":"x","requiresImmediateIntervention":false}`, wantErr: true},
		{name: "empty action", content: `{"riskLevel":"low","indicators":[],"recommendedAction":" ","requiresImmediateIntervention":false}`, wantErr: true},
		{name: "missing boolean", content: `{"riskLevel":"low","indicators":[],"recommendedAction":"x"}`, wantErr: true},
		{name: "wrong boolean type", content: `{"riskLevel":"low","indicators":[],"recommendedAction":"x","requiresImmediateIntervention":"no"}`, wantErr: true},
		{name: "unknown field", content: `{"riskLevel":"low","indicators":[],"recommendedAction":"x","requiresImmediateIntervention":false,"score":3}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssessment(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAssessment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssess_ValidResponse(t *testing.T) {
	svc := mocks.NewMockLLM()
	svc.OnTriage().Return(mocks.Assessment("medium", false, "stress"), nil).Once()

	res := NewTriager(svc, 0, nil).Assess(context.Background(), "work is a lot lately")
	assert.False(t, res.FailSafe)
	assert.Equal(t, RiskMedium, res.Assessment.RiskLevel)
	assert.Equal(t, []string{"stress"}, res.Assessment.Indicators)

	req := svc.Calls[0].Arguments.Get(1).(*llm.Request)
	assert.InDelta(t, 0.3, req.Temperature, 1e-6)
	assert.Equal(t, 512, req.MaxTokens)
	assert.NotNil(t, req.Schema)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "work is a lot lately")
	svc.AssertExpectations(t)
}

func TestAssess_FailsSafe(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		reason string
	}{
		{"upstream error", "", &llm.UpstreamGenerationError{Kind: llm.KindTimeout, Err: context.DeadlineExceeded}, ReasonUpstreamError},
		{"garbage output", "sorry, I cannot help", nil, ReasonInvalidResponse},
		{"schema violation", `{"riskLevel":"extreme","indicators":[],"recommendedAction":"x","requiresImmediateIntervention":false}`, nil, ReasonInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockLLM()
			svc.OnTriage().Return(tt.reply, tt.err)

			res := NewTriager(svc, 0, nil).Assess(context.Background(), "hello")
			require.True(t, res.FailSafe)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Error(t, res.Err)
			assert.Equal(t, RiskHigh, res.Assessment.RiskLevel)
			assert.True(t, res.Assessment.RequiresImmediateIntervention)
			assert.Contains(t, res.Assessment.RecommendedAction, "988")
			assert.Contains(t, res.Assessment.RecommendedAction, "911")
			assert.Equal(t, tt.err != nil, res.IsUpstream())
			assert.True(t, DefaultPolicy().ShouldShortCircuit(res), "fail-safe never fails open")
		})
	}
}

func TestAssess_AppliesTimeout(t *testing.T) {
	svc := mocks.NewMockLLM()
	svc.OnTriage().Return(mocks.Assessment("none", false), nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok, "triage call carries a deadline")
	})
	res := NewTriager(svc, 5*time.Second, nil).Assess(context.Background(), "hi")
	assert.False(t, res.FailSafe)
}

func TestPolicy_Thresholds(t *testing.T) {
	p := DefaultPolicy()
	for level, want := range map[RiskLevel][2]bool{
		RiskNone:     {false, false},
		RiskLow:      {false, false},
		RiskMedium:   {false, true},
		RiskHigh:     {true, true},
		RiskCritical: {true, true},
	} {
		res := &Result{Assessment: &CrisisAssessment{RiskLevel: level, Indicators: []string{}}}
		assert.Equal(t, want[0], p.ShouldShortCircuit(res), "short-circuit at %s", level)
		assert.Equal(t, want[1], p.RequiresFollowUp(res), "follow-up at %s", level)
	}
}

func TestPolicy_Expression(t *testing.T) {
	p, err := NewPolicy(RiskHigh, RiskMedium, `risk_level >= MEDIUM && "self_harm" in indicators || requires_immediate_intervention`, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Expression())

	medium := &Result{Assessment: &CrisisAssessment{RiskLevel: RiskMedium, Indicators: []string{"self_harm"}}}
	assert.True(t, p.ShouldShortCircuit(medium))

	mediumOther := &Result{Assessment: &CrisisAssessment{RiskLevel: RiskMedium, Indicators: []string{"stress"}}}
	assert.False(t, p.ShouldShortCircuit(mediumOther))

	lowFlagged := &Result{Assessment: &CrisisAssessment{RiskLevel: RiskLow, Indicators: []string{}, RequiresImmediateIntervention: true}}
	assert.True(t, p.ShouldShortCircuit(lowFlagged))
}

func TestNewPolicy_Rejects(t *testing.T) {
	_, err := NewPolicy(RiskHigh, RiskMedium, "risk_level +", nil)
	assert.Error(t, err)

	_, err = NewPolicy(RiskHigh, RiskMedium, "risk_level + 1", nil)
	assert.Error(t, err, "non-bool expressions are rejected")

	_, err = NewPolicy(RiskLevel(7), RiskMedium, "", nil)
	assert.Error(t, err)
}

func TestResult_IsUpstreamIgnoresOtherErrors(t *testing.T) {
	res := &Result{FailSafe: true, Err: errors.New("boom")}
	assert.False(t, res.IsUpstream())
}
