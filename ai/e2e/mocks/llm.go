// Package mocks provides test doubles for the generation service.
package mocks

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/hrygo/mindcare/ai/core/llm"
)

// TriageSchemaName is the response schema name used by risk triage calls.
const TriageSchemaName = "crisis_assessment"

// MockLLM is a testify mock implementing llm.Service.
type MockLLM struct {
	mock.Mock
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete implements llm.Service.
func (m *MockLLM) Complete(ctx context.Context, req *llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Warmup implements llm.Service.
func (m *MockLLM) Warmup(context.Context) {}

// OnTriage stubs triage calls.
func (m *MockLLM) OnTriage() *mock.Call {
	return m.On("Complete", mock.Anything, mock.MatchedBy(IsTriage))
}

// OnGenerate stubs every non-triage call.
func (m *MockLLM) OnGenerate() *mock.Call {
	return m.On("Complete", mock.Anything, mock.MatchedBy(func(req *llm.Request) bool { return !IsTriage(req) }))
}

// GenerateCalls returns the non-triage requests received so far.
func (m *MockLLM) GenerateCalls() []*llm.Request {
	var out []*llm.Request
	for _, call := range m.Calls {
		if req, ok := call.Arguments.Get(1).(*llm.Request); ok && !IsTriage(req) {
			out = append(out, req)
		}
	}
	return out
}

// IsTriage matches risk triage requests.
func IsTriage(req *llm.Request) bool {
	return req != nil && req.SchemaName == TriageSchemaName
}

// Assessment renders a triage reply.
func Assessment(level string, intervention bool, indicators ...string) string {
	quoted := make([]string, len(indicators))
	for i, ind := range indicators {
		quoted[i] = `"` + ind + `"`
	}
	flag := "false"
	if intervention {
		flag = "true"
	}
	return `{"riskLevel":"` + level + `","indicators":[` + strings.Join(quoted, ",") +
		`],"recommendedAction":"Keep talking with the user","requiresImmediateIntervention":` + flag + `}`
}
