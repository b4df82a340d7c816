package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves /chat/completions with a canned handler.
func fakeProvider(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	resp := map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestService(t *testing.T, baseURL string, timeout int) Service {
	t.Helper()
	svc, err := NewService(&Config{Provider: "openai", Model: "test-model", APIKey: "k", BaseURL: baseURL, Timeout: timeout})
	require.NoError(t, err)
	return svc
}

func TestNewService_ProviderDefaults(t *testing.T) {
	for _, provider := range []string{"deepseek", "siliconflow", "zai", "openai", "ollama", "custom"} {
		svc, err := NewService(&Config{Provider: provider, APIKey: "test-key"})
		require.NoError(t, err, provider)
		assert.NotNil(t, svc)
	}
}

func TestComplete_SendsInstructionsAndOverrides(t *testing.T) {
	var got map[string]any
	srv := fakeProvider(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		io.WriteString(w, completion("hello"))
	})
	svc := newTestService(t, srv.URL, 5)

	out, err := svc.Complete(context.Background(), &Request{
		Instructions: "be kind",
		Messages:     []Message{UserMessage("hi")},
		Temperature:  0.3,
		MaxTokens:    512,
		Schema: &JSONSchema{
			Type:       "object",
			Properties: map[string]*JSONSchema{"x": {Type: "string"}},
			Required:   []string{"x"},
		},
		SchemaName: "probe",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "be kind", messages[0].(map[string]any)["content"])
	assert.InDelta(t, 0.3, got["temperature"], 1e-6)
	assert.EqualValues(t, 512, got["max_tokens"])

	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "probe", schema["name"])
}

func TestComplete_ClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusBadGateway, KindNetwork},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := fakeProvider(t, func(w http.ResponseWriter, _ map[string]any) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"error":{"message":"nope","type":"error"}}`)
			})
			_, err := newTestService(t, srv.URL, 5).Complete(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})
			require.Error(t, err)

			var upstream *UpstreamGenerationError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, tt.want, upstream.Kind)
			assert.Equal(t, "openai", upstream.Provider)
		})
	}
}

func TestComplete_EmptyResponseIsMalformed(t *testing.T) {
	srv := fakeProvider(t, func(w http.ResponseWriter, _ map[string]any) {
		io.WriteString(w, completion("   "))
	})
	_, err := newTestService(t, srv.URL, 5).Complete(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestComplete_TimeoutIsRecoverable(t *testing.T) {
	srv := fakeProvider(t, func(w http.ResponseWriter, _ map[string]any) {
		time.Sleep(1500 * time.Millisecond)
		io.WriteString(w, completion("late"))
	})
	_, err := newTestService(t, srv.URL, 1).Complete(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})
	require.Error(t, err)

	var upstream *UpstreamGenerationError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, KindTimeout, upstream.Kind)
	assert.True(t, upstream.Temporary())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindCanceled, Classify(context.Canceled).Kind)
	assert.Equal(t, KindNetwork, Classify(errors.New("dial tcp 10.0.0.1:443: connection refused")).Kind)
	assert.Equal(t, KindAuth, Classify(errors.New("Invalid API key provided")).Kind)
	assert.Equal(t, KindUnknown, Classify(errors.New("something odd")).Kind)

	wrapped := Classify(&UpstreamGenerationError{Kind: KindRateLimit, Err: errors.New("slow down")})
	assert.Equal(t, KindRateLimit, wrapped.Kind)
	assert.False(t, (&UpstreamGenerationError{Kind: KindAuth}).Temporary())
}

func TestJSONSchema_Marshal(t *testing.T) {
	schema := &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"tags": {Type: "array", Items: &JSONSchema{Type: "string"}},
		},
		Required: []string{"tags"},
	}
	b, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"object",
		"properties":{"tags":{"type":"array","items":{"type":"string","additionalProperties":false},"additionalProperties":false}},
		"required":["tags"],
		"additionalProperties":false
	}`, string(b))
}
