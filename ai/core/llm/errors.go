package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind categorizes a failed generation call.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindMalformed ErrorKind = "malformed"
	KindCanceled  ErrorKind = "canceled"
	KindUnknown   ErrorKind = "unknown"
)

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("empty response from LLM")

// UpstreamGenerationError is returned by Service for every failed call.
type UpstreamGenerationError struct {
	Err        error
	Kind       ErrorKind
	Provider   string
	StatusCode int
}

func (e *UpstreamGenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream generation failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream generation failed (%s): %v", e.Kind, e.Err)
}

func (e *UpstreamGenerationError) Unwrap() error {
	return e.Err
}

// Temporary reports whether a later retry may succeed.
func (e *UpstreamGenerationError) Temporary() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork, KindRateLimit:
		return true
	default:
		return false
	}
}

// Classify wraps err as an UpstreamGenerationError.
func Classify(err error) *UpstreamGenerationError {
	if err == nil {
		return nil
	}

	var upstream *UpstreamGenerationError
	if errors.As(err, &upstream) {
		return upstream
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamGenerationError{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &UpstreamGenerationError{Kind: KindCanceled, Err: err}
	}
	if errors.Is(err, ErrEmptyResponse) {
		return &UpstreamGenerationError{Kind: KindMalformed, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamGenerationError{Kind: kindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamGenerationError{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	if isTimeoutError(err) {
		return &UpstreamGenerationError{Kind: KindTimeout, Err: err}
	}
	if isNetworkError(err) {
		return &UpstreamGenerationError{Kind: KindNetwork, Err: err}
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "unauthorized"), strings.Contains(errMsg, "forbidden"), strings.Contains(errMsg, "invalid api key"):
		return &UpstreamGenerationError{Kind: KindAuth, Err: err}
	case strings.Contains(errMsg, "rate limit"), strings.Contains(errMsg, "too many requests"):
		return &UpstreamGenerationError{Kind: KindRateLimit, Err: err}
	case strings.Contains(errMsg, "unmarshal"), strings.Contains(errMsg, "invalid character"):
		return &UpstreamGenerationError{Kind: KindMalformed, Err: err}
	}
	return &UpstreamGenerationError{Kind: KindUnknown, Err: err}
}

// KindOf returns the kind of err, or KindUnknown if it was not classified.
func KindOf(err error) ErrorKind {
	var upstream *UpstreamGenerationError
	if errors.As(err, &upstream) {
		return upstream.Kind
	}
	return KindUnknown
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindNetwork
	case status == 0:
		return KindNetwork
	default:
		return KindUnknown
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"temporary failure",
		"dial tcp",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "timed out")
}
