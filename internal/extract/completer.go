package extract

import (
	"context"
	"fmt"
	"net/http"
)

// Request is one completion call.
type Request struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer is a text completion service.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ServiceError is returned by completion adapters for any failed call.
type ServiceError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
	Transient  bool // network failure worth retrying
}

func (e *ServiceError) Error() string {
	msg := e.Provider
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + truncate(e.Message, 200)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated.
func (e *ServiceError) Retryable() bool {
	return e.Transient || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
