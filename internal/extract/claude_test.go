package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("secret", WithBaseURL(srv.URL+"/"))
	defer c.Close()

	out, err := c.Complete(context.Background(), Request{
		Model: "claude-sonnet-4-5", System: "sys", User: "user", MaxTokens: 100, Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, "claude-sonnet-4-5", got.Model)
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, 100, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Content)
}

func TestClaudeClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"type":"x","message":"nope"}}`, tt.status)
			}))
			defer srv.Close()

			_, err := NewClaudeClient("k", WithBaseURL(srv.URL)).Complete(context.Background(), Request{Model: "m", User: "u"})
			var se *ServiceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.retryable, se.Retryable())
		})
	}
}

func TestClaudeClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", WithBaseURL(srv.URL)).Complete(context.Background(), Request{Model: "m", User: "u"})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable())
}

func TestClaudeClient_CancelledContextIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClaudeClient("k", WithBaseURL(srv.URL)).Complete(ctx, Request{Model: "m", User: "u"})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceError_Message(t *testing.T) {
	err := &ServiceError{Provider: "openai", StatusCode: 429, Message: "slow down"}
	assert.Equal(t, "openai status 429: slow down", err.Error())
	assert.True(t, err.Retryable())

	netErr := &ServiceError{Provider: "anthropic", Err: errors.New("connection reset"), Transient: true}
	assert.Equal(t, "anthropic: connection reset", netErr.Error())
	assert.True(t, netErr.Retryable())
}

func TestOpenAIError_ParsesStatus(t *testing.T) {
	se := openAIError(context.Background(), errors.New("API returned unexpected status code: 503: overloaded"))
	assert.Equal(t, 503, se.StatusCode)
	assert.True(t, se.Retryable())

	se = openAIError(context.Background(), errors.New("API returned unexpected status code: 401: bad key"))
	assert.False(t, se.Retryable())
}

func TestNewCompleter(t *testing.T) {
	c, closeFn, err := NewCompleter(ProviderConfig{Provider: "Anthropic", APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)
	_, ok := c.(*ClaudeClient)
	assert.True(t, ok)
	closeFn()

	c, closeFn, err = NewCompleter(ProviderConfig{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	_, ok = c.(*OpenAIClient)
	assert.True(t, ok)
	closeFn()

	_, _, err = NewCompleter(ProviderConfig{Provider: "cohere"})
	assert.Error(t, err)
}

func TestTimeoutCompleter(t *testing.T) {
	slow := CompleterFunc(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := timeoutCompleter(slow, 10*time.Millisecond).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
