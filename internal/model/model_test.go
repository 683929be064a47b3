package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh7800/adofly/internal/config"
	"github.com/harsh7800/adofly/internal/logging"
)

// ---------------------------------------------------------------------------
// OpenAI backend
// ---------------------------------------------------------------------------

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	m := NewOpenAI("sk-test", "gpt-4o-mini", 0.7, WithBaseURL(srv.URL+"/v1"))
	out, err := m.Complete(context.Background(), "write an ad")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "write an ad", msgs[0].(map[string]any)["content"])
}

func TestOpenAI_RateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	m := NewOpenAI("sk-test", "gpt-4o-mini", 0.7, WithBaseURL(srv.URL+"/v1"))
	_, err := m.Complete(context.Background(), "p")
	require.Error(t, err)

	var se StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode())
	assert.True(t, Retryable(err))
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "m", 0, WithBaseURL(srv.URL+"/v1")).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

// ---------------------------------------------------------------------------
// Agent backend
// ---------------------------------------------------------------------------

func TestAgent_CompleteFromArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req["jsonrpc"])
		assert.Equal(t, "message/send", req["method"])

		params := req["params"].(map[string]any)
		msg := params["message"].(map[string]any)
		assert.Equal(t, "user", msg["role"])
		assert.NotEmpty(t, msg["messageId"])
		assert.Equal(t, "the prompt", msg["parts"].([]any)[0].(map[string]any)["text"])

		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"id":"t1","status":{"state":"completed"},"artifacts":[{"parts":[{"text":"{\"a\":"},{"text":"1}"}]}]}}`))
	}))
	defer srv.Close()

	out, err := NewAgent(srv.URL).Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestAgent_CompleteFromStatusMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"id":"t1","status":{"state":"completed","message":{"messageId":"m","role":"agent","parts":[{"text":"hello"}]}}}}`))
	}))
	defer srv.Close()

	out, err := NewAgent(srv.URL).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestAgent_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rpc error", http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"boom"}}`, false},
		{"failed task", http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"id":"t1","status":{"state":"failed"}}}`, true},
		{"server error", http.StatusBadGateway, `upstream down`, true},
		{"bad request", http.StatusBadRequest, `nope`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAgent(srv.URL).Complete(context.Background(), "p")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, Retryable(err))
		})
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetrying_RecoversFromTransientFailure(t *testing.T) {
	var calls atomic.Int32
	inner := Func(func(ctx context.Context, prompt string) (string, error) {
		if calls.Add(1) < 3 {
			return "", &httpStatusError{status: http.StatusServiceUnavailable, err: errors.New("unavailable")}
		}
		return "ok", nil
	})

	r := WithRetry(inner, 2, WithRetryLogger(logging.Discard()))
	r.sleep = noSleep

	out, err := r.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrying_GivesUp(t *testing.T) {
	var calls atomic.Int32
	inner := Func(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", errors.New("connection reset")
	})

	r := WithRetry(inner, 2, WithRetryLogger(logging.Discard()))
	r.sleep = noSleep

	_, err := r.Complete(context.Background(), "p")
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrying_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	inner := Func(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", &httpStatusError{status: http.StatusUnauthorized, err: errors.New("bad key")}
	})

	r := WithRetry(inner, 5, WithRetryLogger(logging.Discard()))
	r.sleep = noSleep

	_, err := r.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := Func(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		return "", errors.New("transient")
	})

	r := WithRetry(inner, 5, WithRetryLogger(logging.Discard()))
	_, err := r.Complete(ctx, "p")
	assert.EqualError(t, err, "transient")
}

func TestBackoff_NextDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, b.NextDelay(0))
	assert.Equal(t, 400*time.Millisecond, b.NextDelay(2))
	assert.Equal(t, time.Second, b.NextDelay(10))
}

// ---------------------------------------------------------------------------
// Factory and stub
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	m, err := New(config.ModelConfig{Provider: "stub"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Stub{}, m)

	m, err = New(config.ModelConfig{Provider: "openai", APIKey: "k", Name: "gpt-4o-mini", MaxRetries: 2}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Retrying{}, m)

	m, err = New(config.ModelConfig{Provider: "a2a", AgentEndpoint: "http://localhost:1"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Agent{}, m)

	_, err = New(config.ModelConfig{Provider: "llama"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestStub(t *testing.T) {
	ctx := context.Background()

	out, err := Stub{}.Complete(ctx, `respond with {"callToActions": []}`)
	require.NoError(t, err)
	assert.Equal(t, StubAdCopy, out)

	out, err = Stub{}.Complete(ctx, `"interests"`)
	require.NoError(t, err)
	assert.Contains(t, out, StubAudience)

	_, err = Stub{}.Complete(ctx, "unknown")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
