package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"qualibot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const okBody = `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Paris."},"finish_reason":"stop"}]}`

func newTestClient(t *testing.T, h http.HandlerFunc, retries int, timeout time.Duration) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		Model:       "test-model",
		Temperature: 0.7,
		MaxRetries:  retries,
		Timeout:     timeout,
		Logger:      testLogger(),
		backoffBase: time.Millisecond,
	})
}

func TestComplete_SendsSystemAndUserTurn(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	}, 0, 0)

	out, err := c.Complete(context.Background(), "system instruction", "hey ai capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Paris." {
		t.Fatalf("expected 'Paris.', got %q", out)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.Model != "test-model" {
		t.Fatalf("expected model 'test-model', got %q", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "system instruction" {
		t.Fatalf("bad system turn: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "hey ai capital of France?" {
		t.Fatalf("bad user turn: %+v", got.Messages[1])
	}
	if got.Temperature < 0.69 || got.Temperature > 0.71 {
		t.Fatalf("expected temperature 0.7, got %v", got.Temperature)
	}
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		io.WriteString(w, okBody)
	}, 2, 0)

	out, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if out != "Paris." {
		t.Fatalf("unexpected output %q", out)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestComplete_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}, 2, 0)

	_, err := c.Complete(context.Background(), "s", "u")
	var me *domain.ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected *domain.ModelError, got %T: %v", err, err)
	}
	if me.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", me.StatusCode)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", n)
	}
}

func TestComplete_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}, 2, 0)

	_, err := c.Complete(context.Background(), "s", "u")
	var me *domain.ModelError
	if !errors.As(err, &me) || me.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 ModelError, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("auth failures must not be retried, got %d attempts", n)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	}, 0, 0)

	_, err := c.Complete(context.Background(), "s", "u")
	var me *domain.ModelError
	if !errors.As(err, &me) || me.Op != "decode" {
		t.Fatalf("expected decode ModelError, got %v", err)
	}
}

func TestComplete_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 0, 50*time.Millisecond)

	start := time.Now()
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestNewOpenAI_Defaults(t *testing.T) {
	c := NewOpenAI(OpenAIConfig{APIKey: "k"})
	if c.Model() != DefaultModel {
		t.Fatalf("expected default model %q, got %q", DefaultModel, c.Model())
	}
	if c.timeout != 0 {
		t.Fatalf("timeout should default to unbounded, got %v", c.timeout)
	}
}

func TestComplete_ZeroTemperatureSent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		Model:       "test-model",
		Temperature: 0,
		Logger:      testLogger(),
	})
	if _, err := c.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	temp, ok := got["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request body: %v", got)
	}
	if temp < 0 || temp > 1e-6 {
		t.Fatalf("expected near-zero temperature, got %v", temp)
	}
}

func TestComplete_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices": [`)
	}, 2, 0)

	_, err := c.Complete(context.Background(), "s", "u")
	var me *domain.ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected *domain.ModelError, got %T: %v", err, err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("malformed responses must not be retried, got %d attempts", n)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, false},
		{"canceled in url error", &url.Error{Op: "Post", URL: "http://x", Err: context.Canceled}, false},
		{"connection refused", &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, true},
		{"attempt deadline", context.DeadlineExceeded, true},
		{"decode failure", &json.SyntaxError{Offset: 3}, false},
		{"plain error", errors.New("something odd"), false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: isRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
