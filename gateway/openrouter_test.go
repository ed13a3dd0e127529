package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/threadloom/threadloom/types"
)

func testRequest() Request {
	return Request{
		Model: "openai/gpt-4-turbo",
		Messages: []types.Entry{
			{Role: types.RoleSystem, Content: "You are a helpful assistant."},
			{Role: types.RoleUser, Content: "Hello"},
		},
		Temperature: 0.7,
		MaxTokens:   100,
	}
}

func successBody() map[string]any {
	return map[string]any{
		"model": "openai/gpt-4-turbo",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": "Hi there!"},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     12,
			"completion_tokens": 4,
			"total_tokens":      16,
		},
	}
}

func newTestClient(handler http.HandlerFunc) (*OpenRouter, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewOpenRouter(OpenRouterConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	return client, srv
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotPayload map[string]any

	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(successBody())
	})
	defer srv.Close()

	result, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["model"] != "openai/gpt-4-turbo" {
		t.Errorf("payload model = %v", gotPayload["model"])
	}
	if _, ok := gotPayload["max_tokens"]; !ok {
		t.Error("max_tokens missing from payload")
	}

	if result.Content != "Hi there!" {
		t.Errorf("content = %q", result.Content)
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish_reason = %q", result.FinishReason)
	}
	if result.Usage.TotalTokens != 16 || result.Tokens != 16 {
		t.Errorf("tokens = %d/%d, want 16", result.Usage.TotalTokens, result.Tokens)
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "rate limited carries retry-after",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{"Retry-After": "30"},
			body:    `{"error":{"message":"slow down"}}`,
			check: func(t *testing.T, err error) {
				var rle *RateLimitError
				if !errors.As(err, &rle) {
					t.Fatalf("want RateLimitError, got %T: %v", err, err)
				}
				if rle.RetryAfter != "30" {
					t.Errorf("RetryAfter = %q, want 30", rle.RetryAfter)
				}
			},
		},
		{
			name:   "auth failure is sentinel",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"bad key"}}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrAuthFailed) {
					t.Fatalf("want ErrAuthFailed, got %v", err)
				}
			},
		},
		{
			name:   "bad request surfaces detail",
			status: http.StatusBadRequest,
			body:   `{"error":{"message":"unknown model"}}`,
			check: func(t *testing.T, err error) {
				var bre *BadRequestError
				if !errors.As(err, &bre) {
					t.Fatalf("want BadRequestError, got %T: %v", err, err)
				}
				if bre.Detail != "unknown model" {
					t.Errorf("Detail = %q", bre.Detail)
				}
			},
		},
		{
			name:   "server error maps to upstream",
			status: http.StatusBadGateway,
			body:   `upstream exploded`,
			check: func(t *testing.T, err error) {
				var ue *UpstreamError
				if !errors.As(err, &ue) {
					t.Fatalf("want UpstreamError, got %T: %v", err, err)
				}
				if ue.Status != http.StatusBadGateway {
					t.Errorf("Status = %d", ue.Status)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer srv.Close()

			_, err := client.Complete(context.Background(), testRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)

			// HTTP error classes must not be retried.
			if attempts != 1 {
				t.Errorf("attempts = %d, want 1", attempts)
			}
		})
	}
}

func TestCompleteRetriesTimeouts(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			time.Sleep(200 * time.Millisecond) // trip the client timeout
			return
		}
		json.NewEncoder(w).Encode(successBody())
	}))
	defer srv.Close()

	client := NewOpenRouter(OpenRouterConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	})

	result, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result.Content != "Hi there!" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestCompleteTimeoutExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewOpenRouter(OpenRouterConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	})

	_, err := client.Complete(context.Background(), testRequest())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	if attempts != maxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxAttempts)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "m", "choices": []any{}})
	})
	defer srv.Close()

	_, err := client.Complete(context.Background(), testRequest())
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("want UpstreamError for empty choices, got %v", err)
	}
}
