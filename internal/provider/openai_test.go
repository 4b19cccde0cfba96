package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sonantlabs/sonant/internal/config"
)

func testClient(url string, timeoutSec int) *OpenAIClient {
	return NewOpenAIClient(config.ProviderConfig{
		APIKey:         "sk-test",
		BaseURL:        url,
		Model:          "test-model",
		MaxTokens:      256,
		TimeoutSeconds: timeoutSec,
	})
}

func TestCompleteSuccess(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model-1",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "hello there"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	got, err := c.Complete(context.Background(), "be brief", []Turn{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got.Text != "hello there" || got.FinishReason != "stop" {
		t.Errorf("completion = %+v", got)
	}
	if got.Usage == nil || got.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", got.Usage)
	}
	// System prompt goes first.
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "", []Turn{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestCompleteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	_, err := c.Complete(context.Background(), "", []Turn{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 429")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("429 must not be reported as timeout")
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "m",
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "  "}}},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	_, err := c.Complete(context.Background(), "", []Turn{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("error = %v, want ErrEmptyCompletion", err)
	}
}
