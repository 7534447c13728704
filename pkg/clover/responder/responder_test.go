package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jholhewres/clover/pkg/clover/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newChatServer returns a chat completions stub that records request bodies
// and answers with the given reply text.
func newChatServer(t *testing.T, reply string, requests *[]chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test-key", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if requests != nil {
			*requests = append(*requests, req)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`, reply)
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Responder.BaseURL = baseURL
	cfg.Responder.APIKey = "test-key"
	cfg.Responder.HistoryLimit = 3
	return New(cfg, discardLogger())
}

func TestRespond(t *testing.T) {
	t.Parallel()

	var requests []chatRequest
	srv := newChatServer(t, "It is sunny today.", &requests)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	reply, err := c.Respond(context.Background(), "how is the weather")
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if reply != "It is sunny today." {
		t.Errorf("reply = %q, want the stubbed answer", reply)
	}

	if len(requests) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(requests))
	}
	msgs := requests[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("first request carried %d messages, want system + user", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Role != "user" || msgs[1].Content != "how is the weather" {
		t.Errorf("last message = %+v, want the user query", msgs[1])
	}
}

func TestRespondCarriesHistory(t *testing.T) {
	t.Parallel()

	var requests []chatRequest
	srv := newChatServer(t, "ok", &requests)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	ctx := context.Background()
	for _, q := range []string{"one", "two", "three"} {
		if _, err := c.Respond(ctx, q); err != nil {
			t.Fatalf("Respond(%q) error: %v", q, err)
		}
	}

	last := requests[len(requests)-1].Messages
	// system + 2 past exchanges + new query
	if len(last) != 6 {
		t.Fatalf("third request carried %d messages, want 6", len(last))
	}
	if last[1].Content != "one" || last[2].Content != "ok" {
		t.Errorf("history not replayed in order: %+v", last[1:3])
	}
}

func TestRespondHistoryEviction(t *testing.T) {
	t.Parallel()

	var requests []chatRequest
	srv := newChatServer(t, "ok", &requests)
	defer srv.Close()

	c := newTestClient(t, srv.URL) // history limit 3

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if _, err := c.Respond(ctx, fmt.Sprintf("q%d", i)); err != nil {
			t.Fatalf("Respond() error: %v", err)
		}
	}

	last := requests[len(requests)-1].Messages
	// system + 3 capped exchanges + new query
	if len(last) != 8 {
		t.Fatalf("request carried %d messages, want 8 after eviction", len(last))
	}
	if last[1].Content != "q2" {
		t.Errorf("oldest retained query = %q, want q2", last[1].Content)
	}
}

func TestRespondAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintln(w, `{"error":{"message":"rate limit exceeded"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("Respond() should return error on 429")
	}
}

func TestRespondErrorPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("Respond() should surface error payloads delivered with status 200")
	}
}

func TestRespondMissingKey(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Responder.APIKey = ""
	c := New(cfg, discardLogger())

	if _, err := c.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("Respond() without API key should fail before any request")
	}
}

func TestRespondEmptyReplyNotRemembered(t *testing.T) {
	t.Parallel()

	var requests []chatRequest
	srv := newChatServer(t, "  ", &requests)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	ctx := context.Background()
	reply, err := c.Respond(ctx, "first")
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if reply != "" {
		t.Errorf("reply = %q, want empty after trimming", reply)
	}

	if _, err := c.Respond(ctx, "second"); err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	last := requests[len(requests)-1].Messages
	if len(last) != 2 {
		t.Errorf("empty exchange was remembered: %d messages, want 2", len(last))
	}
}
