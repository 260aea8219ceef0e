package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vigilhq/vigil/snapshot"
)

func testPayload() *Payload {
	return &Payload{
		GeneratedAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		Competitors: []CompetitorSection{{Name: "acme", Report: changedReport()}},
	}
}

// Dry run must render without a single byte leaving the process.
func TestSlack_DryRunSkipsDelivery(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: srv.URL})
	if err := s.Send(context.Background(), testPayload(), true); err != nil {
		t.Fatalf("Send dry run: %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("dry run issued %d requests, want 0", hits.Load())
	}
}

func TestSlack_PostsBlockKitJSON(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: srv.URL})
	if err := s.Send(context.Background(), testPayload(), false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Text == "" {
		t.Error("fallback text missing from wire payload")
	}
	if len(got.Blocks) == 0 || got.Blocks[0].Type != "header" {
		t.Errorf("blocks = %+v, want header first", got.Blocks)
	}
}

// Transient server errors are retried with backoff until delivery lands.
func TestSlack_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{
		WebhookURL:  srv.URL,
		BaseBackoff: time.Millisecond,
	})
	if err := s.Send(context.Background(), testPayload(), false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server saw %d requests, want 3 (two failures + success)", hits.Load())
	}
}

func TestSlack_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{
		WebhookURL:  srv.URL,
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
	})
	err := s.Send(context.Background(), testPayload(), false)
	if err == nil {
		t.Fatal("Send succeeded against a permanently failing webhook")
	}
	if hits.Load() != 2 {
		t.Errorf("server saw %d requests, want 2", hits.Load())
	}
}

// Cancellation stops the retry loop instead of sleeping through backoff.
func TestSlack_CancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSlack(SlackConfig{
		WebhookURL:  srv.URL,
		BaseBackoff: 10 * time.Second,
	})
	start := time.Now()
	if err := s.Send(ctx, testPayload(), false); err == nil {
		t.Fatal("Send succeeded with cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send blocked %v after cancellation", elapsed)
	}
}

func TestNop_AlwaysSucceeds(t *testing.T) {
	if err := (Nop{}).Send(context.Background(), testPayload(), false); err != nil {
		t.Fatalf("Nop.Send: %v", err)
	}
}

// Quiet payloads still build: the notifier decides delivery policy, not
// the formatter.
func TestHasContent(t *testing.T) {
	empty := &Payload{
		GeneratedAt: time.Now(),
		Competitors: []CompetitorSection{
			{Name: "acme", Report: &snapshot.ChangeReport{Competitor: "acme"}},
		},
	}
	if empty.HasContent() {
		t.Error("empty payload reports content")
	}

	withErr := &Payload{Errors: []ErrorItem{{Message: "boom"}}}
	if !withErr.HasContent() {
		t.Error("payload with errors reports no content")
	}

	withAlerts := &Payload{
		Competitors: []CompetitorSection{
			{Name: "acme", Report: &snapshot.ChangeReport{
				KeywordAlerts: []snapshot.KeywordAlert{{URL: "u", Keyword: "k"}},
			}},
		},
	}
	if !withAlerts.HasContent() {
		t.Error("payload with keyword alerts reports no content")
	}
}
