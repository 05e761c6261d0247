package llmadvisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"haka-futures-engine/cache"
	"haka-futures-engine/decision"
)

func testResult() decision.DecisionResult {
	return decision.DecisionResult{
		Action:        decision.ActionLong,
		WeightedScore: 42,
		Confidence:    60,
		Alignment:     decision.AlignmentFull,
	}
}

func TestReviewDisabledReturnsNeutralEnvelope(t *testing.T) {
	a := NewAdvisor(nil, false)
	env := a.Review(context.Background(), "BTCUSDT", testResult())
	if !reflect.DeepEqual(env, Envelope{}) {
		t.Fatalf("Review() = %+v, want zero-value envelope when disabled", env)
	}
}

func newChatServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func chatResponseBody(content string) string {
	resp := chatResponse{Choices: []struct {
		Message message `json:"message"`
	}{{Message: message{Role: "assistant", Content: content}}}}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestReviewParsesModelEnvelopeAndClampsAdjustment(t *testing.T) {
	body := chatResponseBody(`{"confidence_adjustment": 35, "reasoning": "overextended", "flagged_concerns": ["funding crowded"]}`)
	srv := newChatServer(t, body, http.StatusOK)
	defer srv.Close()

	a := NewAdvisor(NewClient(srv.URL, "key", "model"), true)
	env := a.Review(context.Background(), "BTCUSDT", testResult())

	if env.ConfidenceAdjustment != 20 {
		t.Fatalf("ConfidenceAdjustment = %v, want clamped to 20", env.ConfidenceAdjustment)
	}
	if env.Reasoning != "overextended" {
		t.Fatalf("Reasoning = %q, want %q", env.Reasoning, "overextended")
	}
	if len(env.FlaggedConcerns) != 1 {
		t.Fatalf("FlaggedConcerns = %v, want 1 entry", env.FlaggedConcerns)
	}
}

func TestReviewClampsNegativeAdjustment(t *testing.T) {
	body := chatResponseBody(`{"confidence_adjustment": -35, "reasoning": "risky"}`)
	srv := newChatServer(t, body, http.StatusOK)
	defer srv.Close()

	a := NewAdvisor(NewClient(srv.URL, "key", "model"), true)
	env := a.Review(context.Background(), "BTCUSDT", testResult())
	if env.ConfidenceAdjustment != -20 {
		t.Fatalf("ConfidenceAdjustment = %v, want clamped to -20", env.ConfidenceAdjustment)
	}
}

func TestReviewUnparseableOutputIsIgnored(t *testing.T) {
	srv := newChatServer(t, chatResponseBody("not json"), http.StatusOK)
	defer srv.Close()

	a := NewAdvisor(NewClient(srv.URL, "key", "model"), true)
	env := a.Review(context.Background(), "BTCUSDT", testResult())
	if env.ConfidenceAdjustment != 0 {
		t.Fatalf("ConfidenceAdjustment = %v, want 0 on unparseable output", env.ConfidenceAdjustment)
	}
	if env.Reasoning == "" {
		t.Fatal("expected a non-empty reasoning explaining the parse failure")
	}
}

func TestReviewAPIErrorReturnsNeutralEnvelope(t *testing.T) {
	srv := newChatServer(t, `{"error":"boom"}`, http.StatusInternalServerError)
	defer srv.Close()

	a := NewAdvisor(NewClient(srv.URL, "key", "model"), true)
	env := a.Review(context.Background(), "BTCUSDT", testResult())
	if env.ConfidenceAdjustment != 0 {
		t.Fatalf("ConfidenceAdjustment = %v, want 0 when the API call fails", env.ConfidenceAdjustment)
	}
	if env.Reasoning == "" {
		t.Fatal("expected a non-empty reasoning explaining the failure")
	}
}

// TestReviewWithDisconnectedCacheStillCallsModel exercises the WithCache
// path when the attached cache has no live Redis client: every GetReview
// and IsInCooldown call is a guaranteed miss, so the advisor always falls
// through to the model rather than silently going unreviewed.
func TestReviewWithDisconnectedCacheStillCallsModel(t *testing.T) {
	body := chatResponseBody(`{"confidence_adjustment": 5, "reasoning": "fine"}`)
	srv := newChatServer(t, body, http.StatusOK)
	defer srv.Close()

	a := NewAdvisor(NewClient(srv.URL, "key", "model"), true).WithCache(cache.NewAdvisorCache(nil))
	env := a.Review(context.Background(), "BTCUSDT", testResult())
	if env.Reasoning != "fine" {
		t.Fatalf("Reasoning = %q, want the model's response even with a disconnected cache", env.Reasoning)
	}
}

func TestApplyClampsConfidenceToRangeAndNeverChangesAction(t *testing.T) {
	tests := []struct {
		name       string
		start      float64
		adjustment float64
		want       float64
	}{
		{"clamps above 100", 95, 20, 100},
		{"clamps below 0", 5, -20, 0},
		{"applies within range unchanged", 50, 10, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &decision.DecisionResult{Action: decision.ActionShort, Confidence: tt.start}
			Apply(result, Envelope{ConfidenceAdjustment: tt.adjustment})
			if result.Confidence != tt.want {
				t.Fatalf("Confidence = %v, want %v", result.Confidence, tt.want)
			}
			if result.Action != decision.ActionShort {
				t.Fatal("Apply() must never change Action")
			}
		})
	}
}
