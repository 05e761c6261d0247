package exchange

import (
	"context"
	"net/http"
	"testing"
	"time"

	"haka-futures-engine/decision"
	"haka-futures-engine/risk"
)

func TestSubmitSendsMarketOrderWithCorrectSide(t *testing.T) {
	var gotSide string
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotSide = r.URL.Query().Get("side")
		if r.URL.Query().Get("type") != "MARKET" {
			t.Fatalf("type = %q, want MARKET", r.URL.Query().Get("type"))
		}
		if r.Header.Get("X-MBX-APIKEY") != "key" {
			t.Fatal("expected the API key header to be set")
		}
		w.WriteHeader(http.StatusOK)
	})
	_ = srv

	if err := c.Submit(context.Background(), "BTCUSDT", decision.ActionShort, risk.RiskCheckResult{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gotSide != "SELL" {
		t.Fatalf("side = %q, want SELL for a short action", gotSide)
	}

	if err := c.Submit(context.Background(), "BTCUSDT", decision.ActionLong, risk.RiskCheckResult{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gotSide != "BUY" {
		t.Fatalf("side = %q, want BUY for a long action", gotSide)
	}
}

func TestSubmitFailsImmediatelyOnNonRateLimitError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"insufficient margin"}`))
	})

	start := time.Now()
	err := c.Submit(context.Background(), "BTCUSDT", decision.ActionLong, risk.RiskCheckResult{})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error on a rejected order")
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("Submit() took %s, want a fast failure with no retry on a non-429 rejection", elapsed)
	}
}

func TestIsRateLimitedDistinguishesErrorKinds(t *testing.T) {
	if isRateLimited(nil) {
		t.Fatal("nil error should not be treated as rate limited")
	}
	if !isRateLimited(rateLimitError{}) {
		t.Fatal("rateLimitError should be treated as rate limited")
	}
}

func TestJitteredBackoffGrowsWithAttempt(t *testing.T) {
	b0 := jitteredBackoff(0)
	b3 := jitteredBackoff(3)
	if b0 < time.Second || b0 >= 1500*time.Millisecond {
		t.Fatalf("jitteredBackoff(0) = %s, want within [1s, 1.5s)", b0)
	}
	if b3 <= b0 {
		t.Fatalf("jitteredBackoff(3) = %s, want greater than jitteredBackoff(0) = %s", b3, b0)
	}
}
