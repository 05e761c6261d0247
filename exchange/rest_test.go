package exchange

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"haka-futures-engine/market"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *RESTClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewRESTClient(srv.URL, "key", "secret")
}

func TestGetKlinesParsesRows(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1h" {
			t.Fatalf("interval = %q, want 1h", r.URL.Query().Get("interval"))
		}
		w.Write([]byte(`[[1690000000000,"100.5","101.0","99.5","100.8","10.0",1690003600000,"0","0","0","0","0"]]`))
	})

	candles, err := c.GetKlines(context.Background(), "BTCUSDT", market.TF1h, 1)
	if err != nil {
		t.Fatalf("GetKlines() error = %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	got := candles[0]
	if got.Open != 100.5 || got.High != 101.0 || got.Low != 99.5 || got.Close != 100.8 || got.Volume != 10.0 {
		t.Fatalf("candle = %+v, unexpected parsed values", got)
	}
	if !got.CloseTime.After(got.OpenTime) {
		t.Fatal("expected CloseTime to be after OpenTime")
	}
}

func TestGetKlinesRejectsUnsupportedTimeframe(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be called for an unsupported timeframe")
	})
	_, err := c.GetKlines(context.Background(), "BTCUSDT", market.Timeframe("4h"), 10)
	if err == nil {
		t.Fatal("expected an error for an unsupported timeframe")
	}
}

func TestGetKlinesPropagatesRateLimitError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.GetKlines(context.Background(), "BTCUSDT", market.TF5m, 10)
	if err == nil {
		t.Fatal("expected an error on HTTP 429")
	}
}

func TestGetFundingRateParsesLastFundingRate(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastFundingRate":"0.0003"}`))
	})
	got, err := c.GetFundingRate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetFundingRate() error = %v", err)
	}
	if got != 0.0003 {
		t.Fatalf("GetFundingRate() = %v, want 0.0003", got)
	}
}

func TestGetOpenInterestFallsBackWhenHistoryMissing(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/openInterest":
			w.Write([]byte(`{"openInterest":"12345.6"}`))
		case "/futures/data/openInterestHist":
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	got, err := c.GetOpenInterest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetOpenInterest() error = %v", err)
	}
	if got.Current != 12345.6 {
		t.Fatalf("Current = %v, want 12345.6", got.Current)
	}
	if got.Ago24h != 0 {
		t.Fatalf("Ago24h = %v, want 0 when history is unavailable", got.Ago24h)
	}
}

func TestGetOpenInterestUsesHistoryWhenAvailable(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/openInterest":
			w.Write([]byte(`{"openInterest":"200"}`))
		case "/futures/data/openInterestHist":
			w.Write([]byte(`[{"sumOpenInterest":"150"}]`))
		}
	})
	got, err := c.GetOpenInterest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetOpenInterest() error = %v", err)
	}
	if got.Current != 200 || got.Ago24h != 150 {
		t.Fatalf("got %+v, want Current=200 Ago24h=150", got)
	}
}

func TestGetInstitutionalNetflowSignsAroundZero(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"buySellRatio":"1.20"}]`))
	})
	got, err := c.GetInstitutionalNetflow(context.Background(), "BTCUSDT", time.Hour)
	if err != nil {
		t.Fatalf("GetInstitutionalNetflow() error = %v", err)
	}
	if math.Abs(got-20) > 1e-9 {
		t.Fatalf("GetInstitutionalNetflow() = %v, want 20 (ratio 1.20 -> +20%%)", got)
	}
}

func TestGetInstitutionalNetflowEmptyRowsReturnsZero(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	got, err := c.GetInstitutionalNetflow(context.Background(), "BTCUSDT", time.Hour)
	if err != nil {
		t.Fatalf("GetInstitutionalNetflow() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("GetInstitutionalNetflow() = %v, want 0", got)
	}
}
