package api

import (
	"testing"

	"haka-futures-engine/orchestrator"
)

func TestHistoryRecordEvictsOldestBeyondMax(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Record(orchestrator.CycleResult{Symbol: "BTCUSDT"})
	}
	got := h.Recent("BTCUSDT", 10)
	if len(got) != 3 {
		t.Fatalf("len(Recent()) = %d, want 3 (bounded by max)", len(got))
	}
}

func TestHistoryRecentLimitsResults(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 5; i++ {
		h.Record(orchestrator.CycleResult{Symbol: "ETHUSDT"})
	}
	got := h.Recent("ETHUSDT", 2)
	if len(got) != 2 {
		t.Fatalf("len(Recent(limit=2)) = %d, want 2", len(got))
	}
}

func TestHistoryRecentUnknownSymbolReturnsEmpty(t *testing.T) {
	h := NewHistory(10)
	got := h.Recent("UNKNOWN", 5)
	if len(got) != 0 {
		t.Fatalf("Recent() for an unknown symbol = %v, want empty", got)
	}
}

func TestHistoryKeepsSymbolsIndependent(t *testing.T) {
	h := NewHistory(10)
	h.Record(orchestrator.CycleResult{Symbol: "BTCUSDT"})
	h.Record(orchestrator.CycleResult{Symbol: "ETHUSDT"})
	h.Record(orchestrator.CycleResult{Symbol: "ETHUSDT"})

	if len(h.Recent("BTCUSDT", 10)) != 1 {
		t.Fatal("expected BTCUSDT to have exactly one recorded cycle")
	}
	if len(h.Recent("ETHUSDT", 10)) != 2 {
		t.Fatal("expected ETHUSDT to have exactly two recorded cycles")
	}
}
