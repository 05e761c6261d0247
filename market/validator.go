package market

import "sort"

// KlineValidator is component B: it rejects malformed candles and cleans a
// raw exchange response into a series usable by the rest of the pipeline.
// Grounded in the teacher's defensive parsing style in
// handlers/running_trade.go, which never trusts a single wire message
// without range/ordering checks before it reaches persistence.
type KlineValidator struct {
	// DropDuplicateOpenTimes discards candles that repeat a prior
	// open_time instead of failing the whole batch; exchanges occasionally
	// resend the in-progress candle before it closes.
	DropDuplicateOpenTimes bool
}

// NewKlineValidator returns a validator with the engine's default policy.
func NewKlineValidator() *KlineValidator {
	return &KlineValidator{DropDuplicateOpenTimes: true}
}

// ValidationReport summarizes what a Clean pass did, for logging.
type ValidationReport struct {
	Input    int
	Rejected int
	Deduped  int
	Kept     int
}

// Clean drops individually-invalid candles (§3 invariants), sorts by
// open_time, and optionally removes duplicate open_times, keeping the last
// occurrence (the freshest resend of an in-progress candle).
func (v *KlineValidator) Clean(raw []Candle) ([]Candle, ValidationReport) {
	report := ValidationReport{Input: len(raw)}

	valid := make([]Candle, 0, len(raw))
	for _, c := range raw {
		if !c.Valid() {
			report.Rejected++
			continue
		}
		valid = append(valid, c)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].OpenTime.Before(valid[j].OpenTime)
	})

	if !v.DropDuplicateOpenTimes {
		report.Kept = len(valid)
		return valid, report
	}

	deduped := make([]Candle, 0, len(valid))
	for i, c := range valid {
		if i+1 < len(valid) && valid[i+1].OpenTime.Equal(c.OpenTime) {
			report.Deduped++
			continue
		}
		deduped = append(deduped, c)
	}

	report.Kept = len(deduped)
	return deduped, report
}
