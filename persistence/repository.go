package persistence

import (
	"fmt"
	"strings"
	"time"

	"haka-futures-engine/orchestrator"
	"haka-futures-engine/risk"
)

// Repository handles writes of pipeline artifacts.
type Repository struct {
	db *Database
}

func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

// InitSchema auto-migrates the artifact tables and converts them into
// TimescaleDB hypertables with retention policies, following the teacher's
// manual-SQL-after-AutoMigrate approach for hypertable-incompatible DDL.
func (r *Repository) InitSchema() error {
	if err := r.db.db.AutoMigrate(
		&DecisionRecord{},
		&RiskAuditRecord{},
		&ExecutionRecord{},
		&QuantAnalysisRecord{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	return r.setupTimescaleDB()
}

func (r *Repository) setupTimescaleDB() error {
	if err := r.db.db.Exec("CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE").Error; err != nil {
		return fmt.Errorf("failed to create timescaledb extension: %w", err)
	}

	hypertables := []struct {
		table       string
		timeColumn  string
		chunk       string
		retention   string
	}{
		{"decisions", "generated_at", "1 day", "1 year"},
		{"risk_audits", "generated_at", "1 day", "1 year"},
		{"executions", "submitted_at", "1 day", "2 years"},
		{"quant_analyses", "generated_at", "1 day", "6 months"},
	}

	for _, h := range hypertables {
		r.db.db.Exec(fmt.Sprintf(`
			SELECT create_hypertable('%s', '%s',
				chunk_time_interval => INTERVAL '%s',
				if_not_exists => TRUE
			)
		`, h.table, h.timeColumn, h.chunk))

		r.db.db.Exec(fmt.Sprintf(`
			SELECT add_retention_policy('%s', INTERVAL '%s', if_not_exists => TRUE)
		`, h.table, h.retention))
	}

	return nil
}

// RecordCycle persists one symbol's cycle outcome across the artifact
// tables, in order: quant read, decision, then risk audit (when present).
// The first failing write returns its error and the later writes are skipped.
func (r *Repository) RecordCycle(result orchestrator.CycleResult) error {
	if result.Snapshot == nil {
		return nil
	}
	generatedAt := result.Snapshot.Timestamp

	quantRecord := QuantAnalysisRecord{
		GeneratedAt: generatedAt,
		Symbol:      result.Symbol,
		Composite:   result.Quant.Composite,
		Label:       result.Quant.Label,
	}
	if err := r.db.db.Create(&quantRecord).Error; err != nil {
		return fmt.Errorf("record quant analysis: %w", err)
	}

	decisionRecord := DecisionRecord{
		GeneratedAt:     generatedAt,
		Symbol:          result.Symbol,
		SnapshotID:      result.Snapshot.SnapshotID,
		Action:          string(result.Decision.Action),
		WeightedScore:   result.Decision.WeightedScore,
		Confidence:      result.Decision.Confidence,
		Alignment:       string(result.Decision.Alignment),
		Regime:          string(result.Regime),
		RegimeVetoed:    result.Decision.RegimeVetoed,
		PositionVetoed:  result.Decision.PositionVetoed,
		VetoReason:      result.Decision.VetoReason,
		AdversarialNote: result.Decision.AdversarialNote,
	}
	if err := r.db.db.Create(&decisionRecord).Error; err != nil {
		return fmt.Errorf("record decision: %w", err)
	}

	if result.RiskCheck != nil {
		if err := r.recordRiskCheck(generatedAt, result.Symbol, *result.RiskCheck); err != nil {
			return err
		}
	}

	return nil
}

func (r *Repository) recordRiskCheck(generatedAt time.Time, symbol string, check risk.RiskCheckResult) error {
	record := RiskAuditRecord{
		GeneratedAt: generatedAt,
		Symbol:      symbol,
		Passed:      check.Passed,
		RiskLevel:   check.RiskLevel,
		BlockedBy:   check.BlockedBy,
		Warnings:    strings.Join(check.Warnings, "; "),
	}
	if err := r.db.db.Create(&record).Error; err != nil {
		return fmt.Errorf("record risk audit: %w", err)
	}
	return nil
}
