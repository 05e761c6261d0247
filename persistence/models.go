package persistence

import "time"

// DecisionRecord is the append-only record of one DecisionCoreAgent call,
// joined with enough upstream context to reconstruct why it fired.
type DecisionRecord struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GeneratedAt     time.Time `gorm:"primaryKey;index;not null" json:"generated_at"`
	Symbol          string    `gorm:"type:text;index;not null" json:"symbol"`
	SnapshotID      string    `gorm:"type:text;not null" json:"snapshot_id"`
	Action          string    `gorm:"type:text;not null" json:"action"`
	WeightedScore   float64   `gorm:"type:decimal(10,4)" json:"weighted_score"`
	Confidence      float64   `gorm:"type:decimal(5,2)" json:"confidence"`
	Alignment       string    `gorm:"type:text" json:"alignment"`
	Regime          string    `gorm:"type:text" json:"regime"`
	RegimeVetoed    bool      `json:"regime_vetoed"`
	PositionVetoed  bool      `json:"position_vetoed"`
	VetoReason      string    `gorm:"type:text" json:"veto_reason,omitempty"`
	AdversarialNote string    `gorm:"type:text" json:"adversarial_note,omitempty"`
}

// TableName implements the teacher's per-model table-naming convention.
func (DecisionRecord) TableName() string { return "decisions" }

// RiskAuditRecord is the append-only record of one RiskAuditAgent call.
type RiskAuditRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GeneratedAt time.Time `gorm:"primaryKey;index;not null" json:"generated_at"`
	Symbol      string    `gorm:"type:text;index;not null" json:"symbol"`
	Passed      bool      `json:"passed"`
	RiskLevel   string    `gorm:"type:text" json:"risk_level"`
	BlockedBy   string    `gorm:"type:text" json:"blocked_by,omitempty"`
	Warnings    string    `gorm:"type:text" json:"warnings,omitempty"`
}

func (RiskAuditRecord) TableName() string { return "risk_audits" }

// ExecutionRecord is the append-only record of a submitted order's outcome.
type ExecutionRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmittedAt time.Time `gorm:"primaryKey;index;not null" json:"submitted_at"`
	Symbol      string    `gorm:"type:text;index;not null" json:"symbol"`
	Action      string    `gorm:"type:text;not null" json:"action"`
	OrderID     string    `gorm:"type:text" json:"order_id,omitempty"`
	Err         string    `gorm:"type:text" json:"error,omitempty"`
}

func (ExecutionRecord) TableName() string { return "executions" }

// QuantAnalysisRecord is the append-only record of one QuantAnalystAgent
// composite read, kept separately from DecisionRecord since it is produced
// even when the decision gates veto the trade.
type QuantAnalysisRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GeneratedAt time.Time `gorm:"primaryKey;index;not null" json:"generated_at"`
	Symbol      string    `gorm:"type:text;index;not null" json:"symbol"`
	Composite   float64   `gorm:"type:decimal(10,4)" json:"composite"`
	Label       string    `gorm:"type:text" json:"label"`
}

func (QuantAnalysisRecord) TableName() string { return "quant_analyses" }
