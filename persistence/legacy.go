package persistence

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// LegacyDB is a read-only connection over database/sql, used for ad-hoc
// analytics queries that don't warrant a GORM model, following the
// teacher's own split between its GORM-backed write path and its
// database/sql-backed read path.
type LegacyDB struct {
	conn *sql.DB
}

// ConnectLegacy opens a plain database/sql connection.
func ConnectLegacy(host, port, dbname, user, password string) (*LegacyDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ legacy analytics connection established")
	return &LegacyDB{conn: conn}, nil
}

func (l *LegacyDB) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// DecisionOutcome summarizes one symbol's recent action mix, for the
// read-only status API.
type DecisionOutcome struct {
	Symbol      string
	Action      string
	Occurrences int
}

// RecentActionMix reports how many times each action fired for a symbol
// within the lookback window.
func (l *LegacyDB) RecentActionMix(symbol string, lookback time.Duration) ([]DecisionOutcome, error) {
	rows, err := l.conn.Query(`
		SELECT symbol, action, COUNT(*) AS occurrences
		FROM decisions
		WHERE symbol = $1 AND generated_at > $2
		GROUP BY symbol, action
		ORDER BY occurrences DESC
	`, symbol, time.Now().Add(-lookback))
	if err != nil {
		return nil, fmt.Errorf("query recent action mix: %w", err)
	}
	defer rows.Close()

	var out []DecisionOutcome
	for rows.Next() {
		var o DecisionOutcome
		if err := rows.Scan(&o.Symbol, &o.Action, &o.Occurrences); err != nil {
			return nil, fmt.Errorf("scan action mix row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
