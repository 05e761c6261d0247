// Package persistence stores the pipeline's append-only artifacts (quant
// reads, decisions, risk audits) in TimescaleDB hypertables, and exposes a
// read-only legacy path over lib/pq for analytics that don't need GORM's
// model mapping. An executions table is created as well, but nothing in
// this package writes to it; snapshots and indicator frames are not stored.
package persistence

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the GORM connection used for writing pipeline artifacts.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM handle for advanced queries.
func (d *Database) DB() *gorm.DB { return d.db }

// Connect opens a GORM/postgres connection.
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
