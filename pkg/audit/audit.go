// Package audit provides a modernc.org/sqlite-backed implementation of
// framework.AuditSink, recording every scheduled and suppressed action for
// later inspection. It is purely additive: a Framework built without
// framework.WithAudit runs identically, just without a record of what it
// did.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"maybenot-go/maybenot/pkg/action"
)

// Config contains configuration for the SQLite-backed audit store.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default audit store configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "data/maybenot-audit.db",
		MaxOpenConns: 10,
		BusyTimeout:  5 * time.Second,
	}
}

// Store implements framework.AuditSink against a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or reopens) a SQLite-backed audit Store, initializing its
// schema if necessary.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := slog.Default().With("component", "maybenot.audit")

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %q: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	s := &Store{db: db, logger: logger}
	if err := s.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit store initialized", "path", cfg.Path)
	return s, nil
}

func (s *Store) initialize(cfg *Config) error {
	busyTimeoutMs := cfg.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return fmt.Errorf("audit: set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("audit: create schema: %w", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("audit: read schema version count: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
			return fmt.Errorf("audit: insert schema version: %w", err)
		}
	}
	return nil
}

// RecordScheduled implements framework.AuditSink.
func (s *Store) RecordScheduled(batchID string, act action.Action) {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (id, batch_id, machine_id, kind, suppressed, timeout_micros, duration_micros, bypass, replace_existing, recorded_time)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		uuid.NewString(), batchID, act.MachineID, kindLabel(act.Kind),
		act.Timeout.Microseconds(), act.Duration.Microseconds(), act.Bypass, act.Replace,
		time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error("failed to record scheduled action", "error", err, "batch_id", batchID, "machine_id", act.MachineID)
	}
}

// RecordSuppressed implements framework.AuditSink.
func (s *Store) RecordSuppressed(batchID string, machineID int, kind action.Kind) {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (id, batch_id, machine_id, kind, suppressed, recorded_time)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		uuid.NewString(), batchID, machineID, kindLabel(kind), time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error("failed to record suppressed action", "error", err, "batch_id", batchID, "machine_id", machineID)
	}
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func kindLabel(kind action.Kind) string {
	switch kind {
	case action.KindCancel:
		return "cancel"
	case action.KindSendPadding:
		return "send_padding"
	case action.KindBlockOutgoing:
		return "block_outgoing"
	case action.KindUpdateTimer:
		return "update_timer"
	default:
		return "unknown"
	}
}
