// Package snapshot persists computed period aggregates in a local SQLite
// file. One row per period; closed periods are served as long as they
// exist, the open period only while younger than the TTL.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/model"
	"github.com/andeanvet/salescope/internal/service"
)

// DefaultTTL bounds how long the open period's snapshot stays fresh.
const DefaultTTL = 30 * time.Minute

// Store is the SQLite-backed snapshot cache.
type Store struct {
	db     *sql.DB
	dbPath string
	ttl    time.Duration
}

// NewStore opens (or creates) the cache database at dbPath.
func NewStore(dbPath string, ttl time.Duration) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: cache path is empty", common.ErrInvalidConfig)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, ttl: ttl}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type migration struct {
	up          func(*sql.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "snapshots table",
		up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
				year INTEGER NOT NULL,
				month INTEGER NOT NULL,
				run_id TEXT NOT NULL,
				computed_at DATETIME NOT NULL,
				payload BLOB NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (year, month)
			)`)
			return err
		},
	},
}

// Migrate brings the cache schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		slog.Debug("applied cache migration", "version", m.version, "description", m.description)
	}
	return nil
}

// Lookup fetches the aggregate for a period if the validity policy
// accepts it: closed periods unconditionally, the open period only while
// younger than the TTL. Anything else, including an unreadable payload,
// is a cache miss.
func (s *Store) Lookup(ctx context.Context, period model.Period, now time.Time) (*model.PeriodAggregate, error) {
	current := model.PeriodOf(now)
	if current.Before(period) {
		return nil, common.ErrCacheMiss
	}

	var payload []byte
	var computedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, computed_at FROM snapshots WHERE year = ? AND month = ?`,
		period.Year, int(period.Month)).Scan(&payload, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrCacheMiss
	}
	if err != nil {
		slog.Warn("cache read failed, treating as miss", "period", period, "error", err)
		return nil, common.ErrCacheMiss
	}

	if period == current && now.Sub(computedAt) >= s.ttl {
		slog.Debug("cache entry for open period expired",
			"period", period, "age", now.Sub(computedAt).Round(time.Second))
		return nil, common.ErrCacheMiss
	}

	var agg model.PeriodAggregate
	if err := json.Unmarshal(payload, &agg); err != nil {
		slog.Warn("cache payload unreadable, treating as miss", "period", period, "error", err)
		return nil, common.ErrCacheMiss
	}
	return &agg, nil
}

// Store writes the aggregate, replacing any previous entry wholesale.
func (s *Store) Store(ctx context.Context, aggregate *model.PeriodAggregate) error {
	payload, err := json.Marshal(aggregate)
	if err != nil {
		return fmt.Errorf("encoding snapshot payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (year, month, run_id, computed_at, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		aggregate.Period.Year, int(aggregate.Period.Month),
		aggregate.RunID, aggregate.ComputedAt.UTC(), payload)
	if err != nil {
		return fmt.Errorf("storing snapshot for %s: %w", aggregate.Period, err)
	}
	return nil
}

// List returns every stored entry, newest period first.
func (s *Store) List(ctx context.Context) ([]service.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, month, run_id, computed_at, LENGTH(payload)
		 FROM snapshots ORDER BY year DESC, month DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var infos []service.SnapshotInfo
	for rows.Next() {
		var info service.SnapshotInfo
		var month int
		if err := rows.Scan(&info.Period.Year, &month, &info.RunID, &info.ComputedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		info.Period.Month = time.Month(month)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Purge removes one period's entry. Purging an absent period returns
// common.ErrNotFound.
func (s *Store) Purge(ctx context.Context, period model.Period) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE year = ? AND month = ?`,
		period.Year, int(period.Month))
	if err != nil {
		return fmt.Errorf("purging snapshot for %s: %w", period, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("purging snapshot for %s: %w", period, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no snapshot for %s", common.ErrNotFound, period)
	}
	return nil
}

// PurgeAll removes every entry and reports how many were dropped.
func (s *Store) PurgeAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots`)
	if err != nil {
		return 0, fmt.Errorf("purging snapshots: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purging snapshots: %w", err)
	}
	return int(affected), nil
}
