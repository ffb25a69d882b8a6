// Package sqlite is the embedded single-node store. It keeps the same
// contracts as the PostgreSQL store on top of database/sql and the pure Go
// modernc driver, with one connection so SQLite sees a single writer.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
)

// Store implements the progression and leaderboard repositories on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ progression.Repository        = (*Store)(nil)
	_ progression.HistoryRepository = (*Store)(nil)
	_ leaderboard.Store             = (*Store)(nil)
)

// Open connects to the database file at path, applies pragmas and creates
// the schema when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    username_key TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    community_id TEXT NOT NULL DEFAULT '',
    total_points INTEGER NOT NULL DEFAULT 0,
    weekly_points INTEGER NOT NULL DEFAULT 0,
    daily_points INTEGER NOT NULL DEFAULT 0,
    xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    streak_days INTEGER NOT NULL DEFAULT 0,
    last_active TEXT NOT NULL,
    badges TEXT NOT NULL DEFAULT '[]',
    achievements TEXT NOT NULL DEFAULT '{}',
    last_daily_date TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_users_total ON users(total_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_users_weekly ON users(weekly_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_users_daily ON users(daily_points DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_users_community ON users(community_id, total_points DESC);

CREATE TABLE IF NOT EXISTS game_sessions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    game_type TEXT NOT NULL,
    results TEXT NOT NULL DEFAULT '[]',
    correct_count INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    accuracy REAL NOT NULL,
    points_earned INTEGER NOT NULL,
    xp_earned INTEGER NOT NULL,
    completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON game_sessions(user_id, seq DESC);

CREATE TABLE IF NOT EXISTS daily_completions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    challenge_id TEXT NOT NULL,
    answer TEXT NOT NULL,
    correct INTEGER NOT NULL,
    points_earned INTEGER NOT NULL,
    xp_earned INTEGER NOT NULL,
    time_taken INTEGER NOT NULL DEFAULT 0,
    completed_at TEXT NOT NULL,
    UNIQUE(user_id, date)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func sqliteCode(err error) int {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	switch sqliteCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isBusy(err error) bool {
	switch sqliteCode(err) & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ENCODING
// ══════════════════════════════════════════════════════════════════════════════

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `user_id, username, display_name, community_id, total_points, weekly_points,
	daily_points, xp, level, streak_days, last_active, badges, achievements, last_daily_date,
	created_at, updated_at, version`

func scanProgress(row scanner) (*progression.Progress, error) {
	var (
		p                              progression.Progress
		lastActive, createdAt, updated string
		badges, achievements           string
	)
	err := row.Scan(
		&p.UserID, &p.Username, &p.DisplayName, &p.CommunityID,
		&p.TotalPoints, &p.WeeklyPoints, &p.DailyPoints, &p.XP, &p.Level, &p.StreakDays,
		&lastActive, &badges, &achievements, &p.LastDailyChallengeDate,
		&createdAt, &updated, &p.Version,
	)
	if err != nil {
		return nil, err
	}

	if p.LastActive, err = parseTime(lastActive); err != nil {
		return nil, fmt.Errorf("sqlite: last_active: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("sqlite: updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(badges), &p.Badges); err != nil {
		return nil, fmt.Errorf("sqlite: badges: %w", err)
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
	if err := json.Unmarshal([]byte(achievements), &p.Achievements); err != nil {
		return nil, fmt.Errorf("sqlite: achievements: %w", err)
	}
	return &p, nil
}

func encodeCollections(p *progression.Progress) (badges, achievements string, err error) {
	b, err := json.Marshal(p.Badges)
	if err != nil {
		return "", "", err
	}
	a, err := json.Marshal(p.Achievements)
	if err != nil {
		return "", "", err
	}
	return string(b), string(a), nil
}
