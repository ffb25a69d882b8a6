package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Create implements progression.Repository.
func (s *Store) Create(ctx context.Context, p *progression.Progress) error {
	badges, achievements, err := encodeCollections(p)
	if err != nil {
		return fmt.Errorf("sqlite: encode aggregate: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`, username_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		p.UserID, p.Username, p.DisplayName, p.CommunityID,
		p.TotalPoints, p.WeeklyPoints, p.DailyPoints, p.XP, p.Level, p.StreakDays,
		formatTime(p.LastActive), badges, achievements, p.LastDailyChallengeDate,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		strings.ToLower(p.Username),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return s.wrap("Create", err)
	}
	p.Version = 1
	return nil
}

// GetByID implements progression.Repository.
func (s *Store) GetByID(ctx context.Context, userID string) (*progression.Progress, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	p, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, progression.NotFound(userID)
		}
		return nil, s.wrap("GetByID", err)
	}
	return p, nil
}

// Update implements progression.Repository. The version column makes the
// commit conditional on nobody having written since the read.
func (s *Store) Update(ctx context.Context, userID string, fn progression.UpdateFunc) (*progression.Progress, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.wrap("Update", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	p, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, progression.NotFound(userID)
		}
		return nil, s.wrap("Update", err)
	}
	readVersion := p.Version

	var w progression.Writes
	if err := fn(p, &w); err != nil {
		if errors.Is(err, progression.ErrNoChange) {
			return p, nil
		}
		return nil, err
	}

	badges, achievements, err := encodeCollections(p)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode aggregate: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET
			display_name = ?, community_id = ?,
			total_points = ?, weekly_points = ?, daily_points = ?,
			xp = ?, level = ?, streak_days = ?, last_active = ?,
			badges = ?, achievements = ?, last_daily_date = ?,
			updated_at = ?, version = version + 1
		WHERE user_id = ? AND version = ?`,
		p.DisplayName, p.CommunityID,
		p.TotalPoints, p.WeeklyPoints, p.DailyPoints,
		p.XP, p.Level, p.StreakDays, formatTime(p.LastActive),
		badges, achievements, p.LastDailyChallengeDate,
		formatTime(p.UpdatedAt), userID, readVersion,
	)
	if err != nil {
		return nil, s.wrap("Update", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, s.wrap("Update", err)
	} else if n == 0 {
		return nil, progression.Conflict(userID)
	}

	for _, gs := range w.Sessions {
		if err := insertSession(ctx, tx, gs); err != nil {
			return nil, s.wrap("Update", err)
		}
	}
	for _, c := range w.Completions {
		if err := insertCompletion(ctx, tx, c); err != nil {
			if isUniqueViolation(err) {
				return nil, progression.DuplicateCompletion(userID, c.Date)
			}
			return nil, s.wrap("Update", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, s.wrap("Update", err)
	}
	p.Version = readVersion + 1
	return p, nil
}

func insertSession(ctx context.Context, tx *sql.Tx, gs progression.GameSession) error {
	results, err := json.Marshal(gs.Results)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_sessions (id, user_id, game_type, results, correct_count, total_questions,
			accuracy, points_earned, xp_earned, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gs.ID, gs.UserID, string(gs.GameType), string(results), gs.CorrectCount, gs.TotalQuestions,
		gs.Accuracy, gs.PointsEarned, gs.XPEarned, formatTime(gs.CompletedAt),
	)
	return err
}

func insertCompletion(ctx context.Context, tx *sql.Tx, c progression.DailyCompletion) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_completions (id, user_id, date, challenge_id, answer, correct,
			points_earned, xp_earned, time_taken, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Date, c.ChallengeID, c.Answer, c.Correct,
		c.PointsEarned, c.XPEarned, c.TimeTaken, formatTime(c.CompletedAt),
	)
	return err
}

// Delete implements progression.Repository.
func (s *Store) Delete(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("Delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM game_sessions WHERE user_id = ?`,
		`DELETE FROM daily_completions WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return s.wrap("Delete", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return s.wrap("Delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progression.NotFound(userID)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("Delete", err)
	}
	return nil
}

// ResetPoints implements progression.Repository. Each batch is its own
// statement, so a failure keeps the batches already applied.
func (s *Store) ResetPoints(ctx context.Context, period progression.Period, batchSize int) (int, error) {
	column, err := resetColumn(period)
	if err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	query := fmt.Sprintf(`
		UPDATE users SET %[1]s = 0, version = version + 1
		WHERE user_id IN (
			SELECT user_id FROM users WHERE %[1]s <> 0 ORDER BY user_id LIMIT ?
		)`, column)

	reset := 0
	for {
		res, err := s.db.ExecContext(ctx, query, batchSize)
		if err != nil {
			return reset, s.wrap("ResetPoints", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return reset, s.wrap("ResetPoints", err)
		}
		reset += int(n)
		if n < int64(batchSize) {
			return reset, nil
		}
	}
}

func resetColumn(period progression.Period) (string, error) {
	switch period {
	case progression.PeriodWeekly:
		return "weekly_points", nil
	case progression.PeriodDaily:
		return "daily_points", nil
	}
	return "", shared.WrapError("progress", "ResetPoints", shared.ErrInvalidArgument, "unknown period", nil)
}

// wrap classifies driver errors: lock contention is retryable, context
// expiry is a store timeout.
func (s *Store) wrap(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("store", op, shared.ErrStoreTimeout, "store operation timed out", err)
	case isBusy(err):
		return shared.WrapError("store", op, shared.ErrConcurrentModification, "database is locked", err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("sqlite: %s: %w", strings.ToLower(op), err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ListSessions implements progression.HistoryRepository.
func (s *Store) ListSessions(ctx context.Context, userID string, f progression.SessionFilter) ([]progression.GameSession, error) {
	query := `
		SELECT id, user_id, game_type, results, correct_count, total_questions,
			accuracy, points_earned, xp_earned, completed_at
		FROM game_sessions WHERE user_id = ?`
	args := []any{userID}
	if f.GameType != "" {
		query += ` AND game_type = ?`
		args = append(args, string(f.GameType))
	}
	query += ` ORDER BY seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("ListSessions", err)
	}
	defer rows.Close()

	var out []progression.GameSession
	for rows.Next() {
		var (
			gs                    progression.GameSession
			gameType, results, at string
		)
		if err := rows.Scan(&gs.ID, &gs.UserID, &gameType, &results, &gs.CorrectCount, &gs.TotalQuestions,
			&gs.Accuracy, &gs.PointsEarned, &gs.XPEarned, &at); err != nil {
			return nil, s.wrap("ListSessions", err)
		}
		gs.GameType = shared.GameType(gameType)
		if err := json.Unmarshal([]byte(results), &gs.Results); err != nil {
			return nil, fmt.Errorf("sqlite: session results: %w", err)
		}
		if gs.CompletedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("sqlite: completed_at: %w", err)
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

// ListCompletions implements progression.HistoryRepository.
func (s *Store) ListCompletions(ctx context.Context, userID string, from, to time.Time) ([]progression.DailyCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, challenge_id, answer, correct, points_earned, xp_earned, time_taken, completed_at
		FROM daily_completions
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date`,
		userID, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly),
	)
	if err != nil {
		return nil, s.wrap("ListCompletions", err)
	}
	defer rows.Close()

	var out []progression.DailyCompletion
	for rows.Next() {
		var (
			c  progression.DailyCompletion
			at string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Date, &c.ChallengeID, &c.Answer, &c.Correct,
			&c.PointsEarned, &c.XPEarned, &c.TimeTaken, &at); err != nil {
			return nil, s.wrap("ListCompletions", err)
		}
		if c.CompletedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("sqlite: completed_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasCompletion implements progression.HistoryRepository.
func (s *Store) HasCompletion(ctx context.Context, userID, date string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM daily_completions WHERE user_id = ? AND date = ?)`,
		userID, date,
	).Scan(&exists)
	if err != nil {
		return false, s.wrap("HasCompletion", err)
	}
	return exists, nil
}
