package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// Store implements the progression and leaderboard repositories.
type Store struct {
	conn *Connection
}

// NewStore creates a Store over an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

var (
	_ progression.Repository        = (*Store)(nil)
	_ progression.HistoryRepository = (*Store)(nil)
	_ leaderboard.Store             = (*Store)(nil)
)

const progressColumns = `user_id, username, display_name, community_id, total_points, weekly_points,
	daily_points, xp, level, streak_days, last_active, badges, achievements,
	last_daily_challenge_date, created_at, updated_at, version`

// ─────────────────────────────────────────────────────────────────────────────
// Aggregate CRUD
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new aggregate.
func (s *Store) Create(ctx context.Context, p *progression.Progress) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO user_progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)`,
		p.UserID, p.Username, p.DisplayName, p.CommunityID,
		p.TotalPoints, p.WeeklyPoints, p.DailyPoints, p.XP, p.Level, p.StreakDays,
		p.LastActive, p.Badges, p.Achievements, p.LastDailyChallengeDate,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return classify("Create", err)
	}
	p.Version = 1
	return nil
}

// GetByID returns the aggregate for userID.
func (s *Store) GetByID(ctx context.Context, userID string) (*progression.Progress, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1`, userID)
	p, err := scanProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, progression.NotFound(userID)
		}
		return nil, classify("GetByID", err)
	}
	return p, nil
}

// Update locks the user row, runs fn and writes the aggregate together with
// the records fn produced.
func (s *Store) Update(ctx context.Context, userID string, fn progression.UpdateFunc) (*progression.Progress, error) {
	var out *progression.Progress

	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 FOR UPDATE`, userID)
		p, err := scanProgress(row)
		if err != nil {
			if IsNoRows(err) {
				return progression.NotFound(userID)
			}
			return err
		}
		out = p

		var w progression.Writes
		if err := fn(p, &w); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE user_progress SET
				display_name = $2, community_id = $3,
				total_points = $4, weekly_points = $5, daily_points = $6,
				xp = $7, level = $8, streak_days = $9, last_active = $10,
				badges = $11, achievements = $12, last_daily_challenge_date = $13,
				updated_at = $14, version = version + 1
			WHERE user_id = $1 AND version = $15`,
			userID, p.DisplayName, p.CommunityID,
			p.TotalPoints, p.WeeklyPoints, p.DailyPoints,
			p.XP, p.Level, p.StreakDays, p.LastActive,
			p.Badges, p.Achievements, p.LastDailyChallengeDate,
			p.UpdatedAt, p.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return progression.Conflict(userID)
		}

		for _, gs := range w.Sessions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO game_sessions (id, user_id, game_type, results, correct_count, total_questions,
					accuracy, points_earned, xp_earned, completed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				gs.ID, gs.UserID, string(gs.GameType), gs.Results, gs.CorrectCount, gs.TotalQuestions,
				gs.Accuracy, gs.PointsEarned, gs.XPEarned, gs.CompletedAt,
			); err != nil {
				return err
			}
		}
		for _, c := range w.Completions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO daily_completions (id, user_id, date, challenge_id, answer, correct,
					points_earned, xp_earned, time_taken, completed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				c.ID, c.UserID, c.Date, c.ChallengeID, c.Answer, c.Correct,
				c.PointsEarned, c.XPEarned, c.TimeTaken, c.CompletedAt,
			); err != nil {
				if isDuplicateCompletion(err) {
					return progression.DuplicateCompletion(userID, c.Date)
				}
				return err
			}
		}

		p.Version++
		return nil
	})

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, progression.ErrNoChange):
		return out, nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return nil, err
	}
	return nil, classify("Update", err)
}

// Delete removes the aggregate; sessions and completions cascade.
func (s *Store) Delete(ctx context.Context, userID string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM user_progress WHERE user_id = $1`, userID)
	if err != nil {
		return classify("Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return progression.NotFound(userID)
	}
	return nil
}

// ResetPoints zeroes a points window in user-id ordered batches.
func (s *Store) ResetPoints(ctx context.Context, period progression.Period, batchSize int) (int, error) {
	var column string
	switch period {
	case progression.PeriodWeekly:
		column = "weekly_points"
	case progression.PeriodDaily:
		column = "daily_points"
	default:
		return 0, shared.WrapError("progress", "ResetPoints", shared.ErrInvalidArgument, "unknown period", nil)
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	query := fmt.Sprintf(`
		UPDATE user_progress SET %[1]s = 0, version = version + 1, updated_at = NOW()
		WHERE user_id IN (
			SELECT user_id FROM user_progress WHERE %[1]s <> 0
			ORDER BY user_id COLLATE "C" LIMIT $1
		)`, column)

	reset := 0
	for {
		tag, err := s.conn.Exec(ctx, query, batchSize)
		if err != nil {
			return reset, classify("ResetPoints", err)
		}
		n := int(tag.RowsAffected())
		reset += n
		if n < batchSize {
			return reset, nil
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, userID string, f progression.SessionFilter) ([]progression.GameSession, error) {
	query := `
		SELECT id::text, user_id, game_type, results, correct_count, total_questions,
			accuracy::float8, points_earned, xp_earned, completed_at
		FROM game_sessions
		WHERE user_id = $1 AND ($2 = '' OR game_type = $2)
		ORDER BY seq DESC`
	args := []any{userID, string(f.GameType)}
	if f.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, f.Limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("ListSessions", err)
	}
	defer rows.Close()

	var out []progression.GameSession
	for rows.Next() {
		var gs progression.GameSession
		var gameType string
		if err := rows.Scan(&gs.ID, &gs.UserID, &gameType, &gs.Results, &gs.CorrectCount, &gs.TotalQuestions,
			&gs.Accuracy, &gs.PointsEarned, &gs.XPEarned, &gs.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		gs.GameType = shared.GameType(gameType)
		out = append(out, gs)
	}
	return out, rows.Err()
}

// ListCompletions returns completions with from <= date < to, oldest first.
func (s *Store) ListCompletions(ctx context.Context, userID string, from, to time.Time) ([]progression.DailyCompletion, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, user_id, date, challenge_id, answer, correct, points_earned, xp_earned,
			time_taken, completed_at
		FROM daily_completions
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date`,
		userID, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly),
	)
	if err != nil {
		return nil, classify("ListCompletions", err)
	}
	defer rows.Close()

	var out []progression.DailyCompletion
	for rows.Next() {
		var c progression.DailyCompletion
		if err := rows.Scan(&c.ID, &c.UserID, &c.Date, &c.ChallengeID, &c.Answer, &c.Correct,
			&c.PointsEarned, &c.XPEarned, &c.TimeTaken, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasCompletion reports whether (userID, date) has a completion.
func (s *Store) HasCompletion(ctx context.Context, userID, date string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM daily_completions WHERE user_id = $1 AND date = $2)`,
		userID, date,
	).Scan(&exists)
	if err != nil {
		return false, classify("HasCompletion", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanProgress(row pgx.Row) (*progression.Progress, error) {
	var p progression.Progress
	err := row.Scan(
		&p.UserID, &p.Username, &p.DisplayName, &p.CommunityID,
		&p.TotalPoints, &p.WeeklyPoints, &p.DailyPoints, &p.XP, &p.Level, &p.StreakDays,
		&p.LastActive, &p.Badges, &p.Achievements, &p.LastDailyChallengeDate,
		&p.CreatedAt, &p.UpdatedAt, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.LastActive = p.LastActive.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.Badges == nil {
		p.Badges = []string{}
	}
	if p.Achievements == nil {
		p.Achievements = map[string]int{}
	}
	return &p, nil
}

// classify maps driver failures onto the store error kinds the ledger
// understands.
func classify(op string, err error) error {
	switch {
	case IsSerializationFailure(err):
		return shared.WrapError("store", op, shared.ErrConcurrentModification, "serialization failure", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("store", op, shared.ErrStoreTimeout, "store operation timed out", err)
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrTransactionFailed):
		return shared.WrapError("store", op, shared.ErrStoreUnavailable, "store unavailable", err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

// dailyCompletionKey is the once-per-day constraint on daily_completions.
const dailyCompletionKey = "daily_completions_user_date"

func isDuplicateCompletion(err error) bool {
	return IsUniqueViolation(err) && ConstraintName(err) == dailyCompletionKey
}
