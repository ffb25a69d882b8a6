package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD READS
// ══════════════════════════════════════════════════════════════════════════════

func column(f leaderboard.Field) string {
	switch f {
	case leaderboard.FieldWeeklyPoints:
		return "weekly_points"
	case leaderboard.FieldDailyPoints:
		return "daily_points"
	default:
		return "total_points"
	}
}

// Standings implements leaderboard.Store.
func (s *Store) Standings(ctx context.Context, q leaderboard.Query) ([]leaderboard.Standing, error) {
	query := fmt.Sprintf(`
		SELECT user_id, username, display_name, community_id, total_points, weekly_points,
			daily_points, level, badges, last_active
		FROM users
		WHERE (? = '' OR community_id = ?)
		ORDER BY %s DESC, user_id ASC`, column(q.Field))
	args := []any{q.CommunityID, q.CommunityID}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("Standings", err)
	}
	defer rows.Close()

	var out []leaderboard.Standing
	for rows.Next() {
		var (
			st                 leaderboard.Standing
			badges, lastActive string
		)
		if err := rows.Scan(&st.UserID, &st.Username, &st.DisplayName, &st.CommunityID,
			&st.TotalPoints, &st.WeeklyPoints, &st.DailyPoints, &st.Level, &badges, &lastActive); err != nil {
			return nil, s.wrap("Standings", err)
		}
		var ids []string
		if err := json.Unmarshal([]byte(badges), &ids); err != nil {
			return nil, fmt.Errorf("sqlite: badges: %w", err)
		}
		st.BadgeCount = len(ids)
		if st.LastActive, err = parseTime(lastActive); err != nil {
			return nil, fmt.Errorf("sqlite: last_active: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CountAbove implements leaderboard.Store.
func (s *Store) CountAbove(ctx context.Context, f leaderboard.Field, points int, communityID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM users
		WHERE %s > ? AND (? = '' OR community_id = ?)`, column(f)),
		points, communityID, communityID,
	).Scan(&n)
	if err != nil {
		return 0, s.wrap("CountAbove", err)
	}
	return n, nil
}

// Count implements leaderboard.Store.
func (s *Store) Count(ctx context.Context, communityID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE (? = '' OR community_id = ?)`,
		communityID, communityID,
	).Scan(&n)
	if err != nil {
		return 0, s.wrap("Count", err)
	}
	return n, nil
}
