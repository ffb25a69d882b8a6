package postgres

import (
	"context"
	"fmt"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD READS
// Rankings read user_progress directly; no snapshot tables are kept.
// ══════════════════════════════════════════════════════════════════════════════

func pointsColumn(f leaderboard.Field) string {
	switch f {
	case leaderboard.FieldWeeklyPoints:
		return "weekly_points"
	case leaderboard.FieldDailyPoints:
		return "daily_points"
	default:
		return "total_points"
	}
}

// Standings returns standings ordered by points desc, user id asc. The "C"
// collation makes the tie-break byte-wise, matching leaderboard.Compare.
func (s *Store) Standings(ctx context.Context, q leaderboard.Query) ([]leaderboard.Standing, error) {
	query := fmt.Sprintf(`
		SELECT user_id, username, display_name, community_id, total_points, weekly_points,
			daily_points, level, cardinality(badges), last_active
		FROM user_progress
		WHERE ($1 = '' OR community_id = $1)
		ORDER BY %s DESC, user_id COLLATE "C" ASC`, pointsColumn(q.Field))
	args := []any{q.CommunityID}
	if q.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, q.Limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("Standings", err)
	}
	defer rows.Close()

	var out []leaderboard.Standing
	for rows.Next() {
		var st leaderboard.Standing
		if err := rows.Scan(&st.UserID, &st.Username, &st.DisplayName, &st.CommunityID,
			&st.TotalPoints, &st.WeeklyPoints, &st.DailyPoints, &st.Level, &st.BadgeCount, &st.LastActive); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		st.LastActive = st.LastActive.UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

// CountAbove counts users with strictly more points in f.
func (s *Store) CountAbove(ctx context.Context, f leaderboard.Field, points int, communityID string) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM user_progress
		WHERE %s > $1 AND ($2 = '' OR community_id = $2)`, pointsColumn(f)),
		points, communityID,
	).Scan(&n)
	if err != nil {
		return 0, classify("CountAbove", err)
	}
	return n, nil
}

// Count counts users, optionally within a community.
func (s *Store) Count(ctx context.Context, communityID string) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_progress WHERE ($1 = '' OR community_id = $1)`,
		communityID,
	).Scan(&n)
	if err != nil {
		return 0, classify("Count", err)
	}
	return n, nil
}
