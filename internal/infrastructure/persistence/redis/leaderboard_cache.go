package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAGE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// PageCache implements leaderboard.PageCache with plain JSON strings.
type PageCache struct {
	cache *Cache
}

var _ leaderboard.PageCache = (*PageCache)(nil)

// NewPageCache creates a PageCache.
func NewPageCache(cache *Cache) *PageCache {
	return &PageCache{cache: cache}
}

// GetPage returns a cached page. A miss is (nil, false, nil).
func (p *PageCache) GetPage(ctx context.Context, key string) ([]leaderboard.Entry, bool, error) {
	var entries []leaderboard.Entry
	err := p.cache.Get(ctx, PrefixLeaderboardPage+key, &entries)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// SetPage stores a page for ttl.
func (p *PageCache) SetPage(ctx context.Context, key string, entries []leaderboard.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboardPage
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return p.cache.Set(ctx, PrefixLeaderboardPage+key, entries, ttl)
}

// InvalidatePages drops every cached page.
func (p *PageCache) InvalidatePages(ctx context.Context) error {
	_, err := p.cache.DeleteByPattern(ctx, PrefixLeaderboardPage+"*")
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// REALTIME BOARD
// ══════════════════════════════════════════════════════════════════════════════

// RealtimeBoard projects standings into Redis.
//
// Layout:
//   - Sorted set "leaderboard:rt:{field}" maps user id to the negated points.
//     Negating lets ZRANGE return points descending with equal scores in
//     ascending member order, the same order as leaderboard.Compare.
//   - Hash "leaderboard:rt:standings" maps user id to the Standing JSON.
//
// Every upsert publishes the standing on ChannelLeaderboardUpdates.
type RealtimeBoard struct {
	cache *Cache
}

var _ leaderboard.RealtimeBoard = (*RealtimeBoard)(nil)

const (
	keyBoardPrefix    = PrefixLeaderboard + "rt:"
	keyBoardStandings = keyBoardPrefix + "standings"
)

var boardFields = []leaderboard.Field{
	leaderboard.FieldTotalPoints,
	leaderboard.FieldWeeklyPoints,
	leaderboard.FieldDailyPoints,
}

func boardKey(f leaderboard.Field) string {
	return keyBoardPrefix + string(f)
}

// NewRealtimeBoard creates a RealtimeBoard.
func NewRealtimeBoard(cache *Cache) *RealtimeBoard {
	return &RealtimeBoard{cache: cache}
}

func members(s leaderboard.Standing) map[leaderboard.Field]redis.Z {
	out := make(map[leaderboard.Field]redis.Z, len(boardFields))
	for _, f := range boardFields {
		out[f] = redis.Z{Score: -float64(s.Points(f)), Member: s.UserID}
	}
	return out
}

// Upsert writes one standing to every sorted set and announces it.
func (b *RealtimeBoard) Upsert(ctx context.Context, s leaderboard.Standing) error {
	if s.UserID == "" {
		return fmt.Errorf("leaderboard_cache: empty user id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	pipe := b.cache.Client().TxPipeline()
	for f, z := range members(s) {
		pipe.ZAdd(ctx, boardKey(f), z)
	}
	pipe.HSet(ctx, keyBoardStandings, s.UserID, data)
	pipe.Publish(ctx, ChannelLeaderboardUpdates, data)
	_, err = pipe.Exec(ctx)
	return err
}

// Remove drops a user from the projection.
func (b *RealtimeBoard) Remove(ctx context.Context, userID string) error {
	pipe := b.cache.Client().TxPipeline()
	for _, f := range boardFields {
		pipe.ZRem(ctx, boardKey(f), userID)
	}
	pipe.HDel(ctx, keyBoardStandings, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// Rebuild replaces the projection with standings in one transaction.
func (b *RealtimeBoard) Rebuild(ctx context.Context, standings []leaderboard.Standing) error {
	pipe := b.cache.Client().TxPipeline()
	keys := []string{keyBoardStandings}
	for _, f := range boardFields {
		keys = append(keys, boardKey(f))
	}
	pipe.Del(ctx, keys...)

	if len(standings) > 0 {
		zs := make(map[leaderboard.Field][]redis.Z, len(boardFields))
		hash := make(map[string]any, len(standings))
		for _, s := range standings {
			if s.UserID == "" {
				continue
			}
			for f, z := range members(s) {
				zs[f] = append(zs[f], z)
			}
			data, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			hash[s.UserID] = data
		}
		for f, z := range zs {
			pipe.ZAdd(ctx, boardKey(f), z...)
		}
		if len(hash) > 0 {
			pipe.HSet(ctx, keyBoardStandings, hash)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// ResetField zeroes one field for every member. Cached standings keep their
// other fields; the zeroed one is rewritten on the member's next upsert.
func (b *RealtimeBoard) ResetField(ctx context.Context, f leaderboard.Field) error {
	ids, err := b.cache.Client().ZRange(ctx, boardKey(f), 0, -1).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	zs := make([]redis.Z, len(ids))
	for i, id := range ids {
		zs[i] = redis.Z{Score: 0, Member: id}
	}
	return b.cache.Client().ZAdd(ctx, boardKey(f), zs...).Err()
}

// Top returns up to limit standings ordered by f.
func (b *RealtimeBoard) Top(ctx context.Context, f leaderboard.Field, limit int) ([]leaderboard.Standing, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := b.cache.Client().ZRangeWithScores(ctx, boardKey(f), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return []leaderboard.Standing{}, nil
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = z.Member.(string)
	}
	raw, err := b.cache.Client().HMGet(ctx, keyBoardStandings, ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]leaderboard.Standing, 0, len(ids))
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var s leaderboard.Standing
		if err := json.Unmarshal([]byte(str), &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		// The sorted set is authoritative for the ranked field.
		points := int(-zs[i].Score)
		switch f {
		case leaderboard.FieldWeeklyPoints:
			s.WeeklyPoints = points
		case leaderboard.FieldDailyPoints:
			s.DailyPoints = points
		default:
			s.TotalPoints = points
		}
		out = append(out, s)
	}
	return out, nil
}

// Size returns the number of projected users.
func (b *RealtimeBoard) Size(ctx context.Context) (int, error) {
	n, err := b.cache.Client().HLen(ctx, keyBoardStandings).Result()
	return int(n), err
}
