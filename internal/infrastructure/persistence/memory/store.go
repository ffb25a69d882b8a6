// Package memory is an in-process implementation of the progression and
// leaderboard repositories. Writes use optimistic versioning: the update
// function runs on a private copy and the commit is rejected when another
// writer committed in between.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Store holds every aggregate and record in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*progression.Progress
	usernames   map[string]string // lower-case username -> user id
	sessions    map[string][]progression.GameSession
	completions map[string]map[string]progression.DailyCompletion // user -> date -> record
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*progression.Progress),
		usernames:   make(map[string]string),
		sessions:    make(map[string][]progression.GameSession),
		completions: make(map[string]map[string]progression.DailyCompletion),
	}
}

var (
	_ progression.Repository        = (*Store)(nil)
	_ progression.HistoryRepository = (*Store)(nil)
	_ leaderboard.Store             = (*Store)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// Create implements progression.Repository.
func (s *Store) Create(ctx context.Context, p *progression.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(p.Username)
	if _, ok := s.users[p.UserID]; ok {
		return shared.ErrUserAlreadyExists
	}
	if _, ok := s.usernames[key]; ok {
		return shared.ErrUserAlreadyExists
	}

	c := p.Clone()
	c.Version = 1
	s.users[p.UserID] = c
	s.usernames[key] = p.UserID
	p.Version = 1
	return nil
}

// GetByID implements progression.Repository.
func (s *Store) GetByID(ctx context.Context, userID string) (*progression.Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[userID]
	if !ok {
		return nil, progression.NotFound(userID)
	}
	return p.Clone(), nil
}

// Update implements progression.Repository.
func (s *Store) Update(ctx context.Context, userID string, fn progression.UpdateFunc) (*progression.Progress, error) {
	snapshot, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	readVersion := snapshot.Version

	var w progression.Writes
	if err := fn(snapshot, &w); err != nil {
		if errors.Is(err, progression.ErrNoChange) {
			return snapshot, nil
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[userID]
	if !ok {
		return nil, progression.NotFound(userID)
	}
	if current.Version != readVersion {
		return nil, progression.Conflict(userID)
	}
	for _, c := range w.Completions {
		if _, dup := s.completions[userID][c.Date]; dup {
			return nil, progression.DuplicateCompletion(userID, c.Date)
		}
	}

	snapshot.Version = readVersion + 1
	s.users[userID] = snapshot.Clone()
	s.sessions[userID] = append(s.sessions[userID], w.Sessions...)
	for _, c := range w.Completions {
		if s.completions[userID] == nil {
			s.completions[userID] = make(map[string]progression.DailyCompletion)
		}
		s.completions[userID][c.Date] = c
	}
	return snapshot, nil
}

// Delete implements progression.Repository.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		return progression.NotFound(userID)
	}
	delete(s.usernames, strings.ToLower(p.Username))
	delete(s.users, userID)
	delete(s.sessions, userID)
	delete(s.completions, userID)
	return nil
}

// ResetPoints implements progression.Repository. Each batch is committed under
// its own lock so concurrent submissions interleave between batches.
func (s *Store) ResetPoints(ctx context.Context, period progression.Period, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	reset := 0
	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return reset, err
		}
		end := min(start+batchSize, len(ids))

		s.mu.Lock()
		for _, id := range ids[start:end] {
			p, ok := s.users[id]
			if !ok {
				continue
			}
			if p.ResetWindow(period) {
				p.Version++
				reset++
			}
		}
		s.mu.Unlock()
	}
	return reset, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// ListSessions implements progression.HistoryRepository.
func (s *Store) ListSessions(ctx context.Context, userID string, f progression.SessionFilter) ([]progression.GameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sessions[userID]
	out := make([]progression.GameSession, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if f.GameType != "" && all[i].GameType != f.GameType {
			continue
		}
		out = append(out, all[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// ListCompletions implements progression.HistoryRepository.
func (s *Store) ListCompletions(ctx context.Context, userID string, from, to time.Time) ([]progression.DailyCompletion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := from.UTC().Format(time.DateOnly)
	hi := to.UTC().Format(time.DateOnly)
	var out []progression.DailyCompletion
	for date, c := range s.completions[userID] {
		if date >= lo && date < hi {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b progression.DailyCompletion) int { return strings.Compare(a.Date, b.Date) })
	return out, nil
}

// HasCompletion implements progression.HistoryRepository.
func (s *Store) HasCompletion(ctx context.Context, userID, date string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completions[userID][date]
	return ok, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD READS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) standings(communityID string) []leaderboard.Standing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]leaderboard.Standing, 0, len(s.users))
	for _, p := range s.users {
		if communityID != "" && p.CommunityID != communityID {
			continue
		}
		out = append(out, leaderboard.StandingOf(p))
	}
	return out
}

// Standings implements leaderboard.Store.
func (s *Store) Standings(ctx context.Context, q leaderboard.Query) ([]leaderboard.Standing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.standings(q.CommunityID)
	slices.SortFunc(out, leaderboard.Compare(q.Field))
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountAbove implements leaderboard.Store.
func (s *Store) CountAbove(ctx context.Context, f leaderboard.Field, points int, communityID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, st := range s.standings(communityID) {
		if st.Points(f) > points {
			n++
		}
	}
	return n, nil
}

// Count implements leaderboard.Store.
func (s *Store) Count(ctx context.Context, communityID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if communityID == "" {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.users), nil
	}
	return len(s.standings(communityID)), nil
}
