package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/catalog"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/memory"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var day1 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store      *memory.Store
	ledger     *Ledger
	challenges *challenge.Catalog
	engine     *achievement.Engine
	events     *recorder
	clock      *clock
	users      *UserHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cats := catalog.MustLoadEmbedded()
	store := memory.New()
	f := &fixture{
		store:      store,
		ledger:     NewLedger(store, LedgerConfig{MaxAttempts: 20, StoreTimeout: time.Second}, logger.Nop()),
		challenges: cats.Challenges,
		engine:     achievement.NewEngine(cats.Badges),
		events:     &recorder{},
		clock:      &clock{now: day1},
	}
	f.users = NewUserHandler(f.ledger, f.engine, f.events, logger.Nop(), f.clock.Now)
	return f
}

func (f *fixture) createUser(t *testing.T, id, username string) *progression.Progress {
	t.Helper()
	p, err := f.users.Create(context.Background(), CreateUserCommand{UserID: id, Username: username})
	require.NoError(t, err)
	return p
}

func (f *fixture) get(t *testing.T, id string) *progression.Progress {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// allCorrect answers every challenge of a pool at a difficulty.
func allCorrect(t *testing.T, c *challenge.Catalog, gt shared.GameType, n int) []challenge.Answer {
	t.Helper()
	pool, err := c.Pool(gt)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(pool), n)
	out := make([]challenge.Answer, n)
	for i := 0; i < n; i++ {
		out[i] = challenge.Answer{QuestionID: pool[i].ID, UserAnswer: pool[i].CorrectAnswer}
	}
	return out
}
