package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeHealthChecker(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		st := NewCompositeHealthChecker("v1").Check(context.Background())
		assert.True(t, st.Healthy)
		assert.True(t, st.Ready)
		assert.Equal(t, "No health checks registered", st.Message)
	})

	t.Run("required failure", func(t *testing.T) {
		c := NewCompositeHealthChecker("v1")
		c.AddCheck("store", func(context.Context) error { return errors.New("down") })
		c.AddOptionalCheck("redis", func(context.Context) error { return nil })

		st := c.Check(context.Background())
		assert.False(t, st.Healthy)
		assert.False(t, st.Ready)
		assert.Equal(t, "Some checks failed: store", st.Message)
		assert.True(t, st.Checks["store"].Required)
		assert.True(t, st.Checks["redis"].Healthy)
	})

	t.Run("timeout", func(t *testing.T) {
		c := NewCompositeHealthChecker("v1")
		c.SetTimeout(10 * time.Millisecond)
		c.AddCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.False(t, c.Check(context.Background()).Ready)

		c.RemoveCheck("slow")
		assert.True(t, c.Check(context.Background()).Ready)
	})
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestNewPingCheck(t *testing.T) {
	assert.NoError(t, NewPingCheck(pinger{})(context.Background()))
	assert.Error(t, NewPingCheck(pinger{err: errors.New("refused")})(context.Background()))
}

func newApp(mw ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	chain := append(mw, func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		return c.JSON(fiber.Map{"user": UserID(c), "roles": roles})
	})
	app.Get("/", chain...)
	return app
}

func TestUserContext(t *testing.T) {
	app := newApp(UserContext())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, " u-1 ")
	req.Header.Set(HeaderUserRoles, "Admin, ,player")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	app := newApp(UserContext(), RequireRole(RoleAdmin))

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u-1")
	req.Header.Set(HeaderUserRoles, "ADMIN")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestResponseHeaders(t *testing.T) {
	app := newApp(SecurityHeaders(), NoCache())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get(fiber.HeaderCacheControl), "no-store")
}

func TestDeadline(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/", Deadline(time.Second), func(c *fiber.Ctx) error {
		_, ok := c.UserContext().Deadline()
		return c.JSON(fiber.Map{"deadline": ok})
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
