package handlers

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Headers set by the gateway after it authenticated the caller.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRoles = "X-User-Roles"
)

// Locals keys.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

// RoleAdmin unlocks the maintenance routes.
const RoleAdmin = "admin"

// ══════════════════════════════════════════════════════════════════════════════
// USER CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// UserContext extracts the caller identity forwarded by the gateway. Requests
// without a valid user id are rejected with 401.
func UserContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(HeaderUserID))
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+HeaderUserID+" header")
		}
		if err := shared.ValidateUserID(userID); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "malformed "+HeaderUserID+" header")
		}

		var roles []string
		for _, r := range strings.Split(c.Get(HeaderUserRoles), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, strings.ToLower(r))
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		return c.Next()
	}
}

// RequireRole must run after UserContext.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		if !slices.Contains(roles, role) {
			return fiber.NewError(fiber.StatusForbidden, role+" role required")
		}
		return c.Next()
	}
}

// UserID returns the caller set by UserContext.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DEADLINE
// ══════════════════════════════════════════════════════════════════════════════

// Deadline bounds the context handed to application handlers. Store calls
// observe it; the response is still written by the handler.
func Deadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HEADERS
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeaders adds security-related headers.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		return c.Next()
	}
}

// NoCache marks per-user responses as uncacheable.
func NoCache() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, max-age=0")
		return c.Next()
	}
}
