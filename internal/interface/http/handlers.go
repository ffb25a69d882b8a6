package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/application/query"
	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/interface/http/handlers"
)

var errNotConfigured = fiber.NewError(fiber.StatusNotImplemented, "handler not configured")

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := s.deps.HealthChecker.Check(c.UserContext())
	if !status.Healthy {
		return s.writeJSON(c, fiber.StatusServiceUnavailable, status)
	}
	return s.writeJSON(c, fiber.StatusOK, status)
}

// handleReady handles GET /ready. A failing optional dependency keeps the
// instance ready.
func (s *Server) handleReady(c *fiber.Ctx) error {
	status := s.deps.HealthChecker.Check(c.UserContext())
	if !status.Ready {
		return s.writeJSON(c, fiber.StatusServiceUnavailable, fiber.Map{
			"status": "not_ready",
			"reason": status.Message,
		})
	}
	return s.writeJSON(c, fiber.StatusOK, fiber.Map{"status": "ready"})
}

// handleLive handles GET /live
func (s *Server) handleLive(c *fiber.Ctx) error {
	return s.writeJSON(c, fiber.StatusOK, fiber.Map{"status": "alive", "uptime": s.Uptime().String()})
}

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	CommunityID string `json:"communityId"`
}

// handleCreateUser handles POST /api/v1/me
func (s *Server) handleCreateUser(c *fiber.Ctx) error {
	if s.deps.Users == nil {
		return errNotConfigured
	}
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("CreateUser", "invalid request body", err)
	}

	p, err := s.deps.Users.Create(c.UserContext(), command.CreateUserCommand{
		UserID:      handlers.UserID(c),
		Username:    req.Username,
		DisplayName: req.DisplayName,
		CommunityID: req.CommunityID,
	})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusCreated, query.NewUserView(p))
}

// handleGetMe handles GET /api/v1/me
func (s *Server) handleGetMe(c *fiber.Ctx) error {
	return s.getUser(c, handlers.UserID(c))
}

// handleGetUser handles GET /api/v1/users/:id
func (s *Server) handleGetUser(c *fiber.Ctx) error {
	return s.getUser(c, c.Params("id"))
}

func (s *Server) getUser(c *fiber.Ctx, userID string) error {
	if s.deps.Profiles == nil {
		return errNotConfigured
	}
	v, err := s.deps.Profiles.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, v)
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	CommunityID *string `json:"communityId"`
}

// handleUpdateProfile handles PATCH /api/v1/me
func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	if s.deps.Users == nil {
		return errNotConfigured
	}
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("UpdateProfile", "invalid request body", err)
	}

	p, err := s.deps.Users.UpdateProfile(c.UserContext(), command.UpdateProfileCommand{
		UserID:      handlers.UserID(c),
		DisplayName: req.DisplayName,
		CommunityID: req.CommunityID,
	})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, query.NewUserView(p))
}

// handleDeleteUser handles DELETE /api/v1/me
func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	if s.deps.Users == nil {
		return errNotConfigured
	}
	if err := s.deps.Users.Delete(c.UserContext(), handlers.UserID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleGetStats handles GET /api/v1/me/stats
func (s *Server) handleGetStats(c *fiber.Ctx) error {
	if s.deps.Games == nil {
		return errNotConfigured
	}
	stats, err := s.deps.Games.Stats(c.UserContext(), handlers.UserID(c))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, stats)
}

// handleGetAnalytics handles GET /api/v1/me/analytics
func (s *Server) handleGetAnalytics(c *fiber.Ctx) error {
	if s.deps.Analytics == nil {
		return errNotConfigured
	}
	a, err := s.deps.Analytics.UserAnalytics(c.UserContext(), handlers.UserID(c))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, a)
}

// handleGetStreakCalendar handles GET /api/v1/me/streak/calendar?year=&month=
// Missing values default to the current UTC month.
func (s *Server) handleGetStreakCalendar(c *fiber.Ctx) error {
	if s.deps.Analytics == nil {
		return errNotConfigured
	}
	now := time.Now().UTC()
	cal, err := s.deps.Analytics.StreakCalendar(
		c.UserContext(),
		handlers.UserID(c),
		c.QueryInt("year", now.Year()),
		c.QueryInt("month", int(now.Month())),
	)
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, cal)
}

// handleUpdateStreak handles POST /api/v1/me/streak
func (s *Server) handleUpdateStreak(c *fiber.Ctx) error {
	if s.deps.UpdateStreak == nil {
		return errNotConfigured
	}
	res, err := s.deps.UpdateStreak.Handle(c.UserContext(), command.UpdateStreakCommand{UserID: handlers.UserID(c)})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, res)
}

type communityHelpRequest struct {
	HelperID string `json:"helperId"`
}

// handleCommunityHelp handles POST /api/v1/me/community/help. The caller is
// the requester thanking the helper, so nobody can credit themselves.
func (s *Server) handleCommunityHelp(c *fiber.Ctx) error {
	if s.deps.Users == nil {
		return errNotConfigured
	}
	var req communityHelpRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("CommunityHelp", "invalid request body", err)
	}

	res, err := s.deps.Users.RecordCommunityHelp(c.UserContext(), command.CommunityHelpCommand{
		HelperID:    req.HelperID,
		RequesterID: handlers.UserID(c),
	})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetChallenges handles GET /api/v1/games/:gameType/challenges?difficulty=&count=&seed=
func (s *Server) handleGetChallenges(c *fiber.Ctx) error {
	if s.deps.Games == nil {
		return errNotConfigured
	}
	var seed uint64
	if raw := c.Query("seed"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return invalidInput("GetChallenges", "seed must be an unsigned integer", err)
		}
		seed = v
	}

	set, err := s.deps.Games.Challenges(c.Params("gameType"), c.Query("difficulty"), c.QueryInt("count", 0), seed)
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, set)
}

type submitGameRequest struct {
	Answers []challenge.Answer `json:"answers"`
}

// handleSubmitGame handles POST /api/v1/me/games/:gameType/submit
func (s *Server) handleSubmitGame(c *fiber.Ctx) error {
	if s.deps.SubmitGame == nil {
		return errNotConfigured
	}
	var req submitGameRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("SubmitGame", "invalid request body", err)
	}

	res, err := s.deps.SubmitGame.Handle(c.UserContext(), command.SubmitGameCommand{
		UserID:        handlers.UserID(c),
		GameType:      c.Params("gameType"),
		Answers:       req.Answers,
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, res)
}

// handleGetHistory handles GET /api/v1/me/games/history?gameType=&limit=
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	if s.deps.Games == nil {
		return errNotConfigured
	}
	sessions, err := s.deps.Games.History(c.UserContext(), handlers.UserID(c), c.Query("gameType"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return s.writeJSONWithMeta(c, fiber.StatusOK, sessions, &ResponseMeta{Count: len(sessions)})
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CHALLENGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDaily handles GET /api/v1/me/daily
func (s *Server) handleGetDaily(c *fiber.Ctx) error {
	if s.deps.Daily == nil {
		return errNotConfigured
	}
	v, err := s.deps.Daily.Get(c.UserContext(), handlers.UserID(c))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, v)
}

// handleGetDailyStatus handles GET /api/v1/me/daily/status
func (s *Server) handleGetDailyStatus(c *fiber.Ctx) error {
	if s.deps.Daily == nil {
		return errNotConfigured
	}
	st, err := s.deps.Daily.Status(c.UserContext(), handlers.UserID(c))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, st)
}

type completeDailyRequest struct {
	Answer    string `json:"answer"`
	TimeTaken int    `json:"timeTaken"`
}

// handleCompleteDaily handles POST /api/v1/me/daily/complete
func (s *Server) handleCompleteDaily(c *fiber.Ctx) error {
	if s.deps.CompleteDaily == nil {
		return errNotConfigured
	}
	var req completeDailyRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("CompleteDaily", "invalid request body", err)
	}

	res, err := s.deps.CompleteDaily.Handle(c.UserContext(), command.CompleteDailyCommand{
		UserID:        handlers.UserID(c),
		Answer:        req.Answer,
		TimeTaken:     req.TimeTaken,
		CorrelationID: requestID(c),
	})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetBadges handles GET /api/v1/badges
func (s *Server) handleGetBadges(c *fiber.Ctx) error {
	if s.deps.Achievements == nil {
		return errNotConfigured
	}
	badges := s.deps.Achievements.AllBadges()
	return s.writeJSONWithMeta(c, fiber.StatusOK, badges, &ResponseMeta{Count: len(badges)})
}

// handleGetBadge handles GET /api/v1/badges/:id
func (s *Server) handleGetBadge(c *fiber.Ctx) error {
	if s.deps.Achievements == nil {
		return errNotConfigured
	}
	b, err := s.deps.Achievements.Badge(c.Params("id"))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, b)
}

// handleGetAchievements handles GET /api/v1/me/achievements
func (s *Server) handleGetAchievements(c *fiber.Ctx) error {
	if s.deps.Achievements == nil {
		return errNotConfigured
	}
	sum, err := s.deps.Achievements.UserAchievements(c.UserContext(), handlers.UserID(c))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, sum)
}

// handleGetAchievementProgress handles GET /api/v1/me/achievements/progress
func (s *Server) handleGetAchievementProgress(c *fiber.Ctx) error {
	if s.deps.Achievements == nil {
		return errNotConfigured
	}
	progress, err := s.deps.Achievements.Progress(c.UserContext(), handlers.UserID(c))
	if err != nil {
		return err
	}
	return s.writeJSONWithMeta(c, fiber.StatusOK, progress, &ResponseMeta{Count: len(progress)})
}

// handleCheckAchievements handles POST /api/v1/me/achievements/check
func (s *Server) handleCheckAchievements(c *fiber.Ctx) error {
	if s.deps.CheckAchievements == nil {
		return errNotConfigured
	}
	unlocked, err := s.deps.CheckAchievements.Handle(c.UserContext(), command.CheckAchievementsCommand{UserID: handlers.UserID(c)})
	if err != nil {
		return err
	}
	return s.writeJSONWithMeta(c, fiber.StatusOK, unlocked, &ResponseMeta{Count: len(unlocked)})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?timeframe=&limit=
func (s *Server) handleGetLeaderboard(c *fiber.Ctx) error {
	if s.deps.Leaderboard == nil {
		return errNotConfigured
	}
	res, err := s.deps.Leaderboard.Global(c.UserContext(), c.Query("timeframe"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return s.writeJSONWithMeta(c, fiber.StatusOK, res, &ResponseMeta{Count: len(res.Entries)})
}

// handleGetCommunityLeaderboard handles GET /api/v1/leaderboard/community/:communityId?limit=
func (s *Server) handleGetCommunityLeaderboard(c *fiber.Ctx) error {
	if s.deps.Leaderboard == nil {
		return errNotConfigured
	}
	res, err := s.deps.Leaderboard.Community(c.UserContext(), c.Params("communityId"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return s.writeJSONWithMeta(c, fiber.StatusOK, res, &ResponseMeta{Count: len(res.Entries)})
}

// handleGetRank handles GET /api/v1/me/rank?timeframe=
func (s *Server) handleGetRank(c *fiber.Ctx) error {
	if s.deps.Leaderboard == nil {
		return errNotConfigured
	}
	rank, err := s.deps.Leaderboard.UserRank(c.UserContext(), handlers.UserID(c), c.Query("timeframe"))
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, rank)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAINTENANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type resetPointsRequest struct {
	Period string `json:"period"`
}

// handleResetPoints handles POST /api/v1/admin/reset-points
func (s *Server) handleResetPoints(c *fiber.Ctx) error {
	if s.deps.ResetPoints == nil {
		return errNotConfigured
	}
	var req resetPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("ResetPoints", "invalid request body", err)
	}

	res, err := s.deps.ResetPoints.Handle(c.UserContext(), command.ResetPointsCommand{Period: req.Period})
	if err != nil {
		return err
	}
	return s.writeJSON(c, fiber.StatusOK, res)
}
