package query

import (
	"context"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// UserView is the public profile with level progress.
type UserView struct {
	UserID       string                    `json:"userId"`
	Username     string                    `json:"username"`
	DisplayName  string                    `json:"displayName"`
	CommunityID  string                    `json:"communityId,omitempty"`
	TotalPoints  int                       `json:"totalPoints"`
	WeeklyPoints int                       `json:"weeklyPoints"`
	DailyPoints  int                       `json:"dailyPoints"`
	XP           int                       `json:"xp"`
	Level        progression.LevelProgress `json:"level"`
	StreakDays   int                       `json:"streakDays"`
	Badges       []string                  `json:"badges"`
	Achievements map[string]int            `json:"achievements"`
	LastActive   time.Time                 `json:"lastActive"`
	CreatedAt    time.Time                 `json:"createdAt"`
}

// NewUserView renders an aggregate with its level progress.
func NewUserView(p *progression.Progress) UserView {
	badges := p.Badges
	if badges == nil {
		badges = []string{}
	}
	return UserView{
		UserID:       p.UserID,
		Username:     p.Username,
		DisplayName:  p.DisplayName,
		CommunityID:  p.CommunityID,
		TotalPoints:  p.TotalPoints,
		WeeklyPoints: p.WeeklyPoints,
		DailyPoints:  p.DailyPoints,
		XP:           p.XP,
		Level:        progression.DefaultLevelTable.Progress(p.XP),
		StreakDays:   p.StreakDays,
		Badges:       badges,
		Achievements: p.Achievements,
		LastActive:   p.LastActive,
		CreatedAt:    p.CreatedAt,
	}
}

// UserHandler answers profile queries.
type UserHandler struct {
	users progression.Repository
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users progression.Repository) *UserHandler {
	return &UserHandler{users: users}
}

// Get returns the user's profile.
func (h *UserHandler) Get(ctx context.Context, userID string) (*UserView, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, err
	}
	p, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := NewUserView(p)
	return &v, nil
}
