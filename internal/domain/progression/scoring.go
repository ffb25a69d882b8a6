package progression

import (
	"math"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Point and XP constants.
const (
	PointsCorrectAnswer  = 50
	PointsPerfectBonus   = 100
	PointsAccuracyBonus  = 50
	PointsDailyChallenge = 200
	PointsCommunityHelp  = 75

	XPCorrectAnswer  = 20
	XPPerfectBonus   = 50
	XPAccuracyBonus  = 25
	XPDailyChallenge = 100

	// AccuracyBonusPercent is the accuracy at which the smaller bonus applies.
	AccuracyBonusPercent = 80
)

// Score is the reward computed for one graded submission.
type Score struct {
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
	Accuracy       float64 `json:"accuracy"`
	Points         int     `json:"points"`
	XP             int     `json:"xp"`
	Perfect        bool    `json:"perfect"`
}

// Calculate scores one submission. Bonus tiers are decided with integer
// arithmetic so 4/5 lands exactly on the 80% tier.
func Calculate(correctCount, totalQuestions int, gameType shared.GameType) (Score, error) {
	if !gameType.IsValid() {
		return Score{}, shared.ErrInvalidGameType
	}
	if totalQuestions <= 0 {
		return Score{}, shared.WrapError("scoring", "Calculate", shared.ErrInvalidArgument, "totalQuestions must be greater than zero", nil)
	}
	if correctCount < 0 || correctCount > totalQuestions {
		return Score{}, shared.WrapError("scoring", "Calculate", shared.ErrInvalidArgument, "correctCount must be between 0 and totalQuestions", nil)
	}

	s := Score{
		CorrectCount:   correctCount,
		TotalQuestions: totalQuestions,
		Accuracy:       RoundAccuracy(float64(correctCount) / float64(totalQuestions) * 100),
		Points:         correctCount * PointsCorrectAnswer,
		XP:             correctCount * XPCorrectAnswer,
	}

	switch {
	case correctCount == totalQuestions:
		s.Perfect = true
		s.Points += PointsPerfectBonus
		s.XP += XPPerfectBonus
	case correctCount*100 >= AccuracyBonusPercent*totalQuestions:
		s.Points += PointsAccuracyBonus
		s.XP += XPAccuracyBonus
	}
	return s, nil
}

// DailyReward returns the all-or-nothing reward of the daily challenge.
func DailyReward(correct bool) (points, xp int) {
	if !correct {
		return 0, 0
	}
	return PointsDailyChallenge, XPDailyChallenge
}

// RoundAccuracy rounds a percentage to two decimals.
func RoundAccuracy(v float64) float64 {
	return math.Round(v*100) / 100
}
