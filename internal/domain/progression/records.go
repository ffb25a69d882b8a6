package progression

import (
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// QuestionResult is the grading of one answer within a session.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
}

// GameSession is the immutable record of one submission.
type GameSession struct {
	ID             string
	UserID         string
	GameType       shared.GameType
	Results        []QuestionResult
	CorrectCount   int
	TotalQuestions int
	Accuracy       float64
	PointsEarned   int
	XPEarned       int
	CompletedAt    time.Time
}

// DailyCompletion is the immutable record of a daily-challenge attempt.
// Its (UserID, Date) pair is unique in every store.
type DailyCompletion struct {
	ID           string
	UserID       string
	Date         string
	ChallengeID  string
	Answer       string
	Correct      bool
	PointsEarned int
	XPEarned     int
	TimeTaken    int // seconds, as reported by the client
	CompletedAt  time.Time
}
