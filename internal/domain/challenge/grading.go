package challenge

import (
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Answer is one submitted answer.
type Answer struct {
	QuestionID string `json:"questionId"`
	UserAnswer string `json:"userAnswer"`
	TimeTaken  int    `json:"timeTaken,omitempty"`
}

// MissingQuestionExplanation is reported for ids not in the catalog.
const MissingQuestionExplanation = "Question not found"

// MaxAnswers bounds a single submission.
const MaxAnswers = 50

// Grade checks answers against the catalog. Unknown question ids count as
// incorrect. An empty submission is rejected.
func (c *Catalog) Grade(gt shared.GameType, answers []Answer) ([]progression.QuestionResult, int, error) {
	if !gt.IsValid() {
		return nil, 0, shared.ErrInvalidGameType
	}
	if len(answers) == 0 || len(answers) > MaxAnswers {
		return nil, 0, shared.WrapError("game", "Grade", shared.ErrInvalidArgument, "a submission needs between 1 and 50 answers", nil)
	}

	results := make([]progression.QuestionResult, 0, len(answers))
	correct := 0
	for _, a := range answers {
		ch, ok := c.Find(gt, a.QuestionID)
		if !ok {
			results = append(results, progression.QuestionResult{
				QuestionID:  a.QuestionID,
				UserAnswer:  a.UserAnswer,
				Explanation: MissingQuestionExplanation,
			})
			continue
		}
		ok = ch.IsCorrect(a.UserAnswer)
		if ok {
			correct++
		}
		results = append(results, progression.QuestionResult{
			QuestionID:    a.QuestionID,
			UserAnswer:    a.UserAnswer,
			CorrectAnswer: ch.CorrectAnswer,
			IsCorrect:     ok,
			Explanation:   ch.Explanation,
		})
	}
	return results, correct, nil
}
