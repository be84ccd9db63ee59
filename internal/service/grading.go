package service

import (
	"math"

	"github.com/evanightly/pedavue-sub000/internal/model"
)

// GradeResult is the breakdown of one graded answer set.
type GradeResult struct {
	Score        int `json:"score"` // 0-100
	Correct      int `json:"correct"`
	Total        int `json:"total"`
	EarnedPoints int `json:"earnedPoints"`
	TotalPoints  int `json:"totalPoints"`
}

// SanitizeAnswers drops question ids not in the quiz and option ids
// not belonging to their question, and de-duplicates options per
// question. Unknown ids never error: the client may hold a stale view.
func SanitizeAnswers(quiz *model.Quiz, raw map[uint][]uint) map[uint][]uint {
	clean := make(map[uint][]uint, len(raw))
	for questionID, optionIDs := range raw {
		question := quiz.QuestionByID(questionID)
		if question == nil {
			continue
		}
		seen := make(map[uint]bool, len(optionIDs))
		var kept []uint
		for _, optionID := range optionIDs {
			if seen[optionID] || !question.HasOption(optionID) {
				continue
			}
			seen[optionID] = true
			kept = append(kept, optionID)
		}
		if kept != nil {
			clean[questionID] = kept
		}
	}
	return clean
}

// Grade scores a sanitized answer set. A question is correct iff the
// selected set exactly equals its correct-option set; no partial
// credit per option. When no question carries points the score falls
// back to the fraction of correct questions.
func Grade(quiz *model.Quiz, answers map[uint][]uint) GradeResult {
	result := GradeResult{Total: len(quiz.Questions)}

	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		result.TotalPoints += question.Points

		if sameIDSet(answers[question.ID], question.CorrectOptionIDs()) {
			result.Correct++
			result.EarnedPoints += question.Points
		}
	}

	switch {
	case result.TotalPoints > 0:
		result.Score = roundPercent(result.EarnedPoints, result.TotalPoints)
	case result.Total > 0:
		result.Score = roundPercent(result.Correct, result.Total)
	}
	return result
}

func roundPercent(part, whole int) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func sameIDSet(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	set := make(map[uint]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}
