package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizResult is the durable per-attempt record. Attempt numbers are
// monotonically increasing per (user, quiz) and survive stage-progress
// resets. Exactly one row exists per finalized attempt.
type QuizResult struct {
	BaseModel
	UserID        uint           `gorm:"uniqueIndex:idx_quiz_result_attempt;not null" json:"userId"`
	QuizID        uint           `gorm:"uniqueIndex:idx_quiz_result_attempt;not null" json:"quizId"`
	Attempt       int            `gorm:"uniqueIndex:idx_quiz_result_attempt;not null" json:"attempt"`
	Score         int            `gorm:"not null" json:"score"` // 0-100
	EarnedPoints  int            `gorm:"default:0" json:"earnedPoints"`
	TotalPoints   int            `gorm:"default:0" json:"totalPoints"`
	AutoSubmitted bool           `gorm:"default:false" json:"autoSubmitted"`
	Answers       datatypes.JSON `json:"answers,omitempty"` // submitted answer snapshot, reporting only
	StartedAt     *time.Time     `json:"startedAt,omitempty"`
	FinishedAt    *time.Time     `json:"finishedAt,omitempty"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}
