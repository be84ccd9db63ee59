package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// AttemptScore is one finalized grading summary. Entries appended to
// AttemptHistory are never mutated afterwards.
type AttemptScore struct {
	Attempt       int       `json:"attempt"`
	Score         int       `json:"score"`
	Correct       int       `json:"correct"`
	Total         int       `json:"total"`
	EarnedPoints  int       `json:"earnedPoints"`
	TotalPoints   int       `json:"totalPoints"`
	AutoSubmitted bool      `json:"autoSubmitted"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// AttemptState is the per-stage attempt blob, stored as a JSON column.
// QuestionOrder and OptionOrder are generated once per attempt so
// repeated reads render identically; a reattempt clears them.
type AttemptState struct {
	QuestionOrder  []uint          `json:"questionOrder,omitempty"`
	OptionOrder    map[uint][]uint `json:"optionOrder,omitempty"`
	Answers        map[uint][]uint `json:"answers,omitempty"`
	CurrentAttempt int             `json:"currentAttempt,omitempty"`
	Result         *AttemptScore   `json:"result,omitempty"`
	AttemptHistory []AttemptScore  `json:"attemptHistory,omitempty"`
}

func (s AttemptState) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *AttemptState) Scan(value interface{}) error {
	if value == nil {
		*s = AttemptState{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for AttemptState")
	}
	if len(data) == 0 {
		*s = AttemptState{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// StageProgress is the mutable core record, one per (enrollment, stage).
type StageProgress struct {
	BaseModel
	EnrollmentID uint           `gorm:"uniqueIndex:idx_progress_enrollment_stage;not null" json:"enrollmentId"`
	StageID      uint           `gorm:"uniqueIndex:idx_progress_enrollment_stage;not null" json:"stageId"`
	Status       ProgressStatus `gorm:"size:16;not null;default:'pending'" json:"status"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	State        AttemptState   `gorm:"type:json" json:"state"`
	QuizResultID *uint          `gorm:"index" json:"quizResultId,omitempty"`
}

func (StageProgress) TableName() string {
	return "stage_progress"
}

func (p *StageProgress) IsCompleted() bool {
	return p.Status == ProgressCompleted
}
