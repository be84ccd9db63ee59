package model

import "fmt"

// StageType is a closed enum: a stage is either a content leaf or a
// quiz leaf. Switches over it should cover both cases explicitly.
type StageType string

const (
	StageContent StageType = "content"
	StageQuiz    StageType = "quiz"
)

type Stage struct {
	BaseModel
	ModuleID         uint      `gorm:"index;not null" json:"moduleId"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description"`
	Order            int       `gorm:"default:0" json:"order"`
	Type             StageType `gorm:"size:16;not null;default:'content'" json:"type"`
	EstimatedMinutes int       `gorm:"default:0" json:"estimatedMinutes"`
	QuizID           *uint     `gorm:"index" json:"quizId,omitempty"`
	Quiz             *Quiz     `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
}

func (Stage) TableName() string {
	return "stages"
}

func (s *Stage) IsQuiz() bool {
	return s.Type == StageQuiz
}

// DurationLabel renders the stage duration for the workspace UI:
// quiz time limit for timed quizzes, estimated reading time otherwise.
func (s *Stage) DurationLabel() string {
	switch s.Type {
	case StageQuiz:
		if s.Quiz != nil && s.Quiz.DurationMinutes > 0 {
			return fmt.Sprintf("%d min", s.Quiz.DurationMinutes)
		}
		return "Untimed"
	case StageContent:
		if s.EstimatedMinutes > 0 {
			return fmt.Sprintf("%d min", s.EstimatedMinutes)
		}
	}
	return ""
}
