package model

type Quiz struct {
	BaseModel
	Name             string         `gorm:"size:255;not null" json:"name"`
	Description      string         `gorm:"type:text" json:"description"`
	DurationMinutes  int            `gorm:"default:0" json:"durationMinutes"` // 0 = untimed
	ShuffleQuestions bool           `gorm:"default:false" json:"shuffleQuestions"`
	Questions        []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID         uint         `gorm:"index;not null" json:"quizId"`
	Text           string       `gorm:"type:text;not null" json:"text"`
	ImageURL       string       `gorm:"size:512" json:"imageUrl,omitempty"`
	Points         int          `gorm:"default:0" json:"points"`
	Order          int          `gorm:"default:0" json:"order"`
	ShuffleOptions bool         `gorm:"default:false" json:"shuffleOptions"`
	Options        []QuizOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

type QuizOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	ImageURL   string `gorm:"size:512" json:"imageUrl,omitempty"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (QuizOption) TableName() string {
	return "quiz_options"
}

type SelectionMode string

const (
	SelectSingle   SelectionMode = "single"
	SelectMultiple SelectionMode = "multiple"
)

// SelectionMode is derived, not stored: a question with more than one
// correct option requires multiple selection.
func (q *QuizQuestion) SelectionMode() SelectionMode {
	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	if correct > 1 {
		return SelectMultiple
	}
	return SelectSingle
}

// CorrectOptionIDs returns the option ids flagged correct, in option order.
func (q *QuizQuestion) CorrectOptionIDs() []uint {
	var ids []uint
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (q *QuizQuestion) HasOption(optionID uint) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

func (qz *Quiz) TotalPoints() int {
	total := 0
	for _, q := range qz.Questions {
		total += q.Points
	}
	return total
}

func (qz *Quiz) QuestionByID(id uint) *QuizQuestion {
	for i := range qz.Questions {
		if qz.Questions[i].ID == id {
			return &qz.Questions[i]
		}
	}
	return nil
}
