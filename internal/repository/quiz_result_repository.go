package repository

import (
	"errors"

	"github.com/evanightly/pedavue-sub000/internal/model"

	"gorm.io/gorm"
)

type QuizResultRepository struct {
	DB *gorm.DB
}

func NewQuizResultRepository(db *gorm.DB) *QuizResultRepository {
	return &QuizResultRepository{DB: db}
}

// MaxAttempt returns the highest attempt number recorded for this
// user+quiz pair, 0 when none exist. The counter survives
// stage-progress resets.
func (r *QuizResultRepository) MaxAttempt(userID, quizID uint) (int, error) {
	var max int
	err := r.DB.Model(&model.QuizResult{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Select("COALESCE(MAX(attempt), 0)").
		Scan(&max).Error
	return max, err
}

func (r *QuizResultRepository) FindByAttempt(userID, quizID uint, attempt int) (*model.QuizResult, error) {
	var result model.QuizResult
	err := r.DB.Where("user_id = ? AND quiz_id = ? AND attempt = ?", userID, quizID, attempt).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *QuizResultRepository) ListByUserAndQuiz(userID, quizID uint) ([]model.QuizResult, error) {
	var results []model.QuizResult
	err := r.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt ASC").Find(&results).Error
	return results, err
}

func (r *QuizResultRepository) Create(result *model.QuizResult) error {
	return r.DB.Create(result).Error
}

func (r *QuizResultRepository) Save(result *model.QuizResult) error {
	return r.DB.Save(result).Error
}
