package repository

import (
	"errors"

	"github.com/evanightly/pedavue-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StageProgressRepository struct {
	DB *gorm.DB
}

func NewStageProgressRepository(db *gorm.DB) *StageProgressRepository {
	return &StageProgressRepository{DB: db}
}

// FindForUpdate loads the (enrollment, stage) row under an exclusive
// lock, serializing concurrent saves/finalizes on the same attempt.
// Returns (nil, nil) when no row exists yet. sqlite, used by the test
// suite, has no row locks; its single-writer transactions already
// serialize writers.
func (r *StageProgressRepository) FindForUpdate(enrollmentID, stageID uint) (*model.StageProgress, error) {
	q := r.DB
	if q.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var progress model.StageProgress
	err := q.Where("enrollment_id = ? AND stage_id = ?", enrollmentID, stageID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *StageProgressRepository) FindByEnrollmentAndStage(enrollmentID, stageID uint) (*model.StageProgress, error) {
	var progress model.StageProgress
	err := r.DB.Where("enrollment_id = ? AND stage_id = ?", enrollmentID, stageID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *StageProgressRepository) FindByEnrollment(enrollmentID uint) ([]model.StageProgress, error) {
	var progresses []model.StageProgress
	err := r.DB.Where("enrollment_id = ?", enrollmentID).Find(&progresses).Error
	return progresses, err
}

func (r *StageProgressRepository) Create(progress *model.StageProgress) error {
	return r.DB.Create(progress).Error
}

func (r *StageProgressRepository) Save(progress *model.StageProgress) error {
	return r.DB.Save(progress).Error
}
