package repository

import (
	"errors"

	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/util"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func byOrder(db *gorm.DB) *gorm.DB {
	return db.Order("`order` ASC, id ASC")
}

// FindWorkspaceTree loads the full ordered content tree for a course:
// modules, stages and, for quiz stages, the quiz with its questions
// and options (correctness flags included; callers strip them before
// rendering).
func (r *CourseRepository) FindWorkspaceTree(courseID uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Modules", byOrder).
		Preload("Modules.Stages", byOrder).
		Preload("Modules.Stages.Quiz").
		Preload("Modules.Stages.Quiz.Questions", byOrder).
		Preload("Modules.Stages.Quiz.Questions.Options", byOrder).
		First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// FindStageInCourse re-validates the Module -> Stage -> Course
// hierarchy before any progress state is touched.
func (r *CourseRepository) FindStageInCourse(courseID, stageID uint) (*model.Stage, error) {
	var stage model.Stage
	err := r.DB.
		Joins("JOIN course_modules ON course_modules.id = stages.module_id").
		Where("stages.id = ? AND course_modules.course_id = ?", stageID, courseID).
		Preload("Quiz").
		Preload("Quiz.Questions", byOrder).
		Preload("Quiz.Questions.Options", byOrder).
		First(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrStageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *CourseRepository) List() ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Order("id ASC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindByID(courseID uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}
