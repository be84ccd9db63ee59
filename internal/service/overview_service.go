package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/repository"
	"github.com/evanightly/pedavue-sub000/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StageOverview struct {
	ID            uint                 `json:"id"`
	Title         string               `json:"title"`
	Type          model.StageType      `json:"type"`
	DurationLabel string               `json:"durationLabel,omitempty"`
	Status        model.ProgressStatus `json:"status"`
	Locked        bool                 `json:"locked"`
	Current       bool                 `json:"current"`
	Score         *int                 `json:"score,omitempty"`
	Attempt       int                  `json:"attempt,omitempty"`
}

type ModuleOverview struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Order     int             `json:"order"`
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Stages    []StageOverview `json:"stages"`
}

type OverviewStats struct {
	TotalStages         int  `json:"totalStages"`
	CompletedStages     int  `json:"completedStages"`
	Percent             int  `json:"percent"`
	QuizPointsEarned    int  `json:"quizPointsEarned"`
	QuizPointsRequired  int  `json:"quizPointsRequired"`
	CertificateEligible bool `json:"certificateEligible"`
}

type WorkspaceOverview struct {
	CourseID       uint             `json:"courseId"`
	CourseTitle    string           `json:"courseTitle"`
	CurrentStageID *uint            `json:"currentStageId,omitempty"`
	Modules        []ModuleOverview `json:"modules"`
	Stats          OverviewStats    `json:"stats"`
}

// BuildOverview derives the workspace view for an enrollment. It is a
// pure read: locked/unlocked per stage, the current-stage marker, and
// the aggregate stats. A stage is unlocked iff every stage strictly
// before it in course order is completed; the first is always
// unlocked. The current stage is the first unlocked, non-completed one.
func BuildOverview(course *model.Course, progresses []model.StageProgress, requiredPoints int) *WorkspaceOverview {
	byStage := progressIndex(progresses)

	overview := &WorkspaceOverview{
		CourseID:    course.ID,
		CourseTitle: course.Title,
	}

	allPrevCompleted := true
	currentFound := false

	for mi := range course.Modules {
		mod := &course.Modules[mi]
		mo := ModuleOverview{
			ID:    mod.ID,
			Title: mod.Title,
			Order: mod.Order,
			Total: len(mod.Stages),
		}

		for si := range mod.Stages {
			stage := &mod.Stages[si]
			progress := byStage[stage.ID]

			status := model.ProgressPending
			so := StageOverview{
				ID:            stage.ID,
				Title:         stage.Title,
				Type:          stage.Type,
				DurationLabel: stage.DurationLabel(),
				Locked:        !allPrevCompleted,
			}
			if progress != nil {
				status = progress.Status
				so.Attempt = progress.State.CurrentAttempt
				if progress.State.Result != nil {
					score := progress.State.Result.Score
					so.Score = &score
					overview.Stats.QuizPointsEarned += progress.State.Result.EarnedPoints
				}
			}
			so.Status = status

			completed := status == model.ProgressCompleted
			if completed {
				mo.Completed++
				overview.Stats.CompletedStages++
			}
			if !so.Locked && !completed && !currentFound {
				so.Current = true
				currentFound = true
				id := stage.ID
				overview.CurrentStageID = &id
			}
			overview.Stats.TotalStages++

			allPrevCompleted = allPrevCompleted && completed
			mo.Stages = append(mo.Stages, so)
		}

		overview.Modules = append(overview.Modules, mo)
	}

	overview.Stats.QuizPointsRequired = requiredPoints
	if overview.Stats.TotalStages > 0 {
		overview.Stats.Percent = roundPercent(overview.Stats.CompletedStages, overview.Stats.TotalStages)
	}
	overview.Stats.CertificateEligible = overview.Stats.TotalStages > 0 &&
		overview.Stats.CompletedStages == overview.Stats.TotalStages &&
		overview.Stats.QuizPointsEarned >= requiredPoints

	return overview
}

// StageUnlocked answers "is stage X reachable" for an enrollment. It
// is the sole authority the mutation paths consult.
func StageUnlocked(course *model.Course, progresses []model.StageProgress, stageID uint) bool {
	byStage := progressIndex(progresses)

	for _, stage := range course.OrderedStages() {
		if stage.ID == stageID {
			return true
		}
		progress := byStage[stage.ID]
		if progress == nil || !progress.IsCompleted() {
			return false
		}
	}
	return false
}

func progressIndex(progresses []model.StageProgress) map[uint]*model.StageProgress {
	byStage := make(map[uint]*model.StageProgress, len(progresses))
	for i := range progresses {
		byStage[progresses[i].StageID] = &progresses[i]
	}
	return byStage
}

type OverviewService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	ProgressRepo   *repository.StageProgressRepository
	Redis          *redis.Client
	CacheTTL       time.Duration

	// Fallback certificate threshold for courses that do not set one.
	RequiredQuizPoints int
}

func NewOverviewService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progressRepo *repository.StageProgressRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	requiredQuizPoints int,
) *OverviewService {
	return &OverviewService{
		CourseRepo:         courseRepo,
		EnrollmentRepo:     enrollmentRepo,
		ProgressRepo:       progressRepo,
		Redis:              rdb,
		CacheTTL:           cacheTTL,
		RequiredQuizPoints: requiredQuizPoints,
	}
}

func (s *OverviewService) requiredPoints(course *model.Course) int {
	if course.RequiredQuizPoints > 0 {
		return course.RequiredQuizPoints
	}
	return s.RequiredQuizPoints
}

func overviewCacheKey(enrollmentID uint) string {
	return fmt.Sprintf("workspace:overview:%d", enrollmentID)
}

// GetOverview returns the overview for a learner's enrollment, served
// from the redis cache when fresh. The cache is invalidated on every
// progress mutation for the enrollment.
func (s *OverviewService) GetOverview(ctx context.Context, userID, courseID uint) (*WorkspaceOverview, *model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, nil, err
	}

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, overviewCacheKey(enrollment.ID)).Result(); err == nil {
			var overview WorkspaceOverview
			if json.Unmarshal([]byte(cached), &overview) == nil {
				return &overview, enrollment, nil
			}
		}
	}

	overview, err := s.buildFresh(enrollment)
	if err != nil {
		return nil, nil, err
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(overview); err == nil {
			if err := s.Redis.Set(ctx, overviewCacheKey(enrollment.ID), payload, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("overview cache write failed", zap.Error(err))
			}
		}
	}

	return overview, enrollment, nil
}

func (s *OverviewService) buildFresh(enrollment *model.Enrollment) (*WorkspaceOverview, error) {
	course, err := s.CourseRepo.FindWorkspaceTree(enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	progresses, err := s.ProgressRepo.FindByEnrollment(enrollment.ID)
	if err != nil {
		return nil, err
	}
	return BuildOverview(course, progresses, s.requiredPoints(course)), nil
}

func (s *OverviewService) Invalidate(ctx context.Context, enrollmentID uint) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, overviewCacheKey(enrollmentID)).Err(); err != nil {
		logger.Log.Warn("overview cache invalidation failed", zap.Error(err))
	}
}

// SyncEnrollment refreshes the cached aggregates on the enrollment row
// after a progress write: percentage, completion timestamp, and the
// certificate serial once eligibility is first observed. Runs inside
// the caller's transaction.
func (s *OverviewService) SyncEnrollment(tx *gorm.DB, course *model.Course, enrollment *model.Enrollment, now time.Time) error {
	progresses, err := repository.NewStageProgressRepository(tx).FindByEnrollment(enrollment.ID)
	if err != nil {
		return err
	}

	overview := BuildOverview(course, progresses, s.requiredPoints(course))

	enrollment.ProgressPercent = overview.Stats.Percent
	if overview.Stats.CompletedStages == overview.Stats.TotalStages && overview.Stats.TotalStages > 0 {
		if enrollment.CompletedAt == nil {
			enrollment.CompletedAt = &now
		}
	} else {
		enrollment.CompletedAt = nil
	}
	if overview.Stats.CertificateEligible && enrollment.CertificateSerial == "" {
		enrollment.CertificateSerial = model.GenerateUUID()
	}

	return tx.Save(enrollment).Error
}
