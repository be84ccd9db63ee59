package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/repository"
	"github.com/evanightly/pedavue-sub000/internal/util"
	"github.com/evanightly/pedavue-sub000/pkg/monitoring"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptService runs the quiz attempt lifecycle: lazy initialization,
// draft autosave, finalization (manual or deadline-driven), and
// reattempts. Every mutation runs in one transaction holding an
// exclusive lock on the StageProgress row, so concurrent operations on
// the same enrollment+stage are totally ordered.
type AttemptService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	ProgressRepo   *repository.StageProgressRepository
	Overview       *OverviewService
	DB             *gorm.DB
	Clock          Clock
	Shuffler       Shuffler
}

func NewAttemptService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progressRepo *repository.StageProgressRepository,
	overview *OverviewService,
	db *gorm.DB,
	clock Clock,
	shuffler Shuffler,
) *AttemptService {
	return &AttemptService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		ProgressRepo:   progressRepo,
		Overview:       overview,
		DB:             db,
		Clock:          clock,
		Shuffler:       shuffler,
	}
}

type StageSummary struct {
	ID            uint            `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Type          model.StageType `json:"type"`
	DurationLabel string          `json:"durationLabel,omitempty"`
	Order         int             `json:"order"`
}

type OptionPayload struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type QuestionPayload struct {
	ID            uint                `json:"id"`
	Text          string              `json:"text"`
	ImageURL      string              `json:"imageUrl,omitempty"`
	SelectionMode model.SelectionMode `json:"selectionMode"`
	Points        int                 `json:"points"`
	Options       []OptionPayload     `json:"options"`
}

type QuizPayload struct {
	ID            uint              `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	DurationLabel string            `json:"durationLabel"`
	TotalPoints   int               `json:"totalPoints"`
	Questions     []QuestionPayload `json:"questions"`
}

type ProgressPayload struct {
	Status         model.ProgressStatus `json:"status"`
	StartedAt      *time.Time           `json:"startedAt,omitempty"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	DeadlineAt     *time.Time           `json:"deadlineAt,omitempty"`
	ServerNow      time.Time            `json:"serverNow"`
	Answers        map[uint][]uint      `json:"answers"`
	Score          *int                 `json:"score,omitempty"`
	Attempt        int                  `json:"attempt"`
	EarnedPoints   int                  `json:"earnedPoints"`
	TotalPoints    int                  `json:"totalPoints"`
	ReadOnly       bool                 `json:"readOnly"`
	Result         *model.AttemptScore  `json:"result,omitempty"`
	AttemptHistory []model.AttemptScore `json:"attemptHistory,omitempty"`
}

type StageState struct {
	Stage    StageSummary    `json:"stage"`
	Quiz     *QuizPayload    `json:"quiz,omitempty"`
	Progress ProgressPayload `json:"progress"`
}

// Deadline is defined only for timed quiz stages with a started
// attempt: started_at + duration. Nil means no deadline applies.
func Deadline(stage *model.Stage, progress *model.StageProgress) *time.Time {
	if stage == nil || !stage.IsQuiz() || stage.Quiz == nil || stage.Quiz.DurationMinutes <= 0 {
		return nil
	}
	if progress == nil || progress.StartedAt == nil {
		return nil
	}
	d := progress.StartedAt.Add(time.Duration(stage.Quiz.DurationMinutes) * time.Minute)
	return &d
}

func expired(stage *model.Stage, progress *model.StageProgress, now time.Time) bool {
	if progress == nil || progress.IsCompleted() {
		return false
	}
	deadline := Deadline(stage, progress)
	return deadline != nil && now.After(*deadline)
}

// workspaceContext carries everything a workspace operation needs
// after the hierarchy and access checks have passed.
type workspaceContext struct {
	enrollment *model.Enrollment
	course     *model.Course
	stage      *model.Stage
}

// loadContext re-validates the Course -> Module -> Stage hierarchy and
// the enrollment before any state is touched, then applies the
// locking gate for mutating or quiz-rendering callers.
func (s *AttemptService) loadContext(userID, courseID, stageID uint, requireUnlocked bool) (*workspaceContext, error) {
	enrollment, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, err
	}

	course, err := s.CourseRepo.FindWorkspaceTree(courseID)
	if err != nil {
		return nil, err
	}

	var stage *model.Stage
	for _, st := range course.OrderedStages() {
		if st.ID == stageID {
			stage = st
			break
		}
	}
	if stage == nil {
		return nil, util.ErrStageNotFound
	}

	if requireUnlocked {
		progresses, err := s.ProgressRepo.FindByEnrollment(enrollment.ID)
		if err != nil {
			return nil, err
		}
		if !StageUnlocked(course, progresses, stageID) {
			return nil, util.ErrStageLocked
		}
	}

	return &workspaceContext{enrollment: enrollment, course: course, stage: stage}, nil
}

// StageState renders one stage for the workspace view. Quiz stages are
// lazily initialized, and an overdue attempt is auto-submitted with
// whatever draft answers it holds before the view is returned.
func (s *AttemptService) StageState(ctx context.Context, userID, courseID, stageID uint) (*StageState, error) {
	wc, err := s.loadContext(userID, courseID, stageID, true)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()

	if !wc.stage.IsQuiz() {
		progress, err := s.ProgressRepo.FindByEnrollmentAndStage(wc.enrollment.ID, stageID)
		if err != nil {
			return nil, err
		}
		return s.buildStageState(wc, progress, now), nil
	}

	if wc.stage.Quiz == nil {
		return nil, util.ErrQuizMissing
	}

	var progress *model.StageProgress
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		progress, txErr = s.initializeAttempt(tx, wc, now)
		if txErr != nil {
			return txErr
		}
		if expired(wc.stage, progress, now) {
			_, txErr = s.finalize(tx, wc, progress, progress.State.Answers, true, now)
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Overview.Invalidate(ctx, wc.enrollment.ID)
	return s.buildStageState(wc, progress, now), nil
}

// SaveDraft sanitizes and stores the current answer selection without
// grading. Last write wins; a pending stage is promoted to
// in_progress so the attempt timer starts with the first save.
func (s *AttemptService) SaveDraft(ctx context.Context, userID, courseID, stageID uint, raw map[uint][]uint) error {
	wc, err := s.loadContext(userID, courseID, stageID, true)
	if err != nil {
		return err
	}
	if !wc.stage.IsQuiz() {
		return util.ErrNotQuizStage
	}
	if wc.stage.Quiz == nil {
		return util.ErrQuizMissing
	}

	now := s.Clock.Now()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		progress, txErr := s.initializeAttempt(tx, wc, now)
		if txErr != nil {
			return txErr
		}
		if progress.IsCompleted() {
			// Finalized attempts are read-only; the draft is ignored.
			return nil
		}
		progress.State.Answers = SanitizeAnswers(wc.stage.Quiz, raw)
		return repository.NewStageProgressRepository(tx).Save(progress)
	})
	if err != nil {
		return err
	}

	s.Overview.Invalidate(ctx, wc.enrollment.ID)
	return nil
}

// Submit finalizes the current attempt with the submitted answers. A
// duplicate submit, or a submit racing the lazy expiry, observes
// status == completed under the lock and returns the stored result
// without re-grading.
func (s *AttemptService) Submit(ctx context.Context, userID, courseID, stageID uint, raw map[uint][]uint, autoSubmit bool) (*StageState, *GradeResult, error) {
	wc, err := s.loadContext(userID, courseID, stageID, true)
	if err != nil {
		return nil, nil, err
	}
	if !wc.stage.IsQuiz() {
		return nil, nil, util.ErrNotQuizStage
	}
	if wc.stage.Quiz == nil {
		return nil, nil, util.ErrQuizMissing
	}

	now := s.Clock.Now()

	var progress *model.StageProgress
	var grade *GradeResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		progress, txErr = s.initializeAttempt(tx, wc, now)
		if txErr != nil {
			return txErr
		}
		auto := autoSubmit || expired(wc.stage, progress, now)
		grade, txErr = s.finalize(tx, wc, progress, raw, auto, now)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}

	s.Overview.Invalidate(ctx, wc.enrollment.ID)
	return s.buildStageState(wc, progress, now), grade, nil
}

// Reattempt resets the stage for a fresh attempt. The attempt history
// survives; orders and answers are cleared so the next initialization
// reshuffles, and the attempt number advances past every recorded
// QuizResult.
func (s *AttemptService) Reattempt(ctx context.Context, userID, courseID, stageID uint) (*StageState, error) {
	wc, err := s.loadContext(userID, courseID, stageID, true)
	if err != nil {
		return nil, err
	}
	if !wc.stage.IsQuiz() {
		return nil, util.ErrNotQuizStage
	}
	if wc.stage.Quiz == nil {
		return nil, util.ErrQuizMissing
	}

	now := s.Clock.Now()

	var progress *model.StageProgress
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		progressRepo := repository.NewStageProgressRepository(tx)

		var txErr error
		progress, txErr = progressRepo.FindForUpdate(wc.enrollment.ID, stageID)
		if txErr != nil {
			return txErr
		}
		if progress == nil {
			progress, txErr = s.initializeAttempt(tx, wc, now)
			return txErr
		}

		maxAttempt, txErr := repository.NewQuizResultRepository(tx).MaxAttempt(wc.enrollment.UserID, wc.stage.Quiz.ID)
		if txErr != nil {
			return txErr
		}

		progress.State = model.AttemptState{
			AttemptHistory: progress.State.AttemptHistory,
			CurrentAttempt: maxAttempt + 1,
		}
		progress.Status = model.ProgressInProgress
		progress.StartedAt = &now
		progress.CompletedAt = nil
		progress.QuizResultID = nil

		if txErr = s.ensureOrders(progress, wc.stage.Quiz); txErr != nil {
			return txErr
		}
		if txErr = progressRepo.Save(progress); txErr != nil {
			return txErr
		}
		return s.Overview.SyncEnrollment(tx, wc.course, wc.enrollment, now)
	})
	if err != nil {
		return nil, err
	}

	s.Overview.Invalidate(ctx, wc.enrollment.ID)
	return s.buildStageState(wc, progress, now), nil
}

// CompleteStage marks a content stage completed. Quiz stages complete
// only through finalization.
func (s *AttemptService) CompleteStage(ctx context.Context, userID, courseID, stageID uint) (*StageState, error) {
	wc, err := s.loadContext(userID, courseID, stageID, true)
	if err != nil {
		return nil, err
	}
	if wc.stage.IsQuiz() {
		return nil, util.ErrNotContentStage
	}

	now := s.Clock.Now()

	var progress *model.StageProgress
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		progressRepo := repository.NewStageProgressRepository(tx)

		var txErr error
		progress, txErr = progressRepo.FindForUpdate(wc.enrollment.ID, stageID)
		if txErr != nil {
			return txErr
		}
		if progress == nil {
			progress = &model.StageProgress{
				EnrollmentID: wc.enrollment.ID,
				StageID:      stageID,
			}
		}
		if progress.IsCompleted() {
			return nil
		}

		progress.Status = model.ProgressCompleted
		if progress.StartedAt == nil {
			progress.StartedAt = &now
		}
		progress.CompletedAt = &now
		if txErr = progressRepo.Save(progress); txErr != nil {
			return txErr
		}
		monitoring.StagesCompleted.Inc()
		return s.Overview.SyncEnrollment(tx, wc.course, wc.enrollment, now)
	})
	if err != nil {
		return nil, err
	}

	s.Overview.Invalidate(ctx, wc.enrollment.ID)
	return s.buildStageState(wc, progress, now), nil
}

// initializeAttempt creates or promotes the StageProgress row under
// the row lock and ensures the attempt state is ready to render. It is
// idempotent: repeated calls on the same attempt change nothing.
func (s *AttemptService) initializeAttempt(tx *gorm.DB, wc *workspaceContext, now time.Time) (*model.StageProgress, error) {
	progressRepo := repository.NewStageProgressRepository(tx)

	progress, err := progressRepo.FindForUpdate(wc.enrollment.ID, wc.stage.ID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &model.StageProgress{
			EnrollmentID: wc.enrollment.ID,
			StageID:      wc.stage.ID,
			Status:       model.ProgressInProgress,
			StartedAt:    &now,
		}
		if err := progressRepo.Create(progress); err != nil {
			// Lost a create race on the unique (enrollment, stage)
			// index; take the winner's row under the lock instead.
			progress, err = progressRepo.FindForUpdate(wc.enrollment.ID, wc.stage.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	if progress.Status == model.ProgressPending {
		progress.Status = model.ProgressInProgress
	}
	if progress.StartedAt == nil {
		progress.StartedAt = &now
	}

	if wc.stage.IsQuiz() {
		if wc.stage.Quiz == nil {
			return nil, util.ErrQuizMissing
		}
		if err := s.ensureOrders(progress, wc.stage.Quiz); err != nil {
			return nil, err
		}
		if progress.State.CurrentAttempt <= 0 {
			attempt, err := s.resolveAttemptNumber(tx, wc.enrollment.UserID, wc.stage.Quiz.ID, progress)
			if err != nil {
				return nil, err
			}
			progress.State.CurrentAttempt = attempt
		}
	}

	if err := progressRepo.Save(progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// ensureOrders generates the question and per-question option orders
// once per attempt, shuffling uniformly at random where the quiz flags
// ask for it. Cached orders are never regenerated, so re-renders of
// the same attempt are stable.
func (s *AttemptService) ensureOrders(progress *model.StageProgress, quiz *model.Quiz) error {
	if len(progress.State.QuestionOrder) == 0 {
		order := make([]uint, len(quiz.Questions))
		for i := range quiz.Questions {
			order[i] = quiz.Questions[i].ID
		}
		if quiz.ShuffleQuestions {
			s.Shuffler.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		progress.State.QuestionOrder = order
	}

	if progress.State.OptionOrder == nil {
		progress.State.OptionOrder = make(map[uint][]uint, len(quiz.Questions))
	}
	for qi := range quiz.Questions {
		question := &quiz.Questions[qi]
		if len(progress.State.OptionOrder[question.ID]) > 0 {
			continue
		}
		order := make([]uint, len(question.Options))
		for oi := range question.Options {
			order[oi] = question.Options[oi].ID
		}
		if question.ShuffleOptions {
			s.Shuffler.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		progress.State.OptionOrder[question.ID] = order
	}
	return nil
}

// resolveAttemptNumber applies the documented numbering rule: reuse a
// positive CurrentAttempt; otherwise max recorded attempt + 1, except
// that an already-completed progress keeps the prior attempt number so
// resubmission stays idempotent. Preserved literally, including the
// possible under-count if a QuizResult row is deleted externally.
func (s *AttemptService) resolveAttemptNumber(tx *gorm.DB, userID, quizID uint, progress *model.StageProgress) (int, error) {
	if progress.State.CurrentAttempt > 0 {
		return progress.State.CurrentAttempt, nil
	}
	maxAttempt, err := repository.NewQuizResultRepository(tx).MaxAttempt(userID, quizID)
	if err != nil {
		return 0, err
	}
	if progress.IsCompleted() {
		if maxAttempt == 0 {
			maxAttempt = 1
		}
		return maxAttempt, nil
	}
	return maxAttempt + 1, nil
}

// finalize grades and completes the current attempt. Callers hold the
// row lock. Observing status == completed here means a duplicate
// finalize lost the race: the stored result is returned untouched so
// exactly one QuizResult row exists per attempt.
func (s *AttemptService) finalize(tx *gorm.DB, wc *workspaceContext, progress *model.StageProgress, raw map[uint][]uint, autoSubmitted bool, now time.Time) (*GradeResult, error) {
	quiz := wc.stage.Quiz

	if progress.IsCompleted() {
		stored := progress.State.Result
		if stored == nil {
			return &GradeResult{}, nil
		}
		return &GradeResult{
			Score:        stored.Score,
			Correct:      stored.Correct,
			Total:        stored.Total,
			EarnedPoints: stored.EarnedPoints,
			TotalPoints:  stored.TotalPoints,
		}, nil
	}

	clean := SanitizeAnswers(quiz, raw)
	grade := Grade(quiz, clean)

	attempt, err := s.resolveAttemptNumber(tx, wc.enrollment.UserID, quiz.ID, progress)
	if err != nil {
		return nil, err
	}

	resultRepo := repository.NewQuizResultRepository(tx)
	quizResult, err := resultRepo.FindByAttempt(wc.enrollment.UserID, quiz.ID, attempt)
	if err != nil {
		return nil, err
	}
	fresh := quizResult == nil
	if fresh {
		quizResult = &model.QuizResult{
			UserID:  wc.enrollment.UserID,
			QuizID:  quiz.ID,
			Attempt: attempt,
		}
	}

	answerSnapshot, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	quizResult.Score = grade.Score
	quizResult.EarnedPoints = grade.EarnedPoints
	quizResult.TotalPoints = grade.TotalPoints
	quizResult.AutoSubmitted = autoSubmitted
	quizResult.Answers = datatypes.JSON(answerSnapshot)
	quizResult.StartedAt = progress.StartedAt
	quizResult.FinishedAt = &now
	if fresh {
		err = resultRepo.Create(quizResult)
	} else {
		err = resultRepo.Save(quizResult)
	}
	if err != nil {
		return nil, err
	}

	score := model.AttemptScore{
		Attempt:       attempt,
		Score:         grade.Score,
		Correct:       grade.Correct,
		Total:         grade.Total,
		EarnedPoints:  grade.EarnedPoints,
		TotalPoints:   grade.TotalPoints,
		AutoSubmitted: autoSubmitted,
		FinishedAt:    now,
	}

	progress.Status = model.ProgressCompleted
	progress.CompletedAt = &now
	progress.State.Answers = clean
	progress.State.CurrentAttempt = attempt
	progress.State.Result = &score
	progress.State.AttemptHistory = append(progress.State.AttemptHistory, score)
	progress.QuizResultID = &quizResult.ID

	if err := repository.NewStageProgressRepository(tx).Save(progress); err != nil {
		return nil, err
	}
	if err := s.Overview.SyncEnrollment(tx, wc.course, wc.enrollment, now); err != nil {
		return nil, err
	}

	monitoring.ObserveFinalize(grade.Score, autoSubmitted)
	return &grade, nil
}

func (s *AttemptService) buildStageState(wc *workspaceContext, progress *model.StageProgress, now time.Time) *StageState {
	state := &StageState{
		Stage: StageSummary{
			ID:            wc.stage.ID,
			Title:         wc.stage.Title,
			Description:   wc.stage.Description,
			Type:          wc.stage.Type,
			DurationLabel: wc.stage.DurationLabel(),
			Order:         wc.stage.Order,
		},
		Progress: ProgressPayload{
			Status:    model.ProgressPending,
			ServerNow: now,
			Answers:   map[uint][]uint{},
		},
	}

	if wc.stage.IsQuiz() && wc.stage.Quiz != nil {
		state.Quiz = buildQuizPayload(wc.stage, progress)
		state.Progress.TotalPoints = wc.stage.Quiz.TotalPoints()
	}

	if progress == nil {
		return state
	}

	state.Progress.Status = progress.Status
	state.Progress.StartedAt = progress.StartedAt
	state.Progress.CompletedAt = progress.CompletedAt
	state.Progress.DeadlineAt = Deadline(wc.stage, progress)
	state.Progress.Attempt = progress.State.CurrentAttempt
	state.Progress.ReadOnly = progress.IsCompleted()
	state.Progress.Result = progress.State.Result
	state.Progress.AttemptHistory = progress.State.AttemptHistory
	if progress.State.Answers != nil {
		state.Progress.Answers = progress.State.Answers
	}
	if progress.State.Result != nil {
		score := progress.State.Result.Score
		state.Progress.Score = &score
		state.Progress.EarnedPoints = progress.State.Result.EarnedPoints
	}

	return state
}

// buildQuizPayload renders the quiz in the attempt's cached order,
// stripping correctness flags. Natural order is used when the attempt
// has not been initialized yet.
func buildQuizPayload(stage *model.Stage, progress *model.StageProgress) *QuizPayload {
	quiz := stage.Quiz

	questionOrder := make([]uint, 0, len(quiz.Questions))
	if progress != nil && len(progress.State.QuestionOrder) > 0 {
		questionOrder = progress.State.QuestionOrder
	} else {
		for i := range quiz.Questions {
			questionOrder = append(questionOrder, quiz.Questions[i].ID)
		}
	}

	payload := &QuizPayload{
		ID:            quiz.ID,
		Name:          quiz.Name,
		Description:   quiz.Description,
		DurationLabel: stage.DurationLabel(),
		TotalPoints:   quiz.TotalPoints(),
	}

	for _, questionID := range questionOrder {
		question := quiz.QuestionByID(questionID)
		if question == nil {
			continue
		}

		qp := QuestionPayload{
			ID:            question.ID,
			Text:          question.Text,
			ImageURL:      question.ImageURL,
			SelectionMode: question.SelectionMode(),
			Points:        question.Points,
		}

		var optionOrder []uint
		if progress != nil {
			optionOrder = progress.State.OptionOrder[question.ID]
		}
		if len(optionOrder) == 0 {
			for i := range question.Options {
				optionOrder = append(optionOrder, question.Options[i].ID)
			}
		}
		for _, optionID := range optionOrder {
			for i := range question.Options {
				if question.Options[i].ID != optionID {
					continue
				}
				qp.Options = append(qp.Options, OptionPayload{
					ID:       question.Options[i].ID,
					Text:     question.Options[i].Text,
					ImageURL: question.Options[i].ImageURL,
				})
				break
			}
		}

		payload.Questions = append(payload.Questions, qp)
	}

	return payload
}
