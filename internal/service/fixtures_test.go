package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/repository"
	"github.com/evanightly/pedavue-sub000/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// reverseShuffler makes shuffling observable without randomness.
type reverseShuffler struct{}

func (reverseShuffler) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// fixture seeds one course: a content stage, a timed shuffled quiz
// stage, then a closing content stage in a second module.
type fixture struct {
	db       *gorm.DB
	clock    *fixedClock
	attempts *AttemptService
	overview *OverviewService

	progressRepo *repository.StageProgressRepository
	resultRepo   *repository.QuizResultRepository

	user       model.User
	course     model.Course
	enrollment model.Enrollment

	contentStage *model.Stage
	quizStage    *model.Stage
	finalStage   *model.Stage
	quiz         model.Quiz
}

func (f *fixture) q1() *model.QuizQuestion { return &f.quiz.Questions[0] }
func (f *fixture) q2() *model.QuizQuestion { return &f.quiz.Questions[1] }

// correctAnswers selects every correct option: 15 of 15 points.
func (f *fixture) correctAnswers() map[uint][]uint {
	return map[uint][]uint{
		f.q1().ID: {f.q1().Options[0].ID},
		f.q2().ID: {f.q2().Options[0].ID, f.q2().Options[1].ID},
	}
}

// partialAnswers gets only Q1 right: 10 of 15 points, score 67.
func (f *fixture) partialAnswers() map[uint][]uint {
	return map[uint][]uint{
		f.q1().ID: {f.q1().Options[0].ID},
		f.q2().ID: {f.q2().Options[0].ID},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	quiz := model.Quiz{
		Name:             "Checkpoint",
		DurationMinutes:  10,
		ShuffleQuestions: true,
		Questions: []model.QuizQuestion{
			{
				Text:           "Q1",
				Points:         10,
				Order:          1,
				ShuffleOptions: true,
				Options: []model.QuizOption{
					{Text: "A", IsCorrect: true, Order: 1},
					{Text: "B", Order: 2},
				},
			},
			{
				Text:   "Q2",
				Points: 5,
				Order:  2,
				Options: []model.QuizOption{
					{Text: "C", IsCorrect: true, Order: 1},
					{Text: "D", IsCorrect: true, Order: 2},
					{Text: "E", Order: 3},
				},
			},
		},
	}
	require.NoError(t, db.Create(&quiz).Error)

	course := model.Course{
		Title:              "Go Fundamentals",
		RequiredQuizPoints: 12,
		Modules: []model.CourseModule{
			{
				Title: "Basics",
				Order: 1,
				Stages: []model.Stage{
					{Title: "Intro", Order: 1, Type: model.StageContent, EstimatedMinutes: 5},
					{Title: "Checkpoint", Order: 2, Type: model.StageQuiz, QuizID: &quiz.ID},
				},
			},
			{
				Title: "Closing",
				Order: 2,
				Stages: []model.Stage{
					{Title: "Wrap-up", Order: 1, Type: model.StageContent},
				},
			},
		},
	}
	require.NoError(t, db.Create(&course).Error)

	user := model.User{Name: "Learner", Email: "learner@example.com", Password: "irrelevant"}
	require.NoError(t, db.Create(&user).Error)

	enrollment := model.Enrollment{UserID: user.ID, CourseID: course.ID}
	require.NoError(t, db.Create(&enrollment).Error)

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewStageProgressRepository(db)

	overview := NewOverviewService(courseRepo, enrollmentRepo, progressRepo, nil, time.Minute, 70)
	clock := &fixedClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	attempts := NewAttemptService(courseRepo, enrollmentRepo, progressRepo, overview, db, clock, reverseShuffler{})

	return &fixture{
		db:           db,
		clock:        clock,
		attempts:     attempts,
		overview:     overview,
		progressRepo: progressRepo,
		resultRepo:   repository.NewQuizResultRepository(db),
		user:         user,
		course:       course,
		enrollment:   enrollment,
		contentStage: &course.Modules[0].Stages[0],
		quizStage:    &course.Modules[0].Stages[1],
		finalStage:   &course.Modules[1].Stages[0],
		quiz:         quiz,
	}
}
