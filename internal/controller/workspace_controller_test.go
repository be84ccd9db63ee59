package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanightly/pedavue-sub000/internal/config"
	"github.com/evanightly/pedavue-sub000/internal/middleware"
	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/repository"
	"github.com/evanightly/pedavue-sub000/internal/service"
	"github.com/evanightly/pedavue-sub000/internal/util"
	"github.com/evanightly/pedavue-sub000/pkg/database"
	"github.com/evanightly/pedavue-sub000/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "workspace-controller-test-secret-0123456789"

type workspaceHarness struct {
	router *gin.Engine
	token  string

	user         model.User
	course       model.Course
	contentStage *model.Stage
	quizStage    *model.Stage
	quiz         model.Quiz
}

func newWorkspaceHarness(t *testing.T) *workspaceHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	quiz := model.Quiz{
		Name: "Checkpoint",
		Questions: []model.QuizQuestion{
			{
				Text:   "Q1",
				Points: 10,
				Order:  1,
				Options: []model.QuizOption{
					{Text: "A", IsCorrect: true, Order: 1},
					{Text: "B", Order: 2},
				},
			},
		},
	}
	require.NoError(t, db.Create(&quiz).Error)

	course := model.Course{
		Title: "Go Fundamentals",
		Modules: []model.CourseModule{
			{
				Title: "Basics",
				Order: 1,
				Stages: []model.Stage{
					{Title: "Intro", Order: 1, Type: model.StageContent},
					{Title: "Checkpoint", Order: 2, Type: model.StageQuiz, QuizID: &quiz.ID},
				},
			},
		},
	}
	require.NoError(t, db.Create(&course).Error)

	user := model.User{Name: "Learner", Email: "learner@example.com", Password: "irrelevant"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&model.Enrollment{UserID: user.ID, CourseID: course.ID}).Error)

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewStageProgressRepository(db)

	overview := service.NewOverviewService(courseRepo, enrollmentRepo, progressRepo, nil, time.Minute, 70)
	attempts := service.NewAttemptService(
		courseRepo, enrollmentRepo, progressRepo, overview, db,
		service.SystemClock(), service.NewRandShuffler(),
	)

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.ExpireTime = time.Hour

	workspace := NewWorkspaceController(overview, attempts)

	router := gin.New()
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/courses/:courseId/workspace", workspace.GetOverview)
		authGroup.GET("/courses/:courseId/stages/:stageId", workspace.GetStage)
		authGroup.POST("/courses/:courseId/stages/:stageId/complete", workspace.CompleteStage)
		authGroup.POST("/courses/:courseId/stages/:stageId/draft", workspace.SaveDraft)
		authGroup.POST("/courses/:courseId/stages/:stageId/submit", workspace.SubmitQuiz)
		authGroup.POST("/courses/:courseId/stages/:stageId/reattempt", workspace.ReattemptQuiz)
	}

	token, err := util.GenerateJWT(&user, testSecret, time.Hour)
	require.NoError(t, err)

	return &workspaceHarness{
		router:       router,
		token:        token,
		user:         user,
		course:       course,
		contentStage: &course.Modules[0].Stages[0],
		quizStage:    &course.Modules[0].Stages[1],
		quiz:         quiz,
	}
}

func (h *workspaceHarness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+h.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestWorkspaceRequiresAuth(t *testing.T) {
	h := newWorkspaceHarness(t)

	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/courses/%d/workspace", h.course.ID), nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWorkspaceOverviewPayload(t *testing.T) {
	h := newWorkspaceHarness(t)

	w := h.do(t, http.MethodGet, fmt.Sprintf("/api/courses/%d/workspace", h.course.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	stats := data["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["totalStages"])
	assert.Equal(t, float64(h.contentStage.ID), data["currentStageId"].(float64))
}

func TestLockedStageReturns403(t *testing.T) {
	h := newWorkspaceHarness(t)

	w := h.do(t, http.MethodGet,
		fmt.Sprintf("/api/courses/%d/stages/%d", h.course.ID, h.quizStage.ID), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQuizStagePayloadStripsCorrectness(t *testing.T) {
	h := newWorkspaceHarness(t)

	w := h.do(t, http.MethodPost,
		fmt.Sprintf("/api/courses/%d/stages/%d/complete", h.course.ID, h.contentStage.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet,
		fmt.Sprintf("/api/courses/%d/stages/%d", h.course.ID, h.quizStage.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "isCorrect")
	assert.NotContains(t, w.Body.String(), "IsCorrect")

	data := decodeData(t, w)
	quiz := data["quiz"].(map[string]any)
	questions := quiz["questions"].([]any)
	require.Len(t, questions, 1)
	progress := data["progress"].(map[string]any)
	assert.Equal(t, "in_progress", progress["status"])
}

func TestDraftDropsUnknownIDsWithoutError(t *testing.T) {
	h := newWorkspaceHarness(t)

	w := h.do(t, http.MethodPost,
		fmt.Sprintf("/api/courses/%d/stages/%d/complete", h.course.ID, h.contentStage.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := fmt.Sprintf(`{"answers":{"%d":[%d,999],"999":[1]}}`,
		h.quiz.Questions[0].ID, h.quiz.Questions[0].Options[0].ID)
	w = h.do(t, http.MethodPost,
		fmt.Sprintf("/api/courses/%d/stages/%d/draft", h.course.ID, h.quizStage.ID), body)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDraftOnContentStageConflicts(t *testing.T) {
	h := newWorkspaceHarness(t)

	w := h.do(t, http.MethodPost,
		fmt.Sprintf("/api/courses/%d/stages/%d/draft", h.course.ID, h.contentStage.ID),
		`{"answers":{}}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitReturnsGrade(t *testing.T) {
	h := newWorkspaceHarness(t)

	w := h.do(t, http.MethodPost,
		fmt.Sprintf("/api/courses/%d/stages/%d/complete", h.course.ID, h.contentStage.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := fmt.Sprintf(`{"answers":{"%d":[%d]}}`,
		h.quiz.Questions[0].ID, h.quiz.Questions[0].Options[0].ID)
	w = h.do(t, http.MethodPost,
		fmt.Sprintf("/api/courses/%d/stages/%d/submit", h.course.ID, h.quizStage.ID), body)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	grade := data["grade"].(map[string]any)
	assert.Equal(t, float64(100), grade["score"])
	state := data["state"].(map[string]any)
	progress := state["progress"].(map[string]any)
	assert.Equal(t, "completed", progress["status"])
	assert.Equal(t, true, progress["readOnly"])
}
