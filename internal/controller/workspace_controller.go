package controller

import (
	"errors"
	"strconv"

	"github.com/evanightly/pedavue-sub000/internal/service"
	"github.com/evanightly/pedavue-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

// WorkspaceController exposes the course workspace: the overview tree
// and the per-stage lifecycle (view, complete, draft, submit,
// reattempt).
type WorkspaceController struct {
	OverviewService *service.OverviewService
	AttemptService  *service.AttemptService
}

func NewWorkspaceController(overviewService *service.OverviewService, attemptService *service.AttemptService) *WorkspaceController {
	return &WorkspaceController{
		OverviewService: overviewService,
		AttemptService:  attemptService,
	}
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func respondWorkspaceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrStageNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrNotEnrolled):
		util.Forbidden(ctx, err.Error())
	case errors.Is(err, util.ErrStageLocked):
		util.Forbidden(ctx, err.Error())
	case errors.Is(err, util.ErrNotQuizStage), errors.Is(err, util.ErrNotContentStage), errors.Is(err, util.ErrQuizMissing):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// GetOverview godoc
// @Summary Course workspace overview
// @Description Module and stage tree with per-stage status, locking, the current stage, and progress aggregates.
// @Tags workspace
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Success 200 {object} util.Response{data=service.WorkspaceOverview}
// @Failure 403 {object} util.Response "not enrolled"
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/workspace [get]
func (c *WorkspaceController) GetOverview(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	overview, _, err := c.OverviewService.GetOverview(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}

// GetStage godoc
// @Summary Stage detail
// @Description Renders one stage. Quiz stages initialize an attempt on first view; an overdue attempt is auto-submitted before rendering.
// @Tags workspace
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Param   stageId path int true "stage id"
// @Success 200 {object} util.Response{data=service.StageState}
// @Failure 403 {object} util.Response "locked or not enrolled"
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/stages/{stageId} [get]
func (c *WorkspaceController) GetStage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	stageID, ok := pathID(ctx, "stageId")
	if !ok {
		return
	}

	state, err := c.AttemptService.StageState(ctx.Request.Context(), claims.UserID, courseID, stageID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// CompleteStage godoc
// @Summary Mark a content stage completed
// @Tags workspace
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Param   stageId path int true "stage id"
// @Success 200 {object} util.Response{data=service.StageState}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "not a content stage"
// @Router /api/courses/{courseId}/stages/{stageId}/complete [post]
func (c *WorkspaceController) CompleteStage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	stageID, ok := pathID(ctx, "stageId")
	if !ok {
		return
	}

	state, err := c.AttemptService.CompleteStage(ctx.Request.Context(), claims.UserID, courseID, stageID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}

	overview, _, err := c.OverviewService.GetOverview(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"stage": state, "overview": overview})
}

// swagger:model DraftRequest
type DraftRequest struct {
	Answers map[uint][]uint `json:"answers"`
}

// SaveDraft godoc
// @Summary Save draft answers
// @Description Stores the current selection without grading. Unknown question or option ids are dropped; last write wins.
// @Tags workspace
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Param   stageId path int true "stage id"
// @Param   body body DraftRequest true "draft answers"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response "not a quiz stage"
// @Router /api/courses/{courseId}/stages/{stageId}/draft [post]
func (c *WorkspaceController) SaveDraft(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	stageID, ok := pathID(ctx, "stageId")
	if !ok {
		return
	}

	var req DraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AttemptService.SaveDraft(ctx.Request.Context(), claims.UserID, courseID, stageID, req.Answers); err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": true})
}

// swagger:model SubmitRequest
type SubmitRequest struct {
	Answers    map[uint][]uint `json:"answers"`
	AutoSubmit bool            `json:"autoSubmit"`
}

// SubmitQuiz godoc
// @Summary Finalize the current attempt
// @Description Grades the submitted answers and completes the stage. A duplicate submit returns the stored result unchanged.
// @Tags workspace
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Param   stageId path int true "stage id"
// @Param   body body SubmitRequest true "final answers"
// @Success 200 {object} util.Response{data=object}
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response "not a quiz stage"
// @Router /api/courses/{courseId}/stages/{stageId}/submit [post]
func (c *WorkspaceController) SubmitQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	stageID, ok := pathID(ctx, "stageId")
	if !ok {
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state, grade, err := c.AttemptService.Submit(ctx.Request.Context(), claims.UserID, courseID, stageID, req.Answers, req.AutoSubmit)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}

	overview, _, err := c.OverviewService.GetOverview(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"state": state, "grade": grade, "overview": overview})
}

// ReattemptQuiz godoc
// @Summary Start a fresh attempt
// @Description Clears answers and cached shuffles, keeps the attempt history, and advances the attempt number.
// @Tags workspace
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Param   stageId path int true "stage id"
// @Success 200 {object} util.Response{data=service.StageState}
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response "not a quiz stage"
// @Router /api/courses/{courseId}/stages/{stageId}/reattempt [post]
func (c *WorkspaceController) ReattemptQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	stageID, ok := pathID(ctx, "stageId")
	if !ok {
		return
	}

	state, err := c.AttemptService.Reattempt(ctx.Request.Context(), claims.UserID, courseID, stageID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, state)
}
