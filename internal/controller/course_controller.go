package controller

import (
	"github.com/evanightly/pedavue-sub000/internal/service"
	"github.com/evanightly/pedavue-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// ListCourses godoc
// @Summary List courses with enrollment progress
// @Tags courses
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.CourseListing}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	listings, err := c.CourseService.ListCourses(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, listings)
}

// GetCourse godoc
// @Summary Course summary with enrollment progress
// @Tags courses
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Success 200 {object} util.Response{data=service.CourseListing}
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	listing, err := c.CourseService.GetCourse(claims.UserID, courseID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Success(ctx, listing)
}

// Enroll godoc
// @Summary Enroll the current user in a course
// @Tags courses
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "course id"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	enrollment, err := c.CourseService.Enroll(claims.UserID, courseID)
	if err != nil {
		respondWorkspaceError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}
