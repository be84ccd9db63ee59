package app

import (
	"github.com/evanightly/pedavue-sub000/docs"
	"github.com/evanightly/pedavue-sub000/internal/config"
	"github.com/evanightly/pedavue-sub000/internal/middleware"
	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		authGroup.GET("/courses", c.course.ListCourses)
		authGroup.GET("/courses/:courseId", c.course.GetCourse)
		authGroup.POST("/courses/:courseId/enroll", middleware.RoleMiddleware(model.Student), c.course.Enroll)

		authGroup.GET("/courses/:courseId/workspace", c.workspace.GetOverview)
		authGroup.GET("/courses/:courseId/stages/:stageId", c.workspace.GetStage)
		authGroup.POST("/courses/:courseId/stages/:stageId/complete", c.workspace.CompleteStage)
		authGroup.POST("/courses/:courseId/stages/:stageId/draft", c.workspace.SaveDraft)
		authGroup.POST("/courses/:courseId/stages/:stageId/submit", c.workspace.SubmitQuiz)
		authGroup.POST("/courses/:courseId/stages/:stageId/reattempt", c.workspace.ReattemptQuiz)
	}
}
