package app

import (
	"edu_practice_backend/docs"
	"edu_practice_backend/internal/config"
	"edu_practice_backend/internal/middleware"
	"edu_practice_backend/internal/model"
	"edu_practice_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	// 接口注解中的路径已带 /api 前缀
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 学生/通用 授权接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/auth/verify", c.auth.Verify)

	problems := group.Group("/problems")
	{
		problems.GET("", c.problem.ListProblems)
		problems.GET("/:id", c.problem.GetProblem)
		problems.POST("/:id/submit", c.problem.SubmitAnswer)
	}

	tests := group.Group("/tests")
	{
		tests.GET("", c.test.ListTests)
		tests.GET("/completed", c.test.ListCompleted)
		tests.GET("/:id", c.test.GetTest)
		tests.POST("/:id/submit", c.test.SubmitTest)
		tests.GET("/:id/result", c.test.GetResult)
	}

	profile := group.Group("/profile")
	{
		profile.GET("/info", c.profile.GetInfo)
		profile.PUT("/info", c.profile.UpdateInfo)
		profile.POST("/avatar", c.profile.UploadAvatar)
		profile.GET("/statistics", c.profile.GetStatistics)
		profile.POST("/study-sessions", c.profile.RecordStudySession)
		profile.GET("/activity", c.profile.Activity)
		profile.GET("/knowledge_status", c.profile.KnowledgeStatus)
		profile.GET("/difficulty_distribution", c.profile.DifficultyDistribution)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/problems", c.problem.CreateProblem)
		teacher.POST("/tests", c.test.CreateTest)
		teacher.GET("/tests/:id/statistics", c.statistics.GetStatistics)
		teacher.POST("/tests/:id/statistics/refresh", c.statistics.RefreshStatistics)
		teacher.POST("/tests/statistics/refresh-all", c.statistics.RefreshAll)
	}
}
