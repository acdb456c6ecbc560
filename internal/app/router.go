package app

import (
	"stackcommunity_backend/docs"
	"stackcommunity_backend/internal/config"
	"stackcommunity_backend/internal/middleware"
	"stackcommunity_backend/internal/model"
	"stackcommunity_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 可选登录的浏览接口
	a.registerBrowseRoutes(router, c, repos, cfg)

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerMemberRoutes(authGroup, c)
	}

	// 4. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		public.GET("/users/:username", c.user.GetUser)
		public.GET("/users/:username/badges", c.achievement.GetUserBadges)
		public.GET("/users/:username/points", c.achievement.GetUserPoints)
		public.GET("/leaderboard", c.achievement.GetLeaderboard)
	}
}

// registerBrowseRoutes 游客可访问，登录用户会记录浏览与访问
func (a *App) registerBrowseRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	browse := router.Group("/api")
	browse.Use(middleware.TryAuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		browse.GET("/questions", c.qa.GetQuestions)
		browse.GET("/questions/:id", c.qa.GetQuestion)
		browse.GET("/communities", c.community.GetCommunities)
		browse.GET("/communities/:id", c.community.GetCommunity)
	}
}

func (a *App) registerMemberRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.user.GetProfile)
	rg.PUT("/user/profile", c.user.UpdateProfile)
	rg.POST("/user/avatar/upload", c.user.UploadAvatar)

	// 问答
	rg.POST("/questions", c.qa.CreateQuestion)
	rg.POST("/questions/:id/answers", c.qa.CreateAnswer)
	rg.POST("/questions/:id/vote", c.qa.VoteQuestion)
	rg.POST("/answers/:id/accept", c.qa.AcceptAnswer)
	rg.POST("/answers/:id/vote", c.qa.VoteAnswer)

	// 社区
	rg.POST("/communities", c.community.CreateCommunity)
	rg.POST("/communities/:id/membership", c.community.ToggleMembership)
	rg.GET("/communities/:id/participants", c.community.GetParticipants)
	rg.GET("/communities/:id/streak", c.community.GetStreak)
	rg.POST("/communities/:id/icon", c.community.UploadIcon)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/users/:username/badges/dedupe", c.achievement.DeduplicateBadges)
	}
}
