package app

import (
	"superr_bounty_backend/docs"
	"superr_bounty_backend/internal/config"
	"superr_bounty_backend/internal/middleware"
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.Profile)

		// 班级
		authGroup.GET("/classes/:id", c.class.Get)
		authGroup.GET("/classes/:id/roster", c.class.Roster)
		authGroup.GET("/classes/:id/sessions", c.session.ListByClass)

		// 会话
		authGroup.GET("/sessions", c.session.List)
		authGroup.GET("/sessions/buckets", c.session.Buckets)
		authGroup.GET("/sessions/:id", c.session.Get)
		authGroup.POST("/sessions/:id/verify-code", c.session.VerifyCode)
		authGroup.POST("/sessions/join", c.session.JoinByCode)

		// 直播
		authGroup.GET("/sessions/:id/live/ws", c.live.ServeWs)
		authGroup.POST("/sessions/:id/live/move", c.live.Move)
		authGroup.POST("/sessions/:id/live/submit", c.live.Submit)
		authGroup.POST("/sessions/:id/live/hand", c.live.RaiseHand)
		authGroup.DELETE("/sessions/:id/live/hand", c.live.LowerHand)
		authGroup.DELETE("/sessions/:id/live/hands/:studentId", c.live.ResolveHand)
		authGroup.DELETE("/sessions/:id/live/hands", c.live.ResolveAllHands)

		// 教师专属
		teacher := authGroup.Group("")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/classes", c.class.Create)
			teacher.GET("/classes", c.class.List)
			teacher.PUT("/classes/:id", c.class.Update)
			teacher.POST("/classes/:id/students", c.class.Enroll)

			teacher.POST("/sessions", c.session.Create)
			teacher.PUT("/sessions/:id", c.session.Update)
			teacher.DELETE("/sessions/:id", c.session.Delete)
			teacher.POST("/sessions/:id/decks", c.session.AddDeck)
			teacher.DELETE("/sessions/:id/decks/:deckId", c.session.RemoveDeck)
			teacher.POST("/sessions/:id/start", c.session.StartLive)
			teacher.POST("/sessions/:id/end", c.session.EndLive)

			teacher.POST("/decks", c.deck.Create)
			teacher.GET("/decks", c.deck.List)
			teacher.GET("/decks/:id", c.deck.Get)
			teacher.PUT("/decks/:id", c.deck.Update)
			teacher.DELETE("/decks/:id", c.deck.Delete)
			teacher.POST("/decks/:id/cards", c.deck.AddCard)
			teacher.DELETE("/decks/:id/cards/:cardId", c.deck.RemoveCard)

			teacher.POST("/cards", c.card.Create)
			teacher.GET("/cards", c.card.List)
			teacher.GET("/cards/:id", c.card.Get)
			teacher.PUT("/cards/:id", c.card.Update)
			teacher.DELETE("/cards/:id", c.card.Delete)
			teacher.POST("/cards/:id/media", c.card.UploadMedia)
		}
	}
}
