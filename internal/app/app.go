package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"superr_bounty_backend/internal/config"
	"superr_bounty_backend/internal/controller"
	"superr_bounty_backend/internal/live"
	"superr_bounty_backend/internal/repository"
	"superr_bounty_backend/internal/service"
	"superr_bounty_backend/pkg/database"
	"superr_bounty_backend/pkg/logger"
	"superr_bounty_backend/pkg/monitoring"
	"superr_bounty_backend/pkg/security"
	"superr_bounty_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user    *repository.UserRepository
	class   *repository.SubjectClassRepository
	session *repository.SessionRepository
	deck    *repository.DeckRepository
	card    *repository.CardRepository
}

type services struct {
	auth        *service.AuthService
	class       *service.ClassService
	session     *service.SessionService
	deck        *service.DeckService
	card        *service.CardService
	storage     *service.StorageService
	liveSession *service.LiveSessionService
	liveHub     *service.LiveHub
	tree        live.Tree
}

type controllers struct {
	auth    *controller.AuthController
	class   *controller.ClassController
	session *controller.SessionController
	deck    *controller.DeckController
	card    *controller.CardController
	live    *controller.LiveController
	health  *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		class:   repository.NewSubjectClassRepository(db),
		session: repository.NewSessionRepository(db),
		deck:    repository.NewDeckRepository(db),
		card:    repository.NewCardRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.class = service.NewClassService(repos.class, repos.user)
	s.session = service.NewSessionService(repos.session, repos.class, repos.deck)
	s.deck = service.NewDeckService(repos.deck, repos.card)
	s.card = service.NewCardService(repos.card)
	s.liveSession = service.NewLiveSessionService(repos.session, repos.class, repos.deck, repos.card, repos.user)

	// 会话树：单实例用内存树，多实例用 Redis 树
	if cfg.Live.Tree == "memory" {
		s.tree = live.NewMemoryTree()
	} else {
		s.tree = live.NewRedisTree(rdb)
	}
	s.liveHub = service.NewLiveHub(live.NewManager(s.tree, s.liveSession))

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		class:   controller.NewClassController(s.class),
		session: controller.NewSessionController(s.session, s.auth),
		deck:    controller.NewDeckController(s.deck),
		card:    controller.NewCardController(s.card, s.storage),
		live:    controller.NewLiveController(s.liveHub, s.liveSession, s.auth, s.tree),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	monitoring.Init()

	router := gin.Default()
	app.Router = router
	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("superr-bounty", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// ApplyConfig 配置热更新入口。监听、数据库等需要重启才生效，这里只替换线上可切换的部分
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config.JWT = cfg.JWT
	a.Config.CORS = cfg.CORS
	a.Config.RateLimit = cfg.RateLimit
	logger.Log.Info("Config reloaded",
		zap.Int("rate_limit_max_requests", cfg.RateLimit.MaxRequests),
		zap.Strings("cors_allowed_origins", cfg.CORS.AllowedOrigins))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 直播连接先收尾，学生转离席、订阅句柄关闭
	if a.services != nil && a.services.liveHub != nil {
		a.services.liveHub.Stop()
	}
	if a.services != nil {
		if rt, ok := a.services.tree.(*live.RedisTree); ok {
			rt.Stop()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
