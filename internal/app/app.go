package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"stackcommunity_backend/internal/config"
	"stackcommunity_backend/internal/controller"
	"stackcommunity_backend/internal/repository"
	"stackcommunity_backend/internal/service"
	"stackcommunity_backend/pkg/configwatcher"
	"stackcommunity_backend/pkg/database"
	"stackcommunity_backend/pkg/logger"
	"stackcommunity_backend/pkg/monitoring"
	"stackcommunity_backend/pkg/security"
	"stackcommunity_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
	stopWatch       context.CancelFunc
}

type repositories struct {
	user      *repository.UserRepository
	community *repository.CommunityRepository
	question  *repository.QuestionRepository
}

type services struct {
	auth        *service.AuthService
	user        *service.UserService
	storage     *service.StorageService
	points      *service.PointsService
	badges      *service.BadgeService
	visits      *service.VisitStreakService
	leaderboard *service.LeaderboardService
	qa          *service.QAService
	community   *service.CommunityService
	rewards     service.RewardDispatcher
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	achievement *controller.AchievementController
	qa          *controller.QAController
	community   *controller.CommunityController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		community: repository.NewCommunityRepository(db),
		question:  repository.NewQuestionRepository(db),
	}
}

// newRewardDispatcher --sync-rewards 时在请求内同步执行奖励任务
func newRewardDispatcher(cfg *config.Config) service.RewardDispatcher {
	d := cfg.Gamification.Dispatcher
	if cfg.SyncRewards {
		return service.InlineDispatcher{Timeout: d.TaskTimeout}
	}
	return service.NewAsyncDispatcher(d.Workers, d.QueueSize, d.TaskTimeout)
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	g := cfg.Gamification
	s := &services{}

	s.rewards = newRewardDispatcher(cfg)
	s.storage = service.NewStorageService(&cfg.Storage)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, repos.question, s.storage)

	s.points = service.NewPointsService(repos.user, g.Points)
	s.badges = service.NewBadgeService(repos.user, repos.community, service.NewMilestoneTable(g.Milestones), g.MaxAwardRetries)
	s.visits = service.NewVisitStreakService(repos.community, rdb)
	s.leaderboard = service.NewLeaderboardService(repos.user, s.badges, rdb, g.LeaderboardLimit, g.LeaderboardTTL)

	s.qa = service.NewQAService(repos.question, repos.community, s.points, s.badges, s.rewards, rdb)
	s.community = service.NewCommunityService(repos.community, s.points, s.badges, s.visits, s.rewards, s.storage)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		user:        controller.NewUserController(s.user),
		achievement: controller.NewAchievementController(s.badges, s.points, s.leaderboard),
		qa:          controller.NewQAController(s.qa),
		community:   controller.NewCommunityController(s.community),
		health:      controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// applyGamificationConfig 配置热更新时替换积分与里程碑表，不需要重启
func (a *App) applyGamificationConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logger.Log.Warn("Ignoring invalid gamification config", zap.Error(err))
		return
	}
	a.services.points.SetAmounts(cfg.Gamification.Points)
	a.services.badges.SetMilestones(service.NewMilestoneTable(cfg.Gamification.Milestones))
	logger.Log.Info("Gamification config applied",
		zap.Int("question", cfg.Gamification.Points.Question),
		zap.Int("answer", cfg.Gamification.Points.Answer),
		zap.Int("communityJoin", cfg.Gamification.Points.CommunityJoin))
}

// newApp 由已就绪的存储组装整个应用，供 NewApp 与测试复用
func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services)

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(app.applyGamificationConfig)
	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	if rdb == nil {
		logger.Log.Warn("Redis not configured, caches and visit short-circuit disabled")
	}

	// 监控初始化
	monitoring.Init()

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app := newApp(cfg, db, rdb)
	app.tracer = tp
	app.startConfigWatcher()
	return app
}

func (a *App) startConfigWatcher() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel

	configFile := filepath.Join("configs", "config.yaml")
	go func() {
		err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
			for _, callback := range a.configCallbacks {
				callback(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.stopWatch != nil {
		a.stopWatch()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 请求处理完后再排空奖励队列
	if d, ok := a.services.rewards.(*service.AsyncDispatcher); ok {
		if err := d.Stop(ctx); err != nil {
			logger.Log.Warn("Reward queue not fully drained", zap.Error(err))
		}
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
}
