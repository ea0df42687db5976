package app

import (
	"context"
	"edu_practice_backend/internal/config"
	"edu_practice_backend/internal/controller"
	"edu_practice_backend/internal/middleware"
	"edu_practice_backend/internal/repository"
	"edu_practice_backend/internal/service"
	"edu_practice_backend/internal/util"
	"edu_practice_backend/pkg/configwatcher"
	"edu_practice_backend/pkg/database"
	"edu_practice_backend/pkg/logger"
	"edu_practice_backend/pkg/monitoring"
	"edu_practice_backend/pkg/security"
	"edu_practice_backend/pkg/tracing"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	cron            *cron.Cron
	shutdownTracer  func(context.Context) error
	stop            chan struct{}
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	problem    *repository.ProblemRepository
	test       *repository.TestRepository
	submission *repository.SubmissionRepository
	statistics *repository.StatisticsRepository
	study      *repository.StudyRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	user       *service.UserService
	problem    *service.ProblemService
	test       *service.TestService
	statistics *service.TestStatisticsService
	progress   *service.ProgressService
}

type controllers struct {
	auth       *controller.AuthController
	problem    *controller.ProblemController
	test       *controller.TestController
	statistics *controller.StatisticsController
	profile    *controller.ProfileController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		problem:    repository.NewProblemRepository(db),
		test:       repository.NewTestRepository(db),
		submission: repository.NewSubmissionRepository(db),
		statistics: repository.NewStatisticsRepository(db),
		study:      repository.NewStudyRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}
	s.auth = service.NewAuthService(repos.user, cfg)
	s.storage = service.NewStorageService(&cfg.Storage)
	s.user = service.NewUserService(repos.user, s.storage)
	s.problem = service.NewProblemService(repos.problem, repos.submission)
	s.test = service.NewTestService(repos.test, repos.problem, repos.submission)
	s.statistics = service.NewTestStatisticsService(
		repos.test,
		repos.submission,
		repos.user,
		repos.statistics,
		rdb,
		lockTTL(cfg),
	)
	s.progress = service.NewProgressService(repos.problem, repos.submission, repos.study)
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		problem:    controller.NewProblemController(s.problem),
		test:       controller.NewTestController(s.test),
		statistics: controller.NewStatisticsController(s.statistics),
		profile:    controller.NewProfileController(s.user, s.progress),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if cfg.RateLimit.MaxRequests > 0 && window > 0 {
		router.Use(security.RateLimit(cfg.RateLimit.MaxRequests, window, a.stop))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func lockTTL(cfg *config.Config) time.Duration {
	if cfg.Statistics.RefreshLockSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Statistics.RefreshLockSeconds) * time.Second
}

// PrepareDatabase 打开数据库并按需迁移、导入种子数据
func PrepareDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		return nil, err
	}

	// release 模式默认不迁移，需显式 -migrate
	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	if cfg.Seed {
		if cfg.Database.SeedFile == "" {
			return nil, errors.New("seed requested but database.seed_file is empty")
		}
		data, err := database.LoadSeedFile(cfg.Database.SeedFile)
		if err != nil {
			return nil, err
		}
		if err := database.Seed(db, data); err != nil {
			return nil, err
		}
		logger.Log.Info("Seed data imported", zap.String("file", cfg.Database.SeedFile))
	}
	return db, nil
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := PrepareDatabase(cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := database.InitRedis(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, err
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer("edu-practice-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.shutdownTracer = shutdown
		}
	}

	if err := app.scheduleStatisticsRefresh(); err != nil {
		return nil, err
	}

	app.RegisterConfigCallback(logger.SetLevel)
	return app, nil
}

// New 在已建立的连接上组装路由，rdb 可为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		stop:   make(chan struct{}),
	}

	if err := util.RegisterValidators(); err != nil {
		logger.Log.Error("Failed to register validators", zap.Error(err))
	}
	monitoring.Init()

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	ctrls := app.initControllers(app.services, db, rdb)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	if cfg.Storage.Type == "" || cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) scheduleStatisticsRefresh() error {
	spec := a.Config.Statistics.RefreshCron
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		views, err := a.services.statistics.RecomputeAll(ctx)
		if err != nil {
			logger.Log.Error("scheduled statistics refresh failed", zap.Error(err))
			return
		}
		logger.Log.Info("scheduled statistics refresh finished", zap.Int("tests", len(views)))
	})
	if err != nil {
		return err
	}
	a.cron = c
	return nil
}

// RegisterConfigCallback 注册配置热更新回调
func (a *App) RegisterConfigCallback(cb func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, cb)
}

// ReloadConfig 应用新配置，目前只有日志级别与统计锁过期时间支持热更新
func (a *App) ReloadConfig(newCfg *config.Config) {
	a.mu.Lock()
	a.Config.Log = newCfg.Log
	a.Config.Statistics.RefreshLockSeconds = newCfg.Statistics.RefreshLockSeconds
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	if a.services != nil {
		a.services.statistics.SetLockTTL(lockTTL(newCfg))
	}
	for _, cb := range callbacks {
		cb(a.Config)
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := configwatcher.WatchConfig(ctx, configFile, a.ReloadConfig); err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}()

	if a.cron != nil {
		a.cron.Start()
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(shutdownCtx)
	logger.Log.Info("Server exiting")
}

// Close 释放后台任务与外部连接
func (a *App) Close(ctx context.Context) {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = logger.Log.Sync()
}
