// Package app 提供应用程序的装配与生命周期管理.
//
// 装配顺序：配置 → 日志/追踪/指标 → 存储连接 → 业务服务 → 路由与中间件.
// 运行时由 errgroup 监督三个长生命周期组件：HTTP 服务、上传通知消费者、
// 定时任务调度器，任一失败或收到退出信号时整体优雅关停.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/ingestvault/pkg/cache"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/consumer"
	"github.com/yeisme/ingestvault/pkg/internal/handle"
	"github.com/yeisme/ingestvault/pkg/internal/jobs"
	"github.com/yeisme/ingestvault/pkg/internal/router"
	"github.com/yeisme/ingestvault/pkg/internal/service"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/middleware"
	"github.com/yeisme/ingestvault/pkg/rule"
	"github.com/yeisme/ingestvault/pkg/scheduler"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// App 持有装配完成的全部组件.
type App struct {
	Engine   *gin.Engine
	config   *configs.AppConfig
	storage  *storage.Manager
	consumer *consumer.Consumer
	sched    *scheduler.Scheduler
}

// NewApp 按配置装配应用，任何一步失败直接退出进程.
func NewApp(configPath string) *App {
	ctx := context.Background()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	config := configs.GetConfig()

	if err := rule.ValidateStruct(config); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	var registry = metrics.GetRegistry()
	if !config.Metrics.Enabled {
		registry = nil
	}

	manager, err := storage.NewManager(ctx, config, registry)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	// 业务服务装配
	var pub = manager.MQ.Publisher()
	if !config.Events.Enabled {
		pub = nil
	}

	ingestSvc := service.NewIngestService(manager.S3, manager.Catalog, pub, config.Pipeline, config.Events.Object)
	querySvc := service.NewQueryService(manager.Catalog, config.Pipeline.ListLimit)

	var listCache *cache.Cache
	if config.Pipeline.ListCacheTTL() > 0 {
		listCache = cache.NewCache(manager.KV)
	}

	// 定时任务
	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error initializing scheduler: %v\n", err)
		os.Exit(1)
	}

	reconciler := jobs.NewReconciler(manager.S3, manager.Catalog, pub, config.Pipeline)
	if err := jobs.RegisterCronJobs(sched, reconciler, config.Pipeline.Reconcile); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	fileHandlers := handle.NewFileHandlers(querySvc, listCache, config.Pipeline.ListCacheTTL())
	healthHandlers := handle.NewHealthHandlers(manager, sched)

	// 路由与中间件
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
	)

	if config.RateLimit.Enabled {
		engine.Use(middleware.RateLimitMiddleware(config.RateLimit))
	}

	if config.CircuitBreaker.Enabled {
		engine.Use(middleware.CircuitBreakerMiddleware(config.CircuitBreaker))
	}

	router.RegisterFiles(engine.Group("/files"), fileHandlers)
	router.RegisterHealth(engine, healthHandlers)
	router.RegisterNoRoute(engine)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	// 上传通知消费者
	cons := consumer.New(manager.MQ, ingestSvc)

	return &App{
		Engine:   engine,
		config:   config,
		storage:  manager,
		consumer: cons,
		sched:    sched,
	}
}

// Run 启动全部组件并阻塞，直到出错或收到 SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	g.Go(func() error {
		log.Logger().Info().Str("addr", srv.Addr).Msg("HTTP server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		err := a.consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	a.sched.Start()

	// 关停协调：任一组件退出后收尾其余组件
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Logger().Warn().Err(err).Msg("http shutdown")
		}

		if err := a.sched.Stop(); err != nil {
			log.Logger().Warn().Err(err).Msg("scheduler shutdown")
		}

		if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
			log.Logger().Warn().Err(err).Msg("tracer shutdown")
		}

		a.storage.Close()

		return nil
	})

	err := g.Wait()

	log.Logger().Info().Msg("ingestvault stopped")

	return err
}
