package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fibreflow/internal/database"
	"fibreflow/internal/router"
	"fibreflow/internal/services"
	"fibreflow/pkg/config"
	"fibreflow/pkg/logger"
	"fibreflow/pkg/qcontact"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting FibreFlow Ticketing Service...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseRedis(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	// 执行数据库迁移
	if err := database.Migrate(); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 创建QContact客户端（显式注入，不使用全局单例）
	qcClient, err := qcontact.NewClient(qcontact.Config{
		BaseURL:        cfg.QContact.BaseURL,
		APIKey:         cfg.QContact.APIKey,
		TimeoutSeconds: cfg.QContact.TimeoutSeconds,
		RetryAttempts:  cfg.QContact.RetryAttempts,
	})
	if err != nil {
		appLogger.Fatalf("Failed to create QContact client: %v", err)
	}

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 组装同步服务
	orchestrator := services.NewSyncOrchestrator(database.GetDB(), qcClient)
	jobLocker := services.NewRedisJobLocker(database.GetRedisClient(), cfg.Redis.Prefix)
	jobService := services.NewSyncJobService(database.GetDB(), orchestrator, jobLocker)

	// 启动同步调度器（在路由初始化前）
	syncScheduler := services.NewSyncScheduler(jobService, cfg.QContact.SyncInterval)
	services.SetGlobalSyncScheduler(syncScheduler)
	if cfg.QContact.SyncEnabled {
		if err := syncScheduler.Start(); err != nil {
			appLogger.Errorf("Failed to start sync scheduler: %v", err)
			// 不影响主服务启动
		}
		defer syncScheduler.Stop()
	} else {
		appLogger.Info("QContact scheduled sync is disabled")
	}

	// 设置路由
	r := router.SetupRouter(router.Dependencies{
		API:          qcClient,
		JobService:   jobService,
		Orchestrator: orchestrator,
	})

	// 启动服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	if err := server.Close(); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
