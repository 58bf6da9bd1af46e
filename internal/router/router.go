package router

import (
	"time"

	"fibreflow/internal/database"
	"fibreflow/internal/handlers"
	"fibreflow/internal/middleware"
	"fibreflow/internal/services"
	"fibreflow/pkg/config"
	"fibreflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由依赖，由main显式注入
type Dependencies struct {
	API          services.QContactAPI
	JobService   *services.SyncJobService
	Orchestrator *services.SyncOrchestrator
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	cfg := config.GetConfig()
	db := database.GetDB()

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 工单路由
		ticketHandler := handlers.NewTicketHandler(services.NewTicketService(db))
		tickets := api.Group("/tickets")
		{
			tickets.GET("", ticketHandler.List)
			tickets.GET("/stats", ticketHandler.GetStats)
			tickets.GET("/:id", ticketHandler.GetByID)
		}

		// QContact同步路由
		syncHandler := handlers.NewSyncHandler(
			deps.JobService,
			services.NewSyncLogService(db),
			deps.Orchestrator,
		)
		ticketing := api.Group("/ticketing")
		{
			// Webhook（签名校验代替登录认证）
			webhookHandler := handlers.NewWebhookHandler(
				cfg.QContact.WebhookSecret,
				services.NewInboundSyncService(db, deps.API),
			)
			ticketing.POST("/webhooks/qcontact", webhookHandler.HandleQContactWebhook)

			sync := ticketing.Group("/sync/qcontact")
			{
				sync.POST("", syncHandler.TriggerSync)
				sync.GET("/status", syncHandler.GetSyncStatus)
				sync.GET("/progress", syncHandler.GetSyncProgress)
				sync.GET("/log", syncHandler.ListSyncLogs)
				sync.GET("/history", syncHandler.GetSyncJobHistory)
				sync.GET("/history/last", syncHandler.GetLastSyncJobRun)
			}
		}

		// WebSocket路由
		wsHandler := handlers.NewWebSocketHandler(deps.Orchestrator)
		api.GET("/ws/sync/progress", wsHandler.SyncProgress)
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "FibreFlow",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
