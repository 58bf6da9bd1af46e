package handlers

import (
	"net/http"
	"strings"
	"time"

	"fibreflow/internal/services"
	"fibreflow/pkg/config"
	"fibreflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const progressPushInterval = 5 * time.Second

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	orchestrator *services.SyncOrchestrator
	log          *logrus.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(orchestrator *services.SyncOrchestrator) *WebSocketHandler {
	cfg := config.GetConfig()
	allowedOrigins := cfg.CORS.AllowOrigins

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				for _, allowed := range allowedOrigins {
					if allowed == "*" {
						return true
					}
				}

				// 同源请求没有Origin头
				if origin == "" {
					return true
				}

				for _, allowed := range allowedOrigins {
					if matchOrigin(origin, allowed) {
						return true
					}
				}

				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		orchestrator: orchestrator,
		log:          logger.GetLogger(),
	}
}

// SyncProgress 推送同步进度
// 每5秒推送一次最近24小时的汇总，客户端断开即停止
func (h *WebSocketHandler) SyncProgress(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("WebSocket升级失败")
		return
	}
	defer conn.Close()

	h.log.Info("同步进度WebSocket连接建立")

	// 读goroutine只用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	// 建连后立即推一次
	if !h.pushProgress(conn, c) {
		return
	}

	for {
		select {
		case <-done:
			h.log.Info("同步进度WebSocket连接关闭")
			return
		case <-ticker.C:
			if !h.pushProgress(conn, c) {
				return
			}
		}
	}
}

// pushProgress 推送一次进度，返回false表示连接已不可用
func (h *WebSocketHandler) pushProgress(conn *websocket.Conn, c *gin.Context) bool {
	progress, err := h.orchestrator.GetSyncProgress(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("获取同步进度失败")
		return true
	}

	if err := conn.WriteJSON(progress); err != nil {
		return false
	}
	return true
}

// matchOrigin 检查Origin是否匹配允许规则，支持 *.example.com 通配
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if strings.HasPrefix(allowed, "*.") {
		suffix := strings.TrimPrefix(allowed, "*")
		return strings.HasSuffix(origin, suffix)
	}
	return false
}
