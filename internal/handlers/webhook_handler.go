package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"fibreflow/internal/services"
	"fibreflow/pkg/logger"
	"fibreflow/pkg/qcontact"

	"github.com/gin-gonic/gin"
)

// InboundSyncer 入站单工单同步接口
type InboundSyncer interface {
	SyncSingleTicket(ctx context.Context, remote *qcontact.Ticket) services.SyncOperationResult
}

// WebhookHandler QContact Webhook处理器
type WebhookHandler struct {
	secret  string
	inbound InboundSyncer
}

// NewWebhookHandler 创建Webhook处理器
func NewWebhookHandler(secret string, inbound InboundSyncer) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		inbound: inbound,
	}
}

// webhookEvent QContact推送的事件
type webhookEvent struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Ticket    *qcontact.Ticket `json:"ticket"`
}

// webhookResult Webhook处理结果
// 签名通过后始终返回200，处理失败通过error字段反馈
type webhookResult struct {
	Processed         bool   `json:"processed"`
	FibreFlowTicketID *uint  `json:"fibreflow_ticket_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// HandleQContactWebhook 接收QContact工单事件
// 对外契约使用真实HTTP状态码：签名不通过401，JSON非法400，其余一律200
func (h *WebhookHandler) HandleQContactWebhook(c *gin.Context) {
	log := logger.GetLogger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-QContact-Signature")) {
		log.Warn("Webhook签名校验失败")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "签名无效"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON"})
		return
	}

	log.Infof("收到QContact Webhook事件: %s", event.Event)

	result := h.processEvent(c.Request.Context(), &event)
	c.JSON(http.StatusOK, result)
}

// processEvent 按事件类型分发处理
func (h *WebhookHandler) processEvent(ctx context.Context, event *webhookEvent) webhookResult {
	switch event.Event {
	case "ticket.created", "ticket.updated", "ticket.closed", "ticket.assigned":
		if event.Ticket == nil {
			return webhookResult{Error: "事件缺少工单数据"}
		}

		opResult := h.inbound.SyncSingleTicket(ctx, event.Ticket)
		if !opResult.Success {
			return webhookResult{Error: opResult.ErrorMessage}
		}
		return webhookResult{
			Processed:         true,
			FibreFlowTicketID: opResult.TicketID,
		}
	default:
		return webhookResult{Error: "未知事件类型: " + event.Event}
	}
}

// verifySignature HMAC-SHA256签名校验，恒定时间比较
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeWebhookSignature 计算Webhook签名（调用方联调用）
func ComputeWebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
