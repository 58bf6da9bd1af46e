package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fibreflow/internal/services"
	"fibreflow/pkg/qcontact"

	"github.com/gin-gonic/gin"
)

const testWebhookSecret = "test-secret"

// fakeInbound 记录调用的入站同步桩
type fakeInbound struct {
	calls  int
	result services.SyncOperationResult
}

func (f *fakeInbound) SyncSingleTicket(ctx context.Context, remote *qcontact.Ticket) services.SyncOperationResult {
	f.calls++
	return f.result
}

func newWebhookRouter(inbound *fakeInbound) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewWebhookHandler(testWebhookSecret, inbound)
	router.POST("/api/v1/ticketing/webhooks/qcontact", handler.HandleQContactWebhook)
	return router
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticketing/webhooks/qcontact", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-QContact-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookValidSignature(t *testing.T) {
	ticketID := uint(42)
	inbound := &fakeInbound{result: services.SyncOperationResult{Success: true, TicketID: &ticketID}}
	router := newWebhookRouter(inbound)

	body := []byte(`{"event":"ticket.created","ticket":{"id":"QC-001","title":"新工单"}}`)
	w := postWebhook(router, body, ComputeWebhookSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("状态码应该是200, got %d: %s", w.Code, w.Body.String())
	}
	if inbound.calls != 1 {
		t.Errorf("应该调用一次入站同步, got %d", inbound.calls)
	}

	var resp webhookResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if !resp.Processed {
		t.Error("processed应该为true")
	}
	if resp.FibreFlowTicketID == nil || *resp.FibreFlowTicketID != 42 {
		t.Errorf("fibreflow_ticket_id错误: %v", resp.FibreFlowTicketID)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	inbound := &fakeInbound{}
	router := newWebhookRouter(inbound)

	body := []byte(`{"event":"ticket.created","ticket":{"id":"QC-001"}}`)

	w := postWebhook(router, body, "deadbeef")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("签名错误应该返回401, got %d", w.Code)
	}

	w = postWebhook(router, body, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("缺少签名应该返回401, got %d", w.Code)
	}

	if inbound.calls != 0 {
		t.Errorf("签名不通过不应该触发同步, got %d", inbound.calls)
	}
}

func TestWebhookBadJSON(t *testing.T) {
	inbound := &fakeInbound{}
	router := newWebhookRouter(inbound)

	body := []byte(`{not json`)
	w := postWebhook(router, body, ComputeWebhookSignature(testWebhookSecret, body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("非法JSON应该返回400, got %d", w.Code)
	}
}

func TestWebhookSyncFailureStill200(t *testing.T) {
	inbound := &fakeInbound{result: services.SyncOperationResult{Success: false, ErrorMessage: "db down"}}
	router := newWebhookRouter(inbound)

	body := []byte(`{"event":"ticket.updated","ticket":{"id":"QC-001","title":"t"}}`)
	w := postWebhook(router, body, ComputeWebhookSignature(testWebhookSecret, body))

	// 签名通过后处理失败也返回200，错误放在响应体里
	if w.Code != http.StatusOK {
		t.Fatalf("处理失败也应该返回200, got %d", w.Code)
	}

	var resp webhookResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Processed {
		t.Error("processed应该为false")
	}
	if resp.Error != "db down" {
		t.Errorf("error字段错误: %q", resp.Error)
	}
}

func TestWebhookUnknownEvent(t *testing.T) {
	inbound := &fakeInbound{}
	router := newWebhookRouter(inbound)

	body := []byte(`{"event":"ticket.mystery","ticket":{"id":"QC-001"}}`)
	w := postWebhook(router, body, ComputeWebhookSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("未知事件也应该返回200, got %d", w.Code)
	}
	if inbound.calls != 0 {
		t.Errorf("未知事件不应该触发同步, got %d", inbound.calls)
	}
}

func TestWebhookMissingTicketPayload(t *testing.T) {
	inbound := &fakeInbound{}
	router := newWebhookRouter(inbound)

	body := []byte(`{"event":"ticket.created"}`)
	w := postWebhook(router, body, ComputeWebhookSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("缺少工单数据应该返回200, got %d", w.Code)
	}
	if inbound.calls != 0 {
		t.Errorf("缺少工单数据不应该触发同步, got %d", inbound.calls)
	}
}
