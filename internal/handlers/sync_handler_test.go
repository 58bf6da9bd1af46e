package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fibreflow/internal/models"
	"fibreflow/internal/services"
	apperrors "fibreflow/pkg/errors"

	"github.com/gin-gonic/gin"
)

// fakeJobRunner 记录调用的任务执行桩
type fakeJobRunner struct {
	runCalls int
	lastOpts services.FullSyncRequest
	runErr   error
	entry    *models.SyncJobHistory
	history  []models.SyncJobHistory
	last     *models.SyncJobHistory
}

func (f *fakeJobRunner) RunSyncJob(ctx context.Context, opts services.FullSyncRequest) (*models.SyncJobHistory, error) {
	f.runCalls++
	f.lastOpts = opts
	if f.runErr != nil {
		return f.entry, f.runErr
	}
	if f.entry == nil {
		f.entry = &models.SyncJobHistory{JobID: "job-1", Status: models.SyncJobStatusSuccess}
	}
	return f.entry, nil
}

func (f *fakeJobRunner) GetSyncJobHistory(opts services.JobHistoryQuery) ([]models.SyncJobHistory, error) {
	return f.history, nil
}

func (f *fakeJobRunner) GetLastSyncJobRun() (*models.SyncJobHistory, error) {
	return f.last, nil
}

func newSyncRouter(runner *fakeJobRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewSyncHandler(runner, nil, nil)
	router.POST("/api/v1/ticketing/sync/qcontact", handler.TriggerSync)
	router.GET("/api/v1/ticketing/sync/qcontact/history", handler.GetSyncJobHistory)
	router.GET("/api/v1/ticketing/sync/qcontact/history/last", handler.GetLastSyncJobRun)
	return router
}

func postTrigger(router *gin.Engine, body string) (*httptest.ResponseRecorder, int) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticketing/sync/qcontact", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Code int `json:"code"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp.Code
}

func TestTriggerSyncValidDirection(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newSyncRouter(runner)

	_, code := postTrigger(router, `{"direction":"inbound"}`)
	if code != apperrors.CodeSuccess {
		t.Errorf("合法direction应该成功, code=%d", code)
	}
	if runner.runCalls != 1 {
		t.Errorf("应该执行一次任务, got %d", runner.runCalls)
	}
	if runner.lastOpts.Direction != "inbound" {
		t.Errorf("direction透传错误: %q", runner.lastOpts.Direction)
	}
}

func TestTriggerSyncInvalidDirection(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newSyncRouter(runner)

	_, code := postTrigger(router, `{"direction":"sideways"}`)
	if code != apperrors.CodeInvalidParam {
		t.Errorf("非法direction应该返回参数错误, code=%d", code)
	}
	if runner.runCalls != 0 {
		t.Errorf("校验失败不应该执行任务, got %d", runner.runCalls)
	}
}

func TestTriggerSyncInvalidDateRange(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newSyncRouter(runner)

	_, code := postTrigger(router, `{"start_date":"2026-08-20","end_date":"2026-08-10"}`)
	if code != apperrors.CodeInvalidParam {
		t.Errorf("start>end应该返回参数错误, code=%d", code)
	}
	if runner.runCalls != 0 {
		t.Errorf("校验失败不应该执行任务, got %d", runner.runCalls)
	}
}

func TestTriggerSyncBadDateFormat(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newSyncRouter(runner)

	_, code := postTrigger(router, `{"start_date":"not-a-date"}`)
	if code != apperrors.CodeInvalidParam {
		t.Errorf("非法日期应该返回参数错误, code=%d", code)
	}
	if runner.runCalls != 0 {
		t.Errorf("校验失败不应该执行任务, got %d", runner.runCalls)
	}
}

func TestTriggerSyncDateParsing(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newSyncRouter(runner)

	_, code := postTrigger(router, `{"start_date":"2026-08-01","end_date":"2026-08-28T10:00:00Z"}`)
	if code != apperrors.CodeSuccess {
		t.Errorf("两种日期格式都应该支持, code=%d", code)
	}
	if runner.lastOpts.StartDate == nil || runner.lastOpts.EndDate == nil {
		t.Error("日期应该透传给任务")
	}
}

func TestTriggerSyncBusy(t *testing.T) {
	runner := &fakeJobRunner{runErr: services.ErrSyncJobRunning}
	router := newSyncRouter(runner)

	_, code := postTrigger(router, `{}`)
	if code != apperrors.CodeConflict {
		t.Errorf("任务互斥应该返回冲突, code=%d", code)
	}
}

func TestGetLastSyncJobRunEmpty(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newSyncRouter(runner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ticketing/sync/qcontact/history/last", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("空历史应该返回200, got %d", w.Code)
	}

	var resp struct {
		Code int         `json:"code"`
		Data interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Code != apperrors.CodeSuccess {
		t.Errorf("code=%d", resp.Code)
	}
	if resp.Data != nil {
		t.Errorf("空历史data应该为空: %v", resp.Data)
	}
}

func TestGetSyncJobHistory(t *testing.T) {
	runner := &fakeJobRunner{
		history: []models.SyncJobHistory{
			{JobID: "job-2", Status: models.SyncJobStatusSuccess},
			{JobID: "job-1", Status: models.SyncJobStatusFailed},
		},
	}
	router := newSyncRouter(runner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ticketing/sync/qcontact/history?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Code int                     `json:"code"`
		Data []models.SyncJobHistory `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].JobID != "job-2" {
		t.Errorf("历史返回错误: %+v", resp.Data)
	}
}
