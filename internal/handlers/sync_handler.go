package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fibreflow/internal/models"
	"fibreflow/internal/services"
	"fibreflow/pkg/pagination"
	"fibreflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SyncJobRunner 同步任务执行接口
type SyncJobRunner interface {
	RunSyncJob(ctx context.Context, opts services.FullSyncRequest) (*models.SyncJobHistory, error)
	GetSyncJobHistory(opts services.JobHistoryQuery) ([]models.SyncJobHistory, error)
	GetLastSyncJobRun() (*models.SyncJobHistory, error)
}

// SyncHandler QContact同步处理器
type SyncHandler struct {
	jobRunner    SyncJobRunner
	logService   *services.SyncLogService
	orchestrator *services.SyncOrchestrator
}

// NewSyncHandler 创建同步处理器
func NewSyncHandler(jobRunner SyncJobRunner, logService *services.SyncLogService, orchestrator *services.SyncOrchestrator) *SyncHandler {
	return &SyncHandler{
		jobRunner:    jobRunner,
		logService:   logService,
		orchestrator: orchestrator,
	}
}

// TriggerSyncRequest 手动触发同步请求
type TriggerSyncRequest struct {
	Direction string `json:"direction" binding:"omitempty,oneof=both inbound outbound"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// TriggerSync 手动触发一次同步
// 参数校验不通过时不执行任何同步动作
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorMsg := "参数验证失败"
		if validationErr, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range validationErr {
				switch fieldErr.Field() {
				case "Direction":
					errorMsg = "direction必须是 both、inbound 或 outbound"
				default:
					errorMsg = fmt.Sprintf("字段 %s 验证失败", fieldErr.Field())
				}
				break // 只返回第一个错误
			}
		}
		response.BadRequest(c, errorMsg)
		return
	}

	startDate, ok := parseSyncDate(req.StartDate)
	if !ok {
		response.BadRequest(c, "start_date格式错误")
		return
	}
	endDate, ok := parseSyncDate(req.EndDate)
	if !ok {
		response.BadRequest(c, "end_date格式错误")
		return
	}
	if startDate != nil && endDate != nil && startDate.After(*endDate) {
		response.BadRequest(c, "start_date不能晚于end_date")
		return
	}

	entry, err := h.jobRunner.RunSyncJob(c.Request.Context(), services.FullSyncRequest{
		Direction: req.Direction,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		if err == services.ErrSyncJobRunning {
			response.Conflict(c, err.Error())
			return
		}
		// 任务失败时仍返回历史记录，便于排查
		if entry != nil {
			response.SuccessWithMessage(c, "同步执行失败", entry)
			return
		}
		response.ServerError(c, "执行同步失败")
		return
	}

	response.Success(c, entry)
}

// GetSyncStatus 同步健康概览
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	status, err := h.logService.GetSyncStatus()
	if err != nil {
		response.ServerError(c, "获取同步状态失败")
		return
	}
	response.Success(c, status)
}

// GetSyncProgress 最近24小时同步进度
func (h *SyncHandler) GetSyncProgress(c *gin.Context) {
	progress, err := h.orchestrator.GetSyncProgress(c.Request.Context())
	if err != nil {
		response.ServerError(c, "获取同步进度失败")
		return
	}
	response.Success(c, progress)
}

// ListSyncLogs 查询同步日志
func (h *SyncHandler) ListSyncLogs(c *gin.Context) {
	params := pagination.ParsePageParams(c)

	filter := services.SyncLogFilter{
		QContactTicketID: c.Query("qcontact_ticket_id"),
		SyncDirection:    c.Query("direction"),
		SyncType:         c.Query("sync_type"),
		Status:           c.Query("status"),
	}

	if ticketID := c.Query("ticket_id"); ticketID != "" {
		id, err := strconv.ParseUint(ticketID, 10, 32)
		if err != nil {
			response.BadRequest(c, "无效的工单ID")
			return
		}
		uid := uint(id)
		filter.TicketID = &uid
	}

	if startDate, ok := parseSyncDate(c.Query("start_date")); ok {
		filter.StartDate = startDate
	}
	if endDate, ok := parseSyncDate(c.Query("end_date")); ok {
		filter.EndDate = endDate
	}

	result, err := h.logService.ListSyncLogs(filter, params.GetOffset(), params.GetLimit())
	if err != nil {
		response.ServerError(c, "查询同步日志失败")
		return
	}

	pageInfo := pagination.NewPageInfo(params.Page, params.PageSize, result.Total)
	response.SuccessWithPage(c, result, pageInfo)
}

// GetSyncJobHistory 查询任务历史
func (h *SyncHandler) GetSyncJobHistory(c *gin.Context) {
	query := services.JobHistoryQuery{
		Status: c.Query("status"),
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			response.BadRequest(c, "无效的limit")
			return
		}
		query.Limit = n
	}
	if startDate, ok := parseSyncDate(c.Query("start_date")); ok {
		query.StartDate = startDate
	}
	if endDate, ok := parseSyncDate(c.Query("end_date")); ok {
		query.EndDate = endDate
	}

	histories, err := h.jobRunner.GetSyncJobHistory(query)
	if err != nil {
		response.ServerError(c, "查询任务历史失败")
		return
	}
	response.Success(c, histories)
}

// GetLastSyncJobRun 最近一次任务执行记录
func (h *SyncHandler) GetLastSyncJobRun(c *gin.Context) {
	entry, err := h.jobRunner.GetLastSyncJobRun()
	if err != nil {
		response.ServerError(c, "查询任务历史失败")
		return
	}
	if entry == nil {
		response.SuccessWithMessage(c, "尚无同步任务记录", nil)
		return
	}
	response.Success(c, entry)
}

// parseSyncDate 解析日期参数，支持RFC3339和YYYY-MM-DD
func parseSyncDate(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, true
	}
	return nil, false
}
