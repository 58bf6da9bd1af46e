package services

import (
	"encoding/json"
	"time"

	"fibreflow/internal/models"
)

// SyncOperationResult 单次同步操作结果
// 同步失败不抛出，以失败结果返回
type SyncOperationResult struct {
	Success          bool      `json:"success"`
	SyncLogID        *uint     `json:"sync_log_id,omitempty"`
	TicketID         *uint     `json:"ticket_id,omitempty"`
	QContactTicketID string    `json:"qcontact_ticket_id,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	SyncedAt         time.Time `json:"synced_at"`
}

// SyncStats 同步统计
type SyncStats struct {
	TotalProcessed int `json:"total_processed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Partial        int `json:"partial"`
	Skipped        int `json:"skipped"`
	Created        int `json:"created"`
	Updated        int `json:"updated"`
}

// SyncError 同步错误详情
type SyncError struct {
	TicketID         *uint     `json:"ticket_id,omitempty"`
	QContactTicketID string    `json:"qcontact_ticket_id,omitempty"`
	SyncType         string    `json:"sync_type"`
	Message          string    `json:"message"`
	Recoverable      bool      `json:"recoverable"`
	Timestamp        time.Time `json:"timestamp"`
}

// SyncInboundResult 入站批量同步结果
type SyncInboundResult struct {
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
	DurationSeconds float64     `json:"duration_seconds"`
	Stats           SyncStats   `json:"stats"`
	Errors          []SyncError `json:"errors,omitempty"`
}

// FullSyncRequest 全量同步请求参数
type FullSyncRequest struct {
	Direction string     `json:"direction"` // both/inbound/outbound
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// FullSyncResult 全量同步结果
type FullSyncResult struct {
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
	DurationSeconds float64     `json:"duration_seconds"`
	InboundStats    SyncStats   `json:"inbound_stats"`
	OutboundStats   SyncStats   `json:"outbound_stats"`
	TotalSuccess    int         `json:"total_success"`
	TotalFailed     int         `json:"total_failed"`
	SuccessRate     float64     `json:"success_rate"`
	Errors          []SyncError `json:"errors,omitempty"`
}

// marshalJSON 序列化为JSONB字段值，失败返回nil
func marshalJSON(v interface{}) models.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return models.JSON(raw)
}

// SyncProgress 最近24小时同步进度汇总
type SyncProgress struct {
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	Partial     int64   `json:"partial"`
	SuccessRate float64 `json:"success_rate"`
}
