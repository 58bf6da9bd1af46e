package models

import (
	"time"
)

// 同步任务状态
const (
	SyncJobStatusSuccess = "success"
	SyncJobStatusFailed  = "failed"
	SyncJobStatusPartial = "partial"
)

// 同步方向选项
const (
	SyncJobDirectionBoth     = "both"
	SyncJobDirectionInbound  = "inbound"
	SyncJobDirectionOutbound = "outbound"
)

// SyncJobHistory 后台同步任务执行历史
// 只由任务执行器写入，每次执行恰好一条记录
type SyncJobHistory struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	JobID           string     `gorm:"size:40;uniqueIndex;not null" json:"job_id"` // 任务唯一ID
	StartedAt       time.Time  `gorm:"not null;index" json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	Status          string     `gorm:"size:20;not null;index" json:"status"` // success/failed/partial

	// 各方向统计
	InboundProcessed  int `json:"inbound_processed"`
	InboundCreated    int `json:"inbound_created"`
	InboundUpdated    int `json:"inbound_updated"`
	InboundFailed     int `json:"inbound_failed"`
	OutboundProcessed int `json:"outbound_processed"`
	OutboundFailed    int `json:"outbound_failed"`

	SuccessRate float64 `json:"success_rate"`

	// 执行参数和结果快照
	SyncOptions JSON `gorm:"type:jsonb" json:"sync_options"`
	SyncResult  JSON `gorm:"type:jsonb" json:"sync_result"`

	ErrorMessage string `gorm:"type:text" json:"error_message"`
	ErrorCode    string `gorm:"size:50" json:"error_code"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (SyncJobHistory) TableName() string {
	return "sync_job_histories"
}
