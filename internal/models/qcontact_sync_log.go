package models

import (
	"time"
)

// 同步方向
const (
	SyncDirectionInbound  = "inbound"  // QContact -> 本地
	SyncDirectionOutbound = "outbound" // 本地 -> QContact
	SyncDirectionBoth     = "both"     // 双向，仅用于full_sync汇总
)

// 同步类型
const (
	SyncTypeCreate       = "create"
	SyncTypeStatusUpdate = "status_update"
	SyncTypeAssignment   = "assignment"
	SyncTypeNoteAdd      = "note_add"
	SyncTypeFullSync     = "full_sync"
)

// 同步状态
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusPartial = "partial"
)

// QContactSyncLog QContact同步日志（只追加）
type QContactSyncLog struct {
	ID               uint   `gorm:"primarykey" json:"id"`
	TicketID         *uint  `gorm:"index" json:"ticket_id"`                          // 本地工单ID
	QContactTicketID string `gorm:"size:100;index" json:"qcontact_ticket_id"`        // QContact工单ID
	SyncDirection    string `gorm:"size:20;not null;index" json:"sync_direction"`    // inbound/outbound/both
	SyncType         string `gorm:"size:30;not null" json:"sync_type"`               // create/status_update/assignment/note_add/full_sync
	Status           string `gorm:"size:20;not null;index" json:"status"`            // success/failed/partial

	// 请求响应快照
	RequestPayload  JSON `gorm:"type:jsonb" json:"request_payload"`
	ResponsePayload JSON `gorm:"type:jsonb" json:"response_payload"`

	ErrorMessage string    `gorm:"type:text" json:"error_message"`
	SyncedAt     time.Time `gorm:"not null;index" json:"synced_at"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (QContactSyncLog) TableName() string {
	return "qcontact_sync_logs"
}
