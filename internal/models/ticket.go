package models

import (
	"fmt"
	"math/rand"
	"time"

	"gorm.io/datatypes"
)

// 工单来源
const (
	TicketSourceQContact = "qcontact" // QContact同步
	TicketSourceManual   = "manual"   // 手动创建
	TicketSourceWebhook  = "webhook"  // Webhook推送
)

// 工单类型
const (
	TicketTypeMaintenance     = "maintenance"
	TicketTypeNewInstallation = "new_installation"
	TicketTypeModification    = "modification"
	TicketTypeONTSwap         = "ont_swap"
	TicketTypeIncident        = "incident"
)

// 工单优先级
const (
	TicketPriorityLow      = "low"
	TicketPriorityNormal   = "normal"
	TicketPriorityHigh     = "high"
	TicketPriorityUrgent   = "urgent"
	TicketPriorityCritical = "critical"
)

// 工单状态
const (
	TicketStatusOpen                = "open"
	TicketStatusAssigned            = "assigned"
	TicketStatusInProgress          = "in_progress"
	TicketStatusPendingQA           = "pending_qa"
	TicketStatusQAInProgress        = "qa_in_progress"
	TicketStatusQARejected          = "qa_rejected"
	TicketStatusQAApproved          = "qa_approved"
	TicketStatusPendingHandover     = "pending_handover"
	TicketStatusHandedToMaintenance = "handed_to_maintenance"
	TicketStatusClosed              = "closed"
	TicketStatusCancelled           = "cancelled"
)

// Ticket 本地工单
type Ticket struct {
	BaseModel
	TicketUID  string `gorm:"size:20;uniqueIndex;not null" json:"ticket_uid"`                 // 工单编号 FT+6位数字
	Source     string `gorm:"size:20;not null;uniqueIndex:idx_source_external" json:"source"` // 来源
	ExternalID string `gorm:"size:100;uniqueIndex:idx_source_external" json:"external_id"`    // 外部系统工单ID

	// 工单内容
	Title       string `gorm:"size:500;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Type        string `gorm:"size:30;not null" json:"type"`
	Priority    string `gorm:"size:20;not null;default:normal" json:"priority"`
	Status      string `gorm:"size:30;not null;default:open" json:"status"`

	// 指派信息
	AssignedTo   string `gorm:"size:100" json:"assigned_to"`
	AssignedName string `gorm:"size:100" json:"assigned_name"`

	// 客户信息
	CustomerName  string `gorm:"size:200" json:"customer_name"`
	CustomerPhone string `gorm:"size:50" json:"customer_phone"`
	CustomerEmail string `gorm:"size:200" json:"customer_email"`
	Address       string `gorm:"type:text" json:"address"`

	// 光纤网络字段
	DRNumber   string `gorm:"size:100;index" json:"dr_number"`   // DR编号
	PoleNumber string `gorm:"size:100" json:"pole_number"`       // 电杆编号
	PONNumber  string `gorm:"size:100" json:"pon_number"`        // PON端口编号
	ProjectID  string `gorm:"size:100;index" json:"project_id"`  // 项目ID
	ZoneID     string `gorm:"size:100" json:"zone_id"`           // 区域ID

	// 扩展数据
	CustomData datatypes.JSON `gorm:"type:jsonb" json:"custom_data"`

	SyncedAt *time.Time `json:"synced_at"` // 最后同步时间
}

// TableName 指定表名
func (Ticket) TableName() string {
	return "tickets"
}

// TicketStats 工单统计
type TicketStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByType     map[string]int64 `json:"by_type"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// GenerateTicketUID 生成工单编号，格式 FT+6位数字
func GenerateTicketUID() string {
	return fmt.Sprintf("FT%06d", rand.Intn(1000000))
}

// IsValidTicketStatus 校验工单状态是否合法
func IsValidTicketStatus(status string) bool {
	switch status {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusPendingQA, TicketStatusQAInProgress, TicketStatusQARejected,
		TicketStatusQAApproved, TicketStatusPendingHandover,
		TicketStatusHandedToMaintenance, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}
