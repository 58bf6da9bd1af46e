package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fibreflow/internal/models"
	"fibreflow/pkg/logger"
	"fibreflow/pkg/qcontact"

	"gorm.io/gorm"
)

// statusToQContact 本地工单状态到QContact状态
// 未映射的状态不回推，显式报错
var statusToQContact = map[string]string{
	models.TicketStatusOpen:                "open",
	models.TicketStatusAssigned:            "assigned",
	models.TicketStatusInProgress:          "in_progress",
	models.TicketStatusPendingQA:           "pending_qa",
	models.TicketStatusQAInProgress:        "qa_in_progress",
	models.TicketStatusQARejected:          "qa_rejected",
	models.TicketStatusQAApproved:          "qa_approved",
	models.TicketStatusPendingHandover:     "pending_handover",
	models.TicketStatusHandedToMaintenance: "handed_to_maintenance",
	models.TicketStatusClosed:              "closed",
	models.TicketStatusCancelled:           "cancelled",
}

// MapStatusToQContact 映射本地状态到QContact状态
func MapStatusToQContact(status string) (string, error) {
	mapped, ok := statusToQContact[status]
	if !ok {
		return "", fmt.Errorf("状态 %s 没有对应的QContact状态映射", status)
	}
	return mapped, nil
}

// OutboundSyncService 出站同步服务（本地 -> QContact）
type OutboundSyncService struct {
	api     QContactAPI
	tickets TicketStore
	logs    SyncLogStore
}

// NewOutboundSyncService 创建出站同步服务
func NewOutboundSyncService(db *gorm.DB, api QContactAPI) *OutboundSyncService {
	return &OutboundSyncService{
		api:     api,
		tickets: NewTicketStore(db),
		logs:    NewSyncLogStore(db),
	}
}

// newOutboundSyncServiceWithStores 测试用构造函数
func newOutboundSyncServiceWithStores(api QContactAPI, tickets TicketStore, logs SyncLogStore) *OutboundSyncService {
	return &OutboundSyncService{api: api, tickets: tickets, logs: logs}
}

// PushStatusUpdate 回推工单状态变更
func (s *OutboundSyncService) PushStatusUpdate(ctx context.Context, ticketID uint, newStatus string) SyncOperationResult {
	ticket, result := s.loadTicket(ticketID)
	if ticket == nil {
		return result
	}

	mapped, err := MapStatusToQContact(newStatus)
	if err != nil {
		result.ErrorMessage = err.Error()
		s.writeOutboundLog(ticket, models.SyncTypeStatusUpdate, map[string]interface{}{"status": newStatus}, nil, result.ErrorMessage)
		return result
	}

	payload := qcontact.UpdateTicketPayload{Status: &mapped}
	updated, err := s.api.UpdateTicket(ctx, ticket.ExternalID, payload)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("回推状态失败: %v", err)
		s.writeOutboundLog(ticket, models.SyncTypeStatusUpdate, payload, nil, result.ErrorMessage)
		return result
	}

	result.Success = true
	result.SyncLogID = s.writeOutboundLog(ticket, models.SyncTypeStatusUpdate, payload, updated, "")
	s.markSynced(ticket)
	return result
}

// PushAssignment 回推工单指派
func (s *OutboundSyncService) PushAssignment(ctx context.Context, ticketID uint, userID, userName string) SyncOperationResult {
	ticket, result := s.loadTicket(ticketID)
	if ticket == nil {
		return result
	}

	payload := qcontact.UpdateTicketPayload{
		AssignedTo:   &userID,
		AssignedName: &userName,
	}
	updated, err := s.api.UpdateTicket(ctx, ticket.ExternalID, payload)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("回推指派失败: %v", err)
		s.writeOutboundLog(ticket, models.SyncTypeAssignment, payload, nil, result.ErrorMessage)
		return result
	}

	result.Success = true
	result.SyncLogID = s.writeOutboundLog(ticket, models.SyncTypeAssignment, payload, updated, "")
	s.markSynced(ticket)
	return result
}

// PushNote 回推工单备注
// 空内容直接失败，不发起网络请求
func (s *OutboundSyncService) PushNote(ctx context.Context, ticketID uint, content string, isInternal bool) SyncOperationResult {
	ticket, result := s.loadTicket(ticketID)
	if ticket == nil {
		return result
	}

	if content == "" {
		result.ErrorMessage = "备注内容不能为空"
		s.writeOutboundLog(ticket, models.SyncTypeNoteAdd, nil, nil, result.ErrorMessage)
		return result
	}

	payload := qcontact.AddNotePayload{
		Content:    content,
		IsInternal: isInternal,
	}
	note, err := s.api.AddNote(ctx, ticket.ExternalID, payload)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("回推备注失败: %v", err)
		s.writeOutboundLog(ticket, models.SyncTypeNoteAdd, payload, nil, result.ErrorMessage)
		return result
	}

	result.Success = true
	result.SyncLogID = s.writeOutboundLog(ticket, models.SyncTypeNoteAdd, payload, note, "")
	return result
}

// PushTicketClosure 回推工单关闭
// 先更新状态为closed，有备注时再追加备注
func (s *OutboundSyncService) PushTicketClosure(ctx context.Context, ticketID uint, note string) SyncOperationResult {
	result := s.PushStatusUpdate(ctx, ticketID, models.TicketStatusClosed)
	if !result.Success {
		return result
	}

	if note != "" {
		noteResult := s.PushNote(ctx, ticketID, note, false)
		if !noteResult.Success {
			// 状态已关闭，备注失败降级为部分成功
			result.ErrorMessage = noteResult.ErrorMessage
		}
	}
	return result
}

// OutboundChanges 本地工单变更集
type OutboundChanges struct {
	Status       *string `json:"status,omitempty"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
	AssignedName *string `json:"assigned_name,omitempty"`
}

// SyncOutboundUpdate 检测变更并用单次PATCH回推
func (s *OutboundSyncService) SyncOutboundUpdate(ctx context.Context, ticketID uint, changes OutboundChanges) SyncOperationResult {
	ticket, result := s.loadTicket(ticketID)
	if ticket == nil {
		return result
	}

	payload := qcontact.UpdateTicketPayload{}
	hasChanges := false

	if changes.Status != nil {
		mapped, err := MapStatusToQContact(*changes.Status)
		if err != nil {
			result.ErrorMessage = err.Error()
			s.writeOutboundLog(ticket, models.SyncTypeStatusUpdate, changes, nil, result.ErrorMessage)
			return result
		}
		payload.Status = &mapped
		hasChanges = true
	}
	if changes.AssignedTo != nil {
		payload.AssignedTo = changes.AssignedTo
		payload.AssignedName = changes.AssignedName
		hasChanges = true
	}

	if !hasChanges {
		// 没有需要回推的变更
		result.Success = true
		return result
	}

	updated, err := s.api.UpdateTicket(ctx, ticket.ExternalID, payload)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("回推工单变更失败: %v", err)
		s.writeOutboundLog(ticket, models.SyncTypeStatusUpdate, payload, nil, result.ErrorMessage)
		return result
	}

	result.Success = true
	result.SyncLogID = s.writeOutboundLog(ticket, models.SyncTypeStatusUpdate, payload, updated, "")
	s.markSynced(ticket)
	return result
}

// loadTicket 加载本地工单并处理通用前置条件
// 工单不存在返回失败结果；无外部ID返回成功空操作，都以 ticket=nil 短路
func (s *OutboundSyncService) loadTicket(ticketID uint) (*models.Ticket, SyncOperationResult) {
	result := SyncOperationResult{
		TicketID: &ticketID,
		SyncedAt: time.Now(),
	}

	ticket, err := s.tickets.GetByID(ticketID)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("查询工单失败: %v", err)
		return nil, result
	}
	if ticket == nil {
		result.ErrorMessage = fmt.Sprintf("工单 %d 不存在", ticketID)
		return nil, result
	}

	if ticket.ExternalID == "" {
		// 非QContact来源的工单无需回推
		result.Success = true
		result.ErrorMessage = "工单没有QContact外部ID，跳过回推"
		return nil, result
	}

	result.QContactTicketID = ticket.ExternalID
	return ticket, result
}

// writeOutboundLog 写出站同步日志
// 请求载荷始终记录，响应载荷只在成功时记录；日志失败不影响同步结果
func (s *OutboundSyncService) writeOutboundLog(ticket *models.Ticket, syncType string, request, response interface{}, errorMessage string) *uint {
	entry := &models.QContactSyncLog{
		TicketID:         &ticket.ID,
		QContactTicketID: ticket.ExternalID,
		SyncDirection:    models.SyncDirectionOutbound,
		SyncType:         syncType,
		Status:           models.SyncStatusSuccess,
		SyncedAt:         time.Now(),
	}

	if request != nil {
		if raw, err := json.Marshal(request); err == nil {
			entry.RequestPayload = models.JSON(raw)
		}
	}

	if errorMessage != "" {
		entry.Status = models.SyncStatusFailed
		entry.ErrorMessage = errorMessage
	} else if response != nil {
		if raw, err := json.Marshal(response); err == nil {
			entry.ResponsePayload = models.JSON(raw)
		}
	}

	if err := s.logs.Create(entry); err != nil {
		logger.GetLogger().WithError(err).Error("写出站同步日志失败")
		return nil
	}
	return &entry.ID
}

// markSynced 更新工单回推时间
func (s *OutboundSyncService) markSynced(ticket *models.Ticket) {
	if err := s.tickets.MarkSynced(ticket.ID, time.Now()); err != nil {
		logger.GetLogger().WithError(err).Errorf("更新工单 %d 同步时间失败", ticket.ID)
	}
}
