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

const (
	inboundPageSize     = 100
	inboundMaxPages     = 100
	inboundMaxErrors    = 50
	inboundDefaultState = "open"
)

// InboundSyncOptions 入站同步选项
type InboundSyncOptions struct {
	Status       string     // 默认只拉取open状态
	UpdatedAfter *time.Time // 增量同步起点
	PageSize     int
}

// InboundSyncService 入站同步服务（QContact -> 本地）
type InboundSyncService struct {
	api     QContactAPI
	tickets TicketStore
	logs    SyncLogStore
}

// NewInboundSyncService 创建入站同步服务
func NewInboundSyncService(db *gorm.DB, api QContactAPI) *InboundSyncService {
	return &InboundSyncService{
		api:     api,
		tickets: NewTicketStore(db),
		logs:    NewSyncLogStore(db),
	}
}

// newInboundSyncServiceWithStores 测试用构造函数
func newInboundSyncServiceWithStores(api QContactAPI, tickets TicketStore, logs SyncLogStore) *InboundSyncService {
	return &InboundSyncService{api: api, tickets: tickets, logs: logs}
}

// MapQContactTicket 将QContact工单映射为本地工单
// 纯函数：任意输入都能产出合法工单，未知值落到默认值
func MapQContactTicket(remote *qcontact.Ticket) *models.Ticket {
	ticket := &models.Ticket{
		TicketUID:     models.GenerateTicketUID(),
		Source:        models.TicketSourceQContact,
		ExternalID:    remote.ID,
		Title:         remote.Title,
		Description:   remote.Description,
		Type:          mapCategory(remote.Category, remote.Subcategory),
		Priority:      mapPriority(remote.Priority),
		Status:        models.TicketStatusOpen,
		AssignedTo:    remote.AssignedTo,
		CustomerName:  remote.CustomerName,
		CustomerPhone: remote.CustomerPhone,
		CustomerEmail: remote.CustomerEmail,
		Address:       remote.Address,
	}

	// 提取光纤网络自定义字段
	ticket.DRNumber = customFieldString(remote.CustomFields, "dr_number")
	ticket.PoleNumber = customFieldString(remote.CustomFields, "pole_number")
	ticket.PONNumber = customFieldString(remote.CustomFields, "pon_number")
	ticket.ProjectID = customFieldString(remote.CustomFields, "project_id")
	ticket.ZoneID = customFieldString(remote.CustomFields, "zone_id")

	// 保留原始数据快照
	if raw, err := json.Marshal(remote); err == nil {
		ticket.CustomData = raw
	}

	return ticket
}

// mapPriority QContact优先级到本地优先级
func mapPriority(priority string) string {
	switch priority {
	case "low":
		return models.TicketPriorityLow
	case "normal":
		return models.TicketPriorityNormal
	case "high":
		return models.TicketPriorityHigh
	case "urgent":
		return models.TicketPriorityUrgent
	case "critical":
		return models.TicketPriorityCritical
	default:
		return models.TicketPriorityNormal
	}
}

// mapCategory QContact分类到本地工单类型
func mapCategory(category, subcategory string) string {
	// 分类为空时退回子分类
	if category == "" {
		category = subcategory
	}
	switch category {
	case "maintenance":
		return models.TicketTypeMaintenance
	case "installation", "new_installation":
		return models.TicketTypeNewInstallation
	case "modification":
		return models.TicketTypeModification
	case "ont_swap":
		return models.TicketTypeONTSwap
	case "incident":
		return models.TicketTypeIncident
	default:
		return models.TicketTypeMaintenance
	}
}

// customFieldString 从自定义字段中提取字符串值
func customFieldString(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	value, ok := fields[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// SyncSingleTicket 同步单个QContact工单
// 已存在时为幂等空操作；同步失败以失败结果返回而非抛出
func (s *InboundSyncService) SyncSingleTicket(ctx context.Context, remote *qcontact.Ticket) SyncOperationResult {
	log := logger.GetLogger()
	now := time.Now()

	result := SyncOperationResult{
		QContactTicketID: remote.ID,
		SyncedAt:         now,
	}

	// 按(source, external_id)去重
	existing, err := s.tickets.FindBySourceExternal(models.TicketSourceQContact, remote.ID)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("查询工单失败: %v", err)
		s.writeInboundLog(remote, nil, result.ErrorMessage)
		return result
	}
	if existing != nil {
		// 已同步过，无需新建也不写日志
		result.Success = true
		result.TicketID = &existing.ID
		return result
	}

	ticket := MapQContactTicket(remote)
	syncedAt := time.Now()
	ticket.SyncedAt = &syncedAt

	if err := s.tickets.Create(ticket); err != nil {
		if err == ErrTicketExists {
			// 并发场景下另一方已创建，按已存在处理
			if existing, lookupErr := s.tickets.FindBySourceExternal(models.TicketSourceQContact, remote.ID); lookupErr == nil && existing != nil {
				result.Success = true
				result.TicketID = &existing.ID
				return result
			}
			// 冲突但同来源查不到，说明撞的是工单编号唯一索引，工单并没有落库
			result.ErrorMessage = fmt.Sprintf("创建工单失败: 工单编号 %s 冲突", ticket.TicketUID)
			log.Errorf("入站同步失败: QContact工单 %s, %s", remote.ID, result.ErrorMessage)
			s.writeInboundLog(remote, nil, result.ErrorMessage)
			return result
		}
		result.ErrorMessage = fmt.Sprintf("创建工单失败: %v", err)
		log.WithError(err).Errorf("入站同步失败: QContact工单 %s", remote.ID)
		s.writeInboundLog(remote, nil, result.ErrorMessage)
		return result
	}

	result.Success = true
	result.TicketID = &ticket.ID
	result.SyncLogID = s.writeInboundLog(remote, ticket, "")

	log.Infof("入站同步成功: QContact工单 %s -> 本地工单 %s", remote.ID, ticket.TicketUID)
	return result
}

// writeInboundLog 写入站同步日志，日志失败不影响同步结果
func (s *InboundSyncService) writeInboundLog(remote *qcontact.Ticket, ticket *models.Ticket, errorMessage string) *uint {
	entry := &models.QContactSyncLog{
		QContactTicketID: remote.ID,
		SyncDirection:    models.SyncDirectionInbound,
		SyncType:         models.SyncTypeCreate,
		Status:           models.SyncStatusSuccess,
		SyncedAt:         time.Now(),
	}

	if raw, err := json.Marshal(remote); err == nil {
		entry.RequestPayload = models.JSON(raw)
	}

	if errorMessage != "" {
		entry.Status = models.SyncStatusFailed
		entry.ErrorMessage = errorMessage
	} else if ticket != nil {
		entry.TicketID = &ticket.ID
		if raw, err := json.Marshal(map[string]interface{}{
			"ticket_id":  ticket.ID,
			"ticket_uid": ticket.TicketUID,
		}); err == nil {
			entry.ResponsePayload = models.JSON(raw)
		}
	}

	if err := s.logs.Create(entry); err != nil {
		logger.GetLogger().WithError(err).Error("写入站同步日志失败")
		return nil
	}
	return &entry.ID
}

// SyncTickets 批量拉取并同步QContact工单
// 逐页顺序处理，单个工单失败不中断批次，列表请求失败则整体中止
func (s *InboundSyncService) SyncTickets(ctx context.Context, opts InboundSyncOptions) (*SyncInboundResult, error) {
	log := logger.GetLogger()

	result := &SyncInboundResult{
		StartedAt: time.Now(),
	}

	status := opts.Status
	if status == "" {
		status = inboundDefaultState
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = inboundPageSize
	}

	page := 1
	for {
		listResp, err := s.api.ListTickets(ctx, qcontact.ListTicketsOptions{
			Status:       status,
			UpdatedAfter: opts.UpdatedAfter,
			Page:         page,
			PageSize:     pageSize,
		})
		if err != nil {
			// 列表失败属于系统性错误，中止整个批次
			log.WithError(err).Error("拉取QContact工单列表失败")
			result.CompletedAt = time.Now()
			result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()
			return result, fmt.Errorf("拉取工单列表失败: %v", err)
		}

		for i := range listResp.Tickets {
			remote := &listResp.Tickets[i]
			result.Stats.TotalProcessed++

			opResult := s.SyncSingleTicket(ctx, remote)
			if opResult.Success {
				// 已存在的工单是成功空操作，只计successful不计skipped
				result.Stats.Successful++
				if opResult.SyncLogID != nil {
					result.Stats.Created++
				}
			} else {
				result.Stats.Failed++
				if len(result.Errors) < inboundMaxErrors {
					result.Errors = append(result.Errors, SyncError{
						QContactTicketID: remote.ID,
						SyncType:         models.SyncTypeCreate,
						Message:          opResult.ErrorMessage,
						Timestamp:        time.Now(),
					})
				}
			}
		}

		if !listResp.HasMore || page >= inboundMaxPages {
			break
		}
		page++
	}

	result.CompletedAt = time.Now()
	result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()

	log.Infof("入站同步完成: 处理 %d, 成功 %d, 新建 %d, 失败 %d",
		result.Stats.TotalProcessed, result.Stats.Successful,
		result.Stats.Created, result.Stats.Failed)

	return result, nil
}
