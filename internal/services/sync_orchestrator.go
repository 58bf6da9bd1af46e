package services

import (
	"context"
	"time"

	"fibreflow/internal/models"
	"fibreflow/pkg/logger"

	"gorm.io/gorm"
)

const outboundBatchLimit = 1000

// SyncOrchestrator 同步编排器
// 组合入站和出站同步，产出合并统计
type SyncOrchestrator struct {
	inbound  *InboundSyncService
	outbound *OutboundSyncService
	tickets  TicketStore
	logs     SyncLogStore
}

// NewSyncOrchestrator 创建同步编排器
func NewSyncOrchestrator(db *gorm.DB, api QContactAPI) *SyncOrchestrator {
	return &SyncOrchestrator{
		inbound:  NewInboundSyncService(db, api),
		outbound: NewOutboundSyncService(db, api),
		tickets:  NewTicketStore(db),
		logs:     NewSyncLogStore(db),
	}
}

// newSyncOrchestratorWithDeps 测试用构造函数
func newSyncOrchestratorWithDeps(inbound *InboundSyncService, outbound *OutboundSyncService, tickets TicketStore, logs SyncLogStore) *SyncOrchestrator {
	return &SyncOrchestrator{inbound: inbound, outbound: outbound, tickets: tickets, logs: logs}
}

// CalculateSyncSuccessRate 计算同步成功率
// 分母为0时返回0
func CalculateSyncSuccessRate(successful, failed int) float64 {
	total := successful + failed
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}

// RunFullSync 执行完整双向同步：先入站后出站
// 入站列表失败属于系统性错误，直接上抛
func (o *SyncOrchestrator) RunFullSync(ctx context.Context, req FullSyncRequest) (*FullSyncResult, error) {
	log := logger.GetLogger()

	result := &FullSyncResult{
		StartedAt: time.Now(),
	}

	// 1. 入站同步
	inboundResult, err := o.inbound.SyncTickets(ctx, InboundSyncOptions{
		UpdatedAfter: req.StartDate,
	})
	if err != nil {
		o.finalize(result)
		return result, err
	}
	result.InboundStats = inboundResult.Stats
	result.Errors = append(result.Errors, inboundResult.Errors...)

	// 2. 出站同步：回推指定时间后有变动的工单
	outboundStats, outboundErrors := o.runOutbound(ctx, req.StartDate)
	result.OutboundStats = outboundStats
	result.Errors = append(result.Errors, outboundErrors...)

	o.finalize(result)
	o.writeFullSyncLog(result, models.SyncDirectionBoth)

	log.Infof("完整同步结束: 入站 %d/%d 成功, 出站 %d/%d 成功, 成功率 %.2f",
		result.InboundStats.Successful, result.InboundStats.TotalProcessed,
		result.OutboundStats.Successful, result.OutboundStats.TotalProcessed,
		result.SuccessRate)

	return result, nil
}

// RunInboundOnlySync 只执行入站同步
func (o *SyncOrchestrator) RunInboundOnlySync(ctx context.Context, req FullSyncRequest) (*FullSyncResult, error) {
	result := &FullSyncResult{
		StartedAt: time.Now(),
	}

	inboundResult, err := o.inbound.SyncTickets(ctx, InboundSyncOptions{
		UpdatedAfter: req.StartDate,
	})
	if err != nil {
		o.finalize(result)
		return result, err
	}
	result.InboundStats = inboundResult.Stats
	result.Errors = inboundResult.Errors

	o.finalize(result)
	o.writeFullSyncLog(result, models.SyncDirectionInbound)
	return result, nil
}

// RunOutboundOnlySync 只执行出站同步
func (o *SyncOrchestrator) RunOutboundOnlySync(ctx context.Context, req FullSyncRequest) (*FullSyncResult, error) {
	result := &FullSyncResult{
		StartedAt: time.Now(),
	}

	outboundStats, outboundErrors := o.runOutbound(ctx, req.StartDate)
	result.OutboundStats = outboundStats
	result.Errors = outboundErrors

	o.finalize(result)
	o.writeFullSyncLog(result, models.SyncDirectionOutbound)
	return result, nil
}

// runOutbound 逐个回推有变动的工单
func (o *SyncOrchestrator) runOutbound(ctx context.Context, since *time.Time) (SyncStats, []SyncError) {
	log := logger.GetLogger()

	var stats SyncStats
	var errors []SyncError

	candidates, err := o.tickets.ListOutboundCandidates(since, outboundBatchLimit)
	if err != nil {
		log.WithError(err).Error("查询出站候选工单失败")
		stats.Failed++
		errors = append(errors, SyncError{
			SyncType:  models.SyncTypeStatusUpdate,
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return stats, errors
	}

	for i := range candidates {
		ticket := &candidates[i]
		stats.TotalProcessed++

		changes := OutboundChanges{Status: &ticket.Status}
		if ticket.AssignedTo != "" {
			changes.AssignedTo = &ticket.AssignedTo
			changes.AssignedName = &ticket.AssignedName
		}

		opResult := o.outbound.SyncOutboundUpdate(ctx, ticket.ID, changes)
		if opResult.Success {
			stats.Successful++
			stats.Updated++
		} else {
			stats.Failed++
			errors = append(errors, SyncError{
				TicketID:         &ticket.ID,
				QContactTicketID: ticket.ExternalID,
				SyncType:         models.SyncTypeStatusUpdate,
				Message:          opResult.ErrorMessage,
				Timestamp:        time.Now(),
			})
		}
	}

	return stats, errors
}

// finalize 汇总结果
func (o *SyncOrchestrator) finalize(result *FullSyncResult) {
	result.CompletedAt = time.Now()
	result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()
	result.TotalSuccess = result.InboundStats.Successful + result.OutboundStats.Successful
	result.TotalFailed = result.InboundStats.Failed + result.OutboundStats.Failed
	result.SuccessRate = CalculateSyncSuccessRate(result.TotalSuccess, result.TotalFailed)
}

// writeFullSyncLog 记录一条full_sync汇总日志，方向标记本次执行的方向
func (o *SyncOrchestrator) writeFullSyncLog(result *FullSyncResult, direction string) {
	status := models.SyncStatusSuccess
	if result.TotalFailed > 0 && result.TotalSuccess > 0 {
		status = models.SyncStatusPartial
	} else if result.TotalFailed > 0 {
		status = models.SyncStatusFailed
	}

	entry := &models.QContactSyncLog{
		SyncDirection: direction,
		SyncType:      models.SyncTypeFullSync,
		Status:        status,
		SyncedAt:      time.Now(),
	}
	if raw := marshalJSON(result); raw != nil {
		entry.ResponsePayload = raw
	}

	if err := o.logs.Create(entry); err != nil {
		logger.GetLogger().WithError(err).Error("写full_sync日志失败")
	}
}

// GetSyncProgress 最近24小时同步进度汇总
func (o *SyncOrchestrator) GetSyncProgress(ctx context.Context) (*SyncProgress, error) {
	since := time.Now().Add(-24 * time.Hour)

	successful, err := o.logs.CountByStatusSince(models.SyncStatusSuccess, since)
	if err != nil {
		return nil, err
	}
	failed, err := o.logs.CountByStatusSince(models.SyncStatusFailed, since)
	if err != nil {
		return nil, err
	}
	partial, err := o.logs.CountByStatusSince(models.SyncStatusPartial, since)
	if err != nil {
		return nil, err
	}

	progress := &SyncProgress{
		Total:       successful + failed + partial,
		Successful:  successful,
		Failed:      failed,
		Partial:     partial,
		SuccessRate: CalculateSyncSuccessRate(int(successful), int(failed)),
	}
	return progress, nil
}
