package services

import (
	"fmt"
	"time"

	"fibreflow/internal/models"
	"fibreflow/pkg/logger"

	"gorm.io/gorm"
)

// 健康判定阈值
const (
	healthMinSuccessRate = 0.8
	healthMinSamples     = 10
	healthMaxPending     = 20
	healthMaxFailed24h   = 10
	healthMaxSyncAge     = 2 * time.Hour
)

// SyncLogService 同步日志服务
type SyncLogService struct {
	logs    SyncLogStore
	tickets TicketStore
}

// NewSyncLogService 创建同步日志服务
func NewSyncLogService(db *gorm.DB) *SyncLogService {
	return &SyncLogService{
		logs:    NewSyncLogStore(db),
		tickets: NewTicketStore(db),
	}
}

// newSyncLogServiceWithStores 测试用构造函数
func newSyncLogServiceWithStores(logs SyncLogStore, tickets TicketStore) *SyncLogService {
	return &SyncLogService{logs: logs, tickets: tickets}
}

// Create 追加一条同步日志
// 日志写入失败只记录，不影响调用方
func (s *SyncLogService) Create(entry *models.QContactSyncLog) error {
	if entry.SyncedAt.IsZero() {
		entry.SyncedAt = time.Now()
	}
	if err := s.logs.Create(entry); err != nil {
		logger.GetLogger().WithError(err).Error("写同步日志失败")
		return err
	}
	return nil
}

// SyncLogListResult 同步日志查询结果
type SyncLogListResult struct {
	Logs        []models.QContactSyncLog `json:"logs"`
	Total       int64                    `json:"total"`
	ByDirection map[string]int64         `json:"by_direction"`
	ByStatus    map[string]int64         `json:"by_status"`
	SuccessRate float64                  `json:"success_rate"`
}

// ListSyncLogs 查询同步日志并附带方向/状态分布
func (s *SyncLogService) ListSyncLogs(filter SyncLogFilter, offset, limit int) (*SyncLogListResult, error) {
	logs, total, err := s.logs.List(filter, offset, limit)
	if err != nil {
		return nil, err
	}

	result := &SyncLogListResult{
		Logs:        logs,
		Total:       total,
		ByDirection: make(map[string]int64),
		ByStatus:    make(map[string]int64),
	}

	var success, failed int
	for _, entry := range logs {
		result.ByDirection[entry.SyncDirection]++
		result.ByStatus[entry.Status]++
		switch entry.Status {
		case models.SyncStatusSuccess:
			success++
		case models.SyncStatusFailed:
			failed++
		}
	}
	result.SuccessRate = CalculateSyncSuccessRate(success, failed)

	return result, nil
}

// SyncStatus 同步健康概览
type SyncStatus struct {
	LastSyncAt      *time.Time `json:"last_sync_at"`
	LastSyncStatus  string     `json:"last_sync_status"`
	PendingOutbound int64      `json:"pending_outbound"`
	FailedLast24h   int64      `json:"failed_last_24h"`
	SuccessRate7d   float64    `json:"success_rate_7d"`
	IsHealthy       bool       `json:"is_healthy"`
	HealthIssues    []string   `json:"health_issues"`
}

// SyncHealthInput 健康判定输入
type SyncHealthInput struct {
	LastSyncAt      *time.Time
	LastSyncStatus  string
	PendingOutbound int64
	FailedLast24h   int64
	SuccessRate7d   float64
	Samples7d       int64
	Now             time.Time
}

// EvaluateSyncHealth 健康判定
// 返回是否健康以及所有命中的问题描述
func EvaluateSyncHealth(in SyncHealthInput) (bool, []string) {
	var issues []string

	if in.Samples7d > healthMinSamples && in.SuccessRate7d < healthMinSuccessRate {
		issues = append(issues, fmt.Sprintf("近7天同步成功率过低: %.2f", in.SuccessRate7d))
	}
	if in.PendingOutbound > healthMaxPending {
		issues = append(issues, fmt.Sprintf("待回推工单积压: %d", in.PendingOutbound))
	}
	if in.FailedLast24h > healthMaxFailed24h {
		issues = append(issues, fmt.Sprintf("近24小时同步失败过多: %d", in.FailedLast24h))
	}
	if in.LastSyncStatus == models.SyncStatusFailed {
		issues = append(issues, "最近一次完整同步失败")
	}
	if in.LastSyncAt == nil {
		issues = append(issues, "尚未执行过完整同步")
	} else if in.Now.Sub(*in.LastSyncAt) > healthMaxSyncAge {
		issues = append(issues, fmt.Sprintf("最近一次完整同步已超过%.0f小时", in.Now.Sub(*in.LastSyncAt).Hours()))
	}

	return len(issues) == 0, issues
}

// GetSyncStatus 同步健康概览
func (s *SyncLogService) GetSyncStatus() (*SyncStatus, error) {
	now := time.Now()

	lastFullSync, err := s.logs.LastFullSync()
	if err != nil {
		return nil, err
	}

	pending, err := s.tickets.CountPendingOutbound()
	if err != nil {
		return nil, err
	}

	failed24h, err := s.logs.CountByStatusSince(models.SyncStatusFailed, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	since7d := now.Add(-7 * 24 * time.Hour)
	success7d, err := s.logs.CountByStatusSince(models.SyncStatusSuccess, since7d)
	if err != nil {
		return nil, err
	}
	failed7d, err := s.logs.CountByStatusSince(models.SyncStatusFailed, since7d)
	if err != nil {
		return nil, err
	}

	input := SyncHealthInput{
		PendingOutbound: pending,
		FailedLast24h:   failed24h,
		SuccessRate7d:   CalculateSyncSuccessRate(int(success7d), int(failed7d)),
		Samples7d:       success7d + failed7d,
		Now:             now,
	}
	if lastFullSync != nil {
		input.LastSyncAt = &lastFullSync.SyncedAt
		input.LastSyncStatus = lastFullSync.Status
	}

	healthy, issues := EvaluateSyncHealth(input)

	status := &SyncStatus{
		LastSyncAt:      input.LastSyncAt,
		LastSyncStatus:  input.LastSyncStatus,
		PendingOutbound: pending,
		FailedLast24h:   failed24h,
		SuccessRate7d:   input.SuccessRate7d,
		IsHealthy:       healthy,
		HealthIssues:    issues,
	}
	return status, nil
}
