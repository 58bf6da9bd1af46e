package services

import (
	"context"
	"fmt"
	"sync"

	"fibreflow/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SyncScheduler QContact同步调度器
type SyncScheduler struct {
	cron       *cron.Cron
	jobService *SyncJobService
	interval   int // 分钟
	entryID    cron.EntryID
	mu         sync.RWMutex
	running    bool
}

// NewSyncScheduler 创建同步调度器
func NewSyncScheduler(jobService *SyncJobService, intervalMinutes int) *SyncScheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 15
	}
	return &SyncScheduler{
		cron:       cron.New(),
		jobService: jobService,
		interval:   intervalMinutes,
	}
}

// Start 启动调度器
func (s *SyncScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	log := logger.GetLogger()

	cronExpr := fmt.Sprintf("*/%d * * * *", s.interval)
	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.runJob()
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %v", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	log.Infof("QContact同步调度器启动成功，间隔: %d 分钟", s.interval)
	return nil
}

// Stop 停止调度器
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	log := logger.GetLogger()
	log.Info("停止QContact同步调度器")

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.running = false
}

// TriggerSync 手动触发一次同步
// 在新的goroutine中执行，避免阻塞
func (s *SyncScheduler) TriggerSync() {
	log := logger.GetLogger()
	log.Info("手动触发QContact同步")

	go s.runJob()
}

// IsRunning 检查调度器是否运行中
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// runJob 执行一次定时同步
func (s *SyncScheduler) runJob() {
	log := logger.GetLogger()

	_, err := s.jobService.RunSyncJob(context.Background(), FullSyncRequest{})
	if err != nil {
		if err == ErrSyncJobRunning {
			log.Warn("上一次同步任务尚未结束，跳过本轮")
			return
		}
		log.WithError(err).Error("定时同步失败")
	}
}
