package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fibreflow/internal/models"
	"fibreflow/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	syncJobLockKey = "sync:qcontact:job_lock"
	syncJobLockTTL = 10 * time.Minute
)

// ErrSyncJobRunning 已有同步任务在执行
var ErrSyncJobRunning = errors.New("同步任务正在执行中")

// JobLocker 任务互斥锁接口
type JobLocker interface {
	// Acquire 尝试获取锁，已被持有返回false
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// redisJobLocker 基于Redis SetNX的互斥锁
// TTL兜底进程异常退出后的锁残留
type redisJobLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisJobLocker 创建Redis任务锁
func NewRedisJobLocker(client *redis.Client, prefix string) JobLocker {
	key := syncJobLockKey
	if prefix != "" {
		key = prefix + ":" + syncJobLockKey
	}
	return &redisJobLocker{
		client: client,
		key:    key,
		ttl:    syncJobLockTTL,
	}
}

func (l *redisJobLocker) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, time.Now().Format(time.RFC3339), l.ttl).Result()
}

func (l *redisJobLocker) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

// SyncJobService 后台同步任务执行器
// 单飞互斥：同一时刻只允许一个同步任务
type SyncJobService struct {
	orchestrator *SyncOrchestrator
	history      JobHistoryStore
	locker       JobLocker
}

// NewSyncJobService 创建同步任务执行器
func NewSyncJobService(db *gorm.DB, orchestrator *SyncOrchestrator, locker JobLocker) *SyncJobService {
	return &SyncJobService{
		orchestrator: orchestrator,
		history:      NewJobHistoryStore(db),
		locker:       locker,
	}
}

// newSyncJobServiceWithStores 测试用构造函数
func newSyncJobServiceWithStores(orchestrator *SyncOrchestrator, history JobHistoryStore, locker JobLocker) *SyncJobService {
	return &SyncJobService{orchestrator: orchestrator, history: history, locker: locker}
}

// RunSyncJob 执行一次同步任务
// 无论成功失败，每次执行恰好写一条历史记录
func (s *SyncJobService) RunSyncJob(ctx context.Context, opts FullSyncRequest) (*models.SyncJobHistory, error) {
	log := logger.GetLogger()

	acquired, err := s.locker.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取任务锁失败: %v", err)
	}
	if !acquired {
		return nil, ErrSyncJobRunning
	}
	defer func() {
		if err := s.locker.Release(ctx); err != nil {
			log.WithError(err).Error("释放任务锁失败")
		}
	}()

	entry := &models.SyncJobHistory{
		JobID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	if opts.Direction == "" {
		opts.Direction = models.SyncJobDirectionBoth
	}
	entry.SyncOptions = marshalJSON(opts)

	log.Infof("同步任务 %s 开始: direction=%s", entry.JobID, opts.Direction)

	result, runErr := s.runByDirection(ctx, opts)

	completedAt := time.Now()
	entry.CompletedAt = &completedAt
	entry.DurationSeconds = completedAt.Sub(entry.StartedAt).Seconds()

	if result != nil {
		entry.InboundProcessed = result.InboundStats.TotalProcessed
		entry.InboundCreated = result.InboundStats.Created
		entry.InboundUpdated = result.InboundStats.Updated
		entry.InboundFailed = result.InboundStats.Failed
		entry.OutboundProcessed = result.OutboundStats.TotalProcessed
		entry.OutboundFailed = result.OutboundStats.Failed
		entry.SuccessRate = result.SuccessRate
		entry.SyncResult = marshalJSON(result)
	}

	entry.Status = classifyJobStatus(result, runErr)
	if runErr != nil {
		entry.ErrorMessage = runErr.Error()
		entry.ErrorCode = "SYNC_FAILED"
		log.WithError(runErr).Errorf("同步任务 %s 失败", entry.JobID)
	} else {
		log.Infof("同步任务 %s 完成: status=%s, 成功率 %.2f", entry.JobID, entry.Status, entry.SuccessRate)
	}

	if err := s.history.Create(entry); err != nil {
		log.WithError(err).Error("保存同步任务历史失败")
		return entry, err
	}

	if runErr != nil {
		return entry, runErr
	}
	return entry, nil
}

// runByDirection 按方向执行同步
func (s *SyncJobService) runByDirection(ctx context.Context, opts FullSyncRequest) (*FullSyncResult, error) {
	switch opts.Direction {
	case models.SyncJobDirectionInbound:
		return s.orchestrator.RunInboundOnlySync(ctx, opts)
	case models.SyncJobDirectionOutbound:
		return s.orchestrator.RunOutboundOnlySync(ctx, opts)
	default:
		return s.orchestrator.RunFullSync(ctx, opts)
	}
}

// classifyJobStatus 任务状态判定
// 编排器报错或全部失败判failed，部分失败判partial，其余判success
func classifyJobStatus(result *FullSyncResult, runErr error) string {
	if runErr != nil {
		return models.SyncJobStatusFailed
	}
	if result == nil {
		return models.SyncJobStatusFailed
	}
	if result.TotalFailed > 0 {
		if result.TotalSuccess > 0 {
			return models.SyncJobStatusPartial
		}
		return models.SyncJobStatusFailed
	}
	return models.SyncJobStatusSuccess
}

// GetSyncJobHistory 查询任务历史，按开始时间倒序
func (s *SyncJobService) GetSyncJobHistory(opts JobHistoryQuery) ([]models.SyncJobHistory, error) {
	return s.history.List(opts)
}

// GetLastSyncJobRun 最近一次任务执行记录
// 没有历史返回 (nil, nil)，数据库错误原样上抛
func (s *SyncJobService) GetLastSyncJobRun() (*models.SyncJobHistory, error) {
	return s.history.Last()
}
