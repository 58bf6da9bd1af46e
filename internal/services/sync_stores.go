package services

import (
	"errors"
	"time"

	"fibreflow/internal/models"

	"gorm.io/gorm"
)

// ErrTicketExists 工单已存在（唯一索引冲突）
var ErrTicketExists = errors.New("工单已存在")

// TicketStore 同步服务使用的工单存储接口
type TicketStore interface {
	// FindBySourceExternal 按(source, external_id)查找，不存在返回 (nil, nil)
	FindBySourceExternal(source, externalID string) (*models.Ticket, error)
	// Create 创建工单，唯一索引冲突返回 ErrTicketExists
	Create(ticket *models.Ticket) error
	GetByID(id uint) (*models.Ticket, error)
	// ListOutboundCandidates 查找指定时间后更新且有外部ID的工单
	ListOutboundCandidates(since *time.Time, limit int) ([]models.Ticket, error)
	// CountPendingOutbound 统计本地有改动但尚未回推的工单数
	CountPendingOutbound() (int64, error)
	MarkSynced(id uint, at time.Time) error
}

// SyncLogStore 同步日志存储接口（只追加）
type SyncLogStore interface {
	Create(entry *models.QContactSyncLog) error
	List(filter SyncLogFilter, offset, limit int) ([]models.QContactSyncLog, int64, error)
	// CountByStatusSince 按状态统计指定时间之后的日志数
	CountByStatusSince(status string, since time.Time) (int64, error)
	// CountByDirectionSince 按方向统计指定时间之后的日志数
	CountByDirectionSince(direction string, since time.Time) (int64, error)
	// LastFullSync 最近一条 full_sync 日志，没有返回 (nil, nil)
	LastFullSync() (*models.QContactSyncLog, error)
}

// SyncLogFilter 同步日志查询条件
type SyncLogFilter struct {
	TicketID         *uint
	QContactTicketID string
	SyncDirection    string
	SyncType         string
	Status           string
	StartDate        *time.Time
	EndDate          *time.Time
}

// JobHistoryStore 同步任务历史存储接口
type JobHistoryStore interface {
	Create(entry *models.SyncJobHistory) error
	List(opts JobHistoryQuery) ([]models.SyncJobHistory, error)
	// Last 最近一次任务记录，没有返回 (nil, nil)
	Last() (*models.SyncJobHistory, error)
}

// JobHistoryQuery 任务历史查询条件
type JobHistoryQuery struct {
	Limit     int
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

// ==================== GORM实现 ====================

type gormTicketStore struct {
	db *gorm.DB
}

// NewTicketStore 创建基于数据库的工单存储
func NewTicketStore(db *gorm.DB) TicketStore {
	return &gormTicketStore{db: db}
}

func (s *gormTicketStore) FindBySourceExternal(source, externalID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.Where("source = ? AND external_id = ?", source, externalID).First(&ticket).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *gormTicketStore) Create(ticket *models.Ticket) error {
	// 事务内创建，唯一索引兜底并发场景下的先查后建竞争
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(ticket).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTicketExists
	}
	return err
}

func (s *gormTicketStore) GetByID(id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.First(&ticket, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *gormTicketStore) ListOutboundCandidates(since *time.Time, limit int) ([]models.Ticket, error) {
	query := s.db.Where("source = ? AND external_id <> ''", models.TicketSourceQContact)
	if since != nil {
		query = query.Where("updated_at >= ?", *since)
	}
	var tickets []models.Ticket
	if err := query.Order("updated_at ASC").Limit(limit).Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *gormTicketStore) CountPendingOutbound() (int64, error) {
	var count int64
	err := s.db.Model(&models.Ticket{}).
		Where("source = ? AND external_id <> ''", models.TicketSourceQContact).
		Where("synced_at IS NULL OR updated_at > synced_at").
		Count(&count).Error
	return count, err
}

func (s *gormTicketStore) MarkSynced(id uint, at time.Time) error {
	return s.db.Model(&models.Ticket{}).Where("id = ?", id).Update("synced_at", at).Error
}

type gormSyncLogStore struct {
	db *gorm.DB
}

// NewSyncLogStore 创建基于数据库的同步日志存储
func NewSyncLogStore(db *gorm.DB) SyncLogStore {
	return &gormSyncLogStore{db: db}
}

func (s *gormSyncLogStore) Create(entry *models.QContactSyncLog) error {
	return s.db.Create(entry).Error
}

func (s *gormSyncLogStore) List(filter SyncLogFilter, offset, limit int) ([]models.QContactSyncLog, int64, error) {
	query := s.db.Model(&models.QContactSyncLog{})

	if filter.TicketID != nil {
		query = query.Where("ticket_id = ?", *filter.TicketID)
	}
	if filter.QContactTicketID != "" {
		query = query.Where("qcontact_ticket_id = ?", filter.QContactTicketID)
	}
	if filter.SyncDirection != "" {
		query = query.Where("sync_direction = ?", filter.SyncDirection)
	}
	if filter.SyncType != "" {
		query = query.Where("sync_type = ?", filter.SyncType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.StartDate != nil {
		query = query.Where("synced_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("synced_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.QContactSyncLog
	if err := query.Order("synced_at DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (s *gormSyncLogStore) CountByStatusSince(status string, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.QContactSyncLog{}).
		Where("status = ? AND synced_at >= ?", status, since).
		Count(&count).Error
	return count, err
}

func (s *gormSyncLogStore) CountByDirectionSince(direction string, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.QContactSyncLog{}).
		Where("sync_direction = ? AND synced_at >= ?", direction, since).
		Count(&count).Error
	return count, err
}

func (s *gormSyncLogStore) LastFullSync() (*models.QContactSyncLog, error) {
	var entry models.QContactSyncLog
	err := s.db.Where("sync_type = ?", models.SyncTypeFullSync).
		Order("synced_at DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

type gormJobHistoryStore struct {
	db *gorm.DB
}

// NewJobHistoryStore 创建基于数据库的任务历史存储
func NewJobHistoryStore(db *gorm.DB) JobHistoryStore {
	return &gormJobHistoryStore{db: db}
}

func (s *gormJobHistoryStore) Create(entry *models.SyncJobHistory) error {
	return s.db.Create(entry).Error
}

func (s *gormJobHistoryStore) List(opts JobHistoryQuery) ([]models.SyncJobHistory, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := s.db.Model(&models.SyncJobHistory{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.StartDate != nil {
		query = query.Where("started_at >= ?", *opts.StartDate)
	}
	if opts.EndDate != nil {
		query = query.Where("started_at <= ?", *opts.EndDate)
	}

	var histories []models.SyncJobHistory
	if err := query.Order("started_at DESC").Limit(limit).Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

func (s *gormJobHistoryStore) Last() (*models.SyncJobHistory, error) {
	var entry models.SyncJobHistory
	err := s.db.Order("started_at DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
