package services

import (
	"fmt"

	"fibreflow/internal/models"

	"gorm.io/gorm"
)

// TicketService 本地工单查询服务
type TicketService struct {
	db *gorm.DB
}

// NewTicketService 创建工单服务
func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// TicketListQuery 工单查询条件
type TicketListQuery struct {
	Status     string
	Type       string
	Priority   string
	Source     string
	ProjectID  string
	DRNumber   string
	AssignedTo string
	Keyword    string
}

// List 分页查询工单
func (s *TicketService) List(query TicketListQuery, page, pageSize int) ([]models.Ticket, int64, error) {
	db := s.db.Model(&models.Ticket{})

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}
	if query.Priority != "" {
		db = db.Where("priority = ?", query.Priority)
	}
	if query.Source != "" {
		db = db.Where("source = ?", query.Source)
	}
	if query.ProjectID != "" {
		db = db.Where("project_id = ?", query.ProjectID)
	}
	if query.DRNumber != "" {
		db = db.Where("dr_number = ?", query.DRNumber)
	}
	if query.AssignedTo != "" {
		db = db.Where("assigned_to = ?", query.AssignedTo)
	}
	if query.Keyword != "" {
		keyword := "%" + query.Keyword + "%"
		db = db.Where("title ILIKE ? OR description ILIKE ? OR ticket_uid ILIKE ?", keyword, keyword, keyword)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []models.Ticket
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&tickets).Error; err != nil {
		return nil, 0, err
	}

	return tickets, total, nil
}

// GetByID 按ID查询工单
func (s *TicketService) GetByID(id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.First(&ticket, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("工单 %d 不存在", id)
		}
		return nil, err
	}
	return &ticket, nil
}

// GetByUID 按工单编号查询
func (s *TicketService) GetByUID(ticketUID string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.Where("ticket_uid = ?", ticketUID).First(&ticket).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("工单 %s 不存在", ticketUID)
		}
		return nil, err
	}
	return &ticket, nil
}

// GetStats 工单统计
func (s *TicketService) GetStats() (*models.TicketStats, error) {
	stats := &models.TicketStats{
		ByStatus:   make(map[string]int64),
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	if err := s.db.Model(&models.Ticket{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type groupCount struct {
		Key   string
		Count int64
	}

	var byStatus []groupCount
	if err := s.db.Model(&models.Ticket{}).
		Select("status as key, count(*) as count").
		Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Key] = row.Count
	}

	var byType []groupCount
	if err := s.db.Model(&models.Ticket{}).
		Select("type as key, count(*) as count").
		Group("type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.ByType[row.Key] = row.Count
	}

	var byPriority []groupCount
	if err := s.db.Model(&models.Ticket{}).
		Select("priority as key, count(*) as count").
		Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, err
	}
	for _, row := range byPriority {
		stats.ByPriority[row.Key] = row.Count
	}

	return stats, nil
}
