package handlers

import (
	"strconv"
	"strings"

	"fibreflow/internal/services"
	"fibreflow/pkg/pagination"
	"fibreflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// TicketHandler 工单处理器
type TicketHandler struct {
	ticketService *services.TicketService
}

// NewTicketHandler 创建工单处理器
func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// List 获取工单列表
func (h *TicketHandler) List(c *gin.Context) {
	query := services.TicketListQuery{
		Status:     c.Query("status"),
		Type:       c.Query("type"),
		Priority:   c.Query("priority"),
		Source:     c.Query("source"),
		ProjectID:  c.Query("project_id"),
		DRNumber:   c.Query("dr_number"),
		AssignedTo: c.Query("assigned_to"),
		Keyword:    c.Query("keyword"),
	}

	params := pagination.ParsePageParams(c)

	tickets, total, err := h.ticketService.List(query, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "获取工单列表失败")
		return
	}

	pageInfo := pagination.NewPageInfo(params.Page, params.PageSize, total)
	response.SuccessWithPage(c, tickets, pageInfo)
}

// GetByID 获取工单详情
// 同时支持数字ID和工单编号（FT开头）
func (h *TicketHandler) GetByID(c *gin.Context) {
	param := c.Param("id")

	if strings.HasPrefix(param, "FT") {
		ticket, err := h.ticketService.GetByUID(param)
		if err != nil {
			response.NotFound(c, err.Error())
			return
		}
		response.Success(c, ticket)
		return
	}

	ticketID, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的工单ID")
		return
	}

	ticket, err := h.ticketService.GetByID(uint(ticketID))
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, ticket)
}

// GetStats 工单统计
func (h *TicketHandler) GetStats(c *gin.Context) {
	stats, err := h.ticketService.GetStats()
	if err != nil {
		response.ServerError(c, "获取工单统计失败")
		return
	}
	response.Success(c, stats)
}
