package qcontact

import "time"

// Ticket QContact工单数据（只读，本系统不修改远端原始数据）
type Ticket struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Status        string                 `json:"status"`
	Priority      string                 `json:"priority"`
	Category      string                 `json:"category"`
	Subcategory   string                 `json:"subcategory"`
	CustomerName  string                 `json:"customer_name"`
	CustomerPhone string                 `json:"customer_phone"`
	CustomerEmail string                 `json:"customer_email"`
	Address       string                 `json:"address"`
	AssignedTo    string                 `json:"assigned_to"`
	CustomFields  map[string]interface{} `json:"custom_fields"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Note 工单备注
type Note struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"author_id"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateTicketPayload 创建工单请求体
type CreateTicketPayload struct {
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	Priority      string                 `json:"priority,omitempty"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	CustomerPhone string                 `json:"customer_phone,omitempty"`
	CustomerEmail string                 `json:"customer_email,omitempty"`
	Address       string                 `json:"address,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Subcategory   string                 `json:"subcategory,omitempty"`
	AssignedTo    string                 `json:"assigned_to,omitempty"`
	CustomFields  map[string]interface{} `json:"custom_fields,omitempty"`
}

// UpdateTicketPayload 更新工单请求体（支持部分更新）
type UpdateTicketPayload struct {
	Title        *string                `json:"title,omitempty"`
	Description  *string                `json:"description,omitempty"`
	Status       *string                `json:"status,omitempty"`
	Priority     *string                `json:"priority,omitempty"`
	AssignedTo   *string                `json:"assigned_to,omitempty"`
	AssignedName *string                `json:"assigned_name,omitempty"`
	Category     *string                `json:"category,omitempty"`
	Subcategory  *string                `json:"subcategory,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
}

// AddNotePayload 添加备注请求体
type AddNotePayload struct {
	Content    string `json:"content"`
	AuthorID   string `json:"author_id,omitempty"`
	IsInternal bool   `json:"is_internal"`
}

// ListTicketsOptions 工单列表过滤条件
type ListTicketsOptions struct {
	Status        string
	Priority      string
	Category      string
	AssignedTo    string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
	Page          int
	PageSize      int
}

// TicketListResponse 分页的工单列表响应
type TicketListResponse struct {
	Tickets  []Ticket `json:"tickets"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	HasMore  bool     `json:"has_more"`
}

// GetTicketOptions 单工单查询选项
// ThrowOnNotFound 为 false 时，404返回 (nil, nil) 而不是错误
type GetTicketOptions struct {
	ThrowOnNotFound bool
}
