package services

import (
	"context"

	"fibreflow/pkg/qcontact"
)

// QContactAPI QContact客户端接口
// 同步服务通过接口依赖客户端，便于显式注入
type QContactAPI interface {
	GetTicket(ctx context.Context, ticketID string, opts *qcontact.GetTicketOptions) (*qcontact.Ticket, error)
	ListTickets(ctx context.Context, opts qcontact.ListTicketsOptions) (*qcontact.TicketListResponse, error)
	CreateTicket(ctx context.Context, payload qcontact.CreateTicketPayload) (*qcontact.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID string, payload qcontact.UpdateTicketPayload) (*qcontact.Ticket, error)
	AddNote(ctx context.Context, ticketID string, payload qcontact.AddNotePayload) (*qcontact.Note, error)
	HealthCheck(ctx context.Context) bool
}
