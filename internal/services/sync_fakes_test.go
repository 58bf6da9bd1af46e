package services

import (
	"context"
	"fmt"
	"time"

	"fibreflow/internal/models"
	"fibreflow/pkg/qcontact"
)

// fakeTicketStore 内存工单存储
type fakeTicketStore struct {
	tickets     []*models.Ticket
	nextID      uint
	createCalls int
	createErr   error
	pending     int64
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{nextID: 1}
}

func (s *fakeTicketStore) FindBySourceExternal(source, externalID string) (*models.Ticket, error) {
	for _, t := range s.tickets {
		if t.Source == source && t.ExternalID == externalID {
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeTicketStore) Create(ticket *models.Ticket) error {
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	for _, t := range s.tickets {
		if t.Source == ticket.Source && t.ExternalID == ticket.ExternalID {
			return ErrTicketExists
		}
	}
	ticket.ID = s.nextID
	s.nextID++
	s.tickets = append(s.tickets, ticket)
	return nil
}

func (s *fakeTicketStore) GetByID(id uint) (*models.Ticket, error) {
	for _, t := range s.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeTicketStore) ListOutboundCandidates(since *time.Time, limit int) ([]models.Ticket, error) {
	var result []models.Ticket
	for _, t := range s.tickets {
		if t.Source == models.TicketSourceQContact && t.ExternalID != "" {
			result = append(result, *t)
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *fakeTicketStore) CountPendingOutbound() (int64, error) {
	return s.pending, nil
}

func (s *fakeTicketStore) MarkSynced(id uint, at time.Time) error {
	for _, t := range s.tickets {
		if t.ID == id {
			t.SyncedAt = &at
			return nil
		}
	}
	return fmt.Errorf("工单 %d 不存在", id)
}

// addTicket 预置一条本地工单
func (s *fakeTicketStore) addTicket(ticket *models.Ticket) *models.Ticket {
	ticket.ID = s.nextID
	s.nextID++
	s.tickets = append(s.tickets, ticket)
	return ticket
}

// fakeSyncLogStore 内存同步日志存储
type fakeSyncLogStore struct {
	entries   []*models.QContactSyncLog
	nextID    uint
	createErr error
}

func newFakeSyncLogStore() *fakeSyncLogStore {
	return &fakeSyncLogStore{nextID: 1}
}

func (s *fakeSyncLogStore) Create(entry *models.QContactSyncLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeSyncLogStore) List(filter SyncLogFilter, offset, limit int) ([]models.QContactSyncLog, int64, error) {
	var result []models.QContactSyncLog
	for _, e := range s.entries {
		if filter.SyncDirection != "" && e.SyncDirection != filter.SyncDirection {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, *e)
	}
	return result, int64(len(result)), nil
}

func (s *fakeSyncLogStore) CountByStatusSince(status string, since time.Time) (int64, error) {
	var count int64
	for _, e := range s.entries {
		if e.Status == status && !e.SyncedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *fakeSyncLogStore) CountByDirectionSince(direction string, since time.Time) (int64, error) {
	var count int64
	for _, e := range s.entries {
		if e.SyncDirection == direction && !e.SyncedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *fakeSyncLogStore) LastFullSync() (*models.QContactSyncLog, error) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].SyncType == models.SyncTypeFullSync {
			return s.entries[i], nil
		}
	}
	return nil, nil
}

// byDirection 按方向筛选日志
func (s *fakeSyncLogStore) byDirection(direction string) []*models.QContactSyncLog {
	var result []*models.QContactSyncLog
	for _, e := range s.entries {
		if e.SyncDirection == direction {
			result = append(result, e)
		}
	}
	return result
}

// fakeJobHistoryStore 内存任务历史存储
type fakeJobHistoryStore struct {
	entries   []*models.SyncJobHistory
	createErr error
}

func (s *fakeJobHistoryStore) Create(entry *models.SyncJobHistory) error {
	if s.createErr != nil {
		return s.createErr
	}
	entry.ID = uint(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeJobHistoryStore) List(opts JobHistoryQuery) ([]models.SyncJobHistory, error) {
	var result []models.SyncJobHistory
	for i := len(s.entries) - 1; i >= 0; i-- {
		if opts.Status != "" && s.entries[i].Status != opts.Status {
			continue
		}
		result = append(result, *s.entries[i])
	}
	return result, nil
}

func (s *fakeJobHistoryStore) Last() (*models.SyncJobHistory, error) {
	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[len(s.entries)-1], nil
}

// fakeQContactAPI 脚本化的QContact客户端
type fakeQContactAPI struct {
	listPages    []*qcontact.TicketListResponse
	listErr      error
	listCalls    int
	getTicket    *qcontact.Ticket
	getErr       error
	updateCalls  int
	updateErr    error
	lastUpdate   qcontact.UpdateTicketPayload
	addNoteCalls int
	addNoteErr   error
	healthy      bool
}

func (f *fakeQContactAPI) GetTicket(ctx context.Context, ticketID string, opts *qcontact.GetTicketOptions) (*qcontact.Ticket, error) {
	return f.getTicket, f.getErr
}

func (f *fakeQContactAPI) ListTickets(ctx context.Context, opts qcontact.ListTicketsOptions) (*qcontact.TicketListResponse, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.listPages) == 0 {
		return &qcontact.TicketListResponse{}, nil
	}
	page := f.listPages[0]
	f.listPages = f.listPages[1:]
	return page, nil
}

func (f *fakeQContactAPI) CreateTicket(ctx context.Context, payload qcontact.CreateTicketPayload) (*qcontact.Ticket, error) {
	return nil, nil
}

func (f *fakeQContactAPI) UpdateTicket(ctx context.Context, ticketID string, payload qcontact.UpdateTicketPayload) (*qcontact.Ticket, error) {
	f.updateCalls++
	f.lastUpdate = payload
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &qcontact.Ticket{ID: ticketID}, nil
}

func (f *fakeQContactAPI) AddNote(ctx context.Context, ticketID string, payload qcontact.AddNotePayload) (*qcontact.Note, error) {
	f.addNoteCalls++
	if f.addNoteErr != nil {
		return nil, f.addNoteErr
	}
	return &qcontact.Note{ID: "note-1", TicketID: ticketID, Content: payload.Content}, nil
}

func (f *fakeQContactAPI) HealthCheck(ctx context.Context) bool {
	return f.healthy
}

// fakeJobLocker 内存任务锁
type fakeJobLocker struct {
	held         bool
	acquireErr   error
	acquireCalls int
	releaseCalls int
}

func (l *fakeJobLocker) Acquire(ctx context.Context) (bool, error) {
	l.acquireCalls++
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeJobLocker) Release(ctx context.Context) error {
	l.held = false
	l.releaseCalls++
	return nil
}
