package services

import (
	"context"
	"errors"
	"testing"

	"fibreflow/internal/models"
	"fibreflow/pkg/qcontact"
)

func jobFixture(api *fakeQContactAPI) (*SyncJobService, *fakeJobHistoryStore, *fakeJobLocker, *fakeTicketStore) {
	tickets := newFakeTicketStore()
	logs := newFakeSyncLogStore()
	inbound := newInboundSyncServiceWithStores(api, tickets, logs)
	outbound := newOutboundSyncServiceWithStores(api, tickets, logs)
	orchestrator := newSyncOrchestratorWithDeps(inbound, outbound, tickets, logs)

	history := &fakeJobHistoryStore{}
	locker := &fakeJobLocker{}
	svc := newSyncJobServiceWithStores(orchestrator, history, locker)
	return svc, history, locker, tickets
}

func TestRunSyncJobSuccessWritesOneHistoryRow(t *testing.T) {
	api := &fakeQContactAPI{
		listPages: []*qcontact.TicketListResponse{
			{Tickets: []qcontact.Ticket{{ID: "QC-001", Title: "a"}}},
		},
	}
	svc, history, locker, _ := jobFixture(api)

	entry, err := svc.RunSyncJob(context.Background(), FullSyncRequest{})
	if err != nil {
		t.Fatalf("RunSyncJob: %v", err)
	}

	if len(history.entries) != 1 {
		t.Fatalf("应该恰好写一条历史记录, got %d", len(history.entries))
	}
	if entry.Status != models.SyncJobStatusSuccess {
		t.Errorf("任务状态应该是success: %s", entry.Status)
	}
	if entry.JobID == "" {
		t.Error("应该生成任务ID")
	}
	if entry.CompletedAt == nil {
		t.Error("应该记录完成时间")
	}
	if entry.InboundCreated != 1 {
		t.Errorf("InboundCreated=%d", entry.InboundCreated)
	}
	if locker.releaseCalls != 1 {
		t.Errorf("任务结束应该释放锁, releaseCalls=%d", locker.releaseCalls)
	}
}

func TestRunSyncJobErrorStillWritesHistory(t *testing.T) {
	api := &fakeQContactAPI{listErr: errors.New("connection refused")}
	svc, history, locker, _ := jobFixture(api)

	entry, err := svc.RunSyncJob(context.Background(), FullSyncRequest{})
	if err == nil {
		t.Fatal("编排器失败应该上抛")
	}

	// 失败也恰好写一条历史
	if len(history.entries) != 1 {
		t.Fatalf("失败也应该写一条历史记录, got %d", len(history.entries))
	}
	if entry.Status != models.SyncJobStatusFailed {
		t.Errorf("任务状态应该是failed: %s", entry.Status)
	}
	if entry.ErrorMessage == "" {
		t.Error("应该记录错误信息")
	}
	if locker.releaseCalls != 1 {
		t.Errorf("失败后也应该释放锁, releaseCalls=%d", locker.releaseCalls)
	}
}

func TestRunSyncJobPartial(t *testing.T) {
	api := &fakeQContactAPI{
		listPages: []*qcontact.TicketListResponse{
			{Tickets: []qcontact.Ticket{
				{ID: "QC-001", Title: "a"},
				{ID: "QC-002", Title: "b"},
			}},
		},
		updateErr: errors.New("502"),
	}
	svc, history, _, _ := jobFixture(api)

	entry, err := svc.RunSyncJob(context.Background(), FullSyncRequest{})
	if err != nil {
		t.Fatalf("RunSyncJob: %v", err)
	}

	// 入站成功、出站回推失败，判定为partial
	if entry.Status != models.SyncJobStatusPartial {
		t.Errorf("任务状态应该是partial: %s", entry.Status)
	}
	if len(history.entries) != 1 {
		t.Errorf("应该恰好写一条历史记录, got %d", len(history.entries))
	}
	if entry.SuccessRate <= 0 || entry.SuccessRate >= 1 {
		t.Errorf("部分失败的成功率应该在(0,1)之间: %v", entry.SuccessRate)
	}
}

func TestRunSyncJobBusy(t *testing.T) {
	api := &fakeQContactAPI{}
	svc, history, locker, _ := jobFixture(api)
	locker.held = true

	_, err := svc.RunSyncJob(context.Background(), FullSyncRequest{})
	if err != ErrSyncJobRunning {
		t.Fatalf("锁被持有应该返回ErrSyncJobRunning: %v", err)
	}
	if len(history.entries) != 0 {
		t.Errorf("未执行不应该写历史, got %d", len(history.entries))
	}
	if locker.releaseCalls != 0 {
		t.Errorf("未获得锁不应该释放, releaseCalls=%d", locker.releaseCalls)
	}
}

func TestRunSyncJobDirections(t *testing.T) {
	api := &fakeQContactAPI{
		listPages: []*qcontact.TicketListResponse{
			{Tickets: []qcontact.Ticket{{ID: "QC-001", Title: "a"}}},
		},
	}
	svc, _, _, _ := jobFixture(api)

	entry, err := svc.RunSyncJob(context.Background(), FullSyncRequest{Direction: models.SyncJobDirectionInbound})
	if err != nil {
		t.Fatalf("RunSyncJob: %v", err)
	}
	if entry.InboundProcessed != 1 {
		t.Errorf("InboundProcessed=%d", entry.InboundProcessed)
	}
	if entry.OutboundProcessed != 0 {
		t.Errorf("inbound方向不应该有出站统计: %d", entry.OutboundProcessed)
	}
}

func TestGetLastSyncJobRunEmpty(t *testing.T) {
	api := &fakeQContactAPI{}
	svc, _, _, _ := jobFixture(api)

	entry, err := svc.GetLastSyncJobRun()
	if err != nil {
		t.Fatalf("空历史不应该报错: %v", err)
	}
	if entry != nil {
		t.Errorf("空历史应该返回nil: %+v", entry)
	}
}

func TestGetSyncJobHistoryOrder(t *testing.T) {
	api := &fakeQContactAPI{
		listPages: []*qcontact.TicketListResponse{
			{Tickets: []qcontact.Ticket{{ID: "QC-001", Title: "a"}}},
			{},
		},
	}
	svc, _, _, _ := jobFixture(api)

	first, _ := svc.RunSyncJob(context.Background(), FullSyncRequest{Direction: models.SyncJobDirectionInbound})
	second, _ := svc.RunSyncJob(context.Background(), FullSyncRequest{Direction: models.SyncJobDirectionInbound})

	histories, err := svc.GetSyncJobHistory(JobHistoryQuery{})
	if err != nil {
		t.Fatalf("GetSyncJobHistory: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("应该有两条历史, got %d", len(histories))
	}
	// 最新的在前
	if histories[0].JobID != second.JobID || histories[1].JobID != first.JobID {
		t.Error("历史应该按时间倒序")
	}
}
