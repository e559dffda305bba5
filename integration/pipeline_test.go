// Package integration wires the real pieces together in-process: an HTTP
// test server standing in for the legacy Caseworker API, the resty client,
// the sync engine with in-memory shadow storage, the worker service, and
// the audit sink service consuming the published events. No external
// infrastructure is required.
package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/app/auditsink"
	"github.com/casebridge/casebridge/internal/app/syncrun"
	"github.com/casebridge/casebridge/internal/app/syncworker"
	"github.com/casebridge/casebridge/internal/contracts"
	"github.com/casebridge/casebridge/internal/domain"
	"github.com/casebridge/casebridge/internal/legacy"
	"github.com/casebridge/casebridge/internal/shadow"
)

func newLegacyClient(baseURL string) *legacy.Client {
	return legacy.NewClient(baseURL, "test-key", zap.NewNop())
}

type memoryCaseRepo struct {
	rows map[string]*domain.Case
	seq  int
}

func newMemoryCaseRepo() *memoryCaseRepo {
	return &memoryCaseRepo{rows: map[string]*domain.Case{}}
}

func (r *memoryCaseRepo) key(office domain.OfficeID, externalID domain.ExternalID) string {
	return office.String() + "/" + externalID.String()
}

func (r *memoryCaseRepo) FindByExternalID(_ context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Case, error) {
	row, ok := r.rows[r.key(office, externalID)]
	if !ok {
		return nil, shadow.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *memoryCaseRepo) Save(_ context.Context, c *domain.Case) (*domain.Case, error) {
	saved := *c
	if saved.ID == "" {
		r.seq++
		saved.ID = fmt.Sprintf("row-%d", r.seq)
	}
	r.rows[r.key(saved.OfficeID, saved.ExternalID)] = &saved
	copied := saved
	return &copied, nil
}

type memoryAuditRepo struct {
	events []contracts.SyncEvent
}

func (r *memoryAuditRepo) InsertEvent(_ context.Context, event contracts.SyncEvent, _ uint64) error {
	r.events = append(r.events, event)
	return nil
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, string, string) error { return nil }
func (noopLocker) Release(context.Context, string, string, string) error { return nil }

// legacyCaseServer serves the Caseworker case search endpoint with one
// full-but-short page so the engine terminates after a single fetch.
func legacyCaseServer(t *testing.T, cases []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cases/search" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			PageNo int `json:"pageNo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		results := cases
		if req.PageNo > 1 {
			results = nil
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func TestCommandToShadowRowsAndAuditTrail(t *testing.T) {
	server := legacyCaseServer(t, []map[string]any{
		{"id": 101, "statusID": 3, "summary": "school placement appeal"},
		{"id": 102, "statusID": 5, "summary": "housing disrepair"},
	})
	defer server.Close()

	logger := zap.NewNop()
	legacyClient := newLegacyClient(server.URL)

	auditRepo := &memoryAuditRepo{}
	sink := auditsink.NewService(auditRepo)

	// The worker's publish hook feeds the audit sink directly, standing in
	// for the SYNC_EVENTS stream.
	var streamSeq uint64
	publish := func(subject string, payload []byte) error {
		streamSeq++
		return sink.Handle(context.Background(), payload, streamSeq)
	}

	engine := syncrun.NewEngine(publish, logger)
	caseRepo := newMemoryCaseRepo()
	service := syncworker.NewService(engine, syncworker.Sources{
		Cases: syncrun.NewCaseSource(legacyClient, caseRepo),
	}, noopLocker{}, publish, logger)

	cmd := contracts.SyncCommand{
		CommandID:  "run-e2e-1",
		OfficeID:   "office-a",
		EntityType: contracts.EntityCases,
		Full:       true,
		CreatedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}

	res, err := service.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.Success || res.RecordsCreated != 2 || res.RecordsFailed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	office, _ := domain.ParseOfficeID("office-a")
	for _, id := range []int64{101, 102} {
		externalID, _ := domain.ParseExternalID(id)
		row, err := caseRepo.FindByExternalID(context.Background(), office, externalID)
		if err != nil {
			t.Fatalf("case %d not in shadow store: %v", id, err)
		}
		if row.ID == "" {
			t.Fatalf("case %d has no internal id", id)
		}
	}

	wantTypes := []string{
		contracts.EventSyncStarted,
		contracts.EventEntityCreated,
		contracts.EventEntityCreated,
		contracts.EventSyncCompleted,
	}
	if len(auditRepo.events) != len(wantTypes) {
		t.Fatalf("audit trail has %d events, want %d", len(auditRepo.events), len(wantTypes))
	}
	for i, want := range wantTypes {
		event := auditRepo.events[i]
		if event.EventType != want {
			t.Fatalf("event %d is %s, want %s", i, event.EventType, want)
		}
		if event.RunID != "run-e2e-1" || event.OfficeID != "office-a" {
			t.Fatalf("event %d carries wrong identity: %+v", i, event)
		}
	}
	completed := auditRepo.events[len(auditRepo.events)-1]
	if completed.RecordsSynced != 2 {
		t.Fatalf("completed event reports %d records, want 2", completed.RecordsSynced)
	}
}

func TestSecondRunUpdatesInsteadOfDuplicating(t *testing.T) {
	server := legacyCaseServer(t, []map[string]any{
		{"id": 101, "statusID": 3, "summary": "school placement appeal"},
	})
	defer server.Close()

	logger := zap.NewNop()
	legacyClient := newLegacyClient(server.URL)
	publish := func(string, []byte) error { return nil }

	engine := syncrun.NewEngine(publish, logger)
	caseRepo := newMemoryCaseRepo()
	service := syncworker.NewService(engine, syncworker.Sources{
		Cases: syncrun.NewCaseSource(legacyClient, caseRepo),
	}, noopLocker{}, publish, logger)

	for run := 1; run <= 2; run++ {
		cmd := contracts.SyncCommand{
			CommandID:  fmt.Sprintf("run-e2e-%d", run),
			OfficeID:   "office-a",
			EntityType: contracts.EntityCases,
			Full:       true,
		}
		payload, _ := json.Marshal(cmd)
		res, err := service.Handle(context.Background(), payload)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if run == 1 && res.RecordsCreated != 1 {
			t.Fatalf("first run created %d rows, want 1", res.RecordsCreated)
		}
		if run == 2 && (res.RecordsCreated != 0 || res.RecordsUpdated != 1) {
			t.Fatalf("second run must update in place, got %+v", res)
		}
	}
	if len(caseRepo.rows) != 1 {
		t.Fatalf("shadow store has %d rows, want 1", len(caseRepo.rows))
	}
}
