package legacy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/domain"
)

func TestSearchCases_SendsOfficeAndDateWindow(t *testing.T) {
	var gotQuery string
	var gotBody caseSearchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cases/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("officeId")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(caseSearchResponse{Results: []Case{{ID: 42}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", zap.NewNop())
	office, _ := domain.ParseOfficeID("office-1")

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	results, err := client.SearchCases(context.Background(), office, CaseQuery{
		DateField:      DateFieldModified,
		From:           from,
		To:             to,
		PageNo:         1,
		ResultsPerPage: 100,
	})
	if err != nil {
		t.Fatalf("SearchCases returned error: %v", err)
	}
	if len(results) != 1 || results[0].ID != 42 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if gotQuery != "office-1" {
		t.Fatalf("unexpected officeId param: %q", gotQuery)
	}
	if gotBody.DateRange.Type != DateFieldModified || !gotBody.DateRange.From.Equal(from) || !gotBody.DateRange.To.Equal(to) {
		t.Fatalf("unexpected date range: %+v", gotBody.DateRange)
	}
	if gotBody.PageNo != 1 || gotBody.ResultsPerPage != 100 {
		t.Fatalf("unexpected paging: %+v", gotBody)
	}
}

func TestSearchConstituents_OmitsAbsentFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("createdAfter") {
			t.Fatal("createdAfter must be omitted when unset")
		}
		if q.Get("modifiedAfter") == "" {
			t.Fatal("modifiedAfter must be present")
		}
		if q.Get("page") != "3" || q.Get("limit") != "100" {
			t.Fatalf("unexpected paging params: %v", q)
		}
		_ = json.NewEncoder(w).Encode(constituentSearchResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", zap.NewNop())
	office, _ := domain.ParseOfficeID("office-1")

	since := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	_, err := client.SearchConstituents(context.Background(), office, ConstituentQuery{
		ModifiedAfter: &since,
		Page:          3,
		Limit:         100,
	})
	if err != nil {
		t.Fatalf("SearchConstituents returned error: %v", err)
	}
}

func TestSearchEmails_ErrorStatusIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "legacy down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", zap.NewNop())
	office, _ := domain.ParseOfficeID("office-1")

	if _, err := client.SearchEmails(context.Background(), office, EmailQuery{Page: 1, Limit: 100}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
