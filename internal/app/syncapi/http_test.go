package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casebridge/casebridge/internal/app/identity"
	"github.com/casebridge/casebridge/internal/app/runs"
	platformauth "github.com/casebridge/casebridge/internal/platform/auth"
)

type fakeIdentityRepo struct {
	operators     map[string]identity.Operator
	members       map[string]map[string]string
	offices       map[string]identity.Office
	refreshByHash map[string]identity.RefreshToken
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		operators:     map[string]identity.Operator{},
		members:       map[string]map[string]string{},
		offices:       map[string]identity.Office{},
		refreshByHash: map[string]identity.RefreshToken{},
	}
}

func (f *fakeIdentityRepo) EnsureSchema(ctx context.Context) error { return nil }
func (f *fakeIdentityRepo) CreateOperator(ctx context.Context, op identity.Operator) error {
	for _, existing := range f.operators {
		if existing.Email == op.Email {
			return errors.New("duplicate")
		}
	}
	f.operators[op.ID] = op
	return nil
}
func (f *fakeIdentityRepo) FindOperatorByEmail(ctx context.Context, email string) (identity.Operator, error) {
	for _, op := range f.operators {
		if op.Email == email {
			return op, nil
		}
	}
	return identity.Operator{}, identity.ErrNotFound
}
func (f *fakeIdentityRepo) FindOperatorByID(ctx context.Context, operatorID string) (identity.Operator, error) {
	op, ok := f.operators[operatorID]
	if !ok {
		return identity.Operator{}, identity.ErrNotFound
	}
	return op, nil
}
func (f *fakeIdentityRepo) CreateOffice(ctx context.Context, office identity.Office, creatorOperatorID string) error {
	f.offices[office.ID] = office
	if f.members[office.ID] == nil {
		f.members[office.ID] = map[string]string{}
	}
	f.members[office.ID][creatorOperatorID] = identity.RoleOwner
	return nil
}
func (f *fakeIdentityRepo) DeleteOffice(ctx context.Context, officeID string) error {
	if _, ok := f.offices[officeID]; !ok {
		return identity.ErrNotFound
	}
	delete(f.offices, officeID)
	delete(f.members, officeID)
	return nil
}
func (f *fakeIdentityRepo) AddMemberWithRole(ctx context.Context, officeID, operatorID, role string) error {
	if f.members[officeID] == nil {
		f.members[officeID] = map[string]string{}
	}
	f.members[officeID][operatorID] = role
	return nil
}
func (f *fakeIdentityRepo) AddMemberByEmailWithRole(ctx context.Context, officeID, email, role string) error {
	for _, op := range f.operators {
		if op.Email == email {
			return f.AddMemberWithRole(ctx, officeID, op.ID, role)
		}
	}
	return identity.ErrNotFound
}
func (f *fakeIdentityRepo) SetMemberRoleByEmail(ctx context.Context, officeID, email, role string) error {
	for _, op := range f.operators {
		if op.Email == email {
			if _, ok := f.members[officeID][op.ID]; !ok {
				return identity.ErrNotFound
			}
			f.members[officeID][op.ID] = role
			return nil
		}
	}
	return identity.ErrNotFound
}
func (f *fakeIdentityRepo) GetMembershipRole(ctx context.Context, operatorID, officeID string) (string, error) {
	role := f.members[officeID][operatorID]
	if role == "" {
		return "", identity.ErrNotFound
	}
	return role, nil
}
func (f *fakeIdentityRepo) ListOfficesForOperator(ctx context.Context, operatorID string) ([]identity.OfficeMembership, error) {
	out := []identity.OfficeMembership{}
	for officeID, members := range f.members {
		if role, ok := members[operatorID]; ok {
			office := f.offices[officeID]
			out = append(out, identity.OfficeMembership{OfficeID: officeID, OfficeName: office.Name, Role: role})
		}
	}
	return out, nil
}
func (f *fakeIdentityRepo) CreateRefreshToken(ctx context.Context, token identity.RefreshToken) error {
	f.refreshByHash[token.TokenHash] = token
	return nil
}
func (f *fakeIdentityRepo) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (identity.RefreshToken, error) {
	rt, ok := f.refreshByHash[tokenHash]
	if !ok || rt.RevokedAt != nil {
		return identity.RefreshToken{}, identity.ErrNotFound
	}
	return rt, nil
}
func (f *fakeIdentityRepo) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	now := time.Now().UTC()
	for hash, rt := range f.refreshByHash {
		if rt.TokenID == tokenID {
			rt.RevokedAt = &now
			f.refreshByHash[hash] = rt
		}
	}
	return nil
}

type fakeRunReader struct {
	runs map[string]runs.RunView // key: office/run
}

func (f fakeRunReader) GetRun(ctx context.Context, officeID, runID string) (runs.RunView, error) {
	v, ok := f.runs[officeID+"/"+runID]
	if !ok {
		return runs.RunView{}, runs.ErrRunNotFound
	}
	return v, nil
}

func (f fakeRunReader) ListRuns(ctx context.Context, officeID string, limit int) ([]runs.RunView, error) {
	out := []runs.RunView{}
	for _, v := range f.runs {
		if v.OfficeID == officeID {
			out = append(out, v)
		}
	}
	return out, nil
}

// bcrypt hash of "password123"
const testPasswordHash = "$2a$10$Qdv1fOD2vEUCA6cQbjHqUecFp4Pw1nJ7l/SXxPxq8np5xpoE2mR9a"

func newHandlerForTests() (*Handler, *identity.Service) {
	repo := newFakeIdentityRepo()
	repo.operators["op1"] = identity.Operator{ID: "op1", Email: "alice@office.example", PasswordHash: testPasswordHash}
	repo.members["office-1"] = map[string]string{"op1": identity.RoleOwner}
	repo.offices["office-1"] = identity.Office{ID: "office-1", Name: "North Office"}

	mgr := platformauth.NewManager("secret", time.Hour)
	mgr.Now = func() time.Time { return time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC) }
	identitySvc := identity.NewService(repo, mgr)
	identitySvc.NewID = func() string { return "id-1" }

	svc := NewService(func(_ string, _ []byte) error { return nil })
	svc.NewID = func() string { return "run-abc" }

	runReader := fakeRunReader{runs: map[string]runs.RunView{
		"office-1/run-1": {RunID: "run-1", OfficeID: "office-1", EntityType: "cases", Status: "completed", RecordsSynced: 7},
	}}

	return NewHandler(svc, identitySvc, runReader, "http://localhost:8081"), identitySvc
}

func TestTriggerSync_Unauthorized(t *testing.T) {
	handler, _ := newHandlerForTests()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offices/office-1/sync/cases", nil)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestTriggerSync_Accepted(t *testing.T) {
	handler, identitySvc := newHandlerForTests()
	token, err := identitySvc.AuthToken.Sign("op1", "alice@office.example")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	body := `{"full":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offices/office-1/sync/cases", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp TriggerResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.RunID != "run-abc" || resp.Status != "accepted" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTriggerSync_EmptyBodyDefaultsToIncremental(t *testing.T) {
	handler, identitySvc := newHandlerForTests()
	token, _ := identitySvc.AuthToken.Sign("op1", "alice@office.example")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offices/office-1/sync/emails", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestTriggerSync_ForbiddenForNonMember(t *testing.T) {
	handler, identitySvc := newHandlerForTests()
	token, _ := identitySvc.AuthToken.Sign("op2", "mallory@other.example")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offices/office-1/sync/cases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestTriggerSync_UnknownEntityType(t *testing.T) {
	handler, identitySvc := newHandlerForTests()
	token, _ := identitySvc.AuthToken.Sign("op1", "alice@office.example")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offices/office-1/sync/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetRun_ScopedToOffice(t *testing.T) {
	handler, identitySvc := newHandlerForTests()
	token, _ := identitySvc.AuthToken.Sign("op1", "alice@office.example")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/offices/office-1/sync/runs/run-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var run runs.RunView
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("invalid run JSON: %v", err)
	}
	if run.RunID != "run-1" || run.RecordsSynced != 7 {
		t.Fatalf("unexpected run: %+v", run)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/offices/office-1/sync/runs/run-unknown", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAuthRegisterLoginRefreshLogout(t *testing.T) {
	handler, _ := newHandlerForTests()

	registerBody := `{"email":"bob@office.example","password":"password123"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(registerBody))
	handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var reg identity.AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &reg); err != nil {
		t.Fatalf("invalid register response: %v", err)
	}

	refreshBody := `{"refresh_token":"` + reg.RefreshToken + `"}`
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewBufferString(refreshBody))
	handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var refreshed identity.AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("invalid refresh response: %v", err)
	}

	logoutBody := `{"refresh_token":"` + refreshed.RefreshToken + `"}`
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewBufferString(logoutBody))
	handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestOptions_HasCORSHeaders(t *testing.T) {
	handler, _ := newHandlerForTests()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/offices/office-1/sync/cases", nil)
	rr := httptest.NewRecorder()
	handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Fatalf("unexpected CORS origin: %q", got)
	}
}
