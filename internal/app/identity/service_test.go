package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casebridge/casebridge/internal/platform/auth"
)

type fakeRepo struct {
	operators     map[string]Operator
	members       map[string]map[string]string
	offices       map[string]Office
	refreshByHash map[string]RefreshToken

	createErr error
	findErr   error
	memberErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		operators:     map[string]Operator{},
		members:       map[string]map[string]string{},
		offices:       map[string]Office{},
		refreshByHash: map[string]RefreshToken{},
	}
}

func (f *fakeRepo) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeRepo) CreateOperator(ctx context.Context, op Operator) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.operators {
		if existing.Email == op.Email {
			return errors.New("duplicate")
		}
	}
	f.operators[op.ID] = op
	return nil
}

func (f *fakeRepo) FindOperatorByEmail(ctx context.Context, email string) (Operator, error) {
	if f.findErr != nil {
		return Operator{}, f.findErr
	}
	for _, op := range f.operators {
		if op.Email == email {
			return op, nil
		}
	}
	return Operator{}, ErrNotFound
}

func (f *fakeRepo) FindOperatorByID(ctx context.Context, operatorID string) (Operator, error) {
	op, ok := f.operators[operatorID]
	if !ok {
		return Operator{}, ErrNotFound
	}
	return op, nil
}

func (f *fakeRepo) CreateOffice(ctx context.Context, office Office, creatorOperatorID string) error {
	f.offices[office.ID] = office
	if f.members[office.ID] == nil {
		f.members[office.ID] = map[string]string{}
	}
	f.members[office.ID][creatorOperatorID] = RoleOwner
	return nil
}

func (f *fakeRepo) DeleteOffice(ctx context.Context, officeID string) error {
	if _, ok := f.offices[officeID]; !ok {
		return ErrNotFound
	}
	delete(f.offices, officeID)
	delete(f.members, officeID)
	return nil
}

func (f *fakeRepo) AddMemberWithRole(ctx context.Context, officeID, operatorID, role string) error {
	if f.members[officeID] == nil {
		f.members[officeID] = map[string]string{}
	}
	f.members[officeID][operatorID] = role
	return nil
}

func (f *fakeRepo) AddMemberByEmailWithRole(ctx context.Context, officeID, email, role string) error {
	for _, op := range f.operators {
		if op.Email == email {
			return f.AddMemberWithRole(ctx, officeID, op.ID, role)
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) SetMemberRoleByEmail(ctx context.Context, officeID, email, role string) error {
	for _, op := range f.operators {
		if op.Email == email {
			if _, exists := f.members[officeID][op.ID]; !exists {
				return ErrNotFound
			}
			f.members[officeID][op.ID] = role
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) GetMembershipRole(ctx context.Context, operatorID, officeID string) (string, error) {
	if f.memberErr != nil {
		return "", f.memberErr
	}
	role := f.members[officeID][operatorID]
	if role == "" {
		return "", ErrNotFound
	}
	return role, nil
}

func (f *fakeRepo) ListOfficesForOperator(ctx context.Context, operatorID string) ([]OfficeMembership, error) {
	result := []OfficeMembership{}
	for officeID, members := range f.members {
		if role, ok := members[operatorID]; ok {
			office := f.offices[officeID]
			result = append(result, OfficeMembership{OfficeID: officeID, OfficeName: office.Name, Role: role})
		}
	}
	return result, nil
}

func (f *fakeRepo) CreateRefreshToken(ctx context.Context, token RefreshToken) error {
	f.refreshByHash[token.TokenHash] = token
	return nil
}

func (f *fakeRepo) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	rt, ok := f.refreshByHash[tokenHash]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	if rt.RevokedAt != nil || rt.ExpiresAt.Before(time.Now().UTC()) {
		return RefreshToken{}, ErrNotFound
	}
	return rt, nil
}

func (f *fakeRepo) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	now := time.Now().UTC()
	for hash, rt := range f.refreshByHash {
		if rt.TokenID == tokenID {
			rt.RevokedAt = &now
			f.refreshByHash[hash] = rt
		}
	}
	return nil
}

func testTokenManager() auth.Manager {
	m := auth.NewManager("secret", time.Hour)
	m.Now = func() time.Time { return time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC) }
	return m
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, testTokenManager())
	next := 0
	svc.NewID = func() string {
		next++
		return "id-" + string(rune('a'+next))
	}

	reg, err := svc.Register(context.Background(), "Alice@Office.example", "password123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if reg.AccessToken == "" || reg.RefreshToken == "" || reg.OperatorID == "" {
		t.Fatalf("unexpected register response: %+v", reg)
	}
	if reg.Email != "alice@office.example" {
		t.Fatalf("email not normalized: %q", reg.Email)
	}

	login, err := svc.Login(context.Background(), "alice@office.example", "password123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatalf("unexpected refresh response: %+v", refreshed)
	}

	if err := svc.Logout(context.Background(), refreshed.RefreshToken); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := NewService(newFakeRepo(), testTokenManager())

	if _, err := svc.Register(context.Background(), "not-an-email", "password123"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@b.example", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestAddMemberRolePermissions(t *testing.T) {
	repo := newFakeRepo()
	repo.operators["op1"] = Operator{ID: "op1", Email: "owner@office.example"}
	repo.operators["op2"] = Operator{ID: "op2", Email: "bob@office.example"}
	repo.offices["office-1"] = Office{ID: "office-1", Name: "North Office"}
	repo.members["office-1"] = map[string]string{"op1": RoleOwner}

	svc := NewService(repo, testTokenManager())
	if err := svc.AddMemberByEmail(context.Background(), "op1", "office-1", "bob@office.example", RoleOperator); err != nil {
		t.Fatalf("AddMemberByEmail error: %v", err)
	}
	if role := repo.members["office-1"]["op2"]; role != RoleOperator {
		t.Fatalf("unexpected role: %s", role)
	}

	repo.members["office-1"]["op1"] = RoleOperator
	if err := svc.AddMemberByEmail(context.Background(), "op1", "office-1", "bob@office.example", RoleAdmin); !errors.Is(err, ErrForbiddenRole) {
		t.Fatalf("expected ErrForbiddenRole, got %v", err)
	}
}

func TestUpdateRoleRequiresOwner(t *testing.T) {
	repo := newFakeRepo()
	repo.operators["op1"] = Operator{ID: "op1", Email: "owner@office.example"}
	repo.operators["op2"] = Operator{ID: "op2", Email: "bob@office.example"}
	repo.offices["office-1"] = Office{ID: "office-1", Name: "North Office"}
	repo.members["office-1"] = map[string]string{"op1": RoleOwner, "op2": RoleOperator}

	svc := NewService(repo, testTokenManager())
	if err := svc.UpdateMemberRoleByEmail(context.Background(), "op1", "office-1", "bob@office.example", RoleAdmin); err != nil {
		t.Fatalf("UpdateMemberRoleByEmail error: %v", err)
	}
	if role := repo.members["office-1"]["op2"]; role != RoleAdmin {
		t.Fatalf("unexpected role after update: %s", role)
	}

	repo.members["office-1"]["op1"] = RoleAdmin
	if err := svc.UpdateMemberRoleByEmail(context.Background(), "op1", "office-1", "bob@office.example", RoleOperator); !errors.Is(err, ErrForbiddenRole) {
		t.Fatalf("expected ErrForbiddenRole, got %v", err)
	}
}

func TestEnsureMemberRole(t *testing.T) {
	repo := newFakeRepo()
	repo.members["office-1"] = map[string]string{"op1": RoleOperator}
	svc := NewService(repo, testTokenManager())

	role, err := svc.EnsureMemberRole(context.Background(), "op1", "office-1")
	if err != nil || role != RoleOperator {
		t.Fatalf("unexpected role %q err %v", role, err)
	}

	if _, err := svc.EnsureMemberRole(context.Background(), "op2", "office-1"); !errors.Is(err, ErrForbiddenOffice) {
		t.Fatalf("expected ErrForbiddenOffice, got %v", err)
	}
	if _, err := svc.EnsureMemberRole(context.Background(), "op1", ""); !errors.Is(err, ErrInvalidOfficeID) {
		t.Fatalf("expected ErrInvalidOfficeID, got %v", err)
	}
}
