package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/casebridge/casebridge/internal/platform/auth"
)

var (
	ErrInvalidEmail        = errors.New("email is required")
	ErrInvalidPassword     = errors.New("password must be at least 8 characters")
	ErrInvalidOfficeName   = errors.New("office name is required")
	ErrInvalidOfficeID     = errors.New("office_id is required")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrForbiddenOffice     = errors.New("operator is not a member of the office")
	ErrForbiddenRole       = errors.New("insufficient permissions for this action")
	ErrRefreshTokenMissing = errors.New("refresh_token is required")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	OperatorID   string `json:"operator_id"`
	Email        string `json:"email"`
}

type Service struct {
	Repo       Repository
	AuthToken  auth.Manager
	NewID      func() string
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewService(repo Repository, tokenManager auth.Manager) *Service {
	return &Service{
		Repo:       repo,
		AuthToken:  tokenManager,
		NewID:      nuid.Next,
		RefreshTTL: 30 * 24 * time.Hour,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	e := normalizeEmail(email)
	if e == "" || !strings.Contains(e, "@") {
		return ErrInvalidEmail
	}
	if len(strings.TrimSpace(password)) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func IsValidRole(role string) bool {
	switch strings.TrimSpace(role) {
	case RoleOwner, RoleAdmin, RoleOperator:
		return true
	default:
		return false
	}
}

func canManageMembers(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}

func canManageRoles(role string) bool {
	return role == RoleOwner
}

func (s *Service) Register(ctx context.Context, email, password string) (AuthResponse, error) {
	if err := validateCredentials(email, password); err != nil {
		return AuthResponse{}, err
	}
	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	op := Operator{
		ID:           s.NewID(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.Repo.CreateOperator(ctx, op); err != nil {
		return AuthResponse{}, err
	}
	return s.issueSession(ctx, op)
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return AuthResponse{}, ErrInvalidCredentials
	}

	op, err := s.Repo.FindOperatorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResponse{}, ErrInvalidCredentials
		}
		return AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return AuthResponse{}, ErrInvalidCredentials
	}
	return s.issueSession(ctx, op)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResponse{}, ErrRefreshTokenMissing
	}

	session, err := s.Repo.FindRefreshTokenByHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResponse{}, ErrInvalidRefreshToken
		}
		return AuthResponse{}, err
	}
	if err := s.Repo.RevokeRefreshToken(ctx, session.TokenID); err != nil {
		return AuthResponse{}, err
	}

	op, err := s.Repo.FindOperatorByID(ctx, session.OperatorID)
	if err != nil {
		return AuthResponse{}, err
	}
	return s.issueSession(ctx, op)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return ErrRefreshTokenMissing
	}
	session, err := s.Repo.FindRefreshTokenByHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Repo.RevokeRefreshToken(ctx, session.TokenID)
}

func (s *Service) CreateOffice(ctx context.Context, actorOperatorID, name string) (Office, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Office{}, ErrInvalidOfficeName
	}
	office := Office{ID: s.NewID(), Name: name}
	if err := s.Repo.CreateOffice(ctx, office, actorOperatorID); err != nil {
		return Office{}, err
	}
	return office, nil
}

func (s *Service) DeleteOffice(ctx context.Context, actorOperatorID, officeID string) error {
	officeID = strings.TrimSpace(officeID)
	if officeID == "" {
		return ErrInvalidOfficeID
	}

	actorRole, err := s.Repo.GetMembershipRole(ctx, actorOperatorID, officeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbiddenOffice
		}
		return err
	}
	if actorRole != RoleOwner {
		return ErrForbiddenRole
	}

	return s.Repo.DeleteOffice(ctx, officeID)
}

func (s *Service) AddMemberByEmail(ctx context.Context, actorOperatorID, officeID, email, role string) error {
	officeID = strings.TrimSpace(officeID)
	if officeID == "" {
		return ErrInvalidOfficeID
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = RoleOperator
	}
	if !IsValidRole(role) || role == RoleOwner {
		return ErrInvalidRole
	}

	actorRole, err := s.Repo.GetMembershipRole(ctx, actorOperatorID, officeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbiddenOffice
		}
		return err
	}
	if !canManageMembers(actorRole) {
		return ErrForbiddenRole
	}
	if actorRole != RoleOwner && role == RoleAdmin {
		return ErrForbiddenRole
	}

	return s.Repo.AddMemberByEmailWithRole(ctx, officeID, email, role)
}

func (s *Service) UpdateMemberRoleByEmail(ctx context.Context, actorOperatorID, officeID, email, role string) error {
	officeID = strings.TrimSpace(officeID)
	if officeID == "" {
		return ErrInvalidOfficeID
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	role = strings.TrimSpace(role)
	if !IsValidRole(role) || role == RoleOwner {
		return ErrInvalidRole
	}

	actorRole, err := s.Repo.GetMembershipRole(ctx, actorOperatorID, officeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbiddenOffice
		}
		return err
	}
	if !canManageRoles(actorRole) {
		return ErrForbiddenRole
	}
	return s.Repo.SetMemberRoleByEmail(ctx, officeID, email, role)
}

func (s *Service) ListOffices(ctx context.Context, operatorID string) ([]OfficeMembership, error) {
	return s.Repo.ListOfficesForOperator(ctx, operatorID)
}

// EnsureMemberRole verifies that the operator belongs to the office and
// returns the role. Every office-scoped API call goes through here before
// touching any repository.
func (s *Service) EnsureMemberRole(ctx context.Context, operatorID, officeID string) (string, error) {
	if strings.TrimSpace(officeID) == "" {
		return "", ErrInvalidOfficeID
	}
	role, err := s.Repo.GetMembershipRole(ctx, operatorID, officeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrForbiddenOffice
		}
		return "", err
	}
	return role, nil
}

func (s *Service) issueSession(ctx context.Context, op Operator) (AuthResponse, error) {
	accessToken, err := s.AuthToken.Sign(op.ID, op.Email)
	if err != nil {
		return AuthResponse{}, err
	}

	refreshToken := s.NewID() + "." + s.NewID()
	session := RefreshToken{
		TokenID:    s.NewID(),
		OperatorID: op.ID,
		TokenHash:  hashRefreshToken(refreshToken),
		ExpiresAt:  s.Now().Add(s.RefreshTTL),
	}
	if err := s.Repo.CreateRefreshToken(ctx, session); err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		OperatorID:   op.ID,
		Email:        op.Email,
	}, nil
}

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func NewTokenManager(secret string) auth.Manager {
	return auth.NewManager(secret, 15*time.Minute)
}
