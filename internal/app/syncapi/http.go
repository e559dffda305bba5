package syncapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/casebridge/casebridge/internal/app/identity"
	"github.com/casebridge/casebridge/internal/app/runs"
	platformauth "github.com/casebridge/casebridge/internal/platform/auth"
)

type RunReader interface {
	GetRun(ctx context.Context, officeID, runID string) (runs.RunView, error)
	ListRuns(ctx context.Context, officeID string, limit int) ([]runs.RunView, error)
}

type Handler struct {
	Service       *Service
	Identity      *identity.Service
	Runs          RunReader
	AllowedOrigin string
}

func NewHandler(service *Service, identitySvc *identity.Service, runReader RunReader, allowedOrigin string) *Handler {
	return &Handler{
		Service:       service,
		Identity:      identitySvc,
		Runs:          runReader,
		AllowedOrigin: allowedOrigin,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/v1/auth/register", h.handleRegister)
	r.Post("/api/v1/auth/login", h.handleLogin)
	r.Post("/api/v1/auth/refresh", h.handleRefresh)
	r.Post("/api/v1/auth/logout", h.handleLogout)

	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Get("/api/v1/offices", h.handleListOffices)
		authR.Post("/api/v1/offices", h.handleCreateOffice)
		authR.Delete("/api/v1/offices/{officeID}", h.handleDeleteOffice)
		authR.Post("/api/v1/offices/{officeID}/members", h.handleAddMember)
		authR.Patch("/api/v1/offices/{officeID}/members/role", h.handleUpdateMemberRole)

		authR.Post("/api/v1/offices/{officeID}/sync/{entityType}", h.handleTriggerSync)
		authR.Get("/api/v1/offices/{officeID}/sync/runs", h.handleListRuns)
		authR.Get("/api/v1/offices/{officeID}/sync/runs/{runID}", h.handleGetRun)
	})

	return r
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type createOfficeRequest struct {
	Name string `json:"name"`
}

type memberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidPassword):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				h.writeError(w, http.StatusConflict, "email already registered")
				return
			}
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrRefreshTokenMissing):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrInvalidRefreshToken):
			h.writeError(w, http.StatusUnauthorized, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.Identity.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, identity.ErrRefreshTokenMissing) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOffices(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	offices, err := h.Identity.ListOffices(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, offices)
}

func (h *Handler) handleCreateOffice(w http.ResponseWriter, r *http.Request) {
	var req createOfficeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	office, err := h.Identity.CreateOffice(r.Context(), claims.Subject, req.Name)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidOfficeName) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, office)
}

func (h *Handler) handleDeleteOffice(w http.ResponseWriter, r *http.Request) {
	officeID := chi.URLParam(r, "officeID")
	claims := claimsFromContext(r.Context())
	err := h.Identity.DeleteOffice(r.Context(), claims.Subject, officeID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidOfficeID):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrForbiddenOffice), errors.Is(err, identity.ErrForbiddenRole):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "office not found")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	officeID := chi.URLParam(r, "officeID")
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	err := h.Identity.AddMemberByEmail(r.Context(), claims.Subject, officeID, req.Email, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidOfficeID), errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidRole):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrForbiddenOffice), errors.Is(err, identity.ErrForbiddenRole):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "operator not found")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	officeID := chi.URLParam(r, "officeID")
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	err := h.Identity.UpdateMemberRoleByEmail(r.Context(), claims.Subject, officeID, req.Email, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidOfficeID), errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidRole):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrForbiddenOffice), errors.Is(err, identity.ErrForbiddenRole):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "operator not found")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	officeID := chi.URLParam(r, "officeID")
	entityType := chi.URLParam(r, "entityType")

	// An empty body means a default incremental sync.
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	claims := claimsFromContext(r.Context())
	if !h.ensureMembership(w, r, claims.Subject, officeID) {
		return
	}

	resp, err := h.Service.Trigger(Actor{OperatorID: claims.Subject, Email: claims.Email}, officeID, entityType, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOfficeID), errors.Is(err, ErrInvalidEntityType):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	officeID := chi.URLParam(r, "officeID")
	claims := claimsFromContext(r.Context())
	if !h.ensureMembership(w, r, claims.Subject, officeID) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.Runs.ListRuns(r.Context(), officeID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	officeID := chi.URLParam(r, "officeID")
	runID := chi.URLParam(r, "runID")
	claims := claimsFromContext(r.Context())
	if !h.ensureMembership(w, r, claims.Subject, officeID) {
		return
	}

	run, err := h.Runs.GetRun(r.Context(), officeID, runID)
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, "sync run not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// ensureMembership blocks cross-office access before any repository or
// publish call. Returns false after writing the error response.
func (h *Handler) ensureMembership(w http.ResponseWriter, r *http.Request, operatorID, officeID string) bool {
	_, err := h.Identity.EnsureMemberRole(r.Context(), operatorID, officeID)
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, identity.ErrInvalidOfficeID):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrForbiddenOffice):
		h.writeError(w, http.StatusForbidden, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
	return false
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOriginForRequest(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOriginForRequest(requestOrigin string) string {
	allowed := strings.TrimSpace(h.AllowedOrigin)
	if allowed == "" || allowed == "*" {
		return "*"
	}

	origin := strings.TrimSpace(requestOrigin)
	if origin == "" || origin == allowed {
		return allowed
	}
	if isEquivalentLoopbackOrigin(origin, allowed) {
		return origin
	}
	return allowed
}

func isEquivalentLoopbackOrigin(originA, originB string) bool {
	a, err := url.Parse(originA)
	if err != nil {
		return false
	}
	b, err := url.Parse(originB)
	if err != nil {
		return false
	}
	if !isLoopbackHost(a.Hostname()) || !isLoopbackHost(b.Hostname()) {
		return false
	}
	if a.Port() != b.Port() {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme)
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

type claimsContextKey struct{}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := platformauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.Identity.AuthToken.Parse(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := contextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func contextWithClaims(ctx context.Context, claims platformauth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) platformauth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(platformauth.Claims)
	return claims
}
