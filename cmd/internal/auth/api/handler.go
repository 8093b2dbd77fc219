package authapi

import (
	"log/slog"
	"net/http"
	"time"

	"helix/cmd/identity"
	"helix/cmd/internal/auth/user"
)

// Handler exposes the authentication HTTP surface.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     *user.Service
	limiter *loginLimiter
}

// NewHandler builds the HTTP handler for the auth endpoints.
func NewHandler(log *slog.Logger, cfg Config, svc *user.Service) *Handler {
	return &Handler{
		log:     log,
		cfg:     cfg,
		svc:     svc,
		limiter: newLoginLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
	}
}

// Register wires the auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /users/register", h.handleRegister)
	mux.HandleFunc("POST /users/login", h.withLoginRateLimit(h.handleLogin))
	mux.HandleFunc("POST /users/logout", h.requireAuth(h.handleLogout))
	mux.HandleFunc("POST /users/refresh-token", h.withLoginRateLimit(h.handleRefresh))
	mux.HandleFunc("GET /users/current-user", h.requireAuth(h.handleCurrentUser))
	mux.HandleFunc("PATCH /users/update-user", h.requireAuth(h.handleUpdateUser))
	mux.HandleFunc("PATCH /users/update-password", h.requireAuth(h.handleUpdatePassword))
	mux.HandleFunc("GET /secured-page", h.requireAuth(h.handleSecuredPage))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	account, err := h.svc.Register(r.Context(), time.Now().UTC(), user.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(account))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	account, pair, err := h.svc.Login(r.Context(), time.Now().UTC(), user.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, loginResponse{
		User:         toUserResponse(account),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}

	if err := h.svc.Logout(r.Context(), time.Now().UTC(), account.ID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	// The token may arrive in the body or only as a cookie; an empty or
	// malformed body is not itself an error here.
	_ = decodeJSON(w, r, h.cfg.MaxBodyBytes, &req)

	presented := h.refreshTokenFromRequest(r, req.RefreshToken)
	if presented == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing refresh token")
		return
	}

	_, pair, err := h.svc.Refresh(r.Context(), time.Now().UTC(), presented)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(account))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), time.Now().UTC(), account.ID, req.FullName, req.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}

	var req updatePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	err := h.svc.ChangePassword(r.Context(), time.Now().UTC(), account.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *Handler) handleSecuredPage(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "authenticated",
		"user":    toUserResponse(account),
	})
}

// writeServiceError maps service-layer errors onto the HTTP taxonomy:
// invalid input and conflicts are 400, missing resources are 404, the
// credential/token family is 401, and everything else is a logged 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case identity.IsConflict(err):
		writeError(w, http.StatusBadRequest, "conflict", err.Error())
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case user.IsAuthError(err):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		h.log.Error("auth request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
