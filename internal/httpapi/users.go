package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vouse/postqueue/internal/domain/user"
	"github.com/vouse/postqueue/internal/identity"
	"github.com/vouse/postqueue/internal/twitter"
	"github.com/vouse/postqueue/pkg/response"
)

// UserHandler exposes the User & Token Store surface: connect/disconnect
// the Twitter account, report connection status, and own-profile lookup.
type UserHandler struct {
	users      *user.Service
	twitterCli *twitter.Client
}

func NewUserHandler(users *user.Service, twitterCli *twitter.Client) *UserHandler {
	return &UserHandler{users: users, twitterCli: twitterCli}
}

type userResponse struct {
	UserID      string     `json:"userId"`
	IsConnected bool       `json:"isConnected"`
	ExpiresAt   *time.Time `json:"tokenExpiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		UserID:      u.UserID(),
		IsConnected: u.IsConnected(),
		ExpiresAt:   u.TokenExpiresAt(),
		CreatedAt:   u.CreatedAt(),
		UpdatedAt:   u.UpdatedAt(),
	}
}

func writeUserError(w http.ResponseWriter, err error) {
	code := string(user.GetErrorCode(err))
	switch {
	case user.IsNotFound(err):
		response.Error(w, http.StatusNotFound, "user not found", code, err)
	case user.IsConflict(err):
		response.Error(w, http.StatusConflict, "user state conflict", code, err)
	default:
		response.Error(w, http.StatusInternalServerError, "internal error", code, err)
	}
}

// Me handles GET /users/me, resolving the caller's own row, creating it
// on first touch per spec.md §4.3.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.Subject(r.Context())
	u, err := h.users.FindOrCreate(r.Context(), userID)
	if err != nil {
		writeUserError(w, err)
		return
	}
	response.Success(w, toUserResponse(u))
}

// Get handles GET /users/{userId}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeUserError(w, err)
		return
	}
	response.Success(w, toUserResponse(u))
}

type connectTwitterRequest struct {
	AccessToken  string     `json:"accessToken" validate:"required"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

// Connect handles POST /users/{userId}/connect-twitter and
// POST /x/auth/{userId}/connect.
func (h *UserHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req connectTwitterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.users.ConnectTwitter(r.Context(), userID, req.AccessToken, req.RefreshToken, req.ExpiresAt)
	if err != nil {
		writeUserError(w, err)
		return
	}
	response.Success(w, toUserResponse(u))
}

// Disconnect handles DELETE /users/{userId}/disconnect-twitter and
// DELETE /x/auth/{userId}/disconnect.
func (h *UserHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := h.users.DisconnectTwitter(r.Context(), userID); err != nil {
		writeUserError(w, err)
		return
	}
	response.NoContent(w)
}

type connectionStatusRequest struct {
	Connected bool `json:"connected"`
}

// UpdateConnectionStatus handles POST /users/{userId}/connection-status.
func (h *UserHandler) UpdateConnectionStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req connectionStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.users.UpdateConnectionStatus(r.Context(), userID, req.Connected)
	if err != nil {
		writeUserError(w, err)
		return
	}
	response.Success(w, toUserResponse(u))
}

type statusResponse struct {
	Connected bool `json:"connected"`
	Valid     bool `json:"valid"`
}

// Status handles GET /x/auth/{userId}/status.
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeUserError(w, err)
		return
	}
	response.Success(w, statusResponse{Connected: u.IsConnected(), Valid: u.IsConnected()})
}

// Verify handles POST /x/auth/{userId}/verify: round-trips the stored
// access token against Twitter to confirm it still works.
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	tokens, err := h.users.GetPlaintextTokens(r.Context(), userID)
	if err != nil {
		writeUserError(w, err)
		return
	}
	if tokens == nil {
		response.Success(w, statusResponse{Connected: false, Valid: false})
		return
	}

	_, err = h.twitterCli.VerifyTokens(r.Context(), userID, tokens.AccessToken)
	if err != nil {
		response.Success(w, statusResponse{Connected: true, Valid: false})
		return
	}
	response.Success(w, statusResponse{Connected: true, Valid: true})
}

type registerDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

// RegisterDevice handles POST /notifications/{userId}/register.
func (h *UserHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req registerDeviceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.users.RegisterDevice(r.Context(), uuid.NewString(), userID, req.Token, user.DevicePlatform(req.Platform)); err != nil {
		writeUserError(w, err)
		return
	}
	response.Created(w, map[string]string{"status": "registered"})
}

// UnregisterDevice handles DELETE /notifications/{userId}/tokens/{token}.
func (h *UserHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	token := chi.URLParam(r, "token")
	if err := h.users.UnregisterDevice(r.Context(), userID, token); err != nil {
		writeUserError(w, err)
		return
	}
	response.NoContent(w)
}
