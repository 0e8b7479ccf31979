// Package account serves registration, login, logout and the current-user endpoint.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/auth"
	sessionentity "github.com/ovaphlow/pitchfork/service-budget-go/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-budget-go/pkg/utilities"
)

// Users is the part of user.Service the handlers need.
type Users interface {
	Register(ctx context.Context, username, password string) (*entity.User, error)
	Authenticate(ctx context.Context, username, password string) (*entity.User, error)
}

// Sessions is the part of session.Store the handlers need.
type Sessions interface {
	CreateToken(ctx context.Context, userID int64) (*sessionentity.AccessToken, error)
	RevokeToken(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	users    Users
	sessions Sessions
	cookies  auth.Cookies
	logger   *zap.SugaredLogger
}

func NewHandler(users Users, sessions Sessions, cookies auth.Cookies, logger *zap.SugaredLogger) *Handler {
	return &Handler{users: users, sessions: sessions, cookies: cookies, logger: logger}
}

type credentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// decodeCredentials reports false unless both fields are present JSON strings.
func decodeCredentials(r *http.Request) (username, password string, ok bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", false
	}
	if req.Username == nil || req.Password == nil {
		return "", "", false
	}
	return *req.Username, *req.Password, true
}

// Register creates the account and logs the new user in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	username, password, ok := decodeCredentials(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "Missing parameters")
		return
	}

	u, err := h.users.Register(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			utilities.WriteError(w, http.StatusConflict, "The username is already in use")
		case errors.Is(err, user.ErrInvalidUsername):
			utilities.WriteError(w, http.StatusBadRequest, "Username must be alphanumeric and between 3-20 chars")
		case errors.Is(err, user.ErrPasswordTooShort):
			utilities.WriteError(w, http.StatusBadRequest, "Password must be at least 8 chars")
		case errors.Is(err, user.ErrPasswordTooLong):
			utilities.WriteError(w, http.StatusBadRequest, "Your password is too long!")
		default:
			h.logger.Errorw("failed to create user", "username", username, "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "Unknown error while creating user")
		}
		return
	}

	if !h.startSession(w, r, u.ID) {
		return
	}
	h.logger.Infow("user created", "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusOK, messageResponse{Message: "Your account has been created"})
}

// Login checks the credentials and issues a fresh session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := decodeCredentials(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "Missing parameters")
		return
	}

	u, err := h.users.Authenticate(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			utilities.WriteError(w, http.StatusNotFound, "The user does not exist")
		case errors.Is(err, user.ErrBadCredentials):
			utilities.WriteError(w, http.StatusUnauthorized, "Incorrect username or password")
		default:
			h.logger.Errorw("login failed", "username", username, "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "Sorry, something went wrong.")
		}
		return
	}

	if !h.startSession(w, r, u.ID) {
		return
	}
	utilities.WriteJSON(w, http.StatusOK, messageResponse{Message: "You are now logged in as " + u.Username})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, userID int64) bool {
	tok, err := h.sessions.CreateToken(r.Context(), userID)
	if err != nil {
		h.logger.Errorw("failed to issue token", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Sorry, something went wrong.")
		return false
	}
	h.cookies.Set(w, tok.Token, tok.Expires)
	return true
}

// Me returns the logged-in user's name.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "You must be logged in to do that")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"username": u.Username})
}

// Logout revokes the current token and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "You must be logged in to do that")
		return
	}
	if _, err := h.sessions.RevokeToken(r.Context(), token); err != nil {
		h.logger.Errorw("failed to revoke token", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Sorry, something went wrong.")
		return
	}
	h.cookies.Clear(w)
	if u, ok := auth.UserFromContext(r.Context()); ok {
		h.logger.Infow("user logged out", "user_id", u.ID)
	}
	utilities.WriteJSON(w, http.StatusOK, messageResponse{Message: "Succesfully logged out"})
}
