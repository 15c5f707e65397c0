package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	authService "github.com/zhouzirui/mentor-relay/backend/internal/service/auth"
	"github.com/zhouzirui/mentor-relay/backend/pkg/utils"
)

// Authenticator is the identity provider surface the transport needs.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(session *identity.Session) error
	Refresh(session *identity.Session) (*identity.Session, error)
	Authenticate(token string) (*identity.Session, error)
}

// Handler serves the session lifecycle endpoints.
type Handler struct {
	auth      Authenticator
	onSignOut func(userID string)
}

// New creates the auth handler. onSignOut, if set, runs after a successful sign-out.
func New(auth Authenticator, onSignOut func(userID string)) *Handler {
	return &Handler{auth: auth, onSignOut: onSignOut}
}

// RegisterRoutes mounts the public and authenticated auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/signup", h.handleSignUp)
		ar.Post("/signin", h.handleSignIn)

		ar.Group(func(pr chi.Router) {
			pr.Use(RequireSession(h.auth))
			pr.Post("/signout", h.handleSignOut)
			pr.Post("/refresh", h.handleRefresh)
		})
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.auth.SignUp(r.Context(), payload.Email, payload.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.auth.SignIn(r.Context(), payload.Email, payload.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	session, _ := identity.FromContext(r.Context())
	if err := h.auth.SignOut(session); err != nil {
		respondAuthError(w, err)
		return
	}
	if h.onSignOut != nil {
		h.onSignOut(session.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, _ := identity.FromContext(r.Context())
	next, err := h.auth.Refresh(session)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, next)
}

func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authService.ErrInvalidEmail), errors.Is(err, authService.ErrWeakPassword):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authService.ErrEmailTaken):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authService.ErrInvalidCredentials),
		errors.Is(err, authService.ErrInvalidToken),
		errors.Is(err, authService.ErrRevokedToken):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "authentication failed")
	}
}
