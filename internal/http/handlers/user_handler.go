package handlers

import (
	"net/http"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/khojghar/khojghar-api/internal/domain"
	mw "github.com/khojghar/khojghar-api/internal/http/middleware"
	"github.com/khojghar/khojghar-api/internal/http/response"
	"github.com/khojghar/khojghar-api/internal/repo/mongodb"
	"github.com/khojghar/khojghar-api/pkg/logger"
)

type UserHandler struct {
	accounts mongodb.AccountRepository
	sessions *mw.Sessions
}

func NewUserHandler(accounts mongodb.AccountRepository, sessions *mw.Sessions) *UserHandler {
	return &UserHandler{accounts: accounts, sessions: sessions}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.sessions.Require)
	r.Get("/me", h.profile)
	r.Put("/me", h.updateProfile)
	r.Put("/password", h.changePassword)
	return r
}

func (h *UserHandler) profile(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	id, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	acc, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.NotFound(w, "account not found")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"user": acc.ToInfo()})
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	id, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var req domain.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	acc, err := h.accounts.UpdateProfile(r.Context(), id, &req)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.NotFound(w, "account not found")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated",
		"user":    acc.ToInfo(),
	})
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	id, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var req domain.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	acc, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.NotFound(w, "account not found")
		return
	}

	match, err := argon2id.ComparePasswordAndHash(req.CurrentPassword, acc.PasswordHash)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to compare password hash", "error", err)
		response.InternalError(w, "something went wrong")
		return
	}
	if !match {
		response.Unauthorized(w, "current password is incorrect")
		return
	}

	hash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to hash password", "error", err)
		response.InternalError(w, "something went wrong")
		return
	}

	if err := h.accounts.SetPasswordHash(r.Context(), id, hash); err != nil {
		response.DomainError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"message": "Password updated"})
}
