package handlers

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/khojghar/khojghar-api/internal/domain"
	mw "github.com/khojghar/khojghar-api/internal/http/middleware"
	"github.com/khojghar/khojghar-api/internal/http/response"
	"github.com/khojghar/khojghar-api/internal/platform/mailer"
	"github.com/khojghar/khojghar-api/internal/repo/mongodb"
	"github.com/khojghar/khojghar-api/pkg/auth"
	"github.com/khojghar/khojghar-api/pkg/config"
	"github.com/khojghar/khojghar-api/pkg/events"
	"github.com/khojghar/khojghar-api/pkg/logger"
)

type AuthHandler struct {
	accounts mongodb.AccountRepository
	mailSvc  mailer.Service
	bus      events.Publisher
	sessions *mw.Sessions
	cfg      config.AuthConfig
}

func NewAuthHandler(
	accounts mongodb.AccountRepository,
	mailSvc mailer.Service,
	bus events.Publisher,
	sessions *mw.Sessions,
	cfg config.AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		mailSvc:  mailSvc,
		bus:      bus,
		sessions: sessions,
		cfg:      cfg,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/verify", h.verify)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.With(h.sessions.Optional).Get("/me", h.me)
	return r
}

// issueCookie signs the session credential and delivers it as an
// HTTP-only cookie.
func (h *AuthHandler) issueCookie(w http.ResponseWriter, acc *domain.Account) error {
	token, err := auth.NewSessionToken(acc.ID.Hex(), acc.Email, acc.Role, h.cfg.JWTSecret, h.cfg.SessionTTL)
	if err != nil {
		return err
	}

	sameSite := http.SameSiteLaxMode
	if h.cfg.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSite,
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
	})
	return nil
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	sameSite := http.SameSiteLaxMode
	if h.cfg.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSite,
		MaxAge:   -1,
	})
}

func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand failing means the process is in no state to
		// issue credentials at all.
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	code := generateCode()
	acc, err := h.accounts.Create(r.Context(), &domain.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		VerifyCode:   code,
	})
	if err != nil {
		response.DomainError(w, r, err)
		return
	}

	// Email delivery is out-of-band; a send failure must not undo the
	// registration.
	if err := h.mailSvc.SendVerificationCode(acc.Email, acc.Name, code); err != nil {
		logger.ErrorContext(r.Context(), "failed to send verification email", "error", err, "email", acc.Email)
	}

	if err := h.bus.Publish(r.Context(), events.AccountRegistered, events.AccountRegisteredEvent{
		AccountID:    acc.ID.Hex(),
		Email:        acc.Email,
		RegisteredAt: acc.CreatedAt,
	}); err != nil {
		logger.WarnContext(r.Context(), "failed to publish event", "error", err, "subject", events.AccountRegistered)
	}

	response.JSON(w, http.StatusCreated, map[string]any{
		"message":              "Account created. Please verify your email.",
		"email":                acc.Email,
		"requiresVerification": true,
	})
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) {
	var in domain.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	acc, err := h.accounts.FindByEmail(r.Context(), in.Email)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.NotFound(w, "account not found")
		return
	}
	if acc.IsVerified {
		response.Conflict(w, "account is already verified")
		return
	}
	if acc.VerifyCode == "" || acc.VerifyCode != in.Code {
		response.BadRequest(w, "invalid verification code")
		return
	}

	if err := h.accounts.MarkVerified(r.Context(), acc.ID); err != nil {
		response.DomainError(w, r, err)
		return
	}
	acc.IsVerified = true

	if err := h.issueCookie(w, acc); err != nil {
		response.DomainError(w, r, err)
		return
	}

	if err := h.bus.Publish(r.Context(), events.AccountVerified, events.AccountVerifiedEvent{
		AccountID:  acc.ID.Hex(),
		Email:      acc.Email,
		VerifiedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(r.Context(), "failed to publish event", "error", err, "subject", events.AccountVerified)
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    acc.ToInfo(),
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		response.DomainError(w, r, err)
		return
	}

	acc, err := h.accounts.FindByEmail(r.Context(), in.Email)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	ok, err := argon2id.ComparePasswordAndHash(in.Password, acc.PasswordHash)
	if err != nil || !ok {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	// Correct password on an unverified account signals the caller to
	// finish verification rather than issuing a session.
	if !acc.IsVerified {
		response.JSON(w, http.StatusForbidden, map[string]any{
			"error":                "Please verify your email first.",
			"code":                 response.CodeForbidden,
			"requiresVerification": true,
			"email":                acc.Email,
		})
		return
	}

	if err := h.issueCookie(w, acc); err != nil {
		response.DomainError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"id":    acc.ID.Hex(),
		"name":  acc.Name,
		"email": acc.Email,
		"role":  acc.Role,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	response.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

// me reports the current session's account, or user:null for anonymous
// and stale sessions. Always 200.
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	if ac == nil {
		response.JSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	id, err := parseObjectID(ac.AccountID)
	if err != nil {
		response.JSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	acc, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	if acc == nil {
		response.JSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"user": acc.ToInfo()})
}
