package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/khojghar/khojghar-api/internal/http/middleware"
	"github.com/khojghar/khojghar-api/internal/http/response"
)

// MembershipHandler serves the member-only dashboard payload.
type MembershipHandler struct {
	sessions *mw.Sessions
}

func NewMembershipHandler(sessions *mw.Sessions) *MembershipHandler {
	return &MembershipHandler{sessions: sessions}
}

func (h *MembershipHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.sessions.Require)
	r.Get("/", h.membership)
	return r
}

func (h *MembershipHandler) membership(w http.ResponseWriter, r *http.Request) {
	ac := mw.Auth(r)
	response.JSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Welcome, %s! This is your membership content.", ac.Email),
		"perks": []string{
			"Early access to listings",
			"Saved searches & alerts",
			"Priority support",
		},
	})
}
