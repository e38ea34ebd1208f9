package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/services"
)

type statusRequest struct {
	Status             models.ParticipantStatus `json:"status"`
	CancellationReason *string                  `json:"cancellation_reason"`
	CancellationDate   *string                  `json:"cancellation_date"`
	Notes              *string                  `json:"notes"`
}

func (a *API) SetParticipantStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var canceledAt *time.Time
	if req.CancellationDate != nil && *req.CancellationDate != "" {
		t, err := parseMoment("cancellation_date", *req.CancellationDate, a.loc())
		if err != nil {
			writeError(w, r, err)
			return
		}
		canceledAt = &t
	}
	p, err := a.Events.SetStatus(r.Context(), chi.URLParam(r, "id"), services.StatusChange{
		Status:             req.Status,
		CancellationReason: req.CancellationReason,
		CancellationDate:   canceledAt,
		Notes:              req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type postponeResponse struct {
	Postponed *models.EventParticipant `json:"postponed"`
	Makeup    *models.EventParticipant `json:"makeup"`
}

func (a *API) PostponeParticipant(w http.ResponseWriter, r *http.Request) {
	var in services.PostponeInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	src, mk, err := a.Events.Postpone(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, postponeResponse{Postponed: src, Makeup: mk})
}
