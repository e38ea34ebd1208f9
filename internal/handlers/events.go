package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/services"
	"github.com/lojf/kidstudio/internal/store"
)

type eventRequest struct {
	EventDate         string           `json:"event_date"`
	EventType         models.EventType `json:"event_type"`
	AgeGroup          string           `json:"age_group"`
	CustomDescription *string          `json:"custom_description"`
}

func (a *API) eventInput(req eventRequest) (services.EventInput, error) {
	at, err := parseMoment("event_date", req.EventDate, a.loc())
	if err != nil {
		return services.EventInput{}, err
	}
	return services.EventInput{
		EventDate:         at,
		EventType:         req.EventType,
		AgeGroup:          req.AgeGroup,
		CustomDescription: req.CustomDescription,
	}, nil
}

func (a *API) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := a.eventInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := a.Events.CreateEvent(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// ListEvents takes ?from=YYYY-MM-DD&to=YYYY-MM-DD (studio days, to
// inclusive) and ?include_inactive=1.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := dayRange(q.Get("from"), q.Get("to"), a.loc())
	if err != nil {
		writeError(w, r, err)
		return
	}
	evs, err := a.Events.ListEvents(r.Context(), store.EventFilter{
		From:            from,
		To:              to,
		IncludeInactive: flag(r, "include_inactive"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if evs == nil {
		evs = []models.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (a *API) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := a.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cur, err := a.Events.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := eventRequest{
		EventDate:         cur.EventDate.UTC().Format(time.RFC3339),
		EventType:         cur.EventType,
		AgeGroup:          cur.AgeGroup,
		CustomDescription: cur.CustomDescription,
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := a.eventInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := a.Events.UpdateEvent(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) DeactivateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := a.Events.DeactivateEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) EventParticipants(w http.ResponseWriter, r *http.Request) {
	roster, err := a.Events.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if roster.Participants == nil {
		roster.Participants = []store.ParticipantWithStudent{}
	}
	writeJSON(w, http.StatusOK, roster)
}

type scheduleRequest struct {
	RegistrationID string `json:"registration_id"`
}

func (a *API) ScheduleParticipant(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.Events.Schedule(r.Context(), chi.URLParam(r, "id"), req.RegistrationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
