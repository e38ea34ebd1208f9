package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/services"
	"github.com/lojf/kidstudio/internal/store"
)

type paymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaymentAmount models.Money         `json:"payment_amount"`
	PaymentDate   *string              `json:"payment_date"`
}

func (p paymentRequest) toInput() (services.PaymentInput, error) {
	d, err := parseDayPtr("payment_date", p.PaymentDate)
	if err != nil {
		return services.PaymentInput{}, err
	}
	return services.PaymentInput{Status: p.PaymentStatus, Method: p.PaymentMethod, Amount: p.PaymentAmount, Date: d}, nil
}

type registrationRequest struct {
	StudentName string             `json:"student_name"`
	StudentAge  string             `json:"student_age"`
	ParentName  string             `json:"parent_name"`
	ParentPhone string             `json:"parent_phone"`
	PackageType models.PackageType `json:"package_type"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	paymentRequest
	Notes *string `json:"notes"`
}

func (req registrationRequest) toInput() (services.RegistrationInput, error) {
	var in services.RegistrationInput
	start, err := parseDay("start_date", req.StartDate)
	if err != nil {
		return in, err
	}
	end, err := parseDay("end_date", req.EndDate)
	if err != nil {
		return in, err
	}
	pay, err := req.paymentRequest.toInput()
	if err != nil {
		return in, err
	}
	return services.RegistrationInput{
		StudentName:  req.StudentName,
		StudentAge:   req.StudentAge,
		ParentName:   req.ParentName,
		ParentPhone:  req.ParentPhone,
		PackageType:  req.PackageType,
		StartDate:    start,
		EndDate:      end,
		PaymentInput: pay,
		Notes:        req.Notes,
	}, nil
}

// requestFrom prefills a request with the stored values so PATCH bodies only
// need the fields being corrected.
func requestFrom(r *models.Registration) registrationRequest {
	req := registrationRequest{
		StudentName: r.StudentName,
		StudentAge:  r.StudentAge,
		ParentName:  r.ParentName,
		ParentPhone: r.ParentPhone,
		PackageType: r.PackageType,
		StartDate:   fmtISODate(r.StartDate),
		EndDate:     fmtISODate(r.EndDate),
		paymentRequest: paymentRequest{
			PaymentStatus: r.PaymentStatus,
			PaymentMethod: r.PaymentMethod,
			PaymentAmount: r.PaymentAmount,
		},
		Notes: r.Notes,
	}
	if r.PaymentDate != nil {
		d := fmtISODate(*r.PaymentDate)
		req.PaymentDate = &d
	}
	return req
}

type extensionRequest struct {
	PackageType models.PackageType `json:"package_type"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	paymentRequest
	Notes *string `json:"notes"`
}

func (a *API) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := a.Registrations.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ListRegistrations takes ?include_archived=1, ?q= and ?ending_within=N,
// the last limiting to packages that end within N days of today.
func (a *API) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	f := store.RegistrationFilter{
		IncludeArchived: flag(r, "include_archived"),
		Query:           strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("ending_within")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, apperr.Validation("ending_within", "invalid_value"))
			return
		}
		now := time.Now().In(a.loc())
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		before := from.AddDate(0, 0, n+1)
		f.EndFrom, f.EndBefore = &from, &before
	}
	regs, err := a.Registrations.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

func (a *API) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := a.Registrations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cur, err := a.Registrations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := requestFrom(cur)
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := a.Registrations.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) ExtendRegistration(w http.ResponseWriter, r *http.Request) {
	var req extensionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDay("start_date", req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDay("end_date", req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pay, err := req.paymentRequest.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	reg, err := a.Registrations.Extend(r.Context(), chi.URLParam(r, "id"), services.ExtensionInput{
		PackageType:  req.PackageType,
		StartDate:    start,
		EndDate:      end,
		PaymentInput: pay,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) ArchiveRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := a.Registrations.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) RegistrationUsage(w http.ResponseWriter, r *http.Request) {
	u, err := a.Usage.Compute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) RegistrationHistory(w http.ResponseWriter, r *http.Request) {
	h, err := a.Registrations.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) RegistrationFinancials(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Registrations.Financials(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []models.FinancialRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *API) RegistrationParticipations(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Events.Participations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []store.ParticipantWithEvent{}
	}
	writeJSON(w, http.StatusOK, rows)
}
