package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lojf/kidstudio/internal/models"
)

func statusWeight(s models.ParticipantStatus) int {
	switch s {
	case models.StatusScheduled, models.StatusMakeup:
		return 0
	case models.StatusAttended:
		return 1
	case models.StatusNoShow:
		return 2
	case models.StatusPostponed:
		return 3
	default:
		return 4
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// EventRosterCSV exports the event's participants, seated first.
func (a *API) EventRosterCSV(w http.ResponseWriter, r *http.Request) {
	roster, err := a.Events.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := roster.Participants
	sort.SliceStable(rows, func(i, j int) bool {
		if wi, wj := statusWeight(rows[i].Status), statusWeight(rows[j].Status); wi != wj {
			return wi < wj
		}
		return rows[i].StudentName < rows[j].StudentName
	})

	loc := a.loc()
	filename := fmt.Sprintf("roster-%s.csv", roster.Event.EventDate.In(loc).Format("2006-01-02-1504"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	_ = cw.Write([]string{
		"Event", "Type", "Age Group", "Student", "Age", "Parent", "Phone",
		"Status", "Makeup", "Cancellation Reason", "Notes",
	})

	when := fmtLocal(roster.Event.EventDate, loc)
	for _, row := range rows {
		notes := deref(row.Notes)
		if row.Status == models.StatusPostponed && row.PostponeNotes != nil {
			notes = *row.PostponeNotes
		}
		if row.IsMakeup && row.MakeupNotes != nil {
			notes = *row.MakeupNotes
		}
		_ = cw.Write([]string{
			when,
			string(roster.Event.EventType),
			roster.Event.AgeGroup,
			row.StudentName,
			row.StudentAge,
			row.ParentName,
			row.ParentPhone,
			string(row.Status),
			strconv.FormatBool(row.IsMakeup),
			deref(row.CancellationReason),
			notes,
		})
	}
}
