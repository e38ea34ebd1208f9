package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lojf/kidstudio/internal/events"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/store"
)

// SessionTable maps a weekly package to its lessons per week. The one-time
// package is not looked up: it is always exactly one lesson.
type SessionTable map[models.PackageType]int

func DefaultSessionTable() SessionTable {
	return SessionTable{
		models.PackageWeekly1: 1,
		models.PackageWeekly2: 2,
		models.PackageWeekly3: 3,
		models.PackageWeekly4: 4,
	}
}

// SessionTableFrom builds a table from config values, e.g.
// {"hafta-2": 2}. Unknown package types and negative counts are rejected.
func SessionTableFrom(m map[string]int) (SessionTable, error) {
	t := DefaultSessionTable()
	for k, v := range m {
		pt := models.PackageType(strings.TrimSpace(k))
		if !pt.Valid() || pt == models.PackageOneTime {
			return nil, fmt.Errorf("session table: unknown weekly package %q", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("session table: negative sessions for %q", k)
		}
		t[pt] = v
	}
	return t, nil
}

// Weeks is the number of whole weeks in [start, end], rounded to the
// nearest week and never less than one. 2024-01-01..2024-01-15 is 2.
func Weeks(start, end time.Time) int {
	days := int(dateOnly(end).Sub(dateOnly(start)).Hours() / 24)
	w := (days + 3) / 7
	if w < 1 {
		w = 1
	}
	return w
}

// Expected is the number of lessons a package buys for the window.
func (t SessionTable) Expected(pkg models.PackageType, start, end time.Time) int {
	if pkg == models.PackageOneTime {
		return 1
	}
	return t[pkg] * Weeks(start, end)
}

// Usage is the lesson balance of a registration's current package window.
type Usage struct {
	RegistrationID   string             `json:"registration_id"`
	PackageType      models.PackageType `json:"package_type"`
	StartDate        time.Time          `json:"start_date"`
	EndDate          time.Time          `json:"end_date"`
	ExpectedSessions int                `json:"expected_sessions"`
	ConsumedSessions int                `json:"consumed_sessions"`
	RemainingLessons int                `json:"remaining_lessons"`
	AttendedCount    int                `json:"attended_count"`
	NoShowCount      int                `json:"no_show_count"`
	MakeupCount      int                `json:"makeup_count"`
	PostponedCount   int                `json:"postponed_count"`
	CanceledCount    int                `json:"canceled_count"`
	ScheduledCount   int                `json:"scheduled_count"`
	OverUsed         bool               `json:"over_used"`
}

// Tally counts participations whose active event falls on a studio day in
// [start, end], both read as calendar days in loc. attended and no_show
// consume a lesson, including makeup rows once they reach one of those;
// postponed, canceled, scheduled and pending makeup rows do not.
func Tally(rows []store.ParticipantWithEvent, start, end time.Time, expected int, loc *time.Location) Usage {
	if loc == nil {
		loc = time.UTC
	}
	from := studioMidnight(start, loc)
	until := studioMidnight(end, loc).AddDate(0, 0, 1)

	u := Usage{StartDate: dateOnly(start), EndDate: dateOnly(end), ExpectedSessions: expected}
	for _, r := range rows {
		if !r.EventActive {
			continue
		}
		at := r.EventDate
		if at.Before(from) || !at.Before(until) {
			continue
		}
		if r.IsMakeup {
			u.MakeupCount++
		}
		switch r.Status {
		case models.StatusAttended:
			u.AttendedCount++
		case models.StatusNoShow:
			u.NoShowCount++
		case models.StatusPostponed:
			u.PostponedCount++
		case models.StatusCanceled:
			u.CanceledCount++
		case models.StatusScheduled:
			u.ScheduledCount++
		}
		if r.Status.Consumes() {
			u.ConsumedSessions++
		}
	}

	u.RemainingLessons = expected - u.ConsumedSessions
	if u.RemainingLessons < 0 {
		u.RemainingLessons = 0
	}
	u.OverUsed = u.ConsumedSessions > expected
	return u
}

// studioMidnight is the start of d's calendar day on the studio clock.
// Stored dates carry the day at midnight UTC.
func studioMidnight(d time.Time, loc *time.Location) time.Time {
	d = d.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// UsageAggregator derives remaining lessons from participation history.
type UsageAggregator struct {
	st    store.Store
	table SessionTable
	loc   *time.Location
}

// NewUsageAggregator reads package windows as calendar days in loc, the
// clock event times are entered on. A nil table or loc means the defaults
// and UTC.
func NewUsageAggregator(st store.Store, table SessionTable, loc *time.Location) *UsageAggregator {
	if table == nil {
		table = DefaultSessionTable()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &UsageAggregator{st: st, table: table, loc: loc}
}

// Compute returns the usage of the registration's current package window.
// Over-use is reported, not treated as an error.
func (a *UsageAggregator) Compute(ctx context.Context, registrationID string) (u *Usage, err error) {
	ctx, span := tracer.Start(ctx, "usage.compute")
	span.SetAttributes(attribute.String("registration.id", registrationID))
	defer func() { endSpan(span, err) }()

	reg, err := a.st.Registrations().Get(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	rows, err := a.st.Events().ParticipationsOf(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	expected := a.table.Expected(reg.PackageType, reg.StartDate, reg.EndDate)
	res := Tally(rows, reg.StartDate, reg.EndDate, expected, a.loc)
	res.RegistrationID = reg.ID
	res.PackageType = reg.PackageType

	span.SetAttributes(
		attribute.Int("usage.expected", res.ExpectedSessions),
		attribute.Int("usage.consumed", res.ConsumedSessions),
	)
	if res.OverUsed {
		log.Printf("usage: registration %s consumed %d of %d lessons", reg.ID, res.ConsumedSessions, res.ExpectedSessions)
		if events.OnOverUse != nil {
			events.OnOverUse(reg.ID, res.ExpectedSessions, res.ConsumedSessions)
		}
	}
	return &res, nil
}

// Table returns the package types and their weekly sessions, sorted.
func (a *UsageAggregator) Table() []PackageSessions {
	out := make([]PackageSessions, 0, len(models.PackageTypes))
	for _, pt := range models.PackageTypes {
		n := a.table[pt]
		if pt == models.PackageOneTime {
			n = 0
		}
		out = append(out, PackageSessions{PackageType: pt, PerWeek: n, OneTime: pt == models.PackageOneTime})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PackageType < out[j].PackageType })
	return out
}

type PackageSessions struct {
	PackageType models.PackageType `json:"package_type"`
	PerWeek     int                `json:"per_week"`
	OneTime     bool               `json:"one_time"`
}
