package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/db"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return store.NewGorm(gdb)
}

func seedRegistration(t *testing.T, st store.Store, phone string) *models.Registration {
	t.Helper()
	reg := &models.Registration{
		StudentName: "Deniz", StudentAge: "4", ParentName: "Ayse", ParentPhone: phone,
		PackageType: models.PackageWeekly2, PaymentStatus: models.PaymentPending,
		PaymentMethod: models.MethodUnset, IsActive: true,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	if err := st.Registrations().Create(context.Background(), reg); err != nil {
		t.Fatalf("create registration: %v", err)
	}
	return reg
}

func TestRegistrationGetNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Registrations().Get(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestDuplicateActivePhoneMapped(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	first := seedRegistration(t, st, "5551234567")

	taken, err := st.Registrations().PhoneTaken(ctx, "5551234567", "")
	if err != nil || !taken {
		t.Fatalf("PhoneTaken = %v, %v", taken, err)
	}
	if taken, _ := st.Registrations().PhoneTaken(ctx, "5551234567", first.ID); taken {
		t.Error("a registration must not collide with itself")
	}

	dup := *first
	dup.ID = ""
	if err := st.Registrations().Create(ctx, &dup); !errors.Is(err, apperr.ErrDuplicateActivePhone) {
		t.Fatalf("want duplicate phone, got %v", err)
	}
}

func TestLatestHistoryRows(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	reg := seedRegistration(t, st, "5550000001")

	if e, err := st.History().LatestExtension(ctx, reg.ID); err != nil || e != nil {
		t.Fatalf("no extensions yet: got %v, %v", e, err)
	}

	for i, amt := range []models.Money{100, 200, 300} {
		rec := &models.FinancialRecord{
			RegistrationID: reg.ID, TransactionType: models.TxExtensionPayment, Amount: amt,
			CreatedAt: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}
		if err := st.History().AppendFinancial(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	latest, err := st.History().LatestFinancial(ctx, reg.ID)
	if err != nil || latest == nil {
		t.Fatalf("latest: %v, %v", latest, err)
	}
	if latest.Amount != 300 {
		t.Errorf("latest amount: want 300, got %d", latest.Amount)
	}
	all, _ := st.History().Financials(ctx, reg.ID)
	if len(all) != 3 || all[0].Amount != 100 {
		t.Errorf("financials not oldest-first: %+v", all)
	}
}

func TestAtomicRollsBack(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	reg := seedRegistration(t, st, "5550000002")

	boom := errors.New("boom")
	err := st.Atomic(ctx, func(tx store.Store) error {
		r, err := tx.Registrations().Get(ctx, reg.ID)
		if err != nil {
			return err
		}
		r.ExtensionCount = 9
		if err := tx.Registrations().Save(ctx, r); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	got, _ := st.Registrations().Get(ctx, reg.ID)
	if got.ExtensionCount != 0 {
		t.Errorf("rollback failed: extension_count=%d", got.ExtensionCount)
	}
}

func TestRosterAndParticipationJoins(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	reg := seedRegistration(t, st, "5550000003")

	ev := &models.Event{EventDate: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), EventType: models.EventSensory, AgeGroup: "3-4", IsActive: true}
	if err := st.Events().CreateEvent(ctx, ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	p := &models.EventParticipant{EventID: ev.ID, RegistrationID: reg.ID, Status: models.StatusScheduled}
	if err := st.Events().CreateParticipant(ctx, p); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	canceled := &models.EventParticipant{EventID: ev.ID, RegistrationID: reg.ID, Status: models.StatusCanceled}
	if err := st.Events().CreateParticipant(ctx, canceled); err != nil {
		t.Fatalf("create participant: %v", err)
	}

	n, err := st.Events().CountSeated(ctx, ev.ID, "")
	if err != nil || n != 1 {
		t.Fatalf("CountSeated = %d, %v", n, err)
	}
	if n, _ := st.Events().CountSeated(ctx, ev.ID, p.ID); n != 0 {
		t.Errorf("CountSeated excluding self: want 0, got %d", n)
	}
	if ok, _ := st.Events().IsSeated(ctx, ev.ID, reg.ID); !ok {
		t.Error("IsSeated: want true")
	}

	roster, err := st.Events().Roster(ctx, ev.ID)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 || roster[0].StudentName != "Deniz" || roster[0].ParentPhone != "5550000003" {
		t.Fatalf("roster join: %+v", roster)
	}

	parts, err := st.Events().ParticipationsOf(ctx, reg.ID)
	if err != nil {
		t.Fatalf("participations: %v", err)
	}
	if len(parts) != 2 || !parts[0].EventActive || parts[0].EventType != models.EventSensory {
		t.Fatalf("participation join: %+v", parts)
	}
	if !parts[0].EventDate.Equal(ev.EventDate) {
		t.Errorf("event date: want %v, got %v", ev.EventDate, parts[0].EventDate)
	}
}

func TestListEventsWindow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for i, active := range []bool{true, true, false} {
		ev := &models.Event{EventDate: time.Date(2024, 2, 1+i, 9, 0, 0, 0, time.UTC), EventType: models.EventLanguage, IsActive: active}
		if err := st.Events().CreateEvent(ctx, ev); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	from := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	got, err := st.Events().ListEvents(ctx, store.EventFilter{From: &from})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("active from Feb 2: want 1, got %d", len(got))
	}
	got, _ = st.Events().ListEvents(ctx, store.EventFilter{IncludeInactive: true})
	if len(got) != 3 {
		t.Errorf("all: want 3, got %d", len(got))
	}
}

func TestListRegistrationsFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := seedRegistration(t, st, "5550000001")
	b := seedRegistration(t, st, "5550000002")
	b.StudentName = "Ece"
	b.EndDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := st.Registrations().Save(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := seedRegistration(t, st, "5550000003")
	c.IsActive = false
	if err := st.Registrations().Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Registrations().List(ctx, store.RegistrationFilter{Query: "ece"})
	if err != nil || len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("query: %v %v", got, err)
	}
	got, _ = st.Registrations().List(ctx, store.RegistrationFilter{Query: "0000001"})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("phone query: %v", got)
	}

	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	got, _ = st.Registrations().List(ctx, store.RegistrationFilter{EndFrom: &from, EndBefore: &before})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("end window: %v", got)
	}
	got, _ = st.Registrations().List(ctx, store.RegistrationFilter{EndFrom: &from, EndBefore: &before, IncludeArchived: true})
	if len(got) != 2 {
		t.Errorf("end window with archived: %d", len(got))
	}
}
