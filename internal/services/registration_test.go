package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/events"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/store"
)

func TestCreate_SnapshotAndInitialPayment(t *testing.T) {
	st := openTestStore(t)
	svc := NewRegistrations(st)
	ctx := context.Background()

	in := paidInput("0555 123 45 67", 150000)
	in.Notes = strp("  first term  ")
	reg := mustCreate(t, svc, in)

	if !reg.IsActive || reg.ExtensionCount != 0 {
		t.Errorf("new registration: active=%v extension_count=%d", reg.IsActive, reg.ExtensionCount)
	}
	if reg.ParentPhone != "5551234567" {
		t.Errorf("phone not normalised: %q", reg.ParentPhone)
	}
	if reg.InitialPackageType != reg.PackageType || !reg.InitialEndDate.Equal(reg.EndDate) ||
		reg.InitialPaymentAmount != 150000 || reg.InitialPaymentMethod != models.MethodCash {
		t.Errorf("snapshot mismatch: %+v", reg)
	}
	if reg.Notes == nil || *reg.Notes != "first term" {
		t.Errorf("notes not trimmed: %v", reg.Notes)
	}

	recs, err := st.History().Financials(ctx, reg.ID)
	if err != nil {
		t.Fatalf("financials: %v", err)
	}
	if len(recs) != 1 || recs[0].TransactionType != models.TxInitialPayment || recs[0].Amount != 150000 {
		t.Fatalf("initial payment record: %+v", recs)
	}
}

func TestCreate_PendingInvariant(t *testing.T) {
	st := openTestStore(t)
	svc := NewRegistrations(st)

	reg := mustCreate(t, svc, pendingInput("5551234567"))
	got, _ := svc.Get(context.Background(), reg.ID)
	if got.PaymentMethod != models.MethodUnset || got.PaymentAmount != 0 || got.PaymentDate != nil {
		t.Fatalf("pending registration carries payment data: %+v", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewRegistrations(openTestStore(t))

	cases := []struct {
		name   string
		mutate func(*RegistrationInput)
		field  string
		reason string
	}{
		{"missing student", func(in *RegistrationInput) { in.StudentName = "  " }, "student_name", "field_required"},
		{"missing age", func(in *RegistrationInput) { in.StudentAge = "" }, "student_age", "field_required"},
		{"missing parent", func(in *RegistrationInput) { in.ParentName = "" }, "parent_name", "field_required"},
		{"bad phone", func(in *RegistrationInput) { in.ParentPhone = "12ab" }, "parent_phone", "invalid_phone"},
		{"unknown package", func(in *RegistrationInput) { in.PackageType = "hafta-7" }, "package_type", "invalid_value"},
		{"unknown payment status", func(in *RegistrationInput) { in.Status = "partial" }, "payment_status", "invalid_value"},
		{"end before start", func(in *RegistrationInput) { in.EndDate = day(2023, 12, 31) }, "end_date", "before_start_date"},
		{"pending with amount", func(in *RegistrationInput) { in.Amount = 100 }, "payment_amount", "must_be_zero_when_pending"},
		{"pending with method", func(in *RegistrationInput) { in.Method = models.MethodCard }, "payment_method", "must_be_unset_when_pending"},
		{"paid without method", func(in *RegistrationInput) {
			d := day(2024, 1, 1)
			in.PaymentInput = PaymentInput{Status: models.PaymentPaid, Amount: 100, Date: &d}
		}, "payment_method", "required_when_paid"},
		{"paid zero amount", func(in *RegistrationInput) {
			d := day(2024, 1, 1)
			in.PaymentInput = PaymentInput{Status: models.PaymentPaid, Method: models.MethodBank, Date: &d}
		}, "payment_amount", "must_be_positive_when_paid"},
		{"paid without date", func(in *RegistrationInput) {
			in.PaymentInput = PaymentInput{Status: models.PaymentPaid, Method: models.MethodBank, Amount: 100}
		}, "payment_date", "required_when_paid"},
		{"negative amount", func(in *RegistrationInput) { in.Amount = -5 }, "payment_amount", "out_of_range"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := pendingInput("5551234567")
			c.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			de, ok := apperr.As(err)
			if !ok || de.Kind != apperr.KindValidation {
				t.Fatalf("want validation error, got %v", err)
			}
			if de.Metadata["field"] != c.field || de.Reason != c.reason {
				t.Errorf("want %s/%s, got %s/%s", c.field, c.reason, de.Metadata["field"], de.Reason)
			}
		})
	}
}

func TestDuplicateActivePhone_ReleasedByArchive(t *testing.T) {
	svc := NewRegistrations(openTestStore(t))
	ctx := context.Background()

	first := mustCreate(t, svc, pendingInput("5551234567"))

	second := pendingInput("+90 555 123 45 67")
	second.StudentName = "Ece"
	if _, err := svc.Create(ctx, second); !errors.Is(err, apperr.ErrDuplicateActivePhone) {
		t.Fatalf("want duplicate phone error, got %v", err)
	}

	if _, err := svc.Archive(ctx, first.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.Create(ctx, second); err != nil {
		t.Fatalf("create after archive: %v", err)
	}
}

func TestUpdate_KeepsSnapshotAndPatchesLatestFinancial(t *testing.T) {
	st := openTestStore(t)
	svc := NewRegistrations(st)
	ctx := context.Background()

	reg := mustCreate(t, svc, paidInput("5551234567", 100000))

	in := paidInput("5551234567", 120000)
	in.PackageType = models.PackageWeekly3
	in.Notes = strp("corrected")
	got, err := svc.Update(ctx, reg.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.PackageType != models.PackageWeekly3 || got.PaymentAmount != 120000 {
		t.Errorf("current fields not updated: %+v", got)
	}
	if got.InitialPackageType != models.PackageWeekly2 || got.InitialPaymentAmount != 100000 {
		t.Errorf("snapshot changed: %+v", got)
	}
	if got.ExtensionCount != 0 {
		t.Errorf("extension_count changed: %d", got.ExtensionCount)
	}

	fin, _ := st.History().LatestFinancial(ctx, reg.ID)
	if fin.Amount != 120000 || fin.Notes == nil || *fin.Notes != "corrected" {
		t.Errorf("latest financial not patched: %+v", fin)
	}
	if exts, _ := st.History().Extensions(ctx, reg.ID); len(exts) != 0 {
		t.Errorf("update must not create extension rows, got %d", len(exts))
	}
}

func TestUpdate_PatchesLatestExtensionPayment(t *testing.T) {
	st := openTestStore(t)
	svc := NewRegistrations(st)
	ctx := context.Background()

	reg := mustCreate(t, svc, paidInput("5551234567", 100000))
	paidOn := day(2024, 1, 15)
	if _, err := svc.Extend(ctx, reg.ID, ExtensionInput{
		PackageType: models.PackageWeekly2,
		StartDate:   day(2024, 1, 15),
		EndDate:     day(2024, 1, 29),
		PaymentInput: PaymentInput{
			Status: models.PaymentPaid, Method: models.MethodCard, Amount: 90000, Date: &paidOn,
		},
	}); err != nil {
		t.Fatalf("extend: %v", err)
	}

	cur, _ := svc.Get(ctx, reg.ID)
	in := paidInput("5551234567", 95000)
	in.StartDate, in.EndDate = cur.StartDate, cur.EndDate
	in.Method = models.MethodCard
	if _, err := svc.Update(ctx, reg.ID, in); err != nil {
		t.Fatalf("update: %v", err)
	}

	ext, _ := st.History().LatestExtension(ctx, reg.ID)
	if ext.PaymentAmount != 95000 {
		t.Errorf("latest extension payment_amount: want 95000, got %d", ext.PaymentAmount)
	}
	after, _ := svc.Get(ctx, reg.ID)
	if after.InitialPaymentAmount != 100000 {
		t.Errorf("initial snapshot touched: %d", after.InitialPaymentAmount)
	}
	recs, _ := st.History().Financials(ctx, reg.ID)
	if len(recs) != 2 || recs[0].Amount != 100000 || recs[1].Amount != 95000 {
		t.Errorf("only the latest financial record may change: %+v", recs)
	}
}

func TestUpdate_NotFoundAndPhoneConflict(t *testing.T) {
	svc := NewRegistrations(openTestStore(t))
	ctx := context.Background()

	if _, err := svc.Update(ctx, "nope", pendingInput("5551234567")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}

	mustCreate(t, svc, pendingInput("5551234567"))
	other := mustCreate(t, svc, pendingInput("5559999999"))
	if _, err := svc.Update(ctx, other.ID, pendingInput("5551234567")); !errors.Is(err, apperr.ErrDuplicateActivePhone) {
		t.Fatalf("want duplicate phone, got %v", err)
	}
	// keeping its own phone is fine
	if _, err := svc.Update(ctx, other.ID, pendingInput("5559999999")); err != nil {
		t.Fatalf("self update: %v", err)
	}
}

func TestExtend_AppendsHistory(t *testing.T) {
	st := openTestStore(t)
	svc := NewRegistrations(st)
	ctx := context.Background()

	var hooked string
	events.OnExtension = func(reg models.Registration, entry models.ExtensionHistory) { hooked = entry.RegistrationID }
	t.Cleanup(func() { events.OnExtension = nil })

	reg := mustCreate(t, svc, pendingInput("5551234567"))
	got, err := svc.Extend(ctx, reg.ID, ExtensionInput{
		PackageType:  models.PackageWeekly3,
		StartDate:    day(2024, 1, 15),
		EndDate:      day(2024, 2, 12),
		PaymentInput: PaymentInput{Status: models.PaymentPending},
		Notes:        strp("february"),
	})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if got.ExtensionCount != 1 || got.LastExtensionDate == nil {
		t.Errorf("extension bookkeeping: %+v", got)
	}
	if got.PackageType != models.PackageWeekly3 || !got.EndDate.Equal(day(2024, 2, 12)) {
		t.Errorf("current package not advanced: %+v", got)
	}
	if hooked != reg.ID {
		t.Errorf("OnExtension hook not called")
	}

	exts, _ := st.History().Extensions(ctx, reg.ID)
	if len(exts) != 1 {
		t.Fatalf("want 1 extension row, got %d", len(exts))
	}
	e := exts[0]
	if !e.PreviousEndDate.Equal(day(2024, 1, 15)) || e.PreviousPackageType != models.PackageWeekly2 || e.NewPackageType != models.PackageWeekly3 {
		t.Errorf("extension entry: %+v", e)
	}
	recs, _ := st.History().Financials(ctx, reg.ID)
	if len(recs) != 2 || recs[1].TransactionType != models.TxExtensionPayment {
		t.Errorf("financial records: %+v", recs)
	}

	hist, err := svc.History(ctx, reg.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].Kind != "initial" || hist[1].Kind != "extension" {
		t.Fatalf("history order: %+v", hist)
	}
	if !hist[0].EndDate.Equal(day(2024, 1, 15)) {
		t.Errorf("initial snapshot end date: %v", hist[0].EndDate)
	}
}

func TestExtend_Rejections(t *testing.T) {
	svc := NewRegistrations(openTestStore(t))
	ctx := context.Background()
	reg := mustCreate(t, svc, pendingInput("5551234567"))

	early := ExtensionInput{
		PackageType: models.PackageWeekly2, StartDate: day(2024, 1, 10), EndDate: day(2024, 1, 24),
		PaymentInput: PaymentInput{Status: models.PaymentPending},
	}
	_, err := svc.Extend(ctx, reg.ID, early)
	if de, ok := apperr.As(err); !ok || de.Reason != "before_current_end_date" {
		t.Fatalf("want before_current_end_date, got %v", err)
	}

	if _, err := svc.Extend(ctx, "missing", early); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}

	if _, err := svc.Archive(ctx, reg.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	early.StartDate, early.EndDate = day(2024, 1, 15), day(2024, 1, 29)
	if _, err := svc.Extend(ctx, reg.ID, early); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("archived registration extended: %v", err)
	}
}

// failingStore injects an error into the financial append so the extension
// fails after the registration row and history row were written.
type failingStore struct{ store.Store }

type failingHistory struct{ store.HistoryRepository }

var errInjected = errors.New("injected failure")

func (f failingStore) History() store.HistoryRepository {
	return failingHistory{f.Store.History()}
}

func (f failingStore) Atomic(ctx context.Context, fn func(store.Store) error) error {
	return f.Store.Atomic(ctx, func(tx store.Store) error { return fn(failingStore{tx}) })
}

func (failingHistory) AppendFinancial(context.Context, *models.FinancialRecord) error {
	return errInjected
}

func TestExtend_AtomicUnderInjectedFailure(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	reg := mustCreate(t, NewRegistrations(st), pendingInput("5551234567"))

	svc := NewRegistrations(failingStore{st})
	_, err := svc.Extend(ctx, reg.ID, ExtensionInput{
		PackageType: models.PackageWeekly4, StartDate: day(2024, 1, 15), EndDate: day(2024, 1, 29),
		PaymentInput: PaymentInput{Status: models.PaymentPending},
	})
	if !errors.Is(err, apperr.ErrTransaction) || !errors.Is(err, errInjected) {
		t.Fatalf("want transaction error wrapping the injected failure, got %v", err)
	}

	after, _ := st.Registrations().Get(ctx, reg.ID)
	if after.ExtensionCount != 0 || after.PackageType != models.PackageWeekly2 || !after.EndDate.Equal(day(2024, 1, 15)) {
		t.Errorf("registration update leaked: %+v", after)
	}
	if exts, _ := st.History().Extensions(ctx, reg.ID); len(exts) != 0 {
		t.Errorf("extension row leaked: %d", len(exts))
	}
	if recs, _ := st.History().Financials(ctx, reg.ID); len(recs) != 1 {
		t.Errorf("financial rows: want 1, got %d", len(recs))
	}
}

func TestArchive_LeavesHistoryAlone(t *testing.T) {
	st := openTestStore(t)
	svc := NewRegistrations(st)
	ctx := context.Background()

	reg := mustCreate(t, svc, pendingInput("5551234567"))
	if _, err := svc.Extend(ctx, reg.ID, ExtensionInput{
		PackageType: models.PackageWeekly1, StartDate: day(2024, 1, 15), EndDate: day(2024, 1, 29),
		PaymentInput: PaymentInput{Status: models.PaymentPending},
	}); err != nil {
		t.Fatalf("extend: %v", err)
	}

	extBefore, _ := st.History().Extensions(ctx, reg.ID)
	finBefore, _ := st.History().Financials(ctx, reg.ID)

	for i := 0; i < 2; i++ {
		got, err := svc.Archive(ctx, reg.ID)
		if err != nil {
			t.Fatalf("archive #%d: %v", i+1, err)
		}
		if got.IsActive {
			t.Fatalf("archive #%d left registration active", i+1)
		}
	}

	extAfter, _ := st.History().Extensions(ctx, reg.ID)
	finAfter, _ := st.History().Financials(ctx, reg.ID)
	if len(extAfter) != len(extBefore) || len(finAfter) != len(finBefore) {
		t.Fatalf("row counts changed: ext %d->%d fin %d->%d", len(extBefore), len(extAfter), len(finBefore), len(finAfter))
	}
	for i := range extAfter {
		a, b := extAfter[i], extBefore[i]
		if a.ID != b.ID || !a.NewEndDate.Equal(b.NewEndDate) || a.PaymentAmount != b.PaymentAmount {
			t.Errorf("extension row %d changed", i)
		}
	}
	for i := range finAfter {
		if finAfter[i].Amount != finBefore[i].Amount || finAfter[i].TransactionType != finBefore[i].TransactionType {
			t.Errorf("financial row %d changed", i)
		}
	}

	active, _ := svc.List(ctx, store.RegistrationFilter{})
	if len(active) != 0 {
		t.Errorf("archived registration listed as current")
	}
	all, _ := svc.List(ctx, store.RegistrationFilter{IncludeArchived: true})
	if len(all) != 1 {
		t.Errorf("archived registration missing from full list")
	}
}
