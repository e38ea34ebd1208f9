package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/lojf/kidstudio/internal/db"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/store"
)

// openTestStore returns an isolated SQLite-backed store in a temp directory.
func openTestStore(t *testing.T) store.Store {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return store.NewGorm(gdb)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strp(s string) *string { return &s }

func pendingInput(phone string) RegistrationInput {
	return RegistrationInput{
		StudentName:  "Deniz",
		StudentAge:   "3 yaş 4 ay",
		ParentName:   "Ayşe",
		ParentPhone:  phone,
		PackageType:  models.PackageWeekly2,
		StartDate:    day(2024, 1, 1),
		EndDate:      day(2024, 1, 15),
		PaymentInput: PaymentInput{Status: models.PaymentPending},
	}
}

func paidInput(phone string, amount models.Money) RegistrationInput {
	in := pendingInput(phone)
	paidOn := day(2024, 1, 1)
	in.PaymentInput = PaymentInput{Status: models.PaymentPaid, Method: models.MethodCash, Amount: amount, Date: &paidOn}
	return in
}

func mustCreate(t *testing.T, svc *Registrations, in RegistrationInput) *models.Registration {
	t.Helper()
	reg, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create registration: %v", err)
	}
	return reg
}

func mustEvent(t *testing.T, svc *Events, at time.Time) *models.Event {
	t.Helper()
	ev, err := svc.CreateEvent(context.Background(), EventInput{EventDate: at, EventType: models.EventLanguage, AgeGroup: "3-4"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

// mustStudents creates n active registrations with distinct phones.
func mustStudents(t *testing.T, svc *Registrations, n int) []*models.Registration {
	t.Helper()
	out := make([]*models.Registration, n)
	for i := range out {
		in := pendingInput(fmt.Sprintf("55500000%02d", i))
		in.StudentName = fmt.Sprintf("Student %d", i)
		out[i] = mustCreate(t, svc, in)
	}
	return out
}
