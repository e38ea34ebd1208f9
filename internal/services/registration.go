package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/events"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/store"
)

// RegistrationInput carries the correctable fields of a registration.
type RegistrationInput struct {
	StudentName string             `json:"student_name" validate:"required,max=120"`
	StudentAge  string             `json:"student_age" validate:"required,max=60"`
	ParentName  string             `json:"parent_name" validate:"required,max=120"`
	ParentPhone string             `json:"parent_phone" validate:"required"`
	PackageType models.PackageType `json:"package_type" validate:"required,oneof=tek-seferlik hafta-1 hafta-2 hafta-3 hafta-4"`
	StartDate   time.Time          `json:"start_date" validate:"required"`
	EndDate     time.Time          `json:"end_date" validate:"required"`
	PaymentInput
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

func (in *RegistrationInput) normalize() error {
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.StudentAge = strings.TrimSpace(in.StudentAge)
	in.ParentName = strings.TrimSpace(in.ParentName)
	in.Notes = trimPtr(in.Notes)
	if err := checkStruct(in); err != nil {
		return err
	}
	phone := NormPhone(in.ParentPhone)
	if phone == "" {
		return apperr.Validation("parent_phone", "invalid_phone")
	}
	in.ParentPhone = phone
	in.StartDate, in.EndDate = dateOnly(in.StartDate), dateOnly(in.EndDate)
	if err := checkRange(in.StartDate, in.EndDate); err != nil {
		return err
	}
	return in.PaymentInput.normalize()
}

// ExtensionInput describes the follow-on package bought by an extension.
type ExtensionInput struct {
	PackageType models.PackageType `json:"package_type" validate:"required,oneof=tek-seferlik hafta-1 hafta-2 hafta-3 hafta-4"`
	StartDate   time.Time          `json:"start_date" validate:"required"`
	EndDate     time.Time          `json:"end_date" validate:"required"`
	PaymentInput
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

func (in *ExtensionInput) normalize() error {
	in.Notes = trimPtr(in.Notes)
	if err := checkStruct(in); err != nil {
		return err
	}
	in.StartDate, in.EndDate = dateOnly(in.StartDate), dateOnly(in.EndDate)
	if err := checkRange(in.StartDate, in.EndDate); err != nil {
		return err
	}
	return in.PaymentInput.normalize()
}

// Registrations manages the registration aggregate and keeps its history
// rows in step with the current package.
type Registrations struct {
	st  store.Store
	now func() time.Time
}

func NewRegistrations(st store.Store) *Registrations {
	return &Registrations{st: st, now: func() time.Time { return time.Now().UTC() }}
}

// Create persists a new active registration with its snapshot and the
// initial_payment financial record.
func (s *Registrations) Create(ctx context.Context, in RegistrationInput) (reg *models.Registration, err error) {
	ctx, span := tracer.Start(ctx, "registrations.create")
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	r := &models.Registration{
		StudentName:   in.StudentName,
		StudentAge:    in.StudentAge,
		ParentName:    in.ParentName,
		ParentPhone:   in.ParentPhone,
		PackageType:   in.PackageType,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		PaymentStatus: in.Status,
		PaymentMethod: in.Method,
		PaymentAmount: in.Amount,
		PaymentDate:   in.Date,
		Notes:         in.Notes,

		InitialPackageType:   in.PackageType,
		InitialStartDate:     in.StartDate,
		InitialEndDate:       in.EndDate,
		InitialPaymentMethod: in.Method,
		InitialPaymentAmount: in.Amount,
		InitialNotes:         in.Notes,

		ExtensionCount: 0,
		IsActive:       true,
	}

	err = s.st.Atomic(ctx, func(tx store.Store) error {
		taken, err := tx.Registrations().PhoneTaken(ctx, r.ParentPhone, "")
		if err != nil {
			return err
		}
		if taken {
			return apperr.DuplicateActivePhone(r.ParentPhone)
		}
		if err := tx.Registrations().Create(ctx, r); err != nil {
			return err
		}
		return NewRecorder(tx).AppendFinancialRecord(ctx, &models.FinancialRecord{
			RegistrationID:  r.ID,
			TransactionType: models.TxInitialPayment,
			Amount:          r.PaymentAmount,
			PaymentMethod:   r.PaymentMethod,
			PaymentStatus:   r.PaymentStatus,
			PaymentDate:     r.PaymentDate,
			Notes:           r.Notes,
		})
	})
	if err != nil {
		return nil, apperr.Transaction("create_registration", err)
	}
	span.SetAttributes(attribute.String("registration.id", r.ID))
	return r, nil
}

// Update corrects the current fields. Snapshot fields and extension_count
// stay as they are; the latest extension and financial rows are patched to
// match the corrected package and payment.
func (s *Registrations) Update(ctx context.Context, id string, in RegistrationInput) (reg *models.Registration, err error) {
	ctx, span := tracer.Start(ctx, "registrations.update")
	span.SetAttributes(attribute.String("registration.id", id))
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	err = s.st.Atomic(ctx, func(tx store.Store) error {
		r, err := tx.Registrations().Get(ctx, id)
		if err != nil {
			return err
		}
		if r.IsActive {
			taken, err := tx.Registrations().PhoneTaken(ctx, in.ParentPhone, r.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.DuplicateActivePhone(in.ParentPhone)
			}
		}

		r.StudentName = in.StudentName
		r.StudentAge = in.StudentAge
		r.ParentName = in.ParentName
		r.ParentPhone = in.ParentPhone
		r.PackageType = in.PackageType
		r.StartDate = in.StartDate
		r.EndDate = in.EndDate
		r.PaymentStatus = in.Status
		r.PaymentMethod = in.Method
		r.PaymentAmount = in.Amount
		r.PaymentDate = in.Date
		r.Notes = in.Notes
		if err := tx.Registrations().Save(ctx, r); err != nil {
			return err
		}

		rec := NewRecorder(tx)
		if r.ExtensionCount > 0 {
			if _, err := rec.PatchLatestExtension(ctx, r.ID, ExtensionPatch{
				NewPackageType: &r.PackageType,
				NewEndDate:     &r.EndDate,
				PaymentStatus:  &r.PaymentStatus,
				PaymentMethod:  &r.PaymentMethod,
				PaymentAmount:  &r.PaymentAmount,
				PaymentDate:    &r.PaymentDate,
			}); err != nil {
				return err
			}
		}
		if _, err := rec.PatchLatestFinancial(ctx, r.ID, FinancialPatch{
			Amount:        &r.PaymentAmount,
			PaymentMethod: &r.PaymentMethod,
			PaymentStatus: &r.PaymentStatus,
			PaymentDate:   &r.PaymentDate,
			Notes:         &r.Notes,
		}); err != nil {
			return err
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, apperr.Transaction("update_registration", err)
	}
	return reg, nil
}

// Extend moves the registration onto a follow-on package. The registration
// update, the history entry and the extension_payment record commit together
// or not at all.
func (s *Registrations) Extend(ctx context.Context, id string, in ExtensionInput) (reg *models.Registration, err error) {
	ctx, span := tracer.Start(ctx, "registrations.extend")
	span.SetAttributes(attribute.String("registration.id", id))
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	var entry models.ExtensionHistory
	err = s.st.Atomic(ctx, func(tx store.Store) error {
		r, err := tx.Registrations().Get(ctx, id)
		if err != nil {
			return err
		}
		if !r.IsActive {
			return apperr.Validation("registration_id", "registration_archived")
		}
		if in.StartDate.Before(r.EndDate) {
			return apperr.Validation("start_date", "before_current_end_date")
		}

		entry = models.ExtensionHistory{
			RegistrationID:      r.ID,
			PreviousEndDate:     r.EndDate,
			NewStartDate:        in.StartDate,
			NewEndDate:          in.EndDate,
			PreviousPackageType: r.PackageType,
			NewPackageType:      in.PackageType,
			PaymentStatus:       in.Status,
			PaymentMethod:       in.Method,
			PaymentAmount:       in.Amount,
			PaymentDate:         in.Date,
			Notes:               in.Notes,
		}

		now := s.now()
		r.PackageType = in.PackageType
		r.StartDate = in.StartDate
		r.EndDate = in.EndDate
		r.PaymentStatus = in.Status
		r.PaymentMethod = in.Method
		r.PaymentAmount = in.Amount
		r.PaymentDate = in.Date
		r.ExtensionCount++
		r.LastExtensionDate = &now
		if err := tx.Registrations().Save(ctx, r); err != nil {
			return err
		}

		rec := NewRecorder(tx)
		if err := rec.AppendExtension(ctx, &entry); err != nil {
			return err
		}
		if err := rec.AppendFinancialRecord(ctx, &models.FinancialRecord{
			RegistrationID:  r.ID,
			TransactionType: models.TxExtensionPayment,
			Amount:          in.Amount,
			PaymentMethod:   in.Method,
			PaymentStatus:   in.Status,
			PaymentDate:     in.Date,
			Notes:           in.Notes,
		}); err != nil {
			return err
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, apperr.Transaction("extend_registration", err)
	}

	if events.OnExtension != nil {
		events.OnExtension(*reg, entry)
	}
	return reg, nil
}

// Archive soft-deletes the registration. History rows are left alone and
// archiving twice is a no-op.
func (s *Registrations) Archive(ctx context.Context, id string) (reg *models.Registration, err error) {
	ctx, span := tracer.Start(ctx, "registrations.archive")
	span.SetAttributes(attribute.String("registration.id", id))
	defer func() { endSpan(span, err) }()

	r, err := s.st.Registrations().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return r, nil
	}
	r.IsActive = false
	if err := s.st.Registrations().Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Registrations) Get(ctx context.Context, id string) (*models.Registration, error) {
	return s.st.Registrations().Get(ctx, id)
}

// List returns active registrations unless f.IncludeArchived is set.
func (s *Registrations) List(ctx context.Context, f store.RegistrationFilter) ([]models.Registration, error) {
	return s.st.Registrations().List(ctx, f)
}

// HistoryEntry is one line of a registration's package history: the
// initial snapshot first, then each extension.
type HistoryEntry struct {
	Kind                string                `json:"kind"` // initial | extension
	ID                  string                `json:"id"`
	PreviousEndDate     *time.Time            `json:"previous_end_date,omitempty"`
	StartDate           time.Time             `json:"start_date"`
	EndDate             time.Time             `json:"end_date"`
	PreviousPackageType *models.PackageType   `json:"previous_package_type,omitempty"`
	PackageType         models.PackageType    `json:"package_type"`
	PaymentStatus       *models.PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod       models.PaymentMethod  `json:"payment_method"`
	PaymentAmount       models.Money          `json:"payment_amount"`
	PaymentDate         *time.Time            `json:"payment_date,omitempty"`
	Notes               *string               `json:"notes"`
	CreatedAt           time.Time             `json:"created_at"`
}

func (s *Registrations) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	r, err := s.st.Registrations().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exts, err := s.st.History().Extensions(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(exts)+1)
	out = append(out, HistoryEntry{
		Kind:          "initial",
		ID:            r.ID,
		StartDate:     r.InitialStartDate,
		EndDate:       r.InitialEndDate,
		PackageType:   r.InitialPackageType,
		PaymentMethod: r.InitialPaymentMethod,
		PaymentAmount: r.InitialPaymentAmount,
		Notes:         r.InitialNotes,
		CreatedAt:     r.CreatedAt,
	})
	for i := range exts {
		e := exts[i]
		out = append(out, HistoryEntry{
			Kind:                "extension",
			ID:                  e.ID,
			PreviousEndDate:     &e.PreviousEndDate,
			StartDate:           e.NewStartDate,
			EndDate:             e.NewEndDate,
			PreviousPackageType: &e.PreviousPackageType,
			PackageType:         e.NewPackageType,
			PaymentStatus:       &e.PaymentStatus,
			PaymentMethod:       e.PaymentMethod,
			PaymentAmount:       e.PaymentAmount,
			PaymentDate:         e.PaymentDate,
			Notes:               e.Notes,
			CreatedAt:           e.CreatedAt,
		})
	}
	return out, nil
}

// Financials lists the registration's payment records, oldest first.
func (s *Registrations) Financials(ctx context.Context, id string) ([]models.FinancialRecord, error) {
	if _, err := s.st.Registrations().Get(ctx, id); err != nil {
		return nil, err
	}
	return s.st.History().Financials(ctx, id)
}
