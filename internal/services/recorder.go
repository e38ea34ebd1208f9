package services

import (
	"context"
	"time"

	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/store"
)

// Recorder appends extension and financial history. Rows are insert-only;
// the one exception is a patch of the latest row for a registration, used
// when an operator corrects the current package.
type Recorder struct {
	h store.HistoryRepository
}

// NewRecorder binds a recorder to st. Inside Atomic pass the tx store.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{h: st.History()}
}

func (r *Recorder) AppendExtension(ctx context.Context, e *models.ExtensionHistory) error {
	return r.h.AppendExtension(ctx, e)
}

func (r *Recorder) AppendFinancialRecord(ctx context.Context, f *models.FinancialRecord) error {
	return r.h.AppendFinancial(ctx, f)
}

// ExtensionPatch: nil fields are left unchanged.
type ExtensionPatch struct {
	NewPackageType *models.PackageType
	NewEndDate     *time.Time
	PaymentStatus  *models.PaymentStatus
	PaymentMethod  *models.PaymentMethod
	PaymentAmount  *models.Money
	PaymentDate    **time.Time
}

// FinancialPatch: nil fields are left unchanged.
type FinancialPatch struct {
	Amount        *models.Money
	PaymentMethod *models.PaymentMethod
	PaymentStatus *models.PaymentStatus
	PaymentDate   **time.Time
	Notes         **string
}

// PatchLatestExtension applies p to the most recent extension row of the
// registration. No row means nothing to patch.
func (r *Recorder) PatchLatestExtension(ctx context.Context, registrationID string, p ExtensionPatch) (*models.ExtensionHistory, error) {
	e, err := r.h.LatestExtension(ctx, registrationID)
	if err != nil || e == nil {
		return nil, err
	}
	if p.NewPackageType != nil {
		e.NewPackageType = *p.NewPackageType
	}
	if p.NewEndDate != nil {
		e.NewEndDate = *p.NewEndDate
	}
	if p.PaymentStatus != nil {
		e.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.PaymentAmount != nil {
		e.PaymentAmount = *p.PaymentAmount
	}
	if p.PaymentDate != nil {
		e.PaymentDate = *p.PaymentDate
	}
	if err := r.h.SaveExtension(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// PatchLatestFinancial applies p to the most recent financial record.
func (r *Recorder) PatchLatestFinancial(ctx context.Context, registrationID string, p FinancialPatch) (*models.FinancialRecord, error) {
	f, err := r.h.LatestFinancial(ctx, registrationID)
	if err != nil || f == nil {
		return nil, err
	}
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
	if p.PaymentMethod != nil {
		f.PaymentMethod = *p.PaymentMethod
	}
	if p.PaymentStatus != nil {
		f.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentDate != nil {
		f.PaymentDate = *p.PaymentDate
	}
	if p.Notes != nil {
		f.Notes = *p.Notes
	}
	if err := r.h.SaveFinancial(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
