package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Registration is one student's package contract. Current package and
// payment fields move with update/extend; the Initial* snapshot never does.
type Registration struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StudentName string `gorm:"not null" json:"student_name"`
	StudentAge  string `gorm:"not null" json:"student_age"` // free text, e.g. "3 yaş 4 ay"
	ParentName  string `gorm:"not null" json:"parent_name"`
	ParentPhone string `gorm:"not null;index" json:"parent_phone"` // unique among active rows, see db.Open

	PackageType PackageType `gorm:"not null" json:"package_type"`
	StartDate   time.Time   `gorm:"not null" json:"start_date"`
	EndDate     time.Time   `gorm:"not null" json:"end_date"`

	PaymentStatus PaymentStatus `gorm:"not null" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"not null" json:"payment_method"`
	PaymentAmount Money         `gorm:"not null;default:0" json:"payment_amount"`
	PaymentDate   *time.Time    `json:"payment_date"`

	InitialPackageType   PackageType   `json:"initial_package_type"`
	InitialStartDate     time.Time     `json:"initial_start_date"`
	InitialEndDate       time.Time     `json:"initial_end_date"`
	InitialPaymentMethod PaymentMethod `json:"initial_payment_method"`
	InitialPaymentAmount Money         `json:"initial_payment_amount"`
	InitialNotes         *string       `json:"initial_notes"`

	ExtensionCount    int        `gorm:"not null;default:0" json:"extension_count"`
	LastExtensionDate *time.Time `json:"last_extension_date"`
	IsActive          bool       `gorm:"not null;index" json:"is_active"`

	Notes *string `json:"notes"`
}

// ExtensionHistory is one row per package extension.
type ExtensionHistory struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	RegistrationID string    `gorm:"not null;index;size:36" json:"registration_id"`

	PreviousEndDate     time.Time   `json:"previous_end_date"`
	NewStartDate        time.Time   `json:"new_start_date"`
	NewEndDate          time.Time   `json:"new_end_date"`
	PreviousPackageType PackageType `json:"previous_package_type"`
	NewPackageType      PackageType `json:"new_package_type"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentAmount Money         `gorm:"not null;default:0" json:"payment_amount"`
	PaymentDate   *time.Time    `json:"payment_date"`

	Notes *string `json:"notes"`
}

func (ExtensionHistory) TableName() string { return "extension_history" }

// FinancialRecord is one money-affecting transaction.
type FinancialRecord struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	RegistrationID string    `gorm:"not null;index;size:36" json:"registration_id"`

	TransactionType TransactionType `gorm:"not null" json:"transaction_type"`
	Amount          Money           `gorm:"not null;default:0" json:"amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentDate     *time.Time      `json:"payment_date"`
	Notes           *string         `json:"notes"`
}

// Event is a scheduled lesson slot.
type Event struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EventDate         time.Time `gorm:"not null;index" json:"event_date"`
	EventType         EventType `gorm:"not null" json:"event_type"`
	AgeGroup          string    `json:"age_group"`
	CustomDescription *string   `json:"custom_description"`
	IsActive          bool      `gorm:"not null" json:"is_active"`
}

// EventParticipant links a registration to an event and carries its
// attendance state. Rows are never deleted.
type EventParticipant struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	EventID        string    `gorm:"not null;size:36" json:"event_id"`
	RegistrationID string    `gorm:"not null;index;size:36" json:"registration_id"`

	Status   ParticipantStatus `gorm:"not null" json:"status"`
	IsMakeup bool              `gorm:"not null;default:false" json:"is_makeup"`

	MakeupForID     *string `gorm:"size:36" json:"makeup_for_id"`
	PostponedToID   *string `gorm:"size:36" json:"postponed_to_id"`
	PostponedFromID *string `gorm:"size:36" json:"postponed_from_id"`

	CancellationReason *string    `json:"cancellation_reason"`
	CancellationDate   *time.Time `json:"cancellation_date"`
	PostponeNotes      *string    `json:"postpone_notes"`
	MakeupNotes        *string    `json:"makeup_notes"`
	Notes              *string    `json:"notes"`
}

func (r *Registration) BeforeCreate(*gorm.DB) error     { r.ID = ensureID(r.ID); return nil }
func (h *ExtensionHistory) BeforeCreate(*gorm.DB) error { h.ID = ensureID(h.ID); return nil }
func (f *FinancialRecord) BeforeCreate(*gorm.DB) error  { f.ID = ensureID(f.ID); return nil }
func (e *Event) BeforeCreate(*gorm.DB) error            { e.ID = ensureID(e.ID); return nil }
func (p *EventParticipant) BeforeCreate(*gorm.DB) error { p.ID = ensureID(p.ID); return nil }

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&Registration{},
		&ExtensionHistory{},
		&FinancialRecord{},
		&Event{},
		&EventParticipant{},
	}
}
