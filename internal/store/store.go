// Package store is the ledger's persistence boundary. Services depend on the
// interfaces here; NewGorm provides the SQLite-backed implementation.
package store

import (
	"context"
	"time"

	"github.com/lojf/kidstudio/internal/models"
)

// Store groups the repositories and opens atomic units of work.
type Store interface {
	Registrations() RegistrationRepository
	History() HistoryRepository
	Events() EventRepository

	// Atomic runs fn inside one transaction. The Store handed to fn is bound
	// to that transaction; a non-nil return rolls everything back.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}

type RegistrationRepository interface {
	Create(ctx context.Context, r *models.Registration) error
	Get(ctx context.Context, id string) (*models.Registration, error)
	Save(ctx context.Context, r *models.Registration) error
	// PhoneTaken reports whether an active registration other than exceptID
	// holds phone.
	PhoneTaken(ctx context.Context, phone, exceptID string) (bool, error)
	List(ctx context.Context, f RegistrationFilter) ([]models.Registration, error)
}

type RegistrationFilter struct {
	IncludeArchived bool
	Query           string // matches student name, parent name or phone
	// EndFrom and EndBefore bound end_date to [EndFrom, EndBefore).
	EndFrom, EndBefore *time.Time
}

type HistoryRepository interface {
	AppendExtension(ctx context.Context, e *models.ExtensionHistory) error
	AppendFinancial(ctx context.Context, f *models.FinancialRecord) error
	// LatestExtension returns nil, nil when the registration has none.
	LatestExtension(ctx context.Context, registrationID string) (*models.ExtensionHistory, error)
	LatestFinancial(ctx context.Context, registrationID string) (*models.FinancialRecord, error)
	SaveExtension(ctx context.Context, e *models.ExtensionHistory) error
	SaveFinancial(ctx context.Context, f *models.FinancialRecord) error
	Extensions(ctx context.Context, registrationID string) ([]models.ExtensionHistory, error)
	Financials(ctx context.Context, registrationID string) ([]models.FinancialRecord, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// LockEvent loads the event with a row lock where the engine has one.
	LockEvent(ctx context.Context, id string) (*models.Event, error)
	SaveEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error)

	CreateParticipant(ctx context.Context, p *models.EventParticipant) error
	GetParticipant(ctx context.Context, id string) (*models.EventParticipant, error)
	SaveParticipant(ctx context.Context, p *models.EventParticipant) error
	// CountSeated counts participants in a seat-occupying status, ignoring
	// exceptID (pass "" to count all).
	CountSeated(ctx context.Context, eventID, exceptID string) (int, error)
	IsSeated(ctx context.Context, eventID, registrationID string) (bool, error)
	Roster(ctx context.Context, eventID string) ([]ParticipantWithStudent, error)
	ParticipationsOf(ctx context.Context, registrationID string) ([]ParticipantWithEvent, error)
}

type EventFilter struct {
	From, To        *time.Time
	IncludeInactive bool
}

// ParticipantWithStudent is a roster line: the participant row joined with
// the registration's student and parent.
type ParticipantWithStudent struct {
	models.EventParticipant
	StudentName string `json:"student_name"`
	StudentAge  string `json:"student_age"`
	ParentName  string `json:"parent_name"`
	ParentPhone string `json:"parent_phone"`
}

// ParticipantWithEvent is a participation line joined with its event.
type ParticipantWithEvent struct {
	models.EventParticipant
	EventDate   time.Time        `json:"event_date"`
	EventType   models.EventType `json:"event_type"`
	EventActive bool             `json:"event_active"`
}
