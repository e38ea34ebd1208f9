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

// EventCapacity is the number of seats in every lesson slot.
const EventCapacity = 5

type EventInput struct {
	EventDate         time.Time        `json:"event_date" validate:"required"`
	EventType         models.EventType `json:"event_type" validate:"required,oneof=language sensory special"`
	AgeGroup          string           `json:"age_group" validate:"required,max=60"`
	CustomDescription *string          `json:"custom_description" validate:"omitempty,max=500"`
}

func (in *EventInput) normalize() error {
	in.AgeGroup = strings.TrimSpace(in.AgeGroup)
	in.CustomDescription = trimPtr(in.CustomDescription)
	if err := checkStruct(in); err != nil {
		return err
	}
	in.EventDate = in.EventDate.UTC()
	return nil
}

// StatusChange is an operator's status update plus the metadata that goes
// with the new status.
type StatusChange struct {
	Status             models.ParticipantStatus `json:"status" validate:"required,oneof=scheduled attended no_show postponed makeup canceled"`
	CancellationReason *string                  `json:"cancellation_reason" validate:"omitempty,max=500"`
	CancellationDate   *time.Time               `json:"cancellation_date"`
	Notes              *string                  `json:"notes" validate:"omitempty,max=2000"`
}

type PostponeInput struct {
	TargetEventID string  `json:"target_event_id" validate:"required"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
}

// Events owns lesson slots and the participation state machine.
type Events struct {
	st  store.Store
	now func() time.Time
}

func NewEvents(st store.Store) *Events {
	return &Events{st: st, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Events) CreateEvent(ctx context.Context, in EventInput) (ev *models.Event, err error) {
	ctx, span := tracer.Start(ctx, "events.create")
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}
	e := &models.Event{
		EventDate:         in.EventDate,
		EventType:         in.EventType,
		AgeGroup:          in.AgeGroup,
		CustomDescription: in.CustomDescription,
		IsActive:          true,
	}
	if err := s.st.Events().CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Events) UpdateEvent(ctx context.Context, id string, in EventInput) (ev *models.Event, err error) {
	ctx, span := tracer.Start(ctx, "events.update")
	span.SetAttributes(attribute.String("event.id", id))
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}
	e, err := s.st.Events().GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	e.EventDate = in.EventDate
	e.EventType = in.EventType
	e.AgeGroup = in.AgeGroup
	e.CustomDescription = in.CustomDescription
	if err := s.st.Events().SaveEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeactivateEvent soft-deletes the slot. Participant rows stay for history.
func (s *Events) DeactivateEvent(ctx context.Context, id string) (*models.Event, error) {
	e, err := s.st.Events().GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return e, nil
	}
	e.IsActive = false
	if err := s.st.Events().SaveEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Events) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.st.Events().GetEvent(ctx, id)
}

func (s *Events) ListEvents(ctx context.Context, f store.EventFilter) ([]models.Event, error) {
	return s.st.Events().ListEvents(ctx, f)
}

// Roster is an event with its participants and seat usage.
type Roster struct {
	Event        models.Event                   `json:"event"`
	Seated       int                            `json:"seated"`
	Capacity     int                            `json:"capacity"`
	Available    int                            `json:"available"`
	Participants []store.ParticipantWithStudent `json:"participants"`
}

func (s *Events) Roster(ctx context.Context, eventID string) (*Roster, error) {
	e, err := s.st.Events().GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := s.st.Events().Roster(ctx, eventID)
	if err != nil {
		return nil, err
	}
	seated := 0
	for _, p := range rows {
		if p.Status.Seated() {
			seated++
		}
	}
	avail := EventCapacity - seated
	if avail < 0 {
		avail = 0
	}
	return &Roster{Event: *e, Seated: seated, Capacity: EventCapacity, Available: avail, Participants: rows}, nil
}

// ensureSeat fails when eventID already has EventCapacity seated
// participants, not counting exceptID. Must run inside the transaction that
// then takes the seat.
func ensureSeat(ctx context.Context, tx store.Store, eventID, exceptID string) error {
	n, err := tx.Events().CountSeated(ctx, eventID, exceptID)
	if err != nil {
		return err
	}
	if n >= EventCapacity {
		return apperr.CapacityExceeded(eventID, n, EventCapacity)
	}
	return nil
}

// Schedule seats a registration in an event with status scheduled.
func (s *Events) Schedule(ctx context.Context, eventID, registrationID string) (p *models.EventParticipant, err error) {
	ctx, span := tracer.Start(ctx, "events.schedule")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("registration.id", registrationID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(registrationID) == "" {
		return nil, apperr.Validation("registration_id", "field_required")
	}

	err = s.st.Atomic(ctx, func(tx store.Store) error {
		ev, err := tx.Events().LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsActive {
			return apperr.Validation("event_id", "event_inactive")
		}
		reg, err := tx.Registrations().Get(ctx, registrationID)
		if err != nil {
			return err
		}
		if !reg.IsActive {
			return apperr.Validation("registration_id", "registration_archived")
		}
		seated, err := tx.Events().IsSeated(ctx, eventID, registrationID)
		if err != nil {
			return err
		}
		if seated {
			return apperr.Validation("registration_id", "already_scheduled")
		}
		if err := ensureSeat(ctx, tx, eventID, ""); err != nil {
			return err
		}
		p = &models.EventParticipant{
			EventID:        eventID,
			RegistrationID: registrationID,
			Status:         models.StatusScheduled,
		}
		return tx.Events().CreateParticipant(ctx, p)
	})
	if err != nil {
		return nil, apperr.Transaction("schedule_participant", err)
	}
	return p, nil
}

// SetStatus overwrites the participant's status. Any transition is allowed
// so operators can correct mistakes, but moving from a non-seated status
// back into a seated one must find a free seat first.
func (s *Events) SetStatus(ctx context.Context, participantID string, ch StatusChange) (p *models.EventParticipant, err error) {
	ctx, span := tracer.Start(ctx, "participants.set_status")
	span.SetAttributes(attribute.String("participant.id", participantID), attribute.String("status", string(ch.Status)))
	defer func() { endSpan(span, err) }()

	ch.CancellationReason = trimPtr(ch.CancellationReason)
	ch.Notes = trimPtr(ch.Notes)
	if err := checkStruct(&ch); err != nil {
		return nil, err
	}

	var from models.ParticipantStatus
	err = s.st.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Events().GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		from = cur.Status
		if ch.Status.Seated() && !from.Seated() {
			if _, err := tx.Events().LockEvent(ctx, cur.EventID); err != nil {
				return err
			}
			if err := ensureSeat(ctx, tx, cur.EventID, cur.ID); err != nil {
				return err
			}
		}

		cur.Status = ch.Status
		switch ch.Status {
		case models.StatusCanceled:
			cur.CancellationReason = ch.CancellationReason
			at := s.now()
			if ch.CancellationDate != nil {
				at = ch.CancellationDate.UTC()
			}
			cur.CancellationDate = &at
		case models.StatusPostponed:
			if ch.Notes != nil {
				cur.PostponeNotes = ch.Notes
			}
		case models.StatusMakeup:
			if ch.Notes != nil {
				cur.MakeupNotes = ch.Notes
			}
		default:
			if ch.Notes != nil {
				cur.Notes = ch.Notes
			}
		}
		if err := tx.Events().SaveParticipant(ctx, cur); err != nil {
			return err
		}
		p = cur
		return nil
	})
	if err != nil {
		return nil, apperr.Transaction("set_participant_status", err)
	}

	if events.OnParticipantStatus != nil && from != p.Status {
		events.OnParticipantStatus(*p, from)
	}
	return p, nil
}

// Postpone marks a participation postponed and books its makeup lesson in
// the target event, linking the two rows both ways.
func (s *Events) Postpone(ctx context.Context, participantID string, in PostponeInput) (src, makeup *models.EventParticipant, err error) {
	ctx, span := tracer.Start(ctx, "participants.postpone")
	span.SetAttributes(attribute.String("participant.id", participantID), attribute.String("event.id", in.TargetEventID))
	defer func() { endSpan(span, err) }()

	in.Notes = trimPtr(in.Notes)
	if err := checkStruct(&in); err != nil {
		return nil, nil, err
	}

	var from models.ParticipantStatus
	err = s.st.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.Events().GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		if cur.PostponedToID != nil {
			return apperr.Validation("participant_id", "already_postponed")
		}
		if cur.EventID == in.TargetEventID {
			return apperr.Validation("target_event_id", "same_event")
		}
		target, err := tx.Events().LockEvent(ctx, in.TargetEventID)
		if err != nil {
			return err
		}
		if !target.IsActive {
			return apperr.Validation("target_event_id", "event_inactive")
		}
		seated, err := tx.Events().IsSeated(ctx, target.ID, cur.RegistrationID)
		if err != nil {
			return err
		}
		if seated {
			return apperr.Validation("target_event_id", "already_scheduled")
		}
		if err := ensureSeat(ctx, tx, target.ID, ""); err != nil {
			return err
		}

		mk := &models.EventParticipant{
			EventID:         target.ID,
			RegistrationID:  cur.RegistrationID,
			Status:          models.StatusMakeup,
			IsMakeup:        true,
			MakeupForID:     &cur.ID,
			PostponedFromID: &cur.ID,
			MakeupNotes:     in.Notes,
		}
		if err := tx.Events().CreateParticipant(ctx, mk); err != nil {
			return err
		}

		from = cur.Status
		cur.Status = models.StatusPostponed
		cur.PostponedToID = &mk.ID
		if in.Notes != nil {
			cur.PostponeNotes = in.Notes
		}
		if err := tx.Events().SaveParticipant(ctx, cur); err != nil {
			return err
		}
		src, makeup = cur, mk
		return nil
	})
	if err != nil {
		return nil, nil, apperr.Transaction("postpone_participant", err)
	}

	if events.OnParticipantStatus != nil && from != src.Status {
		events.OnParticipantStatus(*src, from)
	}
	return src, makeup, nil
}

// Participations lists every participation of a registration with its event.
func (s *Events) Participations(ctx context.Context, registrationID string) ([]store.ParticipantWithEvent, error) {
	if _, err := s.st.Registrations().Get(ctx, registrationID); err != nil {
		return nil, err
	}
	return s.st.Events().ParticipationsOf(ctx, registrationID)
}
