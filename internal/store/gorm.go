package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/models"
)

type gormStore struct {
	db *gorm.DB
}

// NewGorm wraps a GORM connection (or transaction) as a Store.
func NewGorm(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Registrations() RegistrationRepository { return registrationRepo{s.db} }
func (s *gormStore) History() HistoryRepository            { return historyRepo{s.db} }
func (s *gormStore) Events() EventRepository               { return eventRepo{s.db} }

func (s *gormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	le := strings.ToLower(err.Error())
	return strings.Contains(le, "unique") && strings.Contains(le, column)
}

// --- registrations ---

type registrationRepo struct{ db *gorm.DB }

func (r registrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	err := r.db.WithContext(ctx).Create(reg).Error
	if isUniqueViolation(err, "parent_phone") {
		return apperr.DuplicateActivePhone(reg.ParentPhone)
	}
	return err
}

func (r registrationRepo) Get(ctx context.Context, id string) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "registration", id)
	}
	return &reg, nil
}

func (r registrationRepo) Save(ctx context.Context, reg *models.Registration) error {
	err := r.db.WithContext(ctx).Save(reg).Error
	if isUniqueViolation(err, "parent_phone") {
		return apperr.DuplicateActivePhone(reg.ParentPhone)
	}
	return err
}

func (r registrationRepo) PhoneTaken(ctx context.Context, phone, exceptID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Registration{}).
		Where("parent_phone = ? AND is_active = ?", phone, true)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r registrationRepo) List(ctx context.Context, f RegistrationFilter) ([]models.Registration, error) {
	q := r.db.WithContext(ctx).Model(&models.Registration{})
	if !f.IncludeArchived {
		q = q.Where("is_active = ?", true)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(student_name) LIKE ? OR LOWER(parent_name) LIKE ? OR parent_phone LIKE ?", like, like, like)
	}
	if f.EndFrom != nil {
		q = q.Where("end_date >= ?", f.EndFrom.UTC())
	}
	if f.EndBefore != nil {
		q = q.Where("end_date < ?", f.EndBefore.UTC())
	}
	var out []models.Registration
	if err := q.Order("is_active desc, student_name asc, created_at asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// --- history ---

type historyRepo struct{ db *gorm.DB }

func (h historyRepo) AppendExtension(ctx context.Context, e *models.ExtensionHistory) error {
	return h.db.WithContext(ctx).Create(e).Error
}

func (h historyRepo) AppendFinancial(ctx context.Context, f *models.FinancialRecord) error {
	return h.db.WithContext(ctx).Create(f).Error
}

func (h historyRepo) LatestExtension(ctx context.Context, registrationID string) (*models.ExtensionHistory, error) {
	var rows []models.ExtensionHistory
	if err := h.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (h historyRepo) LatestFinancial(ctx context.Context, registrationID string) (*models.FinancialRecord, error) {
	var rows []models.FinancialRecord
	if err := h.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (h historyRepo) SaveExtension(ctx context.Context, e *models.ExtensionHistory) error {
	return h.db.WithContext(ctx).Save(e).Error
}

func (h historyRepo) SaveFinancial(ctx context.Context, f *models.FinancialRecord) error {
	return h.db.WithContext(ctx).Save(f).Error
}

func (h historyRepo) Extensions(ctx context.Context, registrationID string) ([]models.ExtensionHistory, error) {
	var out []models.ExtensionHistory
	err := h.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

func (h historyRepo) Financials(ctx context.Context, registrationID string) ([]models.FinancialRecord, error) {
	var out []models.FinancialRecord
	err := h.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// --- events & participants ---

type eventRepo struct{ db *gorm.DB }

func (e eventRepo) CreateEvent(ctx context.Context, ev *models.Event) error {
	return e.db.WithContext(ctx).Create(ev).Error
}

func (e eventRepo) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	if err := e.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "event", id)
	}
	return &ev, nil
}

// LockEvent takes FOR UPDATE on engines that support it; the SQLite dialect
// drops the clause and relies on its single writer connection instead.
func (e eventRepo) LockEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	if err := e.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ev, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "event", id)
	}
	return &ev, nil
}

func (e eventRepo) SaveEvent(ctx context.Context, ev *models.Event) error {
	return e.db.WithContext(ctx).Save(ev).Error
}

func (e eventRepo) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error) {
	q := e.db.WithContext(ctx).Model(&models.Event{})
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.From != nil {
		q = q.Where("event_date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("event_date < ?", f.To.UTC())
	}
	var out []models.Event
	if err := q.Order("event_date asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (e eventRepo) CreateParticipant(ctx context.Context, p *models.EventParticipant) error {
	return e.db.WithContext(ctx).Create(p).Error
}

func (e eventRepo) GetParticipant(ctx context.Context, id string) (*models.EventParticipant, error) {
	var p models.EventParticipant
	if err := e.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "participant", id)
	}
	return &p, nil
}

func (e eventRepo) SaveParticipant(ctx context.Context, p *models.EventParticipant) error {
	return e.db.WithContext(ctx).Save(p).Error
}

func (e eventRepo) CountSeated(ctx context.Context, eventID, exceptID string) (int, error) {
	var n int64
	q := e.db.WithContext(ctx).Model(&models.EventParticipant{}).
		Where("event_id = ? AND status IN ?", eventID, models.SeatedStatuses)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count seated: %w", err)
	}
	return int(n), nil
}

func (e eventRepo) IsSeated(ctx context.Context, eventID, registrationID string) (bool, error) {
	var n int64
	err := e.db.WithContext(ctx).Model(&models.EventParticipant{}).
		Where("event_id = ? AND registration_id = ? AND status IN ?", eventID, registrationID, models.SeatedStatuses).
		Count(&n).Error
	return n > 0, err
}

func (e eventRepo) Roster(ctx context.Context, eventID string) ([]ParticipantWithStudent, error) {
	var rows []ParticipantWithStudent
	err := e.db.WithContext(ctx).Table("event_participants AS p").
		Select(`p.*,
				r.student_name, r.student_age,
				r.parent_name,  r.parent_phone`).
		Joins("JOIN registrations r ON r.id = p.registration_id").
		Where("p.event_id = ?", eventID).
		Order("r.student_name asc, p.created_at asc").
		Scan(&rows).Error
	return rows, err
}

func (e eventRepo) ParticipationsOf(ctx context.Context, registrationID string) ([]ParticipantWithEvent, error) {
	var rows []ParticipantWithEvent
	err := e.db.WithContext(ctx).Table("event_participants AS p").
		Select(`p.*,
				e.event_date, e.event_type,
				e.is_active AS event_active`).
		Joins("JOIN events e ON e.id = p.event_id").
		Where("p.registration_id = ?", registrationID).
		Order("e.event_date asc, p.created_at asc").
		Scan(&rows).Error
	return rows, err
}
