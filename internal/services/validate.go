package services

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so reasons line up with the wire fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var tagReasons = map[string]string{
	"required": "field_required",
	"oneof":    "invalid_value",
	"max":      "too_long",
	"min":      "out_of_range",
	"gte":      "out_of_range",
}

// checkStruct runs the struct tags and turns the first failure into a
// validation error.
func checkStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		reason, ok := tagReasons[fe.Tag()]
		if !ok {
			reason = "invalid_" + fe.Tag()
		}
		ve := apperr.Validation(fe.Field(), reason)
		if fe.Param() != "" {
			ve.Metadata["param"] = fe.Param()
		}
		return ve
	}
	return apperr.Validation("", "invalid_input")
}

// PaymentInput is shared by create, update and extend.
type PaymentInput struct {
	Status models.PaymentStatus `json:"payment_status" validate:"required,oneof=paid pending"`
	Method models.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=bank cash card unset"`
	Amount models.Money         `json:"payment_amount" validate:"min=0"`
	Date   *time.Time           `json:"payment_date"`
}

// normalize enforces the payment invariant: pending carries no method,
// amount or date; paid carries all three.
func (p *PaymentInput) normalize() error {
	switch p.Status {
	case models.PaymentPending:
		if p.Method != "" && p.Method != models.MethodUnset {
			return apperr.Validation("payment_method", "must_be_unset_when_pending")
		}
		if p.Amount != 0 {
			return apperr.Validation("payment_amount", "must_be_zero_when_pending")
		}
		if p.Date != nil {
			return apperr.Validation("payment_date", "must_be_empty_when_pending")
		}
		p.Method = models.MethodUnset
	case models.PaymentPaid:
		if p.Method == "" || p.Method == models.MethodUnset {
			return apperr.Validation("payment_method", "required_when_paid")
		}
		if p.Amount <= 0 {
			return apperr.Validation("payment_amount", "must_be_positive_when_paid")
		}
		if p.Date == nil || p.Date.IsZero() {
			return apperr.Validation("payment_date", "required_when_paid")
		}
		d := dateOnly(*p.Date)
		p.Date = &d
	}
	return nil
}

func checkRange(start, end time.Time) error {
	if end.Before(start) {
		return apperr.Validation("end_date", "before_start_date")
	}
	return nil
}

// dateOnly truncates to midnight UTC of the same calendar day.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
