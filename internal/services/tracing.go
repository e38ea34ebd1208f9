package services

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lojf/kidstudio/internal/apperr"
)

var tracer = otel.Tracer("github.com/lojf/kidstudio/internal/services")

// endSpan records err on span and ends it. Expected domain outcomes
// (validation, conflicts) are recorded as events, not span errors.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if de, ok := apperr.As(err); ok && de.Kind != apperr.KindTransaction {
			span.AddEvent(string(de.Kind))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
