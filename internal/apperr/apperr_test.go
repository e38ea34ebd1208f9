package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("schedule: %w", CapacityExceeded("ev1", 5, 5))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity kind, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Fatal("capacity error must not match validation")
	}
}

func TestTransactionKeepsDomainErrors(t *testing.T) {
	nf := NotFound("registration", "abc")
	if got := Transaction("extend", nf); !errors.Is(got, ErrNotFound) {
		t.Fatalf("domain error rewrapped: %v", got)
	}

	raw := errors.New("disk I/O error")
	got := Transaction("extend", raw)
	if !errors.Is(got, ErrTransaction) {
		t.Fatalf("want transaction kind, got %v", got)
	}
	if !errors.Is(got, raw) {
		t.Fatal("cause lost")
	}
	de, _ := As(got)
	if !de.Retryable() {
		t.Error("transaction errors are retryable")
	}
	if Transaction("extend", nil) != nil {
		t.Error("nil cause must stay nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		Validation("phone", "field_required"): http.StatusBadRequest,
		DuplicateActivePhone("5551234567"):    http.StatusConflict,
		NotFound("event", "x"):                http.StatusNotFound,
		CapacityExceeded("x", 5, 5):           http.StatusConflict,
		ErrTransaction:                        http.StatusInternalServerError,
	}
	for e, want := range cases {
		if got := e.HTTPStatus(); got != want {
			t.Errorf("%s: want %d, got %d", e.Kind, want, got)
		}
	}
}
