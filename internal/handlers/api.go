// Package handlers exposes the ledger services as JSON over HTTP.
package handlers

import (
	"net/http"
	"time"

	"github.com/lojf/kidstudio/internal/services"
)

// API holds the services behind the HTTP handlers.
type API struct {
	Registrations *services.Registrations
	Events        *services.Events
	Usage         *services.UsageAggregator
	// Loc is the studio's clock for event times without an offset.
	Loc *time.Location
}

func (a *API) loc() *time.Location {
	if a.Loc == nil {
		return time.UTC
	}
	return a.Loc
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Packages lists the package types and the lessons per week each buys.
func (a *API) Packages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Usage.Table())
}
