package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lojf/kidstudio/internal/handlers"
)

func Router(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handlers.Health)
	r.Get("/packages", api.Packages)

	r.Route("/registrations", func(rr chi.Router) {
		rr.Post("/", api.CreateRegistration)
		rr.Get("/", api.ListRegistrations)

		rr.Route("/{id}", func(one chi.Router) {
			one.Get("/", api.GetRegistration)
			one.Patch("/", api.UpdateRegistration)
			one.Post("/extend", api.ExtendRegistration)
			one.Post("/archive", api.ArchiveRegistration)

			// Read models
			one.Get("/usage", api.RegistrationUsage)
			one.Get("/history", api.RegistrationHistory)
			one.Get("/financials", api.RegistrationFinancials)
			one.Get("/participations", api.RegistrationParticipations)

			// Front-desk card
			one.Get("/card.png", api.RegistrationCard)
		})
	})

	r.Route("/events", func(er chi.Router) {
		er.Post("/", api.CreateEvent)
		er.Get("/", api.ListEvents)

		er.Route("/{id}", func(one chi.Router) {
			one.Get("/", api.GetEvent)
			one.Patch("/", api.UpdateEvent)
			one.Post("/deactivate", api.DeactivateEvent)

			// Roster & scheduling
			one.Get("/participants", api.EventParticipants)
			one.Post("/participants", api.ScheduleParticipant)
			one.Get("/roster.csv", api.EventRosterCSV)
		})
	})

	r.Route("/participants/{id}", func(pr chi.Router) {
		pr.Patch("/status", api.SetParticipantStatus)
		pr.Post("/postpone", api.PostponeParticipant)
	})

	return r
}
