package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lojf/kidstudio/internal/config"
	"github.com/lojf/kidstudio/internal/db"
	"github.com/lojf/kidstudio/internal/events"
	"github.com/lojf/kidstudio/internal/handlers"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/renewals"
	"github.com/lojf/kidstudio/internal/services"
	"github.com/lojf/kidstudio/internal/store"
	"github.com/lojf/kidstudio/internal/tracing"
	"github.com/lojf/kidstudio/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	table, err := services.SessionTableFrom(cfg.PackageSessions)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceOpts := tracing.Options{ServiceName: "kidstudio", StudioTZ: cfg.StudioTZ, Pretty: cfg.TracePretty}
	if cfg.TraceStdout {
		traceOpts.Stdout = os.Stdout
	}
	shutdownTracing, err := tracing.Setup(ctx, traceOpts)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	conn, err := db.Open(cfg.DBPath, db.ParseLogLevel(cfg.DBLogLevel))
	if err != nil {
		log.Fatalf("db init: %v", err)
	}
	st := store.NewGorm(conn)
	auditHooks()

	usage := services.NewUsageAggregator(st, table, loc)
	api := &handlers.API{
		Registrations: services.NewRegistrations(st),
		Events:        services.NewEvents(st),
		Usage:         usage,
		Loc:           loc,
	}
	if cfg.RenewalSweep {
		if err := renewals.New(st, usage, cfg.RenewalWithinDays, loc).Start(ctx, cfg.RenewalSchedule); err != nil {
			log.Fatalf("renewals: %v", err)
		}
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: web.Router(api)}

	go func() {
		log.Printf("kidstudio listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// auditHooks writes committed ledger changes to the process log.
func auditHooks() {
	events.OnExtension = func(reg models.Registration, entry models.ExtensionHistory) {
		log.Printf("audit: registration %s extended %s -> %s until %s (extension #%d)",
			reg.ID, entry.PreviousPackageType, entry.NewPackageType,
			entry.NewEndDate.Format("2006-01-02"), reg.ExtensionCount)
	}
	events.OnParticipantStatus = func(p models.EventParticipant, from models.ParticipantStatus) {
		log.Printf("audit: participant %s in event %s %s -> %s", p.ID, p.EventID, from, p.Status)
	}
	events.OnOverUse = func(registrationID string, expected, consumed int) {
		log.Printf("audit: registration %s over package: %d of %d lessons", registrationID, consumed, expected)
	}
	events.OnPackageEnding = func(reg models.Registration, daysLeft, remaining int) {
		log.Printf("renewal: %s (%s) package %s ends in %d day(s), %d lesson(s) left",
			reg.StudentName, reg.ParentPhone, reg.PackageType, daysLeft, remaining)
	}
}
