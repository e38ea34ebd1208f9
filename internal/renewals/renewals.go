// Package renewals periodically finds active packages that are about to end
// so the front desk can offer an extension before the last lesson.
package renewals

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lojf/kidstudio/internal/events"
	"github.com/lojf/kidstudio/internal/models"
	"github.com/lojf/kidstudio/internal/services"
	"github.com/lojf/kidstudio/internal/store"
)

// Due is a registration whose package ends within the window.
type Due struct {
	Registration models.Registration
	DaysLeft     int
	Usage        services.Usage
}

type Sweeper struct {
	st     store.Store
	usage  *services.UsageAggregator
	within int
	loc    *time.Location
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time // registration id + end date -> end date
}

// New returns a sweeper reporting packages that end within `within` days
// of today on the studio clock.
func New(st store.Store, usage *services.UsageAggregator, within int, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{
		st:     st,
		usage:  usage,
		within: within,
		loc:    loc,
		now:    time.Now,
		seen:   map[string]time.Time{},
	}
}

// Start schedules Run on a cron schedule evaluated on the studio clock,
// until ctx is done. Overlapping runs are skipped.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(schedule, func() {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		due, err := s.Run(rctx)
		if err != nil {
			log.Printf("renewals: %v", err)
			return
		}
		log.Printf("renewals: %d package(s) ending within %d day(s)", len(due), s.within)
	})
	if err != nil {
		return fmt.Errorf("renewal schedule %q: %w", schedule, err)
	}
	log.Printf("renewals: started schedule=%q within=%dd", schedule, s.within)
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// today is the studio's calendar day as stored dates are: midnight UTC.
func (s *Sweeper) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// Run performs one sweep and returns the packages reported for the first
// time. A package is reported again only after its end date moves.
func (s *Sweeper) Run(ctx context.Context) ([]Due, error) {
	from := s.today()
	before := from.AddDate(0, 0, s.within+1)
	s.forget(from)

	regs, err := s.st.Registrations().List(ctx, store.RegistrationFilter{EndFrom: &from, EndBefore: &before})
	if err != nil {
		return nil, err
	}

	var out []Due
	for _, reg := range regs {
		key := reg.ID + "|" + reg.EndDate.UTC().Format("2006-01-02")
		s.mu.Lock()
		_, done := s.seen[key]
		s.mu.Unlock()
		if done {
			continue
		}

		u, err := s.usage.Compute(ctx, reg.ID)
		if err != nil {
			log.Printf("renewals: usage for %s: %v", reg.ID, err)
			continue
		}
		days := int(reg.EndDate.UTC().Sub(from).Hours() / 24)
		out = append(out, Due{Registration: reg, DaysLeft: days, Usage: *u})

		s.mu.Lock()
		s.seen[key] = reg.EndDate.UTC()
		s.mu.Unlock()

		if events.OnPackageEnding != nil {
			events.OnPackageEnding(reg, days, u.RemainingLessons)
		}
	}
	return out, nil
}

// forget drops packages that ended before today; they can no longer come
// due under the same end date.
func (s *Sweeper) forget(today time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, end := range s.seen {
		if end.Before(today) {
			delete(s.seen, k)
		}
	}
}
