package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// AuditPurger deletes audit rows older than a cutoff.
type AuditPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor runs periodic maintenance on a cron schedule: purging old audit
// rows and sweeping expired entries from in-process stores.
type Janitor struct {
	schedule  string
	retention time.Duration
	timeout   time.Duration
	audit     AuditPurger
	log       zerolog.Logger
	now       func() time.Time

	mu     sync.Mutex
	sweeps map[string]func() int
}

// NewJanitor validates schedule (standard 5-field cron or @every) and
// returns a Janitor. audit may be nil.
func NewJanitor(schedule string, retention time.Duration, audit AuditPurger, log zerolog.Logger) (*Janitor, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", schedule, err)
	}
	return &Janitor{
		schedule:  schedule,
		retention: retention,
		timeout:   30 * time.Second,
		audit:     audit,
		log:       log.With().Str("component", "janitor").Logger(),
		now:       time.Now,
		sweeps:    make(map[string]func() int),
	}, nil
}

// AddSweep registers a sweep that returns how many entries it removed.
func (j *Janitor) AddSweep(name string, fn func() int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sweeps[name] = fn
}

// RunOnce performs one maintenance pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	if j.audit != nil && j.retention > 0 {
		ctx, cancel := context.WithTimeout(ctx, j.timeout)
		cutoff := j.now().Add(-j.retention)
		n, err := j.audit.PurgeBefore(ctx, cutoff)
		cancel()
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to purge audit rows")
		} else if n > 0 {
			j.log.Info().Int64("rows", n).Time("cutoff", cutoff).Msg("Purged audit rows")
		}
	}

	j.mu.Lock()
	names := make([]string, 0, len(j.sweeps))
	for name := range j.sweeps {
		names = append(names, name)
	}
	j.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		j.mu.Lock()
		fn := j.sweeps[name]
		j.mu.Unlock()
		if n := fn(); n > 0 {
			j.log.Debug().Str("sweep", name).Int("removed", n).Msg("Swept expired entries")
		}
	}
}

// Start schedules RunOnce and blocks until ctx is cancelled. Call in a goroutine.
func (j *Janitor) Start(ctx context.Context) {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce(ctx) }); err != nil {
		j.log.Error().Err(err).Msg("Failed to schedule janitor")
		return
	}

	j.log.Info().Str("schedule", j.schedule).Msg("Janitor started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	j.log.Info().Msg("Janitor stopped")
}
