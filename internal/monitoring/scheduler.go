package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventPruner drops audit events older than a cutoff.
type EventPruner interface {
	PruneOlderThan(cutoff time.Time) int
}

// UserCounter reports how many users exist.
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// UserGauge receives the user count.
type UserGauge interface {
	SetUsers(n int)
}

// usersRefreshSpec is how often the user gauge is resynchronised with the store.
const usersRefreshSpec = "@every 1m"

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron      *cron.Cron
	events    EventPruner
	users     UserCounter
	gauge     UserGauge
	retention time.Duration
	now       func() time.Time
}

// NewScheduler creates a scheduler that prunes events on pruneSpec and keeps
// gauge in sync with users. users and gauge may be nil.
func NewScheduler(pruneSpec string, retention time.Duration, events EventPruner, users UserCounter, gauge UserGauge) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{logger: log.With().Str("component", "scheduler").Logger()}),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		events:    events,
		users:     users,
		gauge:     gauge,
		retention: retention,
		now:       time.Now,
	}

	if _, err := s.cron.AddFunc(pruneSpec, s.pruneEvents); err != nil {
		return nil, fmt.Errorf("schedule event pruning %q: %w", pruneSpec, err)
	}
	if users != nil && gauge != nil {
		if _, err := s.cron.AddFunc(usersRefreshSpec, s.refreshUsers); err != nil {
			return nil, fmt.Errorf("schedule user gauge refresh: %w", err)
		}
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine. The user gauge is refreshed
// once immediately.
func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler")
	if s.users != nil && s.gauge != nil {
		s.refreshUsers()
	}
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	log.Info().Msg("Stopping background scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("Scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) pruneEvents() {
	cutoff := s.now().Add(-s.retention)
	if removed := s.events.PruneOlderThan(cutoff); removed > 0 {
		log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("Pruned auth events")
	}
}

func (s *Scheduler) refreshUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.users.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to count users")
		return
	}
	s.gauge.SetUsers(n)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
