// Package scheduler advances event statuses as their time windows pass.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("campuspulse.scheduler")

const syncTimeout = time.Minute

type Config struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Schedule string
	// Location is where event dates and HH:MM times are interpreted.
	Location *time.Location
}

type Scheduler struct {
	db       *gorm.DB
	clock    clock.Clock
	metrics  *metrics.Metrics
	schedule string
	location *time.Location
	cron     *cron.Cron
}

// Transition is one status change applied by Sync.
type Transition struct {
	EventID uint
	From    string
	To      string
}

func NewScheduler(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewDiscard()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	cl := cronLogger{}
	return &Scheduler{
		db:       cfg.DB,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		schedule: cfg.Schedule,
		location: cfg.Location,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start runs one sync immediately, then on every tick of the schedule.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return errors.Annotatef(err, "scheduling status sync %q", s.schedule)
	}

	s.run()
	s.cron.Start()

	logger.Infof("status sync scheduled %q", s.schedule)
	return nil
}

// Stop stops the schedule and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("status sync stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if _, err := s.Sync(ctx, s.clock.Now()); err != nil {
		logger.Errorf("status sync: %v", err)
	}
}

// Window returns when an event starts and ends. An end time at or before
// the start time means the event runs past midnight.
func Window(e models.Event, loc *time.Location) (time.Time, time.Time, error) {
	start, err := atClock(e.Date, e.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := atClock(e.Date, e.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end, nil
}

func atClock(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return time.Time{}, errors.NotValidf("time %q", hhmm)
	}
	y, mo, d := date.UTC().Date()
	return time.Date(y, mo, d, h, m, 0, 0, loc), nil
}

// target is the status an event should have at now, or "" to leave it.
func target(status string, start, end, now time.Time) string {
	switch {
	case !now.Before(end):
		return types.StatusCompleted
	case !now.Before(start) && status == types.StatusUpcoming:
		return types.StatusOngoing
	default:
		return ""
	}
}

// Sync moves UPCOMING events to ONGOING once they start and UPCOMING or
// ONGOING events to COMPLETED once they end. Cancelled events are never
// touched. Each update is conditional on the status read, so a concurrent
// edit wins.
func (s *Scheduler) Sync(ctx context.Context, now time.Time) ([]Transition, error) {
	db := s.db.WithContext(ctx)

	// A day of slack covers every timezone and overnight events.
	horizon := now.UTC().Add(24 * time.Hour)

	var events []models.Event
	err := db.Select("id", "date", "start_time", "end_time", "status").
		Where("status IN ?", []string{types.StatusUpcoming, types.StatusOngoing}).
		Where("date <= ?", horizon).
		Find(&events).Error
	if err != nil {
		return nil, errors.Annotate(err, "loading active events")
	}

	var applied []Transition
	for _, e := range events {
		start, end, err := Window(e, s.location)
		if err != nil {
			logger.Warningf("event %d: %v", e.ID, err)
			continue
		}

		to := target(e.Status, start, end, now)
		if to == "" {
			continue
		}

		res := db.Model(&models.Event{}).
			Where("id = ? AND status = ?", e.ID, e.Status).
			Update("status", to)
		if res.Error != nil {
			return applied, errors.Annotatef(res.Error, "updating event %d", e.ID)
		}
		if res.RowsAffected == 0 {
			continue
		}

		applied = append(applied, Transition{EventID: e.ID, From: e.Status, To: to})
		s.metrics.StatusTransitions.WithLabelValues(to).Inc()
		logger.Infof("event %d: %s -> %s", e.ID, e.Status, to)
	}

	return applied, nil
}

// cronLogger sends cron's own logging to loggo.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
