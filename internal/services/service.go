// Package services holds the campus-event domain: events, registrations,
// attendance and analytics. Handlers call in here with an authenticated
// actor; every operation takes the request context and passes it to gorm.
package services

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/im7mortal/kmutex"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("campuspulse.services")

// Publisher receives the notifications produced by committed writes.
// Implementations must not block.
type Publisher interface {
	PublishParticipantCount(eventID uint, count int)
	PublishAttendanceCount(eventID uint, count int)
	PublishLifecycle(notice realtime.LifecycleNotice)
}

var _ Publisher = (*realtime.Hub)(nil)

type Config struct {
	DB        *gorm.DB
	Publisher Publisher
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

type Service struct {
	db       *gorm.DB
	pub      Publisher
	clock    clock.Clock
	metrics  *metrics.Metrics
	locks    *kmutex.Kmutex
	validate *validator.Validate
}

func New(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.NotValidf("nil DB")
	}
	if cfg.Publisher == nil {
		return nil, errors.NotValidf("nil Publisher")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewDiscard()
	}

	v, err := newValidator()
	if err != nil {
		return nil, errors.Trace(err)
	}

	return &Service{
		db:       cfg.DB,
		pub:      cfg.Publisher,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		locks:    kmutex.New(),
		validate: v,
	}, nil
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func newValidator() (*validator.Validate, error) {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	custom := map[string]validator.Func{
		"category":    func(fl validator.FieldLevel) bool { return types.IsCategory(fl.Field().String()) },
		"eventstatus": func(fl validator.FieldLevel) bool { return types.IsEventStatus(fl.Field().String()) },
		"clock":       func(fl validator.FieldLevel) bool { return clockPattern.MatchString(fl.Field().String()) },
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, errors.Annotatef(err, "registering %q validation", tag)
		}
	}

	return v, nil
}

// validationError turns validator output into a NotValid error whose
// message lists each failed field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.NewNotValid(nil, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.NewNotValid(nil, strings.Join(msgs, ", "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "category":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(types.Categories, ", "))
	case "eventstatus":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(types.EventStatuses, ", "))
	case "clock":
		return fmt.Sprintf("%s must be a time in HH:MM format", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// isUniqueViolation reports whether err is a unique index violation.
// gorm translates most drivers' errors; pgconn covers raw Postgres errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339 timestamps as well as bare dates, which are
// taken as UTC midnight.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.NewNotValid(nil, field+" is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NewNotValid(nil, field+" must be a date")
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// lockEvent serializes join, leave, mark and mutation of one event
// within this process.
func (s *Service) lockEvent(eventID uint) func() {
	s.locks.Lock(eventID)
	return func() { s.locks.Unlock(eventID) }
}
