package services

import (
	"context"
	"strings"

	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// EventInput is the body of an event creation request. Dates may be RFC
// 3339 timestamps or plain YYYY-MM-DD dates.
type EventInput struct {
	Title                string  `json:"title"`
	Description          string  `json:"description"`
	Category             string  `json:"category"`
	Date                 string  `json:"date"`
	StartTime            string  `json:"startTime"`
	EndTime              string  `json:"endTime"`
	Location             string  `json:"location"`
	College              string  `json:"college"`
	MaxParticipants      *int    `json:"maxParticipants"`
	RegistrationDeadline *string `json:"registrationDeadline"`
	Banner               string  `json:"banner"`
}

// EventPatch holds the fields an update may change. Nil fields are left
// alone. Counters, organizer and QR code are not patchable.
type EventPatch struct {
	Title                *string `json:"title"`
	Description          *string `json:"description"`
	Category             *string `json:"category"`
	Date                 *string `json:"date"`
	StartTime            *string `json:"startTime"`
	EndTime              *string `json:"endTime"`
	Location             *string `json:"location"`
	College              *string `json:"college"`
	MaxParticipants      *int    `json:"maxParticipants"`
	RegistrationDeadline *string `json:"registrationDeadline"`
	Banner               *string `json:"banner"`
	Status               *string `json:"status"`
}

type EventFilter struct {
	Category string
	College  string
	Status   string
	Search   string
}

// patchColumns are written by UpdateEvent. Counters are left out so a
// concurrent join is never overwritten.
var patchColumns = []string{
	"title", "description", "category", "date", "start_time", "end_time",
	"location", "college", "max_participants", "registration_deadline",
	"banner", "status", "qr_payload", "qr_code",
}

func (s *Service) validateEvent(e *models.Event) error {
	if e.Date.IsZero() {
		return errors.NewNotValid(nil, "date is required")
	}
	if err := s.validate.Struct(e); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Service) CreateEvent(ctx context.Context, actor authz.Actor, in EventInput) (*types.EventResponse, error) {
	if err := authz.Authorize(actor, authz.CreateEvent, authz.Resource{}); err != nil {
		return nil, err
	}

	event := models.Event{
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Category:        in.Category,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Location:        strings.TrimSpace(in.Location),
		College:         strings.TrimSpace(in.College),
		OrganizerID:     actor.ID,
		MaxParticipants: in.MaxParticipants,
		Banner:          strings.TrimSpace(in.Banner),
		Status:          types.StatusUpcoming,
	}
	if event.Banner == "" {
		event.Banner = models.DefaultBanner
	}
	if event.MaxParticipants != nil && *event.MaxParticipants == 0 {
		event.MaxParticipants = nil
	}

	date, err := parseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	event.Date = date

	if in.RegistrationDeadline != nil && strings.TrimSpace(*in.RegistrationDeadline) != "" {
		deadline, err := parseDate("registrationDeadline", *in.RegistrationDeadline)
		if err != nil {
			return nil, err
		}
		event.RegistrationDeadline = &deadline
	}

	db := s.db.WithContext(ctx)

	if event.College == "" {
		var organizer models.User
		if err := db.Select("college").First(&organizer, actor.ID).Error; err == nil {
			event.College = organizer.College
		}
	}

	if err := s.validateEvent(&event); err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return errors.Annotate(err, "creating event")
		}

		// The payload embeds the id, so it can only be rendered once the
		// row exists.
		payload, code, err := renderQR(event.ID, event.Title)
		if err != nil {
			return err
		}
		return tx.Model(&event).Updates(models.Event{QRPayload: payload, QRCode: code}).Error
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	created, err := s.loadEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	logger.Infof("event %d %q created by user %d", created.ID, created.Title, actor.ID)
	s.pub.PublishLifecycle(lifecycleNotice(realtime.EventCreated, created))

	resp := types.NewEventResponse(*created)
	return &resp, nil
}

// loadEvent fetches an event with its organizer.
func (s *Service) loadEvent(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Preload("Organizer").First(&event, id).Error
	if isNotFound(err) {
		return nil, errors.NewNotFound(nil, "Event not found")
	}
	if err != nil {
		return nil, errors.Annotatef(err, "loading event %d", id)
	}
	return &event, nil
}

// GetEvent returns one event. A non-zero viewerID also reports whether the
// viewer is registered for it.
func (s *Service) GetEvent(ctx context.Context, id, viewerID uint) (*types.EventResponse, error) {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := types.NewEventResponse(*event)

	if viewerID != 0 {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.EventParticipant{}).
			Where("event_id = ? AND user_id = ?", id, viewerID).
			Count(&n).Error
		if err != nil {
			return nil, errors.Annotate(err, "checking registration")
		}
		registered := n > 0
		resp.IsParticipant = &registered
	}

	return &resp, nil
}

func (f EventFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.College != "" {
		db = db.Where("college = ?", f.College)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		like := "%" + search + "%"
		db = db.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	return db
}

// ListEvents returns a page of events matching every set filter, soonest
// first.
func (s *Service) ListEvents(ctx context.Context, filter EventFilter, page types.PageParams) (*types.EventPage, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Event{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, errors.Annotate(err, "counting events")
	}

	var events []models.Event
	err := db.Scopes(filter.scope).
		Preload("Organizer").
		Order("date ASC").Order("id ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Annotate(err, "listing events")
	}

	out := make([]types.EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, types.NewEventResponse(e))
	}

	return &types.EventPage{
		Events:      out,
		TotalEvents: total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Page,
	}, nil
}

// ListOrganizedEvents returns the actor's own events, latest date first.
func (s *Service) ListOrganizedEvents(ctx context.Context, actor authz.Actor) ([]types.EventResponse, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Preload("Organizer").
		Where("organizer_id = ?", actor.ID).
		Order("date DESC").Order("id DESC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Annotate(err, "listing organized events")
	}

	out := make([]types.EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, types.NewEventResponse(e))
	}
	return out, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id uint, actor authz.Actor, patch EventPatch) (*types.EventResponse, error) {
	defer s.lockEvent(id)()

	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.UpdateEvent, authz.Resource{OwnerID: event.OrganizerID}); err != nil {
		return nil, err
	}

	previousTitle, previousStatus := event.Title, event.Status
	if err := applyPatch(event, patch); err != nil {
		return nil, err
	}
	if err := s.validateEvent(event); err != nil {
		return nil, err
	}
	if event.MaxParticipants != nil && *event.MaxParticipants < event.ParticipantCount {
		return nil, errors.NewNotValid(nil, "maxParticipants cannot be less than the current participant count")
	}

	if event.Title != previousTitle {
		payload, code, err := renderQR(event.ID, event.Title)
		if err != nil {
			return nil, err
		}
		event.QRPayload, event.QRCode = payload, code
	}

	err = s.db.WithContext(ctx).Model(event).Select(patchColumns).Updates(event).Error
	if err != nil {
		return nil, errors.Annotatef(err, "updating event %d", id)
	}

	updated, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	logger.Infof("event %d updated by user %d", id, actor.ID)
	if updated.Status == types.StatusCancelled && previousStatus != types.StatusCancelled {
		s.pub.PublishLifecycle(lifecycleNotice(realtime.EventCancelled, updated))
	}

	resp := types.NewEventResponse(*updated)
	return &resp, nil
}

func applyPatch(e *models.Event, p EventPatch) error {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}

	setString(&e.Title, p.Title)
	setString(&e.Description, p.Description)
	setString(&e.Category, p.Category)
	setString(&e.StartTime, p.StartTime)
	setString(&e.EndTime, p.EndTime)
	setString(&e.Location, p.Location)
	setString(&e.College, p.College)
	setString(&e.Banner, p.Banner)
	setString(&e.Status, p.Status)

	if e.Banner == "" {
		e.Banner = models.DefaultBanner
	}
	if p.MaxParticipants != nil {
		if *p.MaxParticipants == 0 {
			// Zero lifts the capacity limit.
			e.MaxParticipants = nil
		} else {
			capacity := *p.MaxParticipants
			e.MaxParticipants = &capacity
		}
	}
	if p.Date != nil {
		date, err := parseDate("date", *p.Date)
		if err != nil {
			return err
		}
		e.Date = date
	}
	if p.RegistrationDeadline != nil {
		if strings.TrimSpace(*p.RegistrationDeadline) == "" {
			e.RegistrationDeadline = nil
		} else {
			deadline, err := parseDate("registrationDeadline", *p.RegistrationDeadline)
			if err != nil {
				return err
			}
			e.RegistrationDeadline = &deadline
		}
	}
	return nil
}

// DeleteEvent removes an event and its registrations. Attendance logs are
// kept.
func (s *Service) DeleteEvent(ctx context.Context, id uint, actor authz.Actor) error {
	defer s.lockEvent(id)()

	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, authz.DeleteEvent, authz.Resource{OwnerID: event.OrganizerID}); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventParticipant{}).Error; err != nil {
			return errors.Annotate(err, "deleting registrations")
		}
		return tx.Delete(&models.Event{}, id).Error
	})
	if err != nil {
		return errors.Annotatef(err, "deleting event %d", id)
	}

	logger.Infof("event %d deleted by user %d", id, actor.ID)
	return nil
}

func lifecycleNotice(kind string, e *models.Event) realtime.LifecycleNotice {
	n := realtime.LifecycleNotice{
		Kind:        kind,
		EventID:     e.ID,
		Title:       e.Title,
		Category:    e.Category,
		Location:    e.Location,
		College:     e.College,
		Organizer:   e.Organizer.Name,
		Date:        e.Date.Format("2006-01-02") + " " + e.StartTime,
		Participant: e.ParticipantCount,
	}
	if e.MaxParticipants != nil {
		n.Capacity = *e.MaxParticipants
	}
	return n
}
