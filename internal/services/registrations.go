package services

import (
	"context"

	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Registration is the outcome of a successful join.
type Registration struct {
	Participant      models.EventParticipant `json:"participant"`
	ParticipantCount int                     `json:"participantCount"`
}

// JoinEvent registers user for an event. Duplicate registrations, full
// events and closed registration are conflicts; the counter increment is
// conditional on capacity and shares the insert's transaction.
func (s *Service) JoinEvent(ctx context.Context, eventID uint, user authz.Actor) (*Registration, error) {
	defer s.lockEvent(eventID)()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case event.Status == types.StatusCancelled:
		return nil, errors.NewNotSupported(nil, "Event has been cancelled")
	case event.Status == types.StatusCompleted:
		return nil, errors.NewNotSupported(nil, "Event has already ended")
	case event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline):
		return nil, errors.NewNotSupported(nil, "Registration deadline has passed")
	}

	participant := models.EventParticipant{
		EventID:      eventID,
		UserID:       user.ID,
		Status:       types.ParticipantRegistered,
		RegisteredAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.EventParticipant{}).
			Where("event_id = ? AND user_id = ?", eventID, user.ID).
			Count(&existing).Error; err != nil {
			return errors.Annotate(err, "checking registration")
		}
		if existing > 0 {
			return errors.NewAlreadyExists(nil, "Already registered for this event")
		}

		if err := reserveSeat(tx, eventID); err != nil {
			return err
		}

		if err := tx.Create(&participant).Error; err != nil {
			if isUniqueViolation(err) {
				return errors.NewAlreadyExists(nil, "Already registered for this event")
			}
			return errors.Annotate(err, "creating registration")
		}

		return tx.Select("participant_count", "max_participants").First(event, eventID).Error
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	s.metrics.Registrations.Inc()
	logger.Debugf("user %d joined event %d (%d registered)", user.ID, eventID, event.ParticipantCount)

	s.pub.PublishParticipantCount(eventID, event.ParticipantCount)
	if event.IsFull() {
		s.pub.PublishLifecycle(lifecycleNotice(realtime.EventFull, event))
	}

	return &Registration{Participant: participant, ParticipantCount: event.ParticipantCount}, nil
}

// LeaveEvent removes user's registration and returns the new participant
// count.
func (s *Service) LeaveEvent(ctx context.Context, eventID uint, user authz.Actor) (int, error) {
	defer s.lockEvent(eventID)()

	var count int
	var eventExists bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var participant models.EventParticipant
		err := tx.Where("event_id = ? AND user_id = ?", eventID, user.ID).First(&participant).Error
		if isNotFound(err) {
			return errors.NewNotFound(nil, "Not registered for this event")
		}
		if err != nil {
			return errors.Annotate(err, "loading registration")
		}

		if err := tx.Delete(&participant).Error; err != nil {
			return errors.Annotate(err, "deleting registration")
		}

		res := tx.Model(&models.Event{}).
			Where("id = ?", eventID).
			UpdateColumn("participant_count", gorm.Expr("CASE WHEN participant_count > 0 THEN participant_count - 1 ELSE 0 END"))
		if res.Error != nil {
			return errors.Annotate(res.Error, "decrementing participant count")
		}

		var event models.Event
		err = tx.Select("id", "participant_count").First(&event, eventID).Error
		if isNotFound(err) {
			// The event is gone; the stray registration is still removed.
			return nil
		}
		if err != nil {
			return errors.Annotate(err, "reading participant count")
		}
		count, eventExists = event.ParticipantCount, true
		return nil
	})
	if err != nil {
		return 0, errors.Trace(err)
	}

	s.metrics.Leaves.Inc()
	logger.Debugf("user %d left event %d (%d registered)", user.ID, eventID, count)

	if eventExists {
		s.pub.PublishParticipantCount(eventID, count)
	}
	return count, nil
}

// ListParticipants returns the event's registrations, newest first.
func (s *Service) ListParticipants(ctx context.Context, eventID uint, actor authz.Actor) ([]types.ParticipantResponse, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ViewParticipants, authz.Resource{OwnerID: event.OrganizerID}); err != nil {
		return nil, err
	}

	var participants []models.EventParticipant
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ?", eventID).
		Order("registered_at DESC").Order("id DESC").
		Find(&participants).Error
	if err != nil {
		return nil, errors.Annotatef(err, "listing participants of event %d", eventID)
	}

	out := make([]types.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		out = append(out, types.ParticipantResponse{EventParticipant: p, User: types.NewUserSummary(p.User)})
	}
	return out, nil
}

// ListMyEvents returns the events user is registered for with the
// registration's status, newest registration first. Registrations whose
// event is gone are skipped.
func (s *Service) ListMyEvents(ctx context.Context, user authz.Actor) ([]types.MyEventResponse, error) {
	var participants []models.EventParticipant
	err := s.db.WithContext(ctx).
		Preload("Event").
		Preload("Event.Organizer").
		Where("user_id = ?", user.ID).
		Order("registered_at DESC").Order("id DESC").
		Find(&participants).Error
	if err != nil {
		return nil, errors.Annotatef(err, "listing registrations of user %d", user.ID)
	}

	out := make([]types.MyEventResponse, 0, len(participants))
	for _, p := range participants {
		if p.Event.ID == 0 {
			continue
		}
		out = append(out, types.MyEventResponse{
			EventResponse:     types.NewEventResponse(p.Event),
			ParticipantStatus: p.Status,
			RegisteredAt:      p.RegisteredAt,
		})
	}
	return out, nil
}

// reserveSeat increments participant_count if the event has room. No row
// updated means the event is full, or gone if another instance deleted it.
func reserveSeat(tx *gorm.DB, eventID uint) error {
	res := tx.Model(&models.Event{}).
		Where("id = ? AND (max_participants IS NULL OR participant_count < max_participants)", eventID).
		UpdateColumn("participant_count", gorm.Expr("participant_count + 1"))
	if res.Error != nil {
		return errors.Annotate(res.Error, "incrementing participant count")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := tx.Model(&models.Event{}).Where("id = ?", eventID).Count(&n).Error; err != nil {
		return errors.Annotate(err, "checking event")
	}
	if n == 0 {
		return errors.NewNotFound(nil, "Event not found")
	}
	return errors.NewQuotaLimitExceeded(nil, "Event is full")
}
