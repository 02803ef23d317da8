package services

import (
	"context"
	"strings"

	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// MarkAttendance records that userID attended the event. The log row, the
// registration's ATTENDED status and the attendance counter are written in
// one transaction.
func (s *Service) MarkAttendance(ctx context.Context, eventID, userID uint, marker authz.Actor, method string) (*types.AttendanceResponse, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case "":
		method = types.MethodQRScan
	case types.MethodQRScan, types.MethodManual:
	default:
		return nil, errors.NewNotValid(nil, "method must be QR_SCAN or MANUAL")
	}
	if userID == 0 {
		return nil, errors.NewNotValid(nil, "userId is required")
	}

	defer s.lockEvent(eventID)()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(marker, authz.MarkAttendance, authz.Resource{OwnerID: event.OrganizerID}); err != nil {
		return nil, err
	}

	record := models.AttendanceLog{
		EventID:    eventID,
		UserID:     userID,
		MarkedByID: marker.ID,
		MarkedAt:   s.now(),
		Method:     method,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var participant models.EventParticipant
		err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&participant).Error
		if isNotFound(err) {
			return errors.NewNotFound(nil, "User not registered for this event")
		}
		if err != nil {
			return errors.Annotate(err, "loading registration")
		}

		var marked int64
		if err := tx.Model(&models.AttendanceLog{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&marked).Error; err != nil {
			return errors.Annotate(err, "checking attendance")
		}
		if marked > 0 {
			return errors.NewAlreadyExists(nil, "Attendance already marked for this user")
		}

		record.ParticipantID = participant.ID
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return errors.NewAlreadyExists(nil, "Attendance already marked for this user")
			}
			return errors.Annotate(err, "creating attendance log")
		}

		if err := tx.Model(&participant).UpdateColumn("status", types.ParticipantAttended).Error; err != nil {
			return errors.Annotate(err, "updating registration status")
		}

		if err := tx.Model(&models.Event{}).
			Where("id = ?", eventID).
			UpdateColumn("attendance_count", gorm.Expr("attendance_count + 1")).Error; err != nil {
			return errors.Annotate(err, "incrementing attendance count")
		}

		return tx.Select("id", "attendance_count").First(event, eventID).Error
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	s.metrics.AttendanceMarks.Inc()
	logger.Infof("attendance marked for user %d at event %d by user %d (%s)", userID, eventID, marker.ID, method)

	s.pub.PublishAttendanceCount(eventID, event.AttendanceCount)

	var created models.AttendanceLog
	if err := s.db.WithContext(ctx).Preload("User").Preload("MarkedBy").First(&created, record.ID).Error; err != nil {
		return nil, errors.Annotate(err, "reloading attendance log")
	}

	resp := attendanceResponse(created)
	return &resp, nil
}

// VerifyQR checks that requester can have attendance marked for a scanned
// event. It writes nothing.
func (s *Service) VerifyQR(ctx context.Context, eventID uint, requester authz.Actor) (*types.VerifyResponse, error) {
	db := s.db.WithContext(ctx)

	var event models.Event
	err := db.First(&event, eventID).Error
	if isNotFound(err) {
		return nil, errors.NewNotFound(nil, "Invalid QR code")
	}
	if err != nil {
		return nil, errors.Annotatef(err, "loading event %d", eventID)
	}

	var participant models.EventParticipant
	err = db.Where("event_id = ? AND user_id = ?", eventID, requester.ID).First(&participant).Error
	if isNotFound(err) {
		return nil, errors.NewNotFound(nil, "Not registered for this event")
	}
	if err != nil {
		return nil, errors.Annotate(err, "loading registration")
	}

	var marked int64
	if err := db.Model(&models.AttendanceLog{}).
		Where("event_id = ? AND user_id = ?", eventID, requester.ID).
		Count(&marked).Error; err != nil {
		return nil, errors.Annotate(err, "checking attendance")
	}
	if marked > 0 {
		return nil, errors.NewAlreadyExists(nil, "Attendance already marked")
	}

	return &types.VerifyResponse{
		Valid:       true,
		Event:       types.NewEventSummary(event),
		Participant: types.ParticipantRef{ID: participant.ID, Status: participant.Status},
	}, nil
}

// EventAttendance returns the attendance logs of one event, newest first.
func (s *Service) EventAttendance(ctx context.Context, eventID uint, actor authz.Actor) ([]types.AttendanceResponse, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ViewAttendance, authz.Resource{OwnerID: event.OrganizerID}); err != nil {
		return nil, err
	}

	var logs []models.AttendanceLog
	err = s.db.WithContext(ctx).
		Preload("User").
		Preload("MarkedBy").
		Where("event_id = ?", eventID).
		Order("marked_at DESC").Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, errors.Annotatef(err, "listing attendance of event %d", eventID)
	}

	out := make([]types.AttendanceResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, attendanceResponse(l))
	}
	return out, nil
}

// AttendanceHistory returns user's own attendance, newest first, with each
// event and its organizer.
func (s *Service) AttendanceHistory(ctx context.Context, user authz.Actor) ([]types.AttendanceResponse, error) {
	var logs []models.AttendanceLog
	err := s.db.WithContext(ctx).
		Preload("Event").
		Preload("Event.Organizer").
		Where("user_id = ?", user.ID).
		Order("marked_at DESC").Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, errors.Annotatef(err, "listing attendance of user %d", user.ID)
	}

	out := make([]types.AttendanceResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, attendanceResponse(l))
	}
	return out, nil
}

func attendanceResponse(l models.AttendanceLog) types.AttendanceResponse {
	resp := types.AttendanceResponse{
		AttendanceLog: l,
		User:          types.NewUserSummary(l.User),
		MarkedBy:      types.NewUserSummary(l.MarkedBy),
	}
	if l.Event.ID != 0 {
		event := types.NewEventResponse(l.Event)
		resp.Event = &event
	}
	return resp
}
