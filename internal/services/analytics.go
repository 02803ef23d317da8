package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

const (
	DefaultTrendDays = 30
	MaxTrendDays     = 365

	dashboardListSize = 5
)

// Export types.
const (
	ExportUsers      = "users"
	ExportEvents     = "events"
	ExportAttendance = "attendance"
)

// AttendanceRate formats attended/registered as a percentage with two
// decimals. No registrations gives "0%".
func AttendanceRate(attended, registered int64) string {
	if registered <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(attended)/float64(registered)*100)
}

func (s *Service) Dashboard(ctx context.Context, actor authz.Actor) (*types.Dashboard, error) {
	if err := authz.Authorize(actor, authz.ViewDashboard, authz.Resource{}); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var d types.Dashboard

	totals := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.User{}, &d.Stats.TotalUsers},
		{&models.Event{}, &d.Stats.TotalEvents},
		{&models.EventParticipant{}, &d.Stats.TotalParticipants},
		{&models.AttendanceLog{}, &d.Stats.TotalAttendance},
	}
	for _, t := range totals {
		if err := db.Model(t.model).Count(t.dst).Error; err != nil {
			return nil, errors.Annotatef(err, "counting %T", t.model)
		}
	}

	var err error
	if d.UsersByRole, err = groupCount(db.Model(&models.User{}), "role"); err != nil {
		return nil, err
	}
	if d.EventsByCategory, err = groupCount(db.Model(&models.Event{}), "category"); err != nil {
		return nil, err
	}
	if d.EventsByStatus, err = groupCount(db.Model(&models.Event{}), "status"); err != nil {
		return nil, err
	}

	var users []models.User
	if err := db.Order("created_at DESC").Order("id DESC").Limit(dashboardListSize).Find(&users).Error; err != nil {
		return nil, errors.Annotate(err, "listing recent users")
	}
	d.RecentUsers = make([]types.UserRecord, 0, len(users))
	for _, u := range users {
		d.RecentUsers = append(d.RecentUsers, types.NewUserRecord(u))
	}

	var upcoming []models.Event
	if err := db.Preload("Organizer").
		Where("status = ?", types.StatusUpcoming).
		Order("date ASC").Order("id ASC").
		Limit(dashboardListSize).
		Find(&upcoming).Error; err != nil {
		return nil, errors.Annotate(err, "listing upcoming events")
	}
	d.UpcomingEvents = eventResponses(upcoming)

	var popular []models.Event
	if err := db.Preload("Organizer").
		Order("participant_count DESC").Order("id ASC").
		Limit(dashboardListSize).
		Find(&popular).Error; err != nil {
		return nil, errors.Annotate(err, "listing popular events")
	}
	d.PopularEvents = eventResponses(popular)

	return &d, nil
}

func groupCount(q *gorm.DB, column string) ([]types.GroupCount, error) {
	out := []types.GroupCount{}
	err := q.Select(column + " AS id, COUNT(*) AS count").
		Group(column).
		Order(column).
		Scan(&out).Error
	if err != nil {
		return nil, errors.Annotatef(err, "grouping by %s", column)
	}
	return out, nil
}

func eventResponses(events []models.Event) []types.EventResponse {
	out := make([]types.EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, types.NewEventResponse(e))
	}
	return out
}

// Trends counts attendance marks and registrations per UTC day over the
// trailing window of days.
func (s *Service) Trends(ctx context.Context, actor authz.Actor, days int) (*types.Trends, error) {
	if err := authz.Authorize(actor, authz.ViewDashboard, authz.Resource{}); err != nil {
		return nil, err
	}
	if days < 1 || days > MaxTrendDays {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("days must be between 1 and %d", MaxTrendDays))
	}

	since := s.now().AddDate(0, 0, -days)
	db := s.db.WithContext(ctx)

	attendance, err := dailyCounts(db.Model(&models.AttendanceLog{}), "marked_at", since)
	if err != nil {
		return nil, err
	}
	registrations, err := dailyCounts(db.Model(&models.EventParticipant{}), "registered_at", since)
	if err != nil {
		return nil, err
	}

	return &types.Trends{
		Days:               days,
		AttendanceTrends:   attendance,
		RegistrationTrends: registrations,
	}, nil
}

// dailyCounts buckets column by UTC calendar day in Go, which keeps the
// query the same on every dialect.
func dailyCounts(q *gorm.DB, column string, since time.Time) ([]types.DailyCount, error) {
	var stamps []time.Time
	if err := q.Where(column+" >= ?", since).Pluck(column, &stamps).Error; err != nil {
		return nil, errors.Annotatef(err, "reading %s", column)
	}

	buckets := make(map[string]int64)
	for _, t := range stamps {
		buckets[t.UTC().Format("2006-01-02")]++
	}

	out := make([]types.DailyCount, 0, len(buckets))
	for day, n := range buckets {
		out = append(out, types.DailyCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Service) EventAnalytics(ctx context.Context, eventID uint, actor authz.Actor) (*types.EventAnalytics, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ViewEventAnalytics, authz.Resource{OwnerID: event.OrganizerID}); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	a := types.EventAnalytics{
		Event: types.AnalyticsEvent{
			EventSummary: *types.NewEventSummary(*event),
			Organizer:    types.NewUserSummary(event.Organizer),
		},
	}

	if err := db.Model(&models.EventParticipant{}).Where("event_id = ?", eventID).Count(&a.TotalParticipants).Error; err != nil {
		return nil, errors.Annotate(err, "counting participants")
	}
	if err := db.Model(&models.AttendanceLog{}).Where("event_id = ?", eventID).Count(&a.TotalAttendance).Error; err != nil {
		return nil, errors.Annotate(err, "counting attendance")
	}
	if a.ParticipantsByStatus, err = groupCount(db.Model(&models.EventParticipant{}).Where("event_id = ?", eventID), "status"); err != nil {
		return nil, err
	}
	a.AttendanceRate = AttendanceRate(a.TotalAttendance, a.TotalParticipants)

	return &a, nil
}

// Export dumps a whole table for download. Password hashes never leave
// the service.
func (s *Service) Export(ctx context.Context, actor authz.Actor, kind string) (interface{}, error) {
	if err := authz.Authorize(actor, authz.ExportData, authz.Resource{}); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	switch kind {
	case ExportUsers:
		var users []models.User
		if err := db.Order("id").Find(&users).Error; err != nil {
			return nil, errors.Annotate(err, "exporting users")
		}
		out := make([]types.UserRecord, 0, len(users))
		for _, u := range users {
			out = append(out, types.NewUserRecord(u))
		}
		return out, nil

	case ExportEvents:
		var events []models.Event
		if err := db.Preload("Organizer").Order("id").Find(&events).Error; err != nil {
			return nil, errors.Annotate(err, "exporting events")
		}
		return eventResponses(events), nil

	case ExportAttendance:
		var logs []models.AttendanceLog
		if err := db.Preload("User").Preload("Event").Order("id").Find(&logs).Error; err != nil {
			return nil, errors.Annotate(err, "exporting attendance")
		}
		out := make([]types.AttendanceExport, 0, len(logs))
		for _, l := range logs {
			out = append(out, types.AttendanceExport{
				AttendanceLog: l,
				User:          types.NewUserSummary(l.User),
				Event:         types.NewEventSummary(l.Event),
			})
		}
		return out, nil

	default:
		return nil, errors.NewNotValid(nil, "Invalid export type")
	}
}
