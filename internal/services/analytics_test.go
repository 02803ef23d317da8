package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceRate(t *testing.T) {
	tests := []struct {
		attended, registered int64
		want                 string
	}{
		{0, 0, "0%"},
		{3, 4, "75.00%"},
		{0, 5, "0.00%"},
		{1, 3, "33.33%"},
		{2, 2, "100.00%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AttendanceRate(tt.attended, tt.registered), "%d/%d", tt.attended, tt.registered)
	}
}

// seedAnalytics creates two organizers' events, three students and some
// registrations and attendance.
func seedAnalytics(t *testing.T, f *fixture) (org authz.Actor, students []authz.Actor, events []*types.EventResponse) {
	t.Helper()

	org = f.user(t, types.RoleOrganizer, "org")
	for _, name := range []string{"ann", "ben", "cat", "dan"} {
		students = append(students, f.user(t, types.RoleStudent, name))
	}

	workshop := eventInput("Workshop")
	workshop.Category = "Workshop"
	workshop.Date = "2025-04-01"
	events = append(events, f.event(t, org, workshop))
	events = append(events, f.event(t, org, eventInput("Talk")))

	for _, s := range students {
		_, err := f.svc.JoinEvent(f.ctx, events[0].ID, s)
		require.NoError(t, err)
	}
	_, err := f.svc.JoinEvent(f.ctx, events[1].ID, students[0])
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	for _, s := range students[:3] {
		_, err := f.svc.MarkAttendance(f.ctx, events[0].ID, s.ID, org, "")
		require.NoError(t, err)
	}

	return org, students, events
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, types.RoleAdmin, "admin")
	org, _, events := seedAnalytics(t, f)

	d, err := f.svc.Dashboard(f.ctx, admin)
	require.NoError(t, err)

	assert.Equal(t, types.DashboardStats{
		TotalUsers:        6,
		TotalEvents:       2,
		TotalParticipants: 5,
		TotalAttendance:   3,
	}, d.Stats)

	assert.Equal(t, []types.GroupCount{
		{ID: types.RoleAdmin, Count: 1},
		{ID: types.RoleOrganizer, Count: 1},
		{ID: types.RoleStudent, Count: 4},
	}, d.UsersByRole)
	assert.Equal(t, []types.GroupCount{
		{ID: "Technical", Count: 1},
		{ID: "Workshop", Count: 1},
	}, d.EventsByCategory)
	assert.Equal(t, []types.GroupCount{{ID: types.StatusUpcoming, Count: 2}}, d.EventsByStatus)

	assert.Len(t, d.RecentUsers, 5)
	require.Len(t, d.UpcomingEvents, 2)
	assert.Equal(t, events[0].ID, d.UpcomingEvents[0].ID, "soonest first")
	require.Len(t, d.PopularEvents, 2)
	assert.Equal(t, events[0].ID, d.PopularEvents[0].ID)
	assert.Equal(t, 4, d.PopularEvents[0].ParticipantCount)

	_, err = f.svc.Dashboard(f.ctx, org)
	assert.True(t, errors.Is(err, errors.Forbidden))
}

func TestTrends(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, types.RoleAdmin, "admin")
	seedAnalytics(t, f)

	trends, err := f.svc.Trends(f.ctx, admin, DefaultTrendDays)
	require.NoError(t, err)

	assert.Equal(t, 30, trends.Days)
	assert.Equal(t, []types.DailyCount{{Date: "2025-03-01", Count: 5}}, trends.RegistrationTrends)
	assert.Equal(t, []types.DailyCount{{Date: "2025-03-02", Count: 3}}, trends.AttendanceTrends)

	// Move far enough that the registrations fall out of a 1-day window.
	f.clock.Advance(36 * time.Hour)
	recent, err := f.svc.Trends(f.ctx, admin, 1)
	require.NoError(t, err)
	assert.Empty(t, recent.RegistrationTrends)
	assert.Empty(t, recent.AttendanceTrends)

	for _, days := range []int{0, -1, 366} {
		_, err := f.svc.Trends(f.ctx, admin, days)
		assert.True(t, errors.Is(err, errors.NotValid), "days=%d", days)
	}
}

func TestEventAnalytics(t *testing.T) {
	f := newFixture(t)
	other := f.user(t, types.RoleOrganizer, "other")
	org, _, events := seedAnalytics(t, f)

	a, err := f.svc.EventAnalytics(f.ctx, events[0].ID, org)
	require.NoError(t, err)

	assert.Equal(t, "Workshop", a.Event.Title)
	require.NotNil(t, a.Event.Organizer)
	assert.Equal(t, "org", a.Event.Organizer.Name)
	assert.EqualValues(t, 4, a.TotalParticipants)
	assert.EqualValues(t, 3, a.TotalAttendance)
	assert.Equal(t, "75.00%", a.AttendanceRate)
	assert.Equal(t, []types.GroupCount{
		{ID: types.ParticipantAttended, Count: 3},
		{ID: types.ParticipantRegistered, Count: 1},
	}, a.ParticipantsByStatus)

	empty := f.event(t, org, eventInput("Empty"))
	a, err = f.svc.EventAnalytics(f.ctx, empty.ID, org)
	require.NoError(t, err)
	assert.Equal(t, "0%", a.AttendanceRate)
	assert.Empty(t, a.ParticipantsByStatus)

	_, err = f.svc.EventAnalytics(f.ctx, events[0].ID, other)
	assert.Equal(t, "Not authorized to view analytics", err.Error())
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, types.RoleAdmin, "admin")
	seedAnalytics(t, f)

	users, err := f.svc.Export(f.ctx, admin, ExportUsers)
	require.NoError(t, err)
	raw, err := json.Marshal(users)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.NotContains(t, string(raw), "password")
	assert.Len(t, users, 6)

	events, err := f.svc.Export(f.ctx, admin, ExportEvents)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "org", events.([]types.EventResponse)[0].Organizer.Name)

	attendance, err := f.svc.Export(f.ctx, admin, ExportAttendance)
	require.NoError(t, err)
	rows := attendance.([]types.AttendanceExport)
	require.Len(t, rows, 3)
	assert.Equal(t, "ann", rows[0].User.Name)
	assert.Equal(t, "Workshop", rows[0].Event.Title)

	_, err = f.svc.Export(f.ctx, admin, "grades")
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Equal(t, "Invalid export type", err.Error())
}
