package types

import (
	"time"

	"github.com/campuspulse/campuspulse/internal/models"
)

// GroupCount is one bucket of a GROUP BY.
type GroupCount struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// DailyCount is the number of rows falling on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type DashboardStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalEvents       int64 `json:"totalEvents"`
	TotalParticipants int64 `json:"totalParticipants"`
	TotalAttendance   int64 `json:"totalAttendance"`
}

// UserRecord is a user with its creation time, as listed in the dashboard
// and exports.
type UserRecord struct {
	UserResponse
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserRecord(u models.User) UserRecord {
	return UserRecord{UserResponse: NewUserResponse(u), CreatedAt: u.CreatedAt}
}

type Dashboard struct {
	Stats            DashboardStats  `json:"stats"`
	UsersByRole      []GroupCount    `json:"usersByRole"`
	EventsByCategory []GroupCount    `json:"eventsByCategory"`
	EventsByStatus   []GroupCount    `json:"eventsByStatus"`
	RecentUsers      []UserRecord    `json:"recentUsers"`
	UpcomingEvents   []EventResponse `json:"upcomingEvents"`
	PopularEvents    []EventResponse `json:"popularEvents"`
}

type Trends struct {
	Days               int          `json:"days"`
	AttendanceTrends   []DailyCount `json:"attendanceTrends"`
	RegistrationTrends []DailyCount `json:"registrationTrends"`
}

type AnalyticsEvent struct {
	EventSummary
	Organizer *UserSummary `json:"organizer"`
}

type EventAnalytics struct {
	Event                AnalyticsEvent `json:"event"`
	TotalParticipants    int64          `json:"totalParticipants"`
	TotalAttendance      int64          `json:"totalAttendance"`
	AttendanceRate       string         `json:"attendanceRate"`
	ParticipantsByStatus []GroupCount   `json:"participantsByStatus"`
}

// AttendanceExport is an attendance log with the attendee and event.
type AttendanceExport struct {
	models.AttendanceLog
	User  *UserSummary  `json:"user"`
	Event *EventSummary `json:"event"`
}
