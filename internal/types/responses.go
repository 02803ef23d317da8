package types

import (
	"time"

	"github.com/campuspulse/campuspulse/internal/models"
)

type UserResponse struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	College    string `json:"college"`
	Department string `json:"department"`
	Avatar     string `json:"avatar,omitempty"`
}

// UserSummary is the slice of a user embedded in other resources.
type UserSummary struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	College    string `json:"college,omitempty"`
	Department string `json:"department,omitempty"`
}

type EventSummary struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location,omitempty"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		College:    u.College,
		Department: u.Department,
		Avatar:     u.Avatar,
	}
}

func NewUserSummary(u models.User) *UserSummary {
	if u.ID == 0 {
		return nil
	}
	return &UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		College:    u.College,
		Department: u.Department,
	}
}

func NewEventSummary(e models.Event) *EventSummary {
	if e.ID == 0 {
		return nil
	}
	return &EventSummary{
		ID:       e.ID,
		Title:    e.Title,
		Date:     e.Date,
		Location: e.Location,
	}
}

// EventResponse swaps the preloaded organizer for its summary.
type EventResponse struct {
	models.Event
	Organizer     *UserSummary `json:"organizer"`
	IsParticipant *bool        `json:"isParticipant,omitempty"`
}

func NewEventResponse(e models.Event) EventResponse {
	return EventResponse{Event: e, Organizer: NewUserSummary(e.Organizer)}
}

// MyEventResponse is an event annotated with the caller's registration.
type MyEventResponse struct {
	EventResponse
	ParticipantStatus string    `json:"participantStatus"`
	RegisteredAt      time.Time `json:"registeredAt"`
}

type ParticipantResponse struct {
	models.EventParticipant
	User *UserSummary `json:"user"`
}

type AttendanceResponse struct {
	models.AttendanceLog
	User     *UserSummary   `json:"user,omitempty"`
	MarkedBy *UserSummary   `json:"markedBy,omitempty"`
	Event    *EventResponse `json:"event,omitempty"`
}

// ParticipantRef identifies a registration in a QR verification result.
type ParticipantRef struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

type VerifyResponse struct {
	Valid       bool           `json:"valid"`
	Event       *EventSummary  `json:"event"`
	Participant ParticipantRef `json:"participant"`
}
