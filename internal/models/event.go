package models

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultBanner = "https://images.pexels.com/photos/2774556/pexels-photo-2774556.jpeg"

type Event struct {
	BaseModel

	Title                string         `gorm:"not null" json:"title" validate:"required"`
	Description          string         `gorm:"type:text;not null" json:"description" validate:"required"`
	Category             string         `gorm:"not null;index" json:"category" validate:"required,category"`
	Date                 time.Time      `gorm:"not null;index:idx_event_date_status" json:"date"`
	StartTime            string         `gorm:"not null" json:"startTime" validate:"required,clock"`
	EndTime              string         `gorm:"not null" json:"endTime" validate:"required,clock"`
	Location             string         `gorm:"not null" json:"location" validate:"required"`
	College              string         `gorm:"not null;index" json:"college" validate:"required"`
	OrganizerID          uint           `gorm:"not null;index" json:"organizerId" validate:"required"`
	MaxParticipants      *int           `json:"maxParticipants" validate:"omitempty,gt=0"`
	RegistrationDeadline *time.Time     `json:"registrationDeadline"`
	Banner               string         `json:"banner"`
	Status               string         `gorm:"not null;default:UPCOMING;index:idx_event_date_status" json:"status" validate:"required,eventstatus"`
	QRPayload            datatypes.JSON `json:"qrPayload"`
	QRCode               string         `gorm:"type:text" json:"qrCode"`
	ParticipantCount     int            `gorm:"not null;default:0" json:"participantCount" validate:"gte=0"`
	AttendanceCount      int            `gorm:"not null;default:0" json:"attendanceCount" validate:"gte=0"`

	// Relationships
	Organizer User `gorm:"foreignKey:OrganizerID" json:"organizer" validate:"-"`
}

// IsFull reports whether a capacity is set and has been reached.
func (e *Event) IsFull() bool {
	return e.MaxParticipants != nil && e.ParticipantCount >= *e.MaxParticipants
}
