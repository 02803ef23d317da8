package models

import "time"

// AttendanceLog records that a registered user was checked in. Rows outlive
// their event on purpose: event deletion does not remove them.
type AttendanceLog struct {
	BaseModel

	EventID       uint      `gorm:"not null;uniqueIndex:idx_attendance_event_user;index" json:"eventId"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_attendance_event_user;index" json:"userId"`
	ParticipantID uint      `gorm:"not null" json:"participantId"`
	MarkedByID    uint      `gorm:"not null" json:"markedById"`
	MarkedAt      time.Time `gorm:"not null;index" json:"markedAt"`
	Method        string    `gorm:"not null;default:QR_SCAN" json:"method"`

	// Relationships
	Event       Event            `gorm:"foreignKey:EventID" json:"-"`
	User        User             `gorm:"foreignKey:UserID" json:"-"`
	Participant EventParticipant `gorm:"foreignKey:ParticipantID" json:"-"`
	MarkedBy    User             `gorm:"foreignKey:MarkedByID" json:"-"`
}
