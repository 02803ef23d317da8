package models

import "time"

// EventParticipant is a user's registration for an event.
type EventParticipant struct {
	BaseModel

	EventID      uint      `gorm:"not null;uniqueIndex:idx_participant_event_user;index:idx_participant_event_status" json:"eventId"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_participant_event_user;index" json:"userId"`
	Status       string    `gorm:"not null;default:REGISTERED;index:idx_participant_event_status" json:"status"`
	RegisteredAt time.Time `gorm:"not null;index" json:"registeredAt"`

	// Relationships
	Event Event `gorm:"foreignKey:EventID" json:"-"`
	User  User  `gorm:"foreignKey:UserID" json:"-"`
}
