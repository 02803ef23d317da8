package models

import "time"

// BaseModel is gorm.Model without soft deletes. Registrations are removed
// for real on leave so the (event, user) unique index frees up again.
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
