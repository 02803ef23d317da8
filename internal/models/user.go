package models

type User struct {
	BaseModel

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"not null;default:STUDENT;index" json:"role"`
	College      string `json:"college"`
	Department   string `json:"department"`
	Avatar       string `json:"avatar"`

	// Relationships
	OrganizedEvents []Event            `gorm:"foreignKey:OrganizerID" json:"-"`
	Registrations   []EventParticipant `gorm:"foreignKey:UserID" json:"-"`
}
