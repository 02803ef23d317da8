package types

import "slices"

const ContextUserKey = "user"

const (
	RoleStudent   = "STUDENT"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

const (
	StatusUpcoming  = "UPCOMING"
	StatusOngoing   = "ONGOING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

const (
	ParticipantRegistered = "REGISTERED"
	ParticipantAttended   = "ATTENDED"
	ParticipantCancelled  = "CANCELLED"
)

const (
	MethodQRScan = "QR_SCAN"
	MethodManual = "MANUAL"
)

var Categories = []string{
	"Technical",
	"Cultural",
	"Sports",
	"Workshop",
	"Seminar",
	"Hackathon",
	"Conference",
	"Social",
	"Other",
}

var EventStatuses = []string{StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled}

var Roles = []string{RoleStudent, RoleOrganizer, RoleAdmin}

func IsCategory(v string) bool    { return slices.Contains(Categories, v) }
func IsEventStatus(v string) bool { return slices.Contains(EventStatuses, v) }
func IsRole(v string) bool        { return slices.Contains(Roles, v) }
