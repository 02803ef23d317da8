// Package authz decides whether an actor may perform an action on an
// event-scoped resource. Handlers and services ask here instead of
// branching on roles themselves.
package authz

import (
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/errors"
)

type Action string

const (
	CreateEvent        Action = "create events"
	UpdateEvent        Action = "update this event"
	DeleteEvent        Action = "delete this event"
	ViewParticipants   Action = "view participants"
	MarkAttendance     Action = "mark attendance"
	ViewAttendance     Action = "view attendance"
	ViewEventAnalytics Action = "view analytics"
	ViewDashboard      Action = "view dashboard"
	ExportData         Action = "export data"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   uint
	Role string
}

// Resource identifies what is acted upon. OwnerID is the organizer of the
// event; it is zero for actions that are not scoped to one event.
type Resource struct {
	OwnerID uint
}

// ownerScoped actions are open to the event's organizer as well as admins.
var ownerScoped = map[Action]bool{
	UpdateEvent:        true,
	DeleteEvent:        true,
	ViewParticipants:   true,
	MarkAttendance:     true,
	ViewAttendance:     true,
	ViewEventAnalytics: true,
}

// Can reports whether actor may perform action on resource.
func Can(actor Actor, action Action, resource Resource) bool {
	if actor.ID == 0 {
		return false
	}

	if actor.Role == types.RoleAdmin {
		return true
	}

	switch {
	case action == CreateEvent:
		return actor.Role == types.RoleOrganizer
	case ownerScoped[action]:
		return actor.Role == types.RoleOrganizer && resource.OwnerID != 0 && resource.OwnerID == actor.ID
	default:
		return false
	}
}

// Authorize is Can returning a Forbidden error on denial.
func Authorize(actor Actor, action Action, resource Resource) error {
	if Can(actor, action, resource) {
		return nil
	}
	return errors.NewForbidden(nil, "Not authorized to "+string(action))
}
