// Package realtime fans event-scoped updates out to WebSocket clients.
// Every event has its own topic on an in-process pubsub hub; clients
// subscribe to the rooms they join and receive what is published there.
package realtime

import (
	"fmt"
	"strings"

	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/juju/loggo"
	"github.com/juju/pubsub/v2"
)

var logger = loggo.GetLogger("campuspulse.realtime")

// Names of the messages sent to clients.
const (
	Connected              = "connected"
	JoinedEvent            = "joinedEvent"
	LeftEvent              = "leftEvent"
	ParticipantCountUpdate = "participantCountUpdate"
	AttendanceUpdate       = "attendanceUpdate"
	ErrorMessage           = "error"
)

const (
	roomPrefix      = "event."
	lifecycleTopic  = "lifecycle"
	lifecyclePrefix = lifecycleTopic + "."
)

// Lifecycle notice kinds.
const (
	EventCreated   = "created"
	EventFull      = "full"
	EventCancelled = "cancelled"
)

// Message is the envelope written to clients.
type Message struct {
	Event   string      `json:"event"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// CountUpdate carries a counter's new value for one event.
type CountUpdate struct {
	EventID uint `json:"eventId"`
	Count   int  `json:"count"`
}

// LifecycleNotice describes a change to an event that is interesting
// outside its room, such as to webhook notifiers.
type LifecycleNotice struct {
	Kind        string
	EventID     uint
	Title       string
	Category    string
	Location    string
	College     string
	Organizer   string
	Date        string
	Capacity    int
	Participant int
}

// Hub wraps a pubsub.SimpleHub with event-room topics.
type Hub struct {
	hub     *pubsub.SimpleHub
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.NewDiscard()
	}

	return &Hub{
		hub:     pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{Logger: logger}),
		metrics: m,
	}
}

// RoomTopic is the topic carrying updates for one event.
func RoomTopic(eventID uint) string {
	return fmt.Sprintf("%s%d", roomPrefix, eventID)
}

func (h *Hub) PublishParticipantCount(eventID uint, count int) {
	h.publishCount(ParticipantCountUpdate, eventID, count)
}

func (h *Hub) PublishAttendanceCount(eventID uint, count int) {
	h.publishCount(AttendanceUpdate, eventID, count)
}

func (h *Hub) publishCount(name string, eventID uint, count int) {
	// The SimpleHub hands off to per-subscriber queues, so this never
	// waits on a client.
	_ = h.hub.Publish(RoomTopic(eventID), Message{
		Event: name,
		Data:  CountUpdate{EventID: eventID, Count: count},
	})
	h.metrics.FanoutPublished.WithLabelValues(name).Inc()
	logger.Tracef("published %s for event %d: %d", name, eventID, count)
}

// Subscribe delivers every message published to the event's room to
// handler until the returned function is called.
func (h *Hub) Subscribe(eventID uint, handler func(Message)) func() {
	return h.hub.Subscribe(RoomTopic(eventID), func(topic string, data interface{}) {
		msg, ok := data.(Message)
		if !ok {
			logger.Warningf("unexpected payload %T on %s", data, topic)
			return
		}
		handler(msg)
	})
}

func (h *Hub) PublishLifecycle(notice LifecycleNotice) {
	_ = h.hub.Publish(lifecyclePrefix+notice.Kind, notice)
	logger.Debugf("event %d %s", notice.EventID, notice.Kind)
}

// SubscribeLifecycle delivers lifecycle notices of every kind.
func (h *Hub) SubscribeLifecycle(handler func(LifecycleNotice)) func() {
	matcher := func(topic string) bool {
		return strings.HasPrefix(topic, lifecyclePrefix)
	}

	return h.hub.SubscribeMatch(matcher, func(topic string, data interface{}) {
		notice, ok := data.(LifecycleNotice)
		if !ok {
			logger.Warningf("unexpected payload %T on %s", data, topic)
			return
		}
		handler(notice)
	})
}

func (h *Hub) Metrics() *metrics.Metrics {
	return h.metrics
}
