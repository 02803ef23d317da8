package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campuspulse/campuspulse/db/dbtest"
	"github.com/campuspulse/campuspulse/internal/authz"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type published struct {
	Name    string
	EventID uint
	Count   int
}

type fakePublisher struct {
	mu        sync.Mutex
	counts    []published
	lifecycle []realtime.LifecycleNotice
}

func (p *fakePublisher) PublishParticipantCount(eventID uint, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = append(p.counts, published{realtime.ParticipantCountUpdate, eventID, count})
}

func (p *fakePublisher) PublishAttendanceCount(eventID uint, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = append(p.counts, published{realtime.AttendanceUpdate, eventID, count})
}

func (p *fakePublisher) PublishLifecycle(n realtime.LifecycleNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lifecycle = append(p.lifecycle, n)
}

func (p *fakePublisher) last(name string) (published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.counts) - 1; i >= 0; i-- {
		if p.counts[i].Name == name {
			return p.counts[i], true
		}
	}
	return published{}, false
}

func (p *fakePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.lifecycle))
	for _, n := range p.lifecycle {
		out = append(out, n.Kind)
	}
	return out
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	pub     *fakePublisher
	clock   *testclock.Clock
	metrics *metrics.Metrics
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := dbtest.New(t)
	pub := &fakePublisher{}
	clk := testclock.NewClock(epoch)
	m := metrics.NewDiscard()

	svc, err := New(Config{DB: conn, Publisher: pub, Clock: clk, Metrics: m})
	require.NoError(t, err)

	return &fixture{svc: svc, db: conn, pub: pub, clock: clk, metrics: m, ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, role, name string) authz.Actor {
	t.Helper()

	u := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@campus.test", name),
		PasswordHash: "hash",
		Role:         role,
		College:      "Engineering College",
		Department:   "CS",
	}
	require.NoError(t, f.db.Create(&u).Error)
	return authz.Actor{ID: u.ID, Role: u.Role}
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func eventInput(title string) EventInput {
	return EventInput{
		Title:       title,
		Description: title + " for everyone",
		Category:    "Technical",
		Date:        "2025-04-10",
		StartTime:   "18:00",
		EndTime:     "22:00",
		Location:    "Main Hall",
		College:     "Engineering College",
	}
}

func (f *fixture) event(t *testing.T, organizer authz.Actor, in EventInput) *types.EventResponse {
	t.Helper()

	e, err := f.svc.CreateEvent(f.ctx, organizer, in)
	require.NoError(t, err)
	return e
}

func (f *fixture) reload(t *testing.T, id uint) models.Event {
	t.Helper()

	var e models.Event
	require.NoError(t, f.db.First(&e, id).Error)
	return e
}
