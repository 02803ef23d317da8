package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campuspulse/campuspulse/db/dbtest"
	"github.com/campuspulse/campuspulse/internal/auth"
	"github.com/campuspulse/campuspulse/internal/handlers"
	"github.com/campuspulse/campuspulse/internal/metrics"
	"github.com/campuspulse/campuspulse/internal/middleware"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/campuspulse/campuspulse/internal/services"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const allowedOrigin = "http://localhost:5173"

func init() {
	gin.SetMode(gin.TestMode)
}

type app struct {
	router http.Handler
	db     *gorm.DB
}

func newApp(t *testing.T, limiter *middleware.RateLimiter) *app {
	t.Helper()
	require.NoError(t, auth.InitJWTSecret("router-secret"))

	conn := dbtest.New(t)
	reg, err := metrics.NewRegistry()
	require.NoError(t, err)
	m := metrics.New(reg)
	hub := realtime.NewHub(m)

	svc, err := services.New(services.Config{DB: conn, Publisher: hub, Clock: testclock.NewClock(epoch), Metrics: m})
	require.NoError(t, err)

	if limiter == nil {
		limiter = middleware.NewRateLimiter(1000, 1000, nil)
	}
	t.Cleanup(limiter.Stop)

	h := handlers.New(handlers.Config{DB: conn, Service: svc, Hub: hub, AllowedOrigins: []string{allowedOrigin}})

	r, err := NewRouter(Config{
		DB:             conn,
		Handler:        h,
		Gatherer:       reg,
		AuthLimiter:    limiter,
		AllowedOrigins: []string{allowedOrigin},
	})
	require.NoError(t, err)

	return &app{router: r, db: conn}
}

func (a *app) call(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func messageOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, w, &body)
	return body.Message
}

type session struct {
	Token string             `json:"token"`
	User  types.UserResponse `json:"user"`
}

func (a *app) register(t *testing.T, name, role string) session {
	t.Helper()

	w := a.call(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":       name,
		"email":      strings.ToLower(name) + "@campus.test",
		"password":   "correct-horse",
		"role":       role,
		"college":    "Engineering College",
		"department": "CS",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var s session
	decode(t, w, &s)
	return s
}

func (a *app) admin(t *testing.T) string {
	t.Helper()

	u := models.User{Name: "Root", Email: "root@campus.test", PasswordHash: "x", Role: types.RoleAdmin}
	require.NoError(t, a.db.Create(&u).Error)
	token, err := auth.GenerateJWT(u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return token
}

func eventBody(title string) gin.H {
	return gin.H{
		"title":           title,
		"description":     "Build things overnight",
		"category":        "Hackathon",
		"date":            "2025-04-10",
		"startTime":       "18:00",
		"endTime":         "06:00",
		"location":        "Lab 3",
		"maxParticipants": 2,
	}
}

func (a *app) createEvent(t *testing.T, token, title string) uint {
	t.Helper()

	w := a.call(t, http.MethodPost, "/api/events", token, eventBody(title))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var e struct {
		ID uint `json:"id"`
	}
	decode(t, w, &e)
	return e.ID
}

func TestAuthRoutes(t *testing.T) {
	a := newApp(t, nil)

	s := a.register(t, "Olive", types.RoleOrganizer)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, types.RoleOrganizer, s.User.Role)
	assert.Equal(t, "olive@campus.test", s.User.Email)

	w := a.call(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Olive", "email": "OLIVE@campus.test", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", messageOf(t, w))

	w = a.call(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Mallory", "email": "mallory@campus.test", "password": "correct-horse", "role": "ADMIN",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "olive@campus.test", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", messageOf(t, w))

	w = a.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "olive@campus.test", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var login session
	decode(t, w, &login)

	w = a.call(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me types.UserResponse
	decode(t, w, &me)
	assert.Equal(t, s.User.ID, me.ID)

	w = a.call(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewRouterRequiresLimiter(t *testing.T) {
	_, err := NewRouter(Config{DB: dbtest.New(t), Handler: &handlers.Handler{}})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestAuthRateLimit(t *testing.T) {
	clk := testclock.NewClock(epoch)
	a := newApp(t, middleware.NewRateLimiter(1, 2, clk))

	body := gin.H{"email": "nobody@campus.test", "password": "whatever"}
	assert.Equal(t, http.StatusUnauthorized, a.call(t, http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, a.call(t, http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.call(t, http.MethodPost, "/api/auth/login", "", body).Code)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/events", "", nil).Code)
}

func TestEventFlow(t *testing.T) {
	a := newApp(t, nil)
	organizer := a.register(t, "Olive", types.RoleOrganizer)
	alice := a.register(t, "Alice", types.RoleStudent)
	bob := a.register(t, "Bob", types.RoleStudent)
	carol := a.register(t, "Carol", types.RoleStudent)

	w := a.call(t, http.MethodPost, "/api/events", alice.Token, eventBody("Hack Night"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User role STUDENT is not authorized to access this route", messageOf(t, w))

	id := a.createEvent(t, organizer.Token, "Hack Night")
	path := fmt.Sprintf("/api/events/%d", id)

	w = a.call(t, http.MethodGet, "/api/events?category=Hackathon&search=hack", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page types.EventPage
	decode(t, w, &page)
	assert.EqualValues(t, 1, page.TotalEvents)
	assert.Equal(t, 1, page.CurrentPage)

	for _, s := range []session{alice, bob} {
		w = a.call(t, http.MethodPost, path+"/join", s.Token, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = a.call(t, http.MethodPost, path+"/join", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Already registered for this event", messageOf(t, w))

	w = a.call(t, http.MethodPost, path+"/join", carol.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event is full", messageOf(t, w))

	w = a.call(t, http.MethodGet, path, alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		ParticipantCount int  `json:"participantCount"`
		IsParticipant    bool `json:"isParticipant"`
	}
	decode(t, w, &detail)
	assert.Equal(t, 2, detail.ParticipantCount)
	assert.True(t, detail.IsParticipant)

	w = a.call(t, http.MethodGet, path+"/participants", organizer.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roster []types.ParticipantResponse
	decode(t, w, &roster)
	assert.Len(t, roster, 2)

	w = a.call(t, http.MethodPost, "/api/attendance/verify-qr", alice.Token, gin.H{"eventId": fmt.Sprint(id)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.call(t, http.MethodPost, "/api/attendance/mark", organizer.Token, gin.H{"eventId": id, "userId": alice.User.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.call(t, http.MethodPost, "/api/attendance/mark", organizer.Token, gin.H{"eventId": id, "userId": alice.User.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Attendance already marked for this user", messageOf(t, w))

	w = a.call(t, http.MethodPost, "/api/attendance/verify-qr", alice.Token, gin.H{"eventId": id})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Attendance already marked", messageOf(t, w))

	w = a.call(t, http.MethodGet, fmt.Sprintf("/api/analytics/event/%d", id), organizer.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats types.EventAnalytics
	decode(t, w, &stats)
	assert.Equal(t, "50.00%", stats.AttendanceRate)

	w = a.call(t, http.MethodDelete, path+"/leave", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var left struct {
		Message          string `json:"message"`
		ParticipantCount int    `json:"participantCount"`
	}
	decode(t, w, &left)
	assert.Equal(t, "Left event successfully", left.Message)
	assert.Equal(t, 1, left.ParticipantCount)

	w = a.call(t, http.MethodGet, "/api/attendance/my-history", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []types.AttendanceResponse
	decode(t, w, &history)
	assert.Len(t, history, 1)

	w = a.call(t, http.MethodGet, "/api/events/my-events", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []types.MyEventResponse
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, types.ParticipantAttended, mine[0].ParticipantStatus)

	w = a.call(t, http.MethodDelete, path, organizer.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event deleted successfully", messageOf(t, w))

	w = a.call(t, http.MethodGet, path+"/participants", organizer.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", messageOf(t, w))
}

func TestOwnership(t *testing.T) {
	a := newApp(t, nil)
	owner := a.register(t, "Olive", types.RoleOrganizer)
	other := a.register(t, "Oscar", types.RoleOrganizer)

	id := a.createEvent(t, owner.Token, "Robotics Workshop")
	path := fmt.Sprintf("/api/events/%d", id)

	w := a.call(t, http.MethodPut, path, other.Token, gin.H{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to update this event", messageOf(t, w))

	w = a.call(t, http.MethodDelete, path, other.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to delete this event", messageOf(t, w))

	w = a.call(t, http.MethodGet, fmt.Sprintf("/api/attendance/event/%d", id), other.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.call(t, http.MethodPut, path, owner.Token, gin.H{"title": "Robotics Workshop II", "category": "Workshop"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.call(t, http.MethodPut, path, owner.Token, gin.H{"category": "Party"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.call(t, http.MethodGet, "/api/events/organized", owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var organized []types.EventResponse
	decode(t, w, &organized)
	require.Len(t, organized, 1)
	assert.Equal(t, "Robotics Workshop II", organized[0].Title)
}

func TestErrorShapes(t *testing.T) {
	a := newApp(t, nil)
	student := a.register(t, "Sam", types.RoleStudent)

	w := a.call(t, http.MethodGet, "/api/events/not-a-number", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Resource not found", messageOf(t, w))

	w = a.call(t, http.MethodGet, "/api/events/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", messageOf(t, w))

	w = a.call(t, http.MethodDelete, "/api/events/999/leave", student.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not registered for this event", messageOf(t, w))

	w = a.call(t, http.MethodPost, "/api/attendance/verify-qr", student.Token, gin.H{"eventId": 999})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid QR code", messageOf(t, w))

	w = a.call(t, http.MethodGet, "/api/analytics/dashboard", student.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestAnalyticsRoutes(t *testing.T) {
	a := newApp(t, nil)
	organizer := a.register(t, "Olive", types.RoleOrganizer)
	a.createEvent(t, organizer.Token, "Hack Night")
	token := a.admin(t)

	w := a.call(t, http.MethodGet, "/api/analytics/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash types.Dashboard
	decode(t, w, &dash)
	assert.EqualValues(t, 2, dash.Stats.TotalUsers)
	assert.EqualValues(t, 1, dash.Stats.TotalEvents)

	w = a.call(t, http.MethodGet, "/api/analytics/trends", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trends types.Trends
	decode(t, w, &trends)
	assert.Equal(t, 30, trends.Days)

	w = a.call(t, http.MethodGet, "/api/analytics/trends?days=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.call(t, http.MethodGet, "/api/analytics/trends?days=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.call(t, http.MethodGet, "/api/analytics/export/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = a.call(t, http.MethodGet, "/api/analytics/export/grades", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid export type", messageOf(t, w))
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t, nil)

	w := a.call(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)

	w = a.call(t, http.MethodGet, "/api/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campuspulse_registrations_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

type wsMessage struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func readWS(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketRoom(t *testing.T) {
	a := newApp(t, nil)
	organizer := a.register(t, "Olive", types.RoleOrganizer)
	student := a.register(t, "Sam", types.RoleStudent)
	id := a.createEvent(t, organizer.Token, "Hack Night")

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {allowedOrigin}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, realtime.Connected, readWS(t, conn).Event)

	require.NoError(t, conn.WriteJSON(gin.H{"event": "joinEvent", "eventId": id}))
	assert.Equal(t, realtime.JoinedEvent, readWS(t, conn).Event)

	w := a.call(t, http.MethodPost, fmt.Sprintf("/api/events/%d/join", id), student.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	msg := readWS(t, conn)
	require.Equal(t, realtime.ParticipantCountUpdate, msg.Event)
	var update realtime.CountUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, realtime.CountUpdate{EventID: id, Count: 1}, update)
}
