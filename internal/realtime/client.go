package realtime

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gopkg.in/tomb.v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// sendBuffer is how many messages may queue for one client before
	// further room messages to it are dropped.
	sendBuffer = 32
)

// inbound is a message sent by a client. eventId is accepted as a JSON
// number or a numeric string.
type inbound struct {
	Event   string      `json:"event"`
	EventID json.Number `json:"eventId"`
}

// Client is one WebSocket connection and the rooms it has joined.
type Client struct {
	ID string

	conn *websocket.Conn
	hub  *Hub
	send chan Message
	tomb tomb.Tomb

	mu    sync.Mutex
	rooms map[uint]func()
}

func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:    uuid.NewString(),
		conn:  conn,
		hub:   hub,
		send:  make(chan Message, sendBuffer),
		rooms: make(map[uint]func()),
	}
}

// Run serves the connection until the peer goes away or the connection
// fails, then leaves every room and closes the socket.
func (c *Client) Run() error {
	c.hub.metrics.WebSocketClients.Inc()
	defer c.hub.metrics.WebSocketClients.Dec()

	logger.Debugf("client %s connected", c.ID)

	c.deliver(Message{Event: Connected, Message: "WebSocket connection established", Data: map[string]string{"clientId": c.ID}})

	c.tomb.Go(func() error {
		c.tomb.Go(c.writePump)
		c.tomb.Go(func() error {
			<-c.tomb.Dying()
			// Unblocks a pending read in readPump.
			_ = c.conn.Close()
			return nil
		})
		return c.readPump()
	})

	err := c.tomb.Wait()
	c.leaveAll()

	logger.Debugf("client %s disconnected", c.ID)
	return err
}

// Kill asks the client to stop; Run returns once it has.
func (c *Client) Kill() {
	c.tomb.Kill(nil)
}

// deliver queues msg without blocking. A full buffer drops the message.
func (c *Client) deliver(msg Message) {
	select {
	case c.send <- msg:
	default:
		c.hub.metrics.FanoutDropped.Inc()
		logger.Debugf("client %s: send buffer full, dropping %s", c.ID, msg.Event)
	}
}

// readPump ends the tomb on return, so a clean close from the peer stops
// the writer too.
func (c *Client) readPump() error {
	defer c.tomb.Kill(nil)

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warningf("client %s: %v", c.ID, err)
				return err
			}
			return nil
		}

		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.deliver(Message{Event: ErrorMessage, Message: "Invalid message"})
		return
	}

	id, err := strconv.ParseUint(in.EventID.String(), 10, 64)
	if err != nil || id == 0 {
		c.deliver(Message{Event: ErrorMessage, Message: "Invalid eventId"})
		return
	}
	eventID := uint(id)

	switch in.Event {
	case "joinEvent":
		c.join(eventID)
		c.deliver(Message{Event: JoinedEvent, Data: map[string]uint{"eventId": eventID}})
	case "leaveEvent":
		c.leave(eventID)
		c.deliver(Message{Event: LeftEvent, Data: map[string]uint{"eventId": eventID}})
	default:
		c.deliver(Message{Event: ErrorMessage, Message: "Unknown event " + strconv.Quote(in.Event)})
	}
}

func (c *Client) join(eventID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rooms[eventID]; ok {
		return
	}
	c.rooms[eventID] = c.hub.Subscribe(eventID, c.deliver)
	logger.Tracef("client %s joined %s", c.ID, RoomTopic(eventID))
}

func (c *Client) leave(eventID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if unsubscribe, ok := c.rooms[eventID]; ok {
		unsubscribe()
		delete(c.rooms, eventID)
	}
}

func (c *Client) leaveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, unsubscribe := range c.rooms {
		unsubscribe()
		delete(c.rooms, id)
	}
}

// Rooms returns the ids of the events the client has joined.
func (c *Client) Rooms() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]uint, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) writePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.tomb.Dying():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debugf("client %s: write failed: %v", c.ID, err)
				return err
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debugf("client %s: ping failed: %v", c.ID, err)
				return err
			}
		}
	}
}
