package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope is the wire format in both directions: a named event plus its
// payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Connection wraps one websocket with a buffered single-writer pump, so
// concurrent broadcasts never interleave writes on the socket. Room binding
// happens once, on a successful join.
type Connection struct {
	id   string
	conn *websocket.Conn

	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once

	mu              sync.RWMutex
	roomCode        string
	participantID   string
	participantName string
}

// NewConnection starts the write pump for an upgraded websocket.
func NewConnection(id string, conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           id,
		conn:         conn,
		writeCh:      make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues an event for delivery. A connection whose buffer is full or
// that is already closed drops the event rather than blocking the caller.
func (c *Connection) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return ErrInvalidPayload
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return ErrInvalidPayload
	}

	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Bind attaches the room and participant identity after a successful join.
func (c *Connection) Bind(roomCode, participantID, participantName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.participantID = participantID
	c.participantName = participantName
}

// Bound reports whether the connection has joined a room.
func (c *Connection) Bound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode != ""
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) RoomCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

func (c *Connection) ParticipantID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantID
}

func (c *Connection) ParticipantName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantName
}
