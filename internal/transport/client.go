package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Client is one connected WebSocket participant. Reads and writes each
// run on their own goroutine (teacher's readPump/writePump split), and
// Send never blocks the caller — a full buffer marks the client dead
// rather than stall the room's broadcast, while SendCoalesced holds
// the overflow instead (spec §4.1/§4.3 backpressure).
type Client struct {
	ID uuid.UUID

	conn *websocket.Conn
	hub  *Hub
	log  *zap.Logger

	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool

	// coalesce keeps only the latest pending snapshot when a client's
	// send buffer would otherwise overflow (spec §4.3: "slow clients
	// receive coalesced snapshots").
	coalesceKey string
	coalesced   map[string][]byte
}

func newClient(conn *websocket.Conn, hub *Hub, log *zap.Logger) *Client {
	return &Client{
		ID:        uuid.New(),
		conn:      conn,
		hub:       hub,
		log:       log,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		coalesced: make(map[string][]byte),
	}
}

// Send queues a message for delivery. It never blocks and never
// returns an error upward — per spec §4.1, a failed/overflowing send
// just marks the channel dead via the disconnect path.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.markDead("send buffer full")
	}
}

// SendCoalesced enqueues data if the send buffer has room. When the
// buffer is full, data is held as the one pending message for key,
// replacing any earlier pending message for that key, and writePump
// moves it into the buffer once a slot frees. Messages already in the
// buffer are not replaced.
func (c *Client) SendCoalesced(key string, data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.mu.Lock()
		c.coalesced[key] = data
		c.mu.Unlock()
	}
}

func (c *Client) markDead(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.conn.Close()
	c.hub.handleDisconnect(c, reason)
}

func (c *Client) readPump() {
	defer c.markDead("read loop exited")

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err), zap.String("participant", c.ID.String()))
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			// Binary frames are server→client only (the Paint grid);
			// a client is never expected to send one. Drop silently —
			// a malformed/unknown payload is a protocol error, not a
			// reason to disconnect (spec §7).
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		c.hub.dispatch(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			wsType := websocket.TextMessage
			if len(msg) > 0 && msg[0] == binaryFrameMagic {
				wsType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(wsType, msg); err != nil {
				return
			}

			// Flush one coalesced message per drained slot, if any.
			c.mu.Lock()
			for key, pending := range c.coalesced {
				delete(c.coalesced, key)
				select {
				case c.send <- pending:
				default:
				}
				break
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
