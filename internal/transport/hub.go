package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub owns every live connection and the room-scoped routing table. It
// never touches game state (spec §4.1 invariant) — it only knows
// "which participant IDs currently belong to which room code" so that
// Broadcast can fan out without the caller tracking membership itself.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	dispatcher Dispatcher

	mu       sync.RWMutex
	clients  map[uuid.UUID]*Client
	roomOf   map[uuid.UUID]string
	members  map[string]map[uuid.UUID]struct{}
}

// NewHub creates a Hub. CheckOrigin always allows cross-origin requests
// since this server is consumed by a separate mobile-controller origin
// (the teacher's CheckOrigin is env-gated for the same reason; here it
// is unconditional because the protocol carries no credentials to
// protect — spec Non-goals exclude cryptographic authentication).
func NewHub(log *zap.Logger, dispatcher Dispatcher) *Hub {
	return &Hub{
		log:        log,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*Client),
		roomOf:  make(map[uuid.UUID]string),
		members: make(map[string]map[uuid.UUID]struct{}),
	}
}

// ServeHTTP upgrades the connection and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn, h, h.log)

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.log.Info("client connected", zap.String("participant", c.ID.String()), zap.String("remote", conn.RemoteAddr().String()))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) dispatch(c *Client, env Envelope) {
	var reply func(bool, any)
	if env.ReplyID != "" {
		replyID := env.ReplyID
		reply = func(success bool, data any) {
			payload := map[string]any{"success": success}
			if m, ok := data.(map[string]any); ok {
				for k, v := range m {
					payload[k] = v
				}
			} else if data != nil {
				payload["data"] = data
			}
			out, err := json.Marshal(replyEnvelope{Event: "reply", ReplyID: replyID, Payload: payload})
			if err != nil {
				return
			}
			c.Send(out)
		}
	}

	h.dispatcher.Dispatch(c.ID, env.Event, env.Payload, reply)
}

// JoinRoom records that participant now belongs to roomCode. Called by
// the lobby manager, never inferred by Transport itself.
func (h *Hub) JoinRoom(participantID uuid.UUID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.roomOf[participantID]; ok {
		if set, ok := h.members[old]; ok {
			delete(set, participantID)
		}
	}
	h.roomOf[participantID] = roomCode
	if h.members[roomCode] == nil {
		h.members[roomCode] = make(map[uuid.UUID]struct{})
	}
	h.members[roomCode][participantID] = struct{}{}
}

// LeaveRoom removes the routing entry for a participant. Idempotent.
func (h *Hub) LeaveRoom(participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.roomOf[participantID]; ok {
		if set, ok := h.members[room]; ok {
			delete(set, participantID)
			if len(set) == 0 {
				delete(h.members, room)
			}
		}
		delete(h.roomOf, participantID)
	}
}

// To sends event/payload to exactly one participant. A disconnected or
// unknown participant is a silent no-op.
func (h *Hub) To(participantID uuid.UUID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[participantID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: mustMarshalRaw(payload)})
	if err != nil {
		return
	}
	c.Send(data)
}

// Broadcast sends event/payload to every participant currently routed
// to roomCode, except the optionally given participant.
func (h *Hub) Broadcast(roomCode, event string, payload any, except *uuid.UUID) {
	data, err := json.Marshal(Envelope{Event: event, Payload: mustMarshalRaw(payload)})
	if err != nil {
		return
	}
	h.fanOut(roomCode, except, func(c *Client) { c.Send(data) })
}

// BroadcastCoalesced is like Broadcast but drops older unsent
// snapshots of the same key when a recipient's buffer is saturated
// (spec §4.3 snapshot coalescing).
func (h *Hub) BroadcastCoalesced(roomCode, event string, payload any, except *uuid.UUID) {
	data, err := json.Marshal(Envelope{Event: event, Payload: mustMarshalRaw(payload)})
	if err != nil {
		return
	}
	h.fanOut(roomCode, except, func(c *Client) { c.SendCoalesced(event, data) })
}

// BroadcastBinary sends a binary frame (the Paint grid) to every
// participant in roomCode, per spec §4.1/§9.
func (h *Hub) BroadcastBinary(roomCode, event string, data []byte, except *uuid.UUID) {
	frame := encodeBinaryFrame(event, data)
	h.fanOut(roomCode, except, func(c *Client) { c.SendCoalesced(event, frame) })
}

func (h *Hub) fanOut(roomCode string, except *uuid.UUID, send func(*Client)) {
	h.mu.RLock()
	members := h.members[roomCode]
	ids := make([]uuid.UUID, 0, len(members))
	for id := range members {
		if except != nil && id == *except {
			continue
		}
		ids = append(ids, id)
	}
	clients := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		send(c)
	}
}

func (h *Hub) handleDisconnect(c *Client, reason string) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()

	h.LeaveRoom(c.ID)
	h.log.Info("client disconnected", zap.String("participant", c.ID.String()), zap.String("reason", reason))
	h.dispatcher.Disconnected(c.ID)
}

// Stats reports the number of currently connected clients, used by the
// /stats HTTP endpoint.
func (h *Hub) Stats() (clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func mustMarshalRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
