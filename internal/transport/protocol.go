// Package transport implements the bidirectional event channel between
// a client and the server (spec §4.1). It never interprets payload
// semantics and never holds game state — it only routes envelopes to a
// Dispatcher and fans broadcasts back out to room members.
package transport

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Envelope is the wire shape of every JSON message in both directions.
// ReplyID is only present on client→server messages that expect
// exactly one ack in return (spec §4.1 "reply_handle").
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	ReplyID string          `json:"replyId,omitempty"`
}

// replyEnvelope is what a reply_handle eventually produces.
type replyEnvelope struct {
	Event   string `json:"event"`
	ReplyID string `json:"replyId"`
	Payload any    `json:"payload"`
}

// binaryFrameMagic is the first byte of every binary frame (the Paint
// grid, per spec §4.1/§9). The frame on the wire is:
// [1 byte: binaryFrameMagic][1 byte: len(event)][event bytes][payload bytes].
const binaryFrameMagic = 0xB1

func encodeBinaryFrame(event string, data []byte) []byte {
	buf := make([]byte, 0, 2+len(event)+len(data))
	buf = append(buf, binaryFrameMagic, byte(len(event)))
	buf = append(buf, event...)
	buf = append(buf, data...)
	return buf
}

// DecodeBinaryFrame extracts the event name and payload from a binary
// frame. ok is false if data isn't a recognized binary frame.
func DecodeBinaryFrame(data []byte) (event string, payload []byte, ok bool) {
	if len(data) < 2 || data[0] != binaryFrameMagic {
		return "", nil, false
	}
	n := int(data[1])
	if len(data) < 2+n {
		return "", nil, false
	}
	return string(data[2 : 2+n]), data[2+n:], true
}

// Dispatcher receives every inbound envelope from every connected
// client. reply is nil when the envelope carried no ReplyID. Each call
// to reply sends one reply envelope, so calling it more than once sends
// more than one reply; Dispatcher implementations should avoid that,
// and Transport does not prevent it.
type Dispatcher interface {
	Dispatch(participantID uuid.UUID, event string, payload json.RawMessage, reply func(success bool, data any))

	// Disconnected notifies the dispatcher that a participant's
	// channel died. Transport fires this synthetically; it never
	// propagates a send error upward (spec §4.1 failure semantics).
	Disconnected(participantID uuid.UUID)
}
