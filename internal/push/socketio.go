package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Socket.IO v5 over Engine.IO v4, websocket transport only. Every websocket
// text frame carries exactly one Engine.IO packet; message packets ("4")
// wrap one Socket.IO packet.
const (
	socketIOPath  = "/socket.io/"
	socketIOQuery = "EIO=4&transport=websocket"

	// sioConnect asks for the default namespace.
	sioConnect = "40"
	// eioPong answers an Engine.IO ping.
	eioPong = "3"
)

// packetKind classifies a decoded Engine.IO frame.
type packetKind int

const (
	packetIgnored packetKind = iota
	packetOpen
	packetPing
	packetClose
	packetConnect
	packetConnectError
	packetEvent
)

// openPayload is the Engine.IO handshake sent by the server.
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // ms
	PingTimeout  int    `json:"pingTimeout"`  // ms
}

// liveness is how long the server may stay silent before the session is
// considered dead.
func (o openPayload) liveness() time.Duration {
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

var errBadPacket = errors.New("push: malformed socket.io packet")

// decodeSocketIO parses one frame. Open and connect-error packets return their
// JSON body in Event.Data; event packets return the event name and its first
// argument. Packets addressed to a namespace other than "/" are ignored.
func decodeSocketIO(frame []byte) (packetKind, Event, error) {
	if len(frame) == 0 {
		return 0, Event{}, errBadPacket
	}

	switch frame[0] {
	case '0':
		return packetOpen, Event{Data: json.RawMessage(frame[1:])}, nil
	case '1':
		return packetClose, Event{}, nil
	case '2':
		return packetPing, Event{}, nil
	case '3', '5', '6':
		return packetIgnored, Event{}, nil
	case '4':
	default:
		return 0, Event{}, fmt.Errorf("%w: engine.io type %q", errBadPacket, frame[0])
	}

	body := frame[1:]
	if len(body) == 0 {
		return 0, Event{}, errBadPacket
	}
	kind, body := body[0], body[1:]

	if len(body) > 0 && body[0] == '/' {
		ns := body
		if i := bytes.IndexByte(body, ','); i >= 0 {
			ns, body = body[:i], body[i+1:]
		} else {
			body = nil
		}
		if string(ns) != "/" {
			return packetIgnored, Event{}, nil
		}
	}

	switch kind {
	case '0':
		return packetConnect, Event{}, nil
	case '1':
		return packetClose, Event{}, nil
	case '4':
		return packetConnectError, Event{Data: json.RawMessage(body)}, nil
	case '2':
		return decodeEvent(body)
	case '3', '5', '6':
		// Acks and binary attachments are never requested by this client.
		return packetIgnored, Event{}, nil
	}
	return 0, Event{}, fmt.Errorf("%w: socket.io type %q", errBadPacket, kind)
}

// decodeEvent parses `[id]["name", data, ...]`.
func decodeEvent(body []byte) (packetKind, Event, error) {
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}

	var args []json.RawMessage
	if err := json.Unmarshal(body[i:], &args); err != nil {
		return 0, Event{}, fmt.Errorf("%w: %w", errBadPacket, err)
	}
	if len(args) == 0 {
		return 0, Event{}, fmt.Errorf("%w: event without a name", errBadPacket)
	}

	var ev Event
	if err := json.Unmarshal(args[0], &ev.Name); err != nil || ev.Name == "" {
		return 0, Event{}, fmt.Errorf("%w: event name", errBadPacket)
	}
	if len(args) > 1 {
		ev.Data = args[1]
	}
	return packetEvent, ev, nil
}
