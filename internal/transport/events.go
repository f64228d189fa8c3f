package transport

import "github.com/gorilla/websocket"

// Opcode selects the frame type of an outgoing message
type Opcode int

const (
	// OpContinuation continues the data type of the previous frame
	OpContinuation Opcode = 0
	// OpText sends a UTF-8 text frame
	OpText Opcode = 1
	// OpBinary sends a binary frame
	OpBinary Opcode = 2
)

// Valid reports whether the opcode can be used with Send
func (o Opcode) Valid() bool {
	return o >= OpContinuation && o <= OpBinary
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	default:
		return "invalid"
	}
}

func opcodeFromMessageType(mt int) Opcode {
	if mt == websocket.BinaryMessage {
		return OpBinary
	}
	return OpText
}

// ConnID identifies a connection within one Server
type ConnID string

// Message is a complete data message received from a peer
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Handlers receive lifecycle events from Poll. A nil handler drops the
// event; a nil HTTP handler answers 404. A non-nil error aborts the current
// Poll pass and is returned from it.
type Handlers struct {
	Open    func(id ConnID) error
	Fail    func(id ConnID) error
	Close   func(id ConnID) error
	Message func(id ConnID, msg *Message) error
	HTTP    func(id ConnID) error
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventFail
	eventClose
	eventMessage
	eventHTTP
)

func (k eventKind) String() string {
	switch k {
	case eventOpen:
		return "open"
	case eventFail:
		return "fail"
	case eventClose:
		return "close"
	case eventMessage:
		return "message"
	case eventHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// terminal events retire their connection once delivered
func (k eventKind) terminal() bool {
	return k == eventFail || k == eventClose || k == eventHTTP
}

type event struct {
	kind eventKind
	conn ConnID
	msg  *Message
}
