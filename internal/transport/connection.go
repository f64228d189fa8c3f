package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type outgoing struct {
	messageType int
	payload     []byte
}

// Connection is one accepted client connection: either a WebSocket session
// or a plain HTTP exchange waiting for its response.
type Connection struct {
	id         ConnID
	resource   string
	remoteAddr string
	body       []byte

	mu          sync.Mutex
	ws          *websocket.Conn
	outbox      []outgoing // sent since the last Poll
	inflight    []outgoing // handed to the writer goroutine
	lastType    int
	closeCode   int
	status      int
	respBody    []byte
	exchangeEnd chan struct{}

	wake     chan struct{}
	gone     chan struct{}
	goneOnce sync.Once
}

func newConnection(id ConnID, r *http.Request) *Connection {
	return &Connection{
		id:         id,
		resource:   r.URL.RequestURI(),
		remoteAddr: r.RemoteAddr,
		lastType:   websocket.TextMessage,
		closeCode:  websocket.CloseNoStatusReceived,
		status:     http.StatusOK,
		wake:       make(chan struct{}, 1),
		gone:       make(chan struct{}),
	}
}

// ID returns the connection id
func (c *Connection) ID() ConnID {
	return c.id
}

// Resource returns the request URI the client asked for
func (c *Connection) Resource() string {
	return c.resource
}

// RemoteAddr returns the peer address
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// RequestBody returns the full body of an HTTP exchange
func (c *Connection) RequestBody() []byte {
	return c.body
}

func (c *Connection) isWebSocket() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// CloseCode returns the close code received from the peer, or
// websocket.CloseNoStatusReceived.
func (c *Connection) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// SetStatus sets the response status of a pending HTTP exchange
func (c *Connection) SetStatus(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// SetBody sets the response body of a pending HTTP exchange
func (c *Connection) SetBody(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.respBody = body
}

func (c *Connection) response() (int, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.respBody
}

func (c *Connection) enqueue(op Opcode, data []byte, limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		return ErrNotWebSocket
	}
	if limit > 0 && len(c.outbox) >= limit {
		return ErrSendQueueFull
	}

	mt := c.lastType
	switch op {
	case OpText:
		mt = websocket.TextMessage
	case OpBinary:
		mt = websocket.BinaryMessage
	}
	c.lastType = mt

	payload := make([]byte, len(data))
	copy(payload, data)
	c.outbox = append(c.outbox, outgoing{messageType: mt, payload: payload})
	return nil
}

// handOff moves the outbox to the writer goroutine without waiting for it
func (c *Connection) handOff() {
	c.mu.Lock()
	if c.ws == nil || len(c.outbox) == 0 {
		c.mu.Unlock()
		return
	}
	c.inflight = append(c.inflight, c.outbox...)
	c.outbox = nil
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Connection) takeInflight() []outgoing {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inflight
	c.inflight = nil
	return out
}

// markGone stops the writer goroutine
func (c *Connection) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

func (c *Connection) setCloseCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCode = code
}

// endExchange releases the goroutine parked on an HTTP exchange
func (c *Connection) endExchange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exchangeEnd != nil {
		select {
		case <-c.exchangeEnd:
		default:
			close(c.exchangeEnd)
		}
	}
}

func (c *Connection) abandon() {
	c.mu.Lock()
	ws := c.ws
	c.outbox = nil
	c.inflight = nil
	c.mu.Unlock()
	c.markGone()
	if ws != nil {
		_ = ws.Close()
	}
}
