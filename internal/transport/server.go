package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/pkg/middleware"
)

var (
	ErrListen             = errors.New("listen failed")
	ErrNotListening       = errors.New("server is not listening")
	ErrStopped            = errors.New("server stopped")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotWebSocket       = errors.New("connection is not a websocket")
	ErrSendQueueFull      = errors.New("send queue full")
)

// Options configures a Server
type Options struct {
	// UserAgent is sent as the Server header on handshakes and HTTP responses
	UserAgent string

	ReadBufferSize  int
	WriteBufferSize int
	// MaxMessageSize limits incoming messages (0 = unlimited)
	MaxMessageSize int64
	// SendQueueSize bounds the frames queued per connection between polls
	// (0 = unbounded)
	SendQueueSize int
	// WriteTimeout bounds each frame write during Poll
	WriteTimeout time.Duration

	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string
	RateLimit      middleware.RateLimitConfig

	// Logger receives the error channel; AccessLogger the access channel.
	// Either may be nil.
	Logger       *zap.Logger
	AccessLogger *zap.Logger
}

// DefaultOptions returns Options with sensible defaults
func DefaultOptions() Options {
	return Options{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendQueueSize:   1024,
		WriteTimeout:    5 * time.Second,
	}
}

type state int

const (
	stateIdle state = iota
	stateListening
	stateAccepting
	stateStopped
)

// Server is a WebSocket server whose events are delivered by Poll
type Server struct {
	opts     Options
	handlers Handlers
	logger   *zap.Logger
	access   *zap.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	limiter  *middleware.RateLimiter

	mu       sync.Mutex
	state    state
	listener net.Listener
	events   []event
	conns    map[ConnID]*Connection
	stopped  chan struct{}

	// parked counts HTTP handlers waiting for Poll to answer
	parked sync.WaitGroup
}

// NewServer creates a server. Nothing is bound until Listen.
func NewServer(opts Options, handlers Handlers) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	access := opts.AccessLogger
	if access == nil {
		access = zap.NewNop()
	}

	s := &Server{
		opts:     opts,
		handlers: handlers,
		logger:   logger,
		access:   access,
		conns:    make(map[ConnID]*Connection),
		stopped:  make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
		Error:           s.handshakeError,
	}
	s.httpSrv = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}
	return s
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(s.access))
	if s.opts.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(s.opts.RateLimit, s.logger)
		router.Use(middleware.RateLimitMiddleware(s.limiter, s.access))
	}
	if len(s.opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:    s.opts.AllowedOrigins,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Content-Type"},
			AllowWebSockets: true,
			MaxAge:          12 * time.Hour,
		}))
	}
	router.NoRoute(s.serve)
	return router
}

// Listen binds the listening socket. Connections are not accepted until
// StartAccept.
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateIdle {
		return fmt.Errorf("%w: already started", ErrListen)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListen, err)
	}
	s.listener = ln
	s.state = stateListening
	s.logger.Debug("Listening", zap.String("address", ln.Addr().String()))
	return nil
}

// StartAccept begins accepting connections in the background
func (s *Server) StartAccept() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateListening {
		return ErrNotListening
	}
	s.state = stateAccepting
	ln := s.listener
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("Accept loop stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StopListening closes the listening socket. Open connections are kept.
func (s *Server) StopListening() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}

// Stop shuts the server down. Open connections are dropped without a close
// handshake, queued events are discarded and pending HTTP exchanges are
// answered with 503.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	close(s.stopped)
	conns := s.conns
	s.conns = make(map[ConnID]*Connection)
	s.events = nil
	s.mu.Unlock()

	// Parked exchanges have seen s.stopped and only write their 503
	s.parked.Wait()
	_ = s.httpSrv.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	for _, c := range conns {
		c.abandon()
	}
	s.logger.Debug("Stopped", zap.Int("abandoned_connections", len(conns)))
}

// Connection returns a live connection
func (s *Server) Connection(id ConnID) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return c, nil
}

// Connections returns the number of live connections
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Send queues data for a WebSocket connection. It is written by the next
// Poll.
func (s *Server) Send(id ConnID, data []byte, op Opcode) error {
	if !op.Valid() {
		return fmt.Errorf("invalid opcode: %d", int(op))
	}
	c, err := s.Connection(id)
	if err != nil {
		return err
	}
	return c.enqueue(op, data, s.opts.SendQueueSize)
}

// Poll hands queued frames to the connection writers and delivers every
// queued event to the handlers. It never waits on the network.
func (s *Server) Poll() error {
	s.handOff()

	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return ErrStopped
	}
	events := s.events
	s.events = nil
	s.mu.Unlock()

	for i, ev := range events {
		if s.isStopped() {
			return nil
		}
		err := s.dispatch(ev)
		if ev.kind.terminal() {
			s.retire(ev.conn)
		}
		if err != nil {
			s.requeue(events[i+1:])
			return err
		}
	}

	s.handOff()
	return nil
}

func (s *Server) dispatch(ev event) error {
	h := s.handlers
	switch ev.kind {
	case eventOpen:
		if h.Open != nil {
			return h.Open(ev.conn)
		}
	case eventFail:
		if h.Fail != nil {
			return h.Fail(ev.conn)
		}
	case eventClose:
		if h.Close != nil {
			return h.Close(ev.conn)
		}
	case eventMessage:
		if h.Message != nil {
			return h.Message(ev.conn, ev.msg)
		}
	case eventHTTP:
		if h.HTTP != nil {
			return h.HTTP(ev.conn)
		}
		if c, err := s.Connection(ev.conn); err == nil {
			c.SetStatus(http.StatusNotFound)
		}
	}
	return nil
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateStopped
}

func (s *Server) requeue(rest []event) {
	if len(rest) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return
	}
	s.events = append(append([]event(nil), rest...), s.events...)
}

func (s *Server) retire(id ConnID) {
	s.mu.Lock()
	c, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if ok {
		c.endExchange()
	}
}

func (s *Server) handOff() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.handOff()
	}
}

// writeLoop is the only writer of data frames on ws
func (s *Server) writeLoop(conn *Connection, ws *websocket.Conn) {
	for {
		select {
		case <-conn.gone:
			return
		case <-conn.wake:
		}
		for _, m := range conn.takeInflight() {
			if s.opts.WriteTimeout > 0 {
				_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			}
			if err := ws.WriteMessage(m.messageType, m.payload); err != nil {
				// The reader observes the broken connection and queues close.
				s.logger.Warn("Write failed, dropping connection",
					zap.String("connection", string(conn.id)), zap.Error(err))
				_ = ws.Close()
				return
			}
			s.access.Debug("Frame sent",
				zap.String("connection", string(conn.id)),
				zap.Int("size", len(m.payload)))
		}
	}
}

func (s *Server) push(ev event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

// register adds a connection. An exchange is counted as parked until its
// handler calls s.parked.Done.
func (s *Server) register(r *http.Request, exchange bool) (*Connection, bool) {
	c := newConnection(ConnID(uuid.New().String()), r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return nil, false
	}
	s.conns[c.id] = c
	if exchange {
		s.parked.Add(1)
	}
	return c, true
}

func (s *Server) serve(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		s.serveWebSocket(c)
		return
	}
	s.serveHTTP(c)
}

func (s *Server) serveWebSocket(c *gin.Context) {
	conn, ok := s.register(c.Request, false)
	if !ok {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	var header http.Header
	if s.opts.UserAgent != "" {
		header = http.Header{"Server": []string{s.opts.UserAgent}}
	}
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		s.access.Info("Handshake failed",
			zap.String("connection", string(conn.id)),
			zap.String("remote", conn.remoteAddr),
			zap.Error(err))
		s.push(event{kind: eventFail, conn: conn.id})
		return
	}
	if s.opts.MaxMessageSize > 0 {
		ws.SetReadLimit(s.opts.MaxMessageSize)
	}

	conn.mu.Lock()
	conn.ws = ws
	conn.mu.Unlock()

	if !s.push(event{kind: eventOpen, conn: conn.id}) {
		_ = ws.Close()
		return
	}
	s.access.Info("Connection opened",
		zap.String("connection", string(conn.id)),
		zap.String("remote", conn.remoteAddr),
		zap.String("resource", conn.resource))

	go s.writeLoop(conn, ws)
	s.readLoop(conn, ws)
}

func (s *Server) readLoop(conn *Connection, ws *websocket.Conn) {
	defer func() {
		conn.markGone()
		_ = ws.Close()
	}()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			conn.setCloseCode(code)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Warn("Read error", zap.String("connection", string(conn.id)), zap.Error(err))
			}
			s.access.Info("Connection closed",
				zap.String("connection", string(conn.id)),
				zap.Int("code", code))
			s.push(event{kind: eventClose, conn: conn.id})
			return
		}
		s.access.Debug("Frame received",
			zap.String("connection", string(conn.id)),
			zap.Int("size", len(data)))
		if !s.push(event{kind: eventMessage, conn: conn.id, msg: &Message{Opcode: opcodeFromMessageType(mt), Payload: data}}) {
			return
		}
	}
}

func (s *Server) serveHTTP(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if s.opts.UserAgent != "" {
		c.Header("Server", s.opts.UserAgent)
	}

	conn, ok := s.register(c.Request, true)
	if !ok {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer s.parked.Done()
	conn.body = body
	done := make(chan struct{})
	conn.mu.Lock()
	conn.exchangeEnd = done
	conn.mu.Unlock()

	if !s.push(event{kind: eventHTTP, conn: conn.id}) {
		unavailable(c)
		return
	}

	// Wait for Poll to answer. If the client goes away first the exchange
	// stays registered until Poll has delivered its event.
	select {
	case <-done:
	case <-s.stopped:
		select {
		case <-done:
			// Answered by the last Poll before the stop
		default:
			unavailable(c)
			return
		}
	case <-c.Request.Context().Done():
		return
	}

	status, respBody := conn.response()
	if status < 100 || status > 999 {
		s.logger.Warn("Invalid response status", zap.Int("status", status))
		status, respBody = http.StatusInternalServerError, nil
	}
	c.Header("Content-Length", strconv.Itoa(len(respBody)))
	c.Data(status, http.DetectContentType(respBody), respBody)
	c.Writer.Flush()
}

// unavailable writes a complete 503 to the client before the handler
// returns, so Stop can close the connection right after
func unavailable(c *gin.Context) {
	c.Header("Content-Length", "0")
	c.Status(http.StatusServiceUnavailable)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handshakeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	s.access.Debug("Rejecting handshake",
		zap.String("remote", r.RemoteAddr),
		zap.Int("status", status),
		zap.Error(reason))
	w.Header().Set("Sec-Websocket-Version", "13")
	http.Error(w, http.StatusText(status), status)
}
