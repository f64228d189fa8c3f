package host

import (
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/bridge"
	"github.com/sirosfoundation/go-wsbridge/internal/scripting"
	"github.com/sirosfoundation/go-wsbridge/internal/transport"
)

const echoIndex = "wsbridge echo server\n"

// LoadEcho defines the echo script for script and starts its server on
// port. Every message is sent back on the connection it came from; plain
// HTTP requests for "/" get a short banner.
func LoadEcho(b *bridge.Bridge, r *scripting.Registry, script bridge.ScriptID, port int, logger *zap.Logger) (string, error) {
	logger = logger.Named("echo")

	funcs := map[string]any{
		"onOpen": func(ev bridge.ConnectionEvent) error {
			logger.Info("Client connected", zap.String("connection", ev.ConnectionHandle))
			return nil
		},
		"onFail": func(ev bridge.ConnectionEvent) error {
			logger.Warn("Handshake failed", zap.String("connection", ev.ConnectionHandle))
			return nil
		},
		"onClose": func(ev bridge.ConnectionEvent) error {
			logger.Info("Client disconnected", zap.String("connection", ev.ConnectionHandle))
			return nil
		},
		"onMessage": func(ev bridge.MessageEvent) error {
			op := transport.OpText
			if !utf8.Valid(ev.Data) {
				op = transport.OpBinary
			}
			return b.Send(ev.ServerHandle, ev.ConnectionHandle, ev.Data, int(op))
		},
		"onHTTP": func(req bridge.HTTPRequest) (bridge.HTTPResponse, error) {
			if req.Resource != "/" {
				return bridge.HTTPResponse{Status: http.StatusNotFound}, nil
			}
			return bridge.HTTPResponse{Status: http.StatusOK, Data: []byte(echoIndex)}, nil
		},
	}
	for name, fn := range funcs {
		if err := r.Define(script, name, fn); err != nil {
			return "", err
		}
	}

	h, err := b.Start(script, port)
	if err != nil {
		r.Destroy(script)
		return "", err
	}
	for kind, name := range map[bridge.EventKind]string{
		bridge.EventOpen:    "onOpen",
		bridge.EventFail:    "onFail",
		bridge.EventClose:   "onClose",
		bridge.EventMessage: "onMessage",
		bridge.EventHTTP:    "onHTTP",
	} {
		if err := b.SetHandler(h, kind, name); err != nil {
			return "", err
		}
	}
	return h, nil
}
