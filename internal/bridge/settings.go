package bridge

import (
	"github.com/sirosfoundation/go-wsbridge/internal/transport"
	"github.com/sirosfoundation/go-wsbridge/pkg/config"
)

// Settings is the process-wide configuration shared by every server. It is
// computed once and read-only afterwards.
type Settings struct {
	UserAgent  string
	Verbose    int
	ListenHost string
	Transport  transport.Options
}

// NewSettings derives Settings from the configuration. The user agent is
// computed here, once.
func NewSettings(cfg *config.Config) *Settings {
	opts := transport.DefaultOptions()
	t := cfg.Transport
	if t.ReadBufferSize > 0 {
		opts.ReadBufferSize = t.ReadBufferSize
	}
	if t.WriteBufferSize > 0 {
		opts.WriteBufferSize = t.WriteBufferSize
	}
	if t.WriteTimeout > 0 {
		opts.WriteTimeout = t.WriteTimeout
	}
	opts.SendQueueSize = t.SendQueueSize
	opts.MaxMessageSize = t.MaxMessageSize
	opts.AllowedOrigins = t.AllowedOrigins
	opts.RateLimit = t.RateLimit

	return &Settings{
		UserAgent:  cfg.UserAgent(),
		Verbose:    cfg.Plugin.Verbose,
		ListenHost: cfg.Plugin.ListenHost,
		Transport:  opts,
	}
}
