package bridge

import (
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-wsbridge/internal/handle"
)

var (
	// ErrNotFound is returned for handles that do not resolve, including
	// handles of the wrong kind.
	ErrNotFound = handle.ErrNotFound
	// ErrTypeMismatch is returned for a handle of the wrong kind. It wraps
	// ErrNotFound.
	ErrTypeMismatch = handle.ErrTypeMismatch
	// ErrInvalidArgument is returned for malformed parameters
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBind is returned when a server cannot listen on its port
	ErrBind = errors.New("bind failed")
	// ErrInternalInconsistency is returned from Poll when the transport
	// delivered an event for a connection it had already dropped
	ErrInternalInconsistency = errors.New("internal inconsistency")
	// ErrStopDuringDispatch is returned when a server is stopped from inside
	// one of its own event handlers
	ErrStopDuringDispatch = fmt.Errorf("%w: server is dispatching an event", ErrInvalidArgument)
)
