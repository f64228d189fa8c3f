package bridge

import (
	"errors"
	"fmt"
	"time"
)

// Poll runs one cooperative pass over every live server: queued sends are
// written and pending events are dispatched to script functions. It must be
// called once per host tick; no I/O reaches scripts otherwise. A call from
// inside a script function is ignored.
//
// The returned error is non-nil only when a dispatch was aborted with
// ErrInternalInconsistency.
func (b *Bridge) Poll() error {
	if b.polling {
		return nil
	}
	b.polling = true
	start := time.Now()
	defer func() {
		b.polling = false
		b.reap()
		b.metrics.ObservePoll(start)
	}()

	var errs []error
	for _, inst := range b.servers.All() {
		// Handlers earlier in this pass may have stopped it
		if !inst.active() {
			continue
		}
		if err := inst.srv.Poll(); err != nil {
			errs = append(errs, fmt.Errorf("poll %s: %w", inst.handle, err))
		}
	}
	return errors.Join(errs...)
}

// reap shuts down servers whose owner was destroyed mid-dispatch
func (b *Bridge) reap() {
	pending := b.pending
	b.pending = nil
	for _, inst := range pending {
		inst.shutdown()
	}
}
