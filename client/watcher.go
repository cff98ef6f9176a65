package client

import (
	"context"

	authsync "github.com/goliatone/go-authsync"
)

// EventSource feeds the expiry watcher with "tab regained visibility or
// focus" notifications. Subscribe returns the deregistration func the
// provider calls on unmount.
type EventSource interface {
	Subscribe(handler func()) (cancel func())
}

// Wake runs one session-expiry check. Called by the event source when the
// tab regains visibility or focus; safe to call manually.
//
// A single check is in flight at a time: wakes arriving while one runs are
// dropped, not queued. A false liveness answer means the session expired
// mid-page-life; a connectivity failure is treated the same way since the
// client can no longer tell. Both land in the expiry handler: the
// caller-supplied callback when configured, a full page reload otherwise.
func (p *Provider) Wake(ctx context.Context) {
	if !p.watch {
		return
	}

	p.mu.Lock()
	if !p.mounted || p.checking {
		p.mu.Unlock()
		return
	}
	p.checking = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.checking = false
		p.mu.Unlock()
	}()

	alive, err := p.actions.CheckSession(ctx)
	if err != nil {
		if authsync.IsFetchError(err) {
			p.logger.Warn("session check unreachable, treating as expired", "error", err)
			p.expire()
		} else {
			p.logger.Error("session check failed", "error", err)
		}
		return
	}

	if !alive {
		p.expire()
	}
}

func (p *Provider) expire() {
	if p.onExpired != nil {
		p.onExpired()
		return
	}
	if p.nav != nil {
		p.nav.Reload()
	}
}
