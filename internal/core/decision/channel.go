// Package decision delivers human verdicts on proposals to the goroutine
// waiting for them.
package decision

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Verdict is the outcome of a decision.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictTimeout Verdict = "timeout" // Injected when nobody decided in time
)

// Approved reports whether the verdict lets the command run.
func (v Verdict) Approved() bool {
	return v == VerdictApprove
}

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictApprove, VerdictReject, VerdictTimeout:
		return true
	}
	return false
}

// Decision is a verdict on one proposal.
type Decision struct {
	ProposalID string    `json:"proposal_id"`
	Verdict    Verdict   `json:"verdict"`
	Source     string    `json:"source,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("decision channel closed")

// Channel is a multi-producer, single-consumer queue of decisions. Run
// dispatches each decision to the one-shot waiter registered for its
// proposal, or parks it until a waiter appears.
type Channel struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []Decision
	notify  chan struct{}
	waiters map[string]chan Decision
	parked  map[string][]Decision
	closed  bool
}

// NewChannel creates an empty channel. Run must be started for decisions to
// be delivered.
func NewChannel() *Channel {
	return &Channel{
		logger:  slog.Default().With("component", "decision"),
		notify:  make(chan struct{}, 1),
		waiters: make(map[string]chan Decision),
		parked:  make(map[string][]Decision),
	}
}

// Send enqueues a decision. It never blocks and never drops.
func (c *Channel) Send(d Decision) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, d)
	c.mu.Unlock()

	c.wake()
	return nil
}

// Await registers a one-shot waiter for id. The returned channel receives
// exactly one decision. A decision parked earlier for id is delivered
// immediately. Registering again for the same id replaces the previous
// waiter.
func (c *Channel) Await(id string) <-chan Decision {
	ch := make(chan Decision, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ds := c.parked[id]; len(ds) > 0 {
		ch <- ds[0]
		if len(ds) == 1 {
			delete(c.parked, id)
		} else {
			c.parked[id] = ds[1:]
		}
		return ch
	}

	c.waiters[id] = ch
	return ch
}

// Forget drops the waiter and any parked decisions for id.
func (c *Channel) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.waiters, id)
	delete(c.parked, id)
}

// Prune drops parked decisions whose proposal keep rejects and returns how
// many were dropped.
func (c *Channel) Prune(keep func(id string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for id, ds := range c.parked {
		if keep(id) {
			continue
		}
		dropped += len(ds)
		delete(c.parked, id)
	}
	return dropped
}

// Parked returns the number of decisions waiting for a waiter.
func (c *Channel) Parked() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, ds := range c.parked {
		n += len(ds)
	}
	return n
}

// Waiting returns the number of registered waiters.
func (c *Channel) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Close stops accepting decisions. Run delivers what is already queued and
// then returns.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wake()
}

// Run is the consumer loop. Only one Run may be active per channel.
func (c *Channel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.notify:
		}

		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		closed := c.closed
		c.mu.Unlock()

		for _, d := range batch {
			c.dispatch(d)
		}

		if closed {
			c.mu.Lock()
			empty := len(c.queue) == 0
			c.mu.Unlock()
			if empty {
				return nil
			}
			c.wake()
		}
	}
}

func (c *Channel) dispatch(d Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.waiters[d.ProposalID]; ok {
		delete(c.waiters, d.ProposalID)
		w <- d
		return
	}

	c.parked[d.ProposalID] = append(c.parked[d.ProposalID], d)
	c.logger.Debug("decision parked", "proposal_id", d.ProposalID, "verdict", d.Verdict)
}

func (c *Channel) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
