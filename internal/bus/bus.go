package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrBusFull   = errors.New("signal bus full")
	ErrBusClosed = errors.New("signal bus closed")
)

// Kind classifies a control-plane signal.
type Kind uint8

const (
	_kind_beg Kind = iota
	KindFillRecorded
	KindPauseTrading
	KindResumeTrading
	_kind_end
)

// IsAvailable reports whether k is a known signal kind.
func (k Kind) IsAvailable() bool {
	return _kind_beg < k && k < _kind_end
}

func (k Kind) String() string {
	switch k {
	case KindFillRecorded:
		return "fill_recorded"
	case KindPauseTrading:
		return "pause_trading"
	case KindResumeTrading:
		return "resume_trading"
	default:
		return "unknown"
	}
}

// Signal is the unit passed between the ledger, guardrail, and trading
// loop. Signals replace the file-based flags the control plane used to
// poll; durability still comes from snapshots, not from the bus.
type Signal struct {
	Kind   Kind
	Symbol string
	Reason string
	At     time.Time
}

// Bus is a bounded, non-blocking signal queue. Publishing never stalls
// the caller; a full bus drops the signal with an error instead.
//
// The mutex orders every publish against Close, so a publisher racing a
// shutdown gets ErrBusClosed instead of a send on a closed channel.
type Bus struct {
	ch     chan Signal
	mu     sync.Mutex
	closed bool
}

// New allocates a bus with the given capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{ch: make(chan Signal, capacity)}
}

// TryPublish enqueues a signal without blocking.
func (b *Bus) TryPublish(s Signal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.ch <- s:
		return nil
	default:
		return ErrBusFull
	}
}

// Close stops the bus from accepting new signals.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// Run consumes signals until the context is done or the bus is closed.
func (b *Bus) Run(ctx context.Context, handler func(Signal)) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-b.ch:
			if !ok {
				return
			}
			handler(s)
		}
	}
}
