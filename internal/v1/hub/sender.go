package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tidechat/server/internal/v1/errs"
)

// senderBuffer bounds the outbound queue of one client. A slow reader fills
// it up and starts losing events rather than blocking the hub.
const senderBuffer = 128

// Sender is the hub-facing handle of one connected client. The write pump
// owns the receiving side of Outbox; the hub only ever performs non-blocking
// sends on it.
type Sender struct {
	id   uuid.UUID
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// NewSender creates a handle for the given client id.
func NewSender(id uuid.UUID) *Sender {
	return &Sender{
		id:   id,
		ch:   make(chan []byte, senderBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the client id.
func (s *Sender) ID() uuid.UUID { return s.id }

// Send queues a frame without blocking. A closed handle or a full buffer
// yields ErrSendClosed.
func (s *Sender) Send(data []byte) error {
	select {
	case <-s.done:
		return errs.ErrSendClosed
	default:
	}
	select {
	case s.ch <- data:
		return nil
	case <-s.done:
		return errs.ErrSendClosed
	default:
		return errs.ErrSendClosed
	}
}

// Outbox exposes the queued frames to the write pump.
func (s *Sender) Outbox() <-chan []byte { return s.ch }

// Done is closed when the handle shuts down.
func (s *Sender) Done() <-chan struct{} { return s.done }

// Close shuts the handle down. Safe to call more than once.
func (s *Sender) Close() {
	s.once.Do(func() { close(s.done) })
}
