// Package reliable wraps the unreliable transport with a single-in-flight
// acknowledgment/retry discipline. It carries the low-rate membership and
// negotiation traffic (join, leave, host change, restart); the high-frequency
// position stream never goes through it.
package reliable

import "time"

const (
	// AckTimeout is how long a send waits for its acknowledgment before
	// the identical buffer is retransmitted.
	AckTimeout = 100 * time.Millisecond
	// MaxRetries bounds the retransmissions of one message. Past it the
	// message is dropped quietly: the surrounding protocol treats
	// membership traffic as best-effort-reliable, never guaranteed.
	MaxRetries = 3
)

type pendingSend struct {
	seq      uint32
	buf      []byte
	lastSend time.Time
	retries  int
}

type queuedSend struct {
	seq uint32
	buf []byte
}

// Sender tracks the one in-flight reliable message for a connection plus the
// ordered queue behind it. It owns no socket; callers transmit the buffers it
// hands back. Not safe for concurrent use: the owning tick loop drives it.
type Sender struct {
	pending *pendingSend
	queue   []queuedSend
}

// NewSender returns an idle sender.
func NewSender() *Sender {
	return &Sender{}
}

// Send submits a message. If nothing is in flight the buffer is returned for
// immediate transmission; otherwise it queues behind the pending message and
// transmit reports false.
func (s *Sender) Send(seq uint32, buf []byte, now time.Time) (out []byte, transmit bool) {
	if s.pending != nil {
		s.queue = append(s.queue, queuedSend{seq: seq, buf: buf})
		return nil, false
	}
	s.pending = &pendingSend{seq: seq, buf: buf, lastSend: now}
	return buf, true
}

// Ack handles an acknowledgment. Only an ack matching the pending sequence
// clears it; late acks for an abandoned or never-sent sequence are ignored.
// When the pending slot frees up the next queued message is dispatched and
// returned for transmission.
func (s *Sender) Ack(seq uint32, now time.Time) (next []byte, acked bool) {
	if s.pending == nil || s.pending.seq != seq {
		return nil, false
	}
	s.pending = nil
	return s.dispatchNext(now), true
}

// Tick drives the retry clock. Returned buffers must be transmitted in
// order. dropped reports the sequence abandoned this tick, if any; the
// caller logs a warning and nothing else, per the give-up-quietly contract.
func (s *Sender) Tick(now time.Time) (sends [][]byte, dropped uint32, gaveUp bool) {
	p := s.pending
	if p == nil {
		return nil, 0, false
	}
	if now.Sub(p.lastSend) <= AckTimeout {
		return nil, 0, false
	}
	if p.retries < MaxRetries {
		p.retries++
		p.lastSend = now
		return [][]byte{p.buf}, 0, false
	}
	s.pending = nil
	dropped = p.seq
	if next := s.dispatchNext(now); next != nil {
		sends = append(sends, next)
	}
	return sends, dropped, true
}

func (s *Sender) dispatchNext(now time.Time) []byte {
	if len(s.queue) == 0 {
		return nil
	}
	head := s.queue[0]
	s.queue = s.queue[1:]
	s.pending = &pendingSend{seq: head.seq, buf: head.buf, lastSend: now}
	return head.buf
}

// Pending reports whether a message is awaiting acknowledgment.
func (s *Sender) Pending() bool {
	return s.pending != nil
}

// QueueLen reports how many messages wait behind the in-flight one.
func (s *Sender) QueueLen() int {
	return len(s.queue)
}

// Clear drops all pending and queued state, used on disconnect.
func (s *Sender) Clear() {
	s.pending = nil
	s.queue = nil
}
