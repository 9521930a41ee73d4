package transport

import (
	"net"
	"sync"
	"time"

	"emberfall/server/internal/proto"
)

const (
	// LoopPushInterval is the authority-side push cadence of the loopback
	// harness.
	LoopPushInterval = 200 * time.Millisecond
	// LoopPollInterval is the display-side poll cadence.
	LoopPollInterval = 500 * time.Millisecond
)

// LoopPublisher is the authority half of the loopback harness: on its push
// cadence it serializes the participant table into one coarse frame and
// sends it to every registered peer. Driven by the owning tick loop, so no
// locking around the peer set.
type LoopPublisher struct {
	binding  Binding
	peers    map[string]net.Addr
	seq      uint32
	lastPush time.Time
}

// NewLoopPublisher wraps the authority binding.
func NewLoopPublisher(binding Binding) *LoopPublisher {
	return &LoopPublisher{
		binding: binding,
		peers:   make(map[string]net.Addr),
	}
}

// Register adds a participant address to the push set.
func (p *LoopPublisher) Register(addr net.Addr) {
	if addr == nil {
		return
	}
	p.peers[addr.String()] = addr
}

// Drop removes a participant address.
func (p *LoopPublisher) Drop(addr net.Addr) {
	if addr == nil {
		return
	}
	delete(p.peers, addr.String())
}

// MaybePush sends a global-state frame if the push interval has elapsed.
func (p *LoopPublisher) MaybePush(now time.Time, players []proto.PlayerRecord) {
	if !p.lastPush.IsZero() && now.Sub(p.lastPush) < LoopPushInterval {
		return
	}
	p.lastPush = now
	p.seq++
	frame := proto.EncodeFrame(proto.FrameHeader{Kind: proto.FrameGlobalState, Seq: p.seq}, players)
	for _, addr := range p.peers {
		p.binding.Send(frame, addr)
	}
}

// LoopMirror is the display half: a background goroutine polls the binding
// on the harness cadence and keeps only the latest authority frame behind a
// mutex. There is no prediction or reconciliation on this path; the remote
// side shows whatever the authority last sent.
type LoopMirror struct {
	binding Binding
	done    chan struct{}
	stop    sync.Once

	mu      sync.Mutex
	players []proto.PlayerRecord
	seq     uint32
	have    bool
}

// NewLoopMirror starts the poll goroutine.
func NewLoopMirror(binding Binding) *LoopMirror {
	m := &LoopMirror{
		binding: binding,
		done:    make(chan struct{}),
	}
	go m.pollLoop()
	return m
}

func (m *LoopMirror) pollLoop() {
	ticker := time.NewTicker(LoopPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			for {
				pkt, ok := m.binding.Receive()
				if !ok {
					break
				}
				m.ingest(pkt.Data)
			}
		}
	}
}

// ingest applies one frame, keeping only the newest sequence.
func (m *LoopMirror) ingest(data []byte) {
	header, players, err := proto.DecodeFrame(data)
	if err != nil || header.Kind != proto.FrameGlobalState {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.have && header.Seq <= m.seq {
		return
	}
	m.seq = header.Seq
	m.players = players
	m.have = true
}

// Latest copies the newest displayed snapshot.
func (m *LoopMirror) Latest() ([]proto.PlayerRecord, uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.have {
		return nil, 0, false
	}
	players := make([]proto.PlayerRecord, len(m.players))
	copy(players, m.players)
	return players, m.seq, true
}

// Close stops the poll goroutine. The binding is closed by its owner.
func (m *LoopMirror) Close() {
	m.stop.Do(func() { close(m.done) })
}
