package transport

import (
	"net"
	"testing"
	"time"

	"emberfall/server/internal/proto"
)

func frameBytes(seq uint32, players []proto.PlayerRecord) []byte {
	return proto.EncodeFrame(proto.FrameHeader{Kind: proto.FrameGlobalState, Seq: seq}, players)
}

func TestMirrorKeepsNewestFrame(t *testing.T) {
	m := &LoopMirror{done: make(chan struct{})}

	m.ingest(frameBytes(2, []proto.PlayerRecord{{ID: 1, Pos: proto.Vec3{X: 2}, Active: 1}}))
	m.ingest(frameBytes(1, []proto.PlayerRecord{{ID: 1, Pos: proto.Vec3{X: 99}, Active: 1}}))

	players, seq, ok := m.Latest()
	if !ok || seq != 2 {
		t.Fatalf("expected newest frame seq 2, got seq=%d ok=%v", seq, ok)
	}
	if len(players) != 1 || players[0].Pos.X != 2 {
		t.Fatalf("stale frame must not overwrite display, got %+v", players)
	}

	m.ingest(frameBytes(3, nil))
	players, seq, _ = m.Latest()
	if seq != 3 || len(players) != 0 {
		t.Fatalf("expected empty frame 3 displayed, got seq=%d players=%v", seq, players)
	}
}

func TestMirrorIgnoresGarbage(t *testing.T) {
	m := &LoopMirror{done: make(chan struct{})}
	m.ingest([]byte{1, 2, 3})
	if _, _, ok := m.Latest(); ok {
		t.Fatalf("garbage frame must not become a snapshot")
	}
}

type stubBinding struct {
	sent [][]byte
}

func (s *stubBinding) Receive() (Packet, bool)       { return Packet{}, false }
func (s *stubBinding) Send(data []byte, _ net.Addr) error {
	s.sent = append(s.sent, data)
	return nil
}
func (s *stubBinding) LocalAddr() net.Addr { return nil }
func (s *stubBinding) Close() error        { return nil }

func TestPublisherHonorsPushCadence(t *testing.T) {
	stub := &stubBinding{}
	pub := NewLoopPublisher(stub)
	peer := &net.UnixAddr{Name: "/tmp/loop-p1.sock", Net: "unixgram"}
	pub.Register(peer)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	players := []proto.PlayerRecord{{ID: 1, Active: 1}}

	pub.MaybePush(now, players)
	pub.MaybePush(now.Add(50*time.Millisecond), players) // inside the interval
	pub.MaybePush(now.Add(LoopPushInterval), players)

	if len(stub.sent) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(stub.sent))
	}
	h1, _, err := proto.DecodeFrame(stub.sent[0])
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	h2, _, _ := proto.DecodeFrame(stub.sent[1])
	if h2.Seq <= h1.Seq {
		t.Fatalf("frame sequence must advance, got %d then %d", h1.Seq, h2.Seq)
	}

	pub.Drop(peer)
	pub.MaybePush(now.Add(2*LoopPushInterval), players)
	if len(stub.sent) != 2 {
		t.Fatalf("dropped peer must receive nothing")
	}
}
