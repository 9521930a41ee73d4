package client

import (
	"net"
	"testing"
	"time"

	"emberfall/server/internal/game"
	"emberfall/server/internal/proto"
	"emberfall/server/internal/reconcile"
	"emberfall/server/internal/reliable"
	"emberfall/server/internal/telemetry"
	"emberfall/server/internal/transport"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubBinding struct {
	inbound [][]byte
	sent    [][]byte
}

func (b *stubBinding) Receive() (transport.Packet, bool) {
	if len(b.inbound) == 0 {
		return transport.Packet{}, false
	}
	data := b.inbound[0]
	b.inbound = b.inbound[1:]
	return transport.Packet{Data: data}, true
}

func (b *stubBinding) Send(data []byte, _ net.Addr) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	b.sent = append(b.sent, buf)
	return nil
}

func (b *stubBinding) LocalAddr() net.Addr { return nil }
func (b *stubBinding) Close() error        { return nil }

func (b *stubBinding) push(data []byte) {
	b.inbound = append(b.inbound, data)
}

func (b *stubBinding) sentOf(t proto.MsgType) [][]byte {
	var out [][]byte
	for _, buf := range b.sent {
		hdr, err := proto.ParseHeader(buf)
		if err != nil {
			continue
		}
		if hdr.Type == t {
			out = append(out, buf)
		}
	}
	return out
}

type recordingEvents struct {
	game.NopEvents
	hostChanges int
	restarts    []proto.RestartReason
	damage      []float32
	spawns      int
	hits        int
}

func (r *recordingEvents) OnHostChanged(hostID, authorityID uint32) { r.hostChanges++ }
func (r *recordingEvents) OnRestartRequested(reason proto.RestartReason) {
	r.restarts = append(r.restarts, reason)
}
func (r *recordingEvents) OnDamageReceived(amount float32, _ proto.Vec3, _ uint32) {
	r.damage = append(r.damage, amount)
}
func (r *recordingEvents) OnProjectileSpawned(proto.ProjectileRecord) { r.spawns++ }
func (r *recordingEvents) OnProjectileHit(proto.HitRecord)           { r.hits++ }

func newTestClient(events game.Events) (*Client, *stubBinding) {
	b := &stubBinding{}
	return New(b, Config{}, events, nil), b
}

// serverSeq hands out monotonic sequences for fabricated server messages.
type serverSeq uint32

func (s *serverSeq) next(t proto.MsgType) proto.Header {
	*s++
	return proto.Header{Type: t, Seq: uint32(*s), Sender: proto.ServerSender}
}

// confirm drives the client through a successful join with assigned id.
func confirm(t *testing.T, c *Client, b *stubBinding, seq *serverSeq, id uint32, now time.Time) {
	t.Helper()
	c.Connect(proto.PlayerRecord{Health: 100}, now)
	if got := c.Engine().Phase(); got != reconcile.PhaseConnecting {
		t.Fatalf("expected connecting phase, got %v", got)
	}
	b.push(proto.EncodeJoinAck(seq.next(proto.MsgJoinAck), id, id, 1))
	if err := c.Tick(now); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := c.Engine().LocalID(); got != id {
		t.Fatalf("expected local id %d, got %d", id, got)
	}
}

func TestConnectSendsReliableJoin(t *testing.T) {
	c, b := newTestClient(nil)
	c.Connect(proto.PlayerRecord{Health: 100}, epoch)

	joins := b.sentOf(proto.MsgJoin)
	if len(joins) != 1 {
		t.Fatalf("expected 1 join transmit, got %d", len(joins))
	}

	// Unacknowledged, the join retries on the ack timeout.
	if err := c.Tick(epoch.Add(reliable.AckTimeout + time.Millisecond)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := len(b.sentOf(proto.MsgJoin)); got != 2 {
		t.Fatalf("expected a join retry, got %d transmissions", got)
	}
}

func TestConnectTimeoutReportsServerUnavailable(t *testing.T) {
	c, _ := newTestClient(nil)
	c.Connect(proto.PlayerRecord{}, epoch)

	if err := c.Tick(epoch.Add(time.Second)); err != nil {
		t.Fatalf("expected no error inside the connect window, got %v", err)
	}
	err := c.Tick(epoch.Add(c.cfg.ConnectTimeout + time.Millisecond))
	if err != ErrServerUnavailable {
		t.Fatalf("expected ErrServerUnavailable, got %v", err)
	}
	if got := c.Engine().Phase(); got != reconcile.PhaseDisconnected {
		t.Fatalf("expected disconnected after timeout, got %v", got)
	}
}

func TestJoinAckConfirmsAndAcks(t *testing.T) {
	c, b := newTestClient(nil)
	var seq serverSeq
	confirm(t, c, b, &seq, 7, epoch)

	if c.Engine().Spectating() {
		t.Fatalf("expected spectating cleared after join")
	}
	acks := b.sentOf(proto.MsgAck)
	if len(acks) != 1 {
		t.Fatalf("expected the JoinAck acknowledged, got %d acks", len(acks))
	}
	acked, err := proto.DecodeAck(acks[0])
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if acked != uint32(seq) {
		t.Fatalf("expected ack of seq %d, got %d", seq, acked)
	}
	if got := c.Engine().LocalState().Health; got != 100 {
		t.Fatalf("expected local state seeded from the join record, got health %v", got)
	}
}

func TestJoinRejectionLeavesSpectator(t *testing.T) {
	c, b := newTestClient(nil)
	var seq serverSeq
	c.Connect(proto.PlayerRecord{}, epoch)
	b.push(proto.EncodeJoinAck(seq.next(proto.MsgJoinAck), 0, 3, 9))
	if err := c.Tick(epoch); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !c.JoinRejected() {
		t.Fatalf("expected the join marked rejected")
	}
	if got := c.Engine().Phase(); got != reconcile.PhaseConnected {
		t.Fatalf("expected connection kept for spectating, got %v", got)
	}
	if !c.Engine().Spectating() {
		t.Fatalf("expected spectating mode after rejection")
	}
}

func TestMoveCadence(t *testing.T) {
	c, b := newTestClient(nil)
	var seq serverSeq
	confirm(t, c, b, &seq, 1, epoch)

	if got := len(b.sentOf(proto.MsgMove)); got != 1 {
		t.Fatalf("expected the first move on the confirming tick, got %d", got)
	}
	if err := c.Tick(epoch.Add(10 * time.Millisecond)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := len(b.sentOf(proto.MsgMove)); got != 1 {
		t.Fatalf("expected no move inside the interval, got %d", got)
	}
	if err := c.Tick(epoch.Add(40 * time.Millisecond)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	moves := b.sentOf(proto.MsgMove)
	if len(moves) != 2 {
		t.Fatalf("expected a move after the interval, got %d", len(moves))
	}

	rec, err := proto.DecodeMove(moves[1])
	if err != nil {
		t.Fatalf("decode move: %v", err)
	}
	if rec.ID != 1 || rec.Health != 100 {
		t.Fatalf("expected the optimistic local state on the wire, got %+v", rec)
	}
}

func TestSpectatorSendsNoMoves(t *testing.T) {
	c, b := newTestClient(nil)
	var seq serverSeq
	c.Spectate(epoch)
	b.push(proto.EncodeSpectateAck(seq.next(proto.MsgSpectateAck), 4))
	if err := c.Tick(epoch); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := c.Tick(epoch.Add(time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := len(b.sentOf(proto.MsgMove)); got != 0 {
		t.Fatalf("expected no moves while spectating, got %d", got)
	}
	// Heartbeats still flow so the server keeps the connection alive.
	if got := len(b.sentOf(proto.MsgHeartbeat)); got == 0 {
		t.Fatalf("expected heartbeats while spectating")
	}
}

func TestPongFeedsLatency(t *testing.T) {
	c, b := newTestClient(nil)
	var seq serverSeq
	confirm(t, c, b, &seq, 1, epoch)

	now := epoch.Add(time.Second)
	b.push(proto.EncodePing(seq.next(proto.MsgPong), uint64(now.Add(-30*time.Millisecond).UnixMilli())))
	if err := c.Tick(now); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := c.Engine().Latency(); got != 30*time.Millisecond {
		t.Fatalf("expected 30ms latency, got %v", got)
	}
}

func TestHostChangeDeduplicated(t *testing.T) {
	events := &recordingEvents{}
	c, b := newTestClient(events)
	var seq serverSeq
	confirm(t, c, b, &seq, 1, epoch)

	change := proto.EncodeHostChange(seq.next(proto.MsgHostChange), 2, 2)
	b.push(change)
	b.push(change) // redelivery of the same reliable message
	if err := c.Tick(epoch.Add(time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if events.hostChanges != 1 {
		t.Fatalf("expected 1 host change event, got %d", events.hostChanges)
	}
	// Both deliveries are acknowledged so the server stops resending.
	if got := len(b.sentOf(proto.MsgAck)); got != 3 {
		t.Fatalf("expected 3 acks (join + both deliveries), got %d", got)
	}
	hostID, _ := c.Engine().Host()
	if hostID != 2 {
		t.Fatalf("expected host 2, got %d", hostID)
	}
}

func TestRestartRaisesEventAndDisconnects(t *testing.T) {
	events := &recordingEvents{}
	c, b := newTestClient(events)
	var seq serverSeq
	confirm(t, c, b, &seq, 1, epoch)

	b.push(proto.EncodeRestart(seq.next(proto.MsgGameRestart), proto.RestartReasonMatchEnd))
	if err := c.Tick(epoch.Add(time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(events.restarts) != 1 || events.restarts[0] != proto.RestartReasonMatchEnd {
		t.Fatalf("expected a match-end restart event, got %v", events.restarts)
	}
	if got := c.Engine().Phase(); got != reconcile.PhaseDisconnected {
		t.Fatalf("expected disconnected after restart, got %v", got)
	}
}

func TestDamageForLocalTargetRaisesEvent(t *testing.T) {
	events := &recordingEvents{}
	c, b := newTestClient(events)
	var seq serverSeq
	confirm(t, c, b, &seq, 5, epoch)

	b.push(proto.EncodeDamage(seq.next(proto.MsgPlayerDamage), proto.DamageRecord{TargetID: 5, Damage: 12}))
	b.push(proto.EncodeDamage(seq.next(proto.MsgPlayerDamage), proto.DamageRecord{TargetID: 9, Damage: 40}))
	if err := c.Tick(epoch.Add(time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(events.damage) != 1 || events.damage[0] != 12 {
		t.Fatalf("expected only the local-target damage event, got %v", events.damage)
	}
}

func TestProjectileEventsForwarded(t *testing.T) {
	events := &recordingEvents{}
	c, b := newTestClient(events)
	var seq serverSeq
	confirm(t, c, b, &seq, 1, epoch)

	b.push(proto.EncodeProjectileSpawn(seq.next(proto.MsgProjectileSpawn), proto.ProjectileRecord{ID: 3, ShooterID: 2}))
	b.push(proto.EncodeProjectileHit(seq.next(proto.MsgProjectileHit), proto.HitRecord{ProjectileID: 3}))
	if err := c.Tick(epoch.Add(time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if events.spawns != 1 || events.hits != 1 {
		t.Fatalf("expected 1 spawn and 1 hit event, got %d and %d", events.spawns, events.hits)
	}
}

type fixedEntity struct {
	id   uint32
	kind proto.EntityKind
	pos  proto.Vec3
}

func (e fixedEntity) ID() uint32            { return e.id }
func (e fixedEntity) Kind() proto.EntityKind { return e.kind }
func (e fixedEntity) Position() proto.Vec3  { return e.pos }
func (e fixedEntity) Facing() float32       { return 0 }
func (e fixedEntity) Health() float32       { return 50 }
func (e fixedEntity) Extra() [8]uint8       { return [8]uint8{} }

type fixedSource struct {
	entities []game.SimulatedEntity
}

func (s fixedSource) Entities() []game.SimulatedEntity { return s.entities }

func TestAuthorityPushesEntityState(t *testing.T) {
	b := &stubBinding{}
	cfg := Config{Source: fixedSource{entities: []game.SimulatedEntity{
		fixedEntity{id: 1, kind: proto.EntityKindRoamer, pos: proto.Vec3{X: 2}},
	}}}
	c := New(b, cfg, nil, nil)
	var seq serverSeq

	// Assigned id 1 and host 1: this participant is the authority.
	confirm(t, c, b, &seq, 1, epoch)
	if !c.Engine().IsAuthority() {
		t.Fatalf("expected the joining host to hold authority")
	}
	states := b.sentOf(proto.MsgEntityState)
	if len(states) != 1 {
		t.Fatalf("expected 1 entity snapshot, got %d", len(states))
	}
	entities, err := proto.DecodeEntityState(states[0])
	if err != nil {
		t.Fatalf("decode entity state: %v", err)
	}
	if len(entities) != 1 || entities[0].ID != 1 || entities[0].Pos.X != 2 {
		t.Fatalf("expected the simulated entity on the wire, got %+v", entities)
	}
}

func TestNonAuthorityPushesNoEntityState(t *testing.T) {
	b := &stubBinding{}
	cfg := Config{Source: fixedSource{entities: []game.SimulatedEntity{fixedEntity{id: 1}}}}
	c := New(b, cfg, nil, nil)
	var seq serverSeq

	c.Connect(proto.PlayerRecord{}, epoch)
	b.push(proto.EncodeJoinAck(seq.next(proto.MsgJoinAck), 2, 1, 1))
	if err := c.Tick(epoch); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := len(b.sentOf(proto.MsgEntityState)); got != 0 {
		t.Fatalf("expected no entity snapshots from a non-authority, got %d", got)
	}
}

func TestMetricsCountTraffic(t *testing.T) {
	metrics := telemetry.NewMapMetrics()
	b := &stubBinding{}
	c := New(b, Config{Metrics: metrics}, nil, nil)

	c.Connect(proto.PlayerRecord{Health: 100}, epoch)
	if got := metrics.Value("datagrams_out"); got != 1 {
		t.Fatalf("expected 1 outbound datagram after connect, got %d", got)
	}

	if err := c.Tick(epoch.Add(reliable.AckTimeout + time.Millisecond)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := metrics.Value("reliable_retries"); got != 1 {
		t.Fatalf("expected 1 reliable retry counted, got %d", got)
	}
	if got := metrics.Value("datagrams_out"); got != 2 {
		t.Fatalf("expected 2 outbound datagrams after the retry, got %d", got)
	}

	var seq serverSeq
	b.push(proto.EncodeJoinAck(seq.next(proto.MsgJoinAck), 1, 1, 1))
	if err := c.Tick(epoch.Add(reliable.AckTimeout + 2*time.Millisecond)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := metrics.Value("datagrams_in"); got != 1 {
		t.Fatalf("expected 1 inbound datagram counted, got %d", got)
	}
}
