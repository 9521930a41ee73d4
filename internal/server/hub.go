// Package server drives the authoritative side of a session: it owns the
// transport binding and the world state, routes every decoded datagram by
// header type, broadcasts the world snapshot on a fixed cadence, and keeps
// per-connection reliable senders honest. All state here belongs to the tick
// goroutine; the only concurrent visitors are the websocket spectator feed
// and the diagnostics endpoint, which touch their own synchronized corners.
package server

import (
	"context"
	"net"
	"time"

	"emberfall/server/internal/game"
	"emberfall/server/internal/proto"
	"emberfall/server/internal/reliable"
	"emberfall/server/internal/transport"
	"emberfall/server/internal/world"
	"emberfall/server/logging"
	lifecyclelog "emberfall/server/logging/lifecycle"
	networklog "emberfall/server/logging/network"
)

// Config tunes the hub.
type Config struct {
	World              world.Config
	BroadcastInterval  time.Duration
	EvictAfter         time.Duration
	ProjectileLifetime time.Duration
	// Source supplies NPC snapshots when the server itself is the
	// simulation authority (dedicated mode). Nil delegates to the host.
	Source game.EntitySource
	// LoopBinding enables the loopback mirror harness: local display
	// processes register over it and receive coarse global-state frames.
	LoopBinding transport.Binding
	Publisher   logging.Publisher
	Counters    *Counters
}

// DefaultConfig matches the standard session cadence: 20 Hz broadcast,
// 15 s stale-connection eviction, 10 s projectile lifetime.
func DefaultConfig() Config {
	return Config{
		World:              world.DefaultConfig(),
		BroadcastInterval:  50 * time.Millisecond,
		EvictAfter:         15 * time.Second,
		ProjectileLifetime: 10 * time.Second,
	}
}

type conn struct {
	addr     net.Addr
	key      string
	playerID uint32 // zero until a join succeeds
	lastSeen time.Time
	rel      *reliable.Sender
}

// Hub is the server-side tick driver and connection table.
type Hub struct {
	cfg     Config
	binding transport.Binding
	world   *world.State

	conns map[string]*conn
	byID  map[uint32]*conn

	msgSeq        uint32
	tasks         taskQueue
	lastBroadcast time.Time

	pub      logging.Publisher
	counters *Counters
	feed     *Feed
	loop     *transport.LoopPublisher

	// restarts carries operator restart requests from the diagnostics
	// goroutine into the tick loop.
	restarts chan proto.RestartReason
}

// NewHub wires a hub over the given binding.
func NewHub(binding transport.Binding, cfg Config) *Hub {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultConfig().BroadcastInterval
	}
	if cfg.EvictAfter <= 0 {
		cfg.EvictAfter = DefaultConfig().EvictAfter
	}
	if cfg.ProjectileLifetime <= 0 {
		cfg.ProjectileLifetime = DefaultConfig().ProjectileLifetime
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Counters == nil {
		cfg.Counters = NewCounters()
	}
	h := &Hub{
		cfg:      cfg,
		binding:  binding,
		world:    world.NewState(cfg.World),
		conns:    make(map[string]*conn),
		byID:     make(map[uint32]*conn),
		pub:      cfg.Publisher,
		counters: cfg.Counters,
		feed:     NewFeed(),
		restarts: make(chan proto.RestartReason, 1),
	}
	if cfg.LoopBinding != nil {
		h.loop = transport.NewLoopPublisher(cfg.LoopBinding)
	}
	return h
}

// World exposes the authoritative state to in-process callers (dedicated
// entity simulation, tests). Tick-goroutine use only.
func (h *Hub) World() *world.State {
	return h.world
}

// Counters exposes the hub metrics.
func (h *Hub) Counters() *Counters {
	return h.counters
}

// Feed exposes the websocket spectator feed.
func (h *Hub) Feed() *Feed {
	return h.feed
}

// RequestRestart asks the tick loop to restart the session, used by the
// diagnostics endpoint. Duplicate requests while one is pending are merged.
func (h *Hub) RequestRestart(reason proto.RestartReason) {
	select {
	case h.restarts <- reason:
	default:
	}
}

// Tick runs one cooperative pass: drain datagrams, apply deferred work,
// drive retry clocks, evict the silent, then broadcast if the interval is
// due. Nothing in here blocks.
func (h *Hub) Tick(now time.Time) {
	started := time.Now()

	for {
		pkt, ok := h.binding.Receive()
		if !ok {
			break
		}
		h.counters.RecordInbound(len(pkt.Data))
		h.handlePacket(pkt, now)
	}

	select {
	case reason := <-h.restarts:
		h.restart(reason, now)
	default:
	}

	h.drainLoop()
	h.tasks.drain(now)
	h.tickReliable(now)
	h.evictStale(now)

	if h.lastBroadcast.IsZero() || now.Sub(h.lastBroadcast) >= h.cfg.BroadcastInterval {
		h.lastBroadcast = now
		h.pollEntitySource()
		h.broadcastWorld(now)
	}

	h.counters.RecordTickDuration(time.Since(started).Milliseconds())
}

// Run drives Tick on the broadcast cadence divided by four, so datagram
// intake and retry clocks run finer-grained than the broadcast itself.
// Returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	interval := h.cfg.BroadcastInterval / 4
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Tick(now)
		}
	}
}

func (h *Hub) nextSeq() uint32 {
	h.msgSeq++
	return h.msgSeq
}

func (h *Hub) ensureConn(addr net.Addr, now time.Time) *conn {
	key := addr.String()
	c, ok := h.conns[key]
	if !ok {
		c = &conn{addr: addr, key: key, rel: reliable.NewSender()}
		h.conns[key] = c
	}
	c.lastSeen = now
	return c
}

func (h *Hub) send(c *conn, buf []byte) {
	if err := h.binding.Send(buf, c.addr); err != nil {
		// Mid-session send errors are recoverable; the eviction sweep
		// owns giving up on a peer.
		return
	}
	h.counters.RecordOutbound(len(buf))
}

// sendReliable builds the message with a fresh sequence and hands it to the
// connection's single-in-flight sender.
func (h *Hub) sendReliable(c *conn, now time.Time, build func(seq uint32) []byte) {
	seq := h.nextSeq()
	buf := build(seq)
	if out, transmit := c.rel.Send(seq, buf, now); transmit {
		h.send(c, out)
	}
}

func (h *Hub) tickReliable(now time.Time) {
	for _, c := range h.conns {
		sends, dropped, gaveUp := c.rel.Tick(now)
		for _, buf := range sends {
			// A send on the give-up path is the next queued message
			// dispatching, not a retry of the abandoned one.
			if !gaveUp {
				h.counters.RecordReliableRetry()
				networklog.ReliableRetry(context.Background(), h.pub, logging.ConnRef(c.key), networklog.ReliablePayload{})
			}
			h.send(c, buf)
		}
		if gaveUp {
			h.counters.RecordReliableDrop()
			networklog.ReliableDropped(context.Background(), h.pub, logging.ConnRef(c.key), networklog.ReliablePayload{Seq: dropped})
		}
	}
}

func (h *Hub) evictStale(now time.Time) {
	for key, c := range h.conns {
		if now.Sub(c.lastSeen) <= h.cfg.EvictAfter {
			continue
		}
		h.counters.RecordEviction()
		lifecyclelog.Evicted(context.Background(), h.pub, c.playerID, c.key)
		h.dropConn(key, c, now)
	}
}

// dropConn removes the connection, releases its player slot, and broadcasts
// any resulting host migration. Disconnect clears all pending reliable state.
func (h *Hub) dropConn(key string, c *conn, now time.Time) {
	c.rel.Clear()
	delete(h.conns, key)
	if c.playerID != 0 {
		delete(h.byID, c.playerID)
		if change, err := h.world.Leave(c.playerID); err == nil && change != nil {
			h.broadcastHostChange(*change, now)
		}
	}
}

func (h *Hub) broadcastHostChange(change world.HostChange, now time.Time) {
	lifecyclelog.HostChanged(context.Background(), h.pub, lifecyclelog.HostPayload{
		HostID:      change.HostID,
		AuthorityID: change.AuthorityID,
	})
	for _, c := range h.conns {
		h.sendReliable(c, now, func(seq uint32) []byte {
			return proto.EncodeHostChange(proto.Header{
				Type:   proto.MsgHostChange,
				Seq:    seq,
				Sender: proto.ServerSender,
			}, change.HostID, change.AuthorityID)
		})
	}
}

func (h *Hub) restart(reason proto.RestartReason, now time.Time) {
	lifecyclelog.Restart(context.Background(), h.pub, uint8(reason))
	for _, c := range h.conns {
		h.sendReliable(c, now, func(seq uint32) []byte {
			return proto.EncodeRestart(proto.Header{
				Type:   proto.MsgGameRestart,
				Seq:    seq,
				Sender: proto.ServerSender,
			}, reason)
		})
		// Every surviving connection drops back to spectating; slots are
		// claimed again with fresh joins.
		c.playerID = 0
	}
	h.byID = make(map[uint32]*conn)
	h.world.Reset()
}

// pollEntitySource refreshes the entity table from the in-process simulation
// when this server is the authority. Getters are polled once per broadcast
// interval, never mid-tick. An entity reporting id zero is registered once
// and handed its allocated id through AssignID; without that hand-back it
// would register again on every poll, so unassignable zero-id entities are
// dropped instead.
func (h *Hub) pollEntitySource() {
	if h.cfg.Source == nil {
		return
	}
	for _, ent := range h.cfg.Source.Entities() {
		rec := proto.EntityRecord{
			Type:   ent.Kind(),
			ID:     ent.ID(),
			Pos:    ent.Position(),
			Yaw:    ent.Facing(),
			Health: ent.Health(),
			Extra:  ent.Extra(),
		}
		if rec.ID == 0 {
			spawner, ok := ent.(game.EntitySpawner)
			if !ok {
				continue
			}
			id, err := h.world.RegisterEntity(rec)
			if err != nil {
				continue
			}
			spawner.AssignID(id)
			continue
		}
		h.world.UpsertEntity(rec)
	}
}

// drainLoop services the loopback mirror harness: display processes announce
// themselves with a join frame and are pushed global-state frames until they
// send a leave or their datagrams stop parsing.
func (h *Hub) drainLoop() {
	if h.loop == nil {
		return
	}
	for {
		pkt, ok := h.cfg.LoopBinding.Receive()
		if !ok {
			return
		}
		hdr, _, err := proto.DecodeFrame(pkt.Data)
		if err != nil {
			continue
		}
		switch hdr.Kind {
		case proto.FrameJoin:
			h.loop.Register(pkt.Addr)
		case proto.FrameLeave:
			h.loop.Drop(pkt.Addr)
		}
	}
}

// broadcastWorld serializes the full snapshot and fans it out to every
// connection, spectators included, plus the websocket feed and the loopback
// mirror.
func (h *Hub) broadcastWorld(now time.Time) {
	players := h.world.SnapshotPlayers()
	state := proto.EncodeState(proto.Header{
		Type:   proto.MsgState,
		Seq:    h.nextSeq(),
		Sender: proto.ServerSender,
	}, h.world.Seq(), players)

	var entityState []byte
	if entities := h.world.SnapshotEntities(); len(entities) > 0 {
		entityState = proto.EncodeEntityState(proto.Header{
			Type:   proto.MsgEntityState,
			Seq:    h.nextSeq(),
			Sender: proto.ServerSender,
		}, entities)
	}

	for _, c := range h.conns {
		h.send(c, state)
		if entityState != nil {
			h.send(c, entityState)
		}
	}
	h.feed.Broadcast(state)
	if entityState != nil {
		h.feed.Broadcast(entityState)
	}
	if h.loop != nil {
		h.loop.MaybePush(now, players)
	}
	h.counters.RecordBroadcast(len(state))
}

// relay fans a client message out to the other connections; includeSender
// adds the originator back in (projectile hits echo to their shooter).
func (h *Hub) relay(buf []byte, from *conn, includeSender bool) {
	for _, c := range h.conns {
		if !includeSender && c == from {
			continue
		}
		h.send(c, buf)
	}
}
