// Package client drives the participant side of a session: it owns the
// transport binding, the outgoing send cadences, the single reliable sender
// toward the server, and the dispatch of inbound datagrams into the
// reconciliation engine. Like the server hub, everything here belongs to one
// tick goroutine.
package client

import (
	"context"
	"errors"
	"time"

	"emberfall/server/internal/game"
	"emberfall/server/internal/proto"
	"emberfall/server/internal/reconcile"
	"emberfall/server/internal/reliable"
	"emberfall/server/internal/telemetry"
	"emberfall/server/internal/transport"
	"emberfall/server/logging"
	networklog "emberfall/server/logging/network"
	resynclog "emberfall/server/logging/resync"
)

// ErrServerUnavailable is reported when the connect window elapses with no
// datagram from the server.
var ErrServerUnavailable = errors.New("client: server unavailable")

// Config tunes the client cadences.
type Config struct {
	MoveInterval      time.Duration
	PingInterval      time.Duration
	HeartbeatInterval time.Duration
	// EntityInterval paces entity snapshots while this participant is the
	// simulation authority.
	EntityInterval time.Duration
	ConnectTimeout time.Duration
	// Source supplies NPC snapshots when this participant holds the
	// simulation authority. Nil means it never simulates.
	Source    game.EntitySource
	Publisher logging.Publisher
	// Metrics receives the client traffic counters (datagrams in/out,
	// reliable retries and drops, forced resyncs). Nil discards them.
	Metrics telemetry.Metrics
}

// DefaultConfig matches the standard participant cadence: 30 Hz movement,
// 2 s pings, 5 s heartbeats, 5 s connect window.
func DefaultConfig() Config {
	return Config{
		MoveInterval:      33 * time.Millisecond,
		PingInterval:      2 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		EntityInterval:    50 * time.Millisecond,
		ConnectTimeout:    5 * time.Second,
	}
}

// Client is the participant-side tick driver.
type Client struct {
	cfg     Config
	binding transport.Binding
	engine  *reconcile.Engine
	events  game.Events
	rel     *reliable.Sender

	msgSeq uint32

	lastMove      time.Time
	lastPing      time.Time
	lastHeartbeat time.Time
	lastEntity    time.Time

	connectStarted time.Time
	pendingJoin    proto.PlayerRecord
	joinRejected   bool

	// lastServerReliableSeq dedupes redelivered server reliable messages:
	// they are re-acknowledged but processed once.
	lastServerReliableSeq uint32

	pub     logging.Publisher
	metrics telemetry.Metrics
}

// New wires a client over the given binding. events may be nil for headless
// use; registry may be nil when no scene objects are driven.
func New(binding transport.Binding, cfg Config, events game.Events, registry *game.Registry) *Client {
	def := DefaultConfig()
	if cfg.MoveInterval <= 0 {
		cfg.MoveInterval = def.MoveInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.EntityInterval <= 0 {
		cfg.EntityInterval = def.EntityInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	if events == nil {
		events = game.NopEvents{}
	}
	if registry == nil {
		registry = game.NewRegistry()
	}
	c := &Client{
		cfg:     cfg,
		binding: binding,
		engine:  reconcile.NewEngine(events, registry),
		events:  events,
		rel:     reliable.NewSender(),
		pub:     cfg.Publisher,
		metrics: cfg.Metrics,
	}
	c.engine.OnDivergence = func(dist float64) {
		resynclog.Divergence(context.Background(), c.pub, c.engine.LocalID(), dist)
	}
	c.engine.OnSnap = func(dist float64) {
		resynclog.Snap(context.Background(), c.pub, c.engine.LocalID(), dist)
	}
	c.engine.OnDesyncWarning = func(active bool) {
		resynclog.DesyncWarning(context.Background(), c.pub, c.engine.LocalID(), active)
	}
	c.engine.OnForcedResync = func() {
		resynclog.Forced(context.Background(), c.pub, c.engine.LocalID())
		c.metrics.Add("forced_resyncs", 1)
	}
	return c
}

// Engine exposes the reconciliation engine for state queries and intent
// submission.
func (c *Client) Engine() *reconcile.Engine {
	return c.engine
}

// JoinRejected reports whether the last join attempt was refused by a full
// server. The connection stays usable as a spectator.
func (c *Client) JoinRejected() bool {
	return c.joinRejected
}

func (c *Client) nextSeq() uint32 {
	c.msgSeq++
	return c.msgSeq
}

func (c *Client) send(buf []byte) {
	_ = c.binding.Send(buf, nil)
	c.metrics.Add("datagrams_out", 1)
}

func (c *Client) sendReliable(now time.Time, build func(seq uint32) []byte) {
	seq := c.nextSeq()
	buf := build(seq)
	if out, transmit := c.rel.Send(seq, buf, now); transmit {
		c.send(out)
	}
}

func (c *Client) header(t proto.MsgType) proto.Header {
	return proto.Header{Type: t, Seq: c.nextSeq(), Sender: c.engine.LocalID()}
}

// Connect starts the handshake: the engine enters the connecting phase and a
// reliable Join goes out with the desired spawn record.
func (c *Client) Connect(rec proto.PlayerRecord, now time.Time) {
	c.engine.StartConnecting()
	c.connectStarted = now
	c.pendingJoin = rec
	c.joinRejected = false
	c.sendReliable(now, func(seq uint32) []byte {
		return proto.EncodeJoin(proto.Header{Type: proto.MsgJoin, Seq: seq}, rec)
	})
}

// Spectate starts a watch-only session: first contact counts as connected
// but no slot is claimed.
func (c *Client) Spectate(now time.Time) {
	c.engine.StartConnecting()
	c.connectStarted = now
	c.sendReliable(now, func(seq uint32) []byte {
		return proto.EncodeHeaderOnly(proto.Header{Type: proto.MsgSpectate, Seq: seq})
	})
}

// Leave announces a clean departure and drops the session locally without
// waiting for the server acknowledgment.
func (c *Client) Leave(now time.Time) {
	c.sendReliable(now, func(seq uint32) []byte {
		return proto.EncodeHeaderOnly(proto.Header{Type: proto.MsgLeave, Seq: seq, Sender: c.engine.LocalID()})
	})
	c.engine.Disconnect()
	c.rel.Clear()
}

// RequestRestart asks the server to restart the session. Only honored
// server-side when this participant is the host.
func (c *Client) RequestRestart(reason proto.RestartReason, now time.Time) {
	c.sendReliable(now, func(seq uint32) []byte {
		return proto.EncodeRestart(proto.Header{Type: proto.MsgGameRestart, Seq: seq, Sender: c.engine.LocalID()}, reason)
	})
}

// FireProjectile announces a locally spawned projectile. Unreliable: a lost
// spawn shows up as a mystery hit at worst.
func (c *Client) FireProjectile(rec proto.ProjectileRecord) {
	c.send(proto.EncodeProjectileSpawn(c.header(proto.MsgProjectileSpawn), rec))
}

// ReportHit reports a projectile resolution observed by this client.
func (c *Client) ReportHit(hit proto.HitRecord) {
	c.send(proto.EncodeProjectileHit(c.header(proto.MsgProjectileHit), hit))
}

// SendPlayerDamage reports damage dealt to another player.
func (c *Client) SendPlayerDamage(rec proto.DamageRecord) {
	c.send(proto.EncodeDamage(c.header(proto.MsgPlayerDamage), rec))
}

// SendEntityDamage reports damage dealt to an NPC entity.
func (c *Client) SendEntityDamage(rec proto.DamageRecord) {
	c.send(proto.EncodeDamage(c.header(proto.MsgEntityDamage), rec))
}

// Tick runs one cooperative pass: drain datagrams, drive the retry clock
// and the desync watchdog, then emit whatever the cadences owe. Returns
// ErrServerUnavailable once if the connect window elapses silently.
func (c *Client) Tick(now time.Time) error {
	for {
		pkt, ok := c.binding.Receive()
		if !ok {
			break
		}
		c.dispatch(pkt.Data, now)
		c.metrics.Add("datagrams_in", 1)
	}

	sends, _, gaveUp := c.rel.Tick(now)
	for _, buf := range sends {
		if !gaveUp {
			networklog.ReliableRetry(context.Background(), c.pub, logging.PlayerRef(c.engine.LocalID()), networklog.ReliablePayload{})
			c.metrics.Add("reliable_retries", 1)
		}
		c.send(buf)
	}
	if gaveUp {
		networklog.ReliableDropped(context.Background(), c.pub, logging.PlayerRef(c.engine.LocalID()), networklog.ReliablePayload{})
		c.metrics.Add("reliable_drops", 1)
	}

	if c.engine.Phase() == reconcile.PhaseConnecting && now.Sub(c.connectStarted) > c.cfg.ConnectTimeout {
		c.engine.Disconnect()
		c.rel.Clear()
		return ErrServerUnavailable
	}

	c.engine.Tick(now)

	if c.engine.Phase() != reconcile.PhaseConnected {
		return nil
	}

	if c.lastHeartbeat.IsZero() || now.Sub(c.lastHeartbeat) >= c.cfg.HeartbeatInterval {
		c.lastHeartbeat = now
		c.send(proto.EncodeHeaderOnly(c.header(proto.MsgHeartbeat)))
	}
	if c.lastPing.IsZero() || now.Sub(c.lastPing) >= c.cfg.PingInterval {
		c.lastPing = now
		c.send(proto.EncodePing(c.header(proto.MsgPing), uint64(now.UnixMilli())))
	}

	if id := c.engine.LocalID(); id != 0 {
		if c.lastMove.IsZero() || now.Sub(c.lastMove) >= c.cfg.MoveInterval {
			c.lastMove = now
			rec := c.engine.LocalState()
			rec.ID = id
			c.send(proto.EncodeMove(proto.Header{Type: proto.MsgMove, Seq: c.nextSeq(), Sender: id}, rec))
		}
		c.pushEntities(now)
	}
	return nil
}

// pushEntities sends the simulated entity snapshot while this participant is
// the authority. Getters are polled once per send interval.
func (c *Client) pushEntities(now time.Time) {
	if c.cfg.Source == nil || !c.engine.IsAuthority() {
		return
	}
	if !c.lastEntity.IsZero() && now.Sub(c.lastEntity) < c.cfg.EntityInterval {
		return
	}
	c.lastEntity = now
	sim := c.cfg.Source.Entities()
	if len(sim) == 0 {
		return
	}
	entities := make([]proto.EntityRecord, 0, len(sim))
	for _, ent := range sim {
		entities = append(entities, proto.EntityRecord{
			Type:   ent.Kind(),
			ID:     ent.ID(),
			Pos:    ent.Position(),
			Yaw:    ent.Facing(),
			Health: ent.Health(),
			Extra:  ent.Extra(),
		})
	}
	c.send(proto.EncodeEntityState(c.header(proto.MsgEntityState), entities))
}

// Close releases the transport binding.
func (c *Client) Close() error {
	return c.binding.Close()
}
