package server

import (
	"context"
	"time"

	"emberfall/server/internal/proto"
	"emberfall/server/internal/transport"
	"emberfall/server/logging"
	lifecyclelog "emberfall/server/logging/lifecycle"
	networklog "emberfall/server/logging/network"
)

// handlePacket decodes one datagram and routes it by header type. Malformed
// datagrams are counted and dropped; an unparseable peer is never a reason to
// stall the tick.
func (h *Hub) handlePacket(pkt transport.Packet, now time.Time) {
	hdr, err := proto.ParseHeader(pkt.Data)
	if err != nil {
		h.recordDecodeFailure(pkt, 0, err)
		return
	}

	c := h.ensureConn(pkt.Addr, now)

	switch hdr.Type {
	case proto.MsgJoin:
		h.handleJoin(c, hdr, pkt.Data, now)
	case proto.MsgLeave:
		h.handleLeave(c, hdr, now)
	case proto.MsgMove:
		h.handleMove(c, hdr, pkt.Data)
	case proto.MsgAck:
		h.handleAck(c, hdr, pkt.Data, now)
	case proto.MsgPing:
		h.handlePing(c, hdr, pkt.Data)
	case proto.MsgHeartbeat:
		// ensureConn already refreshed lastSeen; nothing else to do.
	case proto.MsgSpectate:
		h.handleSpectate(c, hdr, now)
	case proto.MsgEntityState:
		h.handleEntityState(c, hdr, pkt.Data)
	case proto.MsgEntityDamage:
		h.handleEntityDamage(c, hdr, pkt.Data)
	case proto.MsgPlayerDamage:
		h.handlePlayerDamage(c, hdr, pkt.Data)
	case proto.MsgProjectileSpawn:
		h.handleProjectileSpawn(c, hdr, pkt.Data, now)
	case proto.MsgProjectileHit:
		h.handleProjectileHit(c, hdr, pkt.Data)
	case proto.MsgGameRestart:
		h.handleRestartRequest(c, hdr, pkt.Data, now)
	default:
		h.recordDecodeFailure(pkt, uint8(hdr.Type), proto.ErrShortBuffer)
	}
}

func (h *Hub) recordDecodeFailure(pkt transport.Packet, msgType uint8, err error) {
	h.counters.RecordDecodeFailure()
	networklog.DecodeFailed(context.Background(), h.pub, logging.ConnRef(pkt.Addr.String()), networklog.DecodePayload{
		MsgType: msgType,
		Size:    len(pkt.Data),
		Reason:  err.Error(),
	})
}

// ackClient acknowledges a reliable client message by echoing its sequence.
func (h *Hub) ackClient(c *conn, hdr proto.Header) {
	h.send(c, proto.EncodeAck(proto.Header{
		Type:   proto.MsgAck,
		Seq:    h.nextSeq(),
		Sender: proto.ServerSender,
	}, hdr.Seq))
}

func (h *Hub) handleJoin(c *conn, hdr proto.Header, data []byte, now time.Time) {
	rec, err := proto.DecodeJoin(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	h.ackClient(c, hdr)

	// Duplicate join after a lost JoinAck: re-send the same assignment
	// instead of burning a second slot.
	if c.playerID != 0 {
		id := c.playerID
		hostID, _ := h.world.Host()
		h.sendReliable(c, now, func(seq uint32) []byte {
			return proto.EncodeJoinAck(proto.Header{
				Type:   proto.MsgJoinAck,
				Seq:    seq,
				Sender: proto.ServerSender,
			}, id, hostID, h.world.Seq())
		})
		return
	}

	id, change, err := h.world.Join(rec)
	if err != nil {
		// Full server: JoinAck with assigned id zero tells the client to
		// stay out. The rejection itself is reliable so it lands.
		h.counters.RecordJoinRejected()
		lifecyclelog.ServerFull(context.Background(), h.pub, c.key)
		hostID, _ := h.world.Host()
		h.sendReliable(c, now, func(seq uint32) []byte {
			return proto.EncodeJoinAck(proto.Header{
				Type:   proto.MsgJoinAck,
				Seq:    seq,
				Sender: proto.ServerSender,
			}, 0, hostID, h.world.Seq())
		})
		return
	}

	c.playerID = id
	h.byID[id] = c
	lifecyclelog.Joined(context.Background(), h.pub, id)

	hostID, _ := h.world.Host()
	h.sendReliable(c, now, func(seq uint32) []byte {
		return proto.EncodeJoinAck(proto.Header{
			Type:   proto.MsgJoinAck,
			Seq:    seq,
			Sender: proto.ServerSender,
		}, id, hostID, h.world.Seq())
	})
	if change != nil {
		h.broadcastHostChange(*change, now)
	}
}

func (h *Hub) handleLeave(c *conn, hdr proto.Header, now time.Time) {
	h.ackClient(c, hdr)
	id := c.playerID
	h.dropConn(c.key, c, now)
	if id != 0 {
		lifecyclelog.Left(context.Background(), h.pub, id)
	}
}

func (h *Hub) handleMove(c *conn, hdr proto.Header, data []byte) {
	rec, err := proto.DecodeMove(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	if c.playerID == 0 || hdr.Sender != c.playerID {
		return
	}
	rec.ID = c.playerID
	_ = h.world.ApplyMove(rec)
}

func (h *Hub) handleAck(c *conn, hdr proto.Header, data []byte, now time.Time) {
	ackedSeq, err := proto.DecodeAck(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	if next, acked := c.rel.Ack(ackedSeq, now); acked && next != nil {
		h.send(c, next)
	}
}

func (h *Hub) handlePing(c *conn, hdr proto.Header, data []byte) {
	stamp, err := proto.DecodePing(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	// Pong echoes the client's timestamp untouched; latency math stays on
	// the client's clock.
	h.send(c, proto.EncodePing(proto.Header{
		Type:   proto.MsgPong,
		Seq:    h.nextSeq(),
		Sender: proto.ServerSender,
	}, stamp))
}

func (h *Hub) handleSpectate(c *conn, hdr proto.Header, now time.Time) {
	h.ackClient(c, hdr)
	h.sendReliable(c, now, func(seq uint32) []byte {
		return proto.EncodeSpectateAck(proto.Header{
			Type:   proto.MsgSpectateAck,
			Seq:    seq,
			Sender: proto.ServerSender,
		}, h.world.Seq())
	})
}

// handleEntityState ingests an entity snapshot from the simulation authority
// and relays it to everyone else. Non-authority senders are ignored.
func (h *Hub) handleEntityState(c *conn, hdr proto.Header, data []byte) {
	_, authorityID := h.world.Host()
	if c.playerID == 0 || c.playerID != authorityID {
		return
	}
	entities, err := proto.DecodeEntityState(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	for _, rec := range entities {
		_ = h.world.UpsertEntity(rec)
	}
	h.relay(data, c, false)
}

func (h *Hub) handleEntityDamage(c *conn, hdr proto.Header, data []byte) {
	rec, err := proto.DecodeDamage(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	if c.playerID == 0 {
		return
	}
	if _, err := h.world.DamageEntity(rec); err != nil {
		return
	}
	h.relay(data, c, false)
}

// handlePlayerDamage applies the damage authoritatively and forwards the
// record to the target so its client can react before the next broadcast.
func (h *Hub) handlePlayerDamage(c *conn, hdr proto.Header, data []byte) {
	rec, err := proto.DecodeDamage(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	if c.playerID == 0 {
		return
	}
	if _, err := h.world.DamagePlayer(rec); err != nil {
		return
	}
	if target, ok := h.byID[rec.TargetID]; ok && target != c {
		h.send(target, data)
	}
}

func (h *Hub) handleProjectileSpawn(c *conn, hdr proto.Header, data []byte, now time.Time) {
	rec, err := proto.DecodeProjectileSpawn(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	if c.playerID == 0 {
		return
	}
	if err := h.world.RegisterProjectile(rec); err != nil {
		return
	}
	// Unacknowledged projectiles age out so a lost hit report cannot leak
	// the slot for the rest of the session.
	id := rec.ID
	h.tasks.schedule(now.Add(h.cfg.ProjectileLifetime), func() {
		_ = h.world.RemoveProjectile(id)
	})
	h.relay(data, c, false)
}

// handleProjectileHit resolves the hit and relays it to every connection,
// shooter included: the shooter spawned its projectile locally and needs the
// authoritative resolution to retire it.
func (h *Hub) handleProjectileHit(c *conn, hdr proto.Header, data []byte) {
	hit, err := proto.DecodeProjectileHit(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	if c.playerID == 0 {
		return
	}
	if _, err := h.world.HitProjectile(hit); err != nil {
		// Unknown id means the projectile already hit or expired; the
		// duplicate report is dropped without a relay.
		return
	}
	h.relay(data, c, true)
}

// handleRestartRequest honors a restart only from the current host.
func (h *Hub) handleRestartRequest(c *conn, hdr proto.Header, data []byte, now time.Time) {
	reason, err := proto.DecodeRestart(data)
	if err != nil {
		h.recordDecodeFailure(transport.Packet{Data: data, Addr: c.addr}, uint8(hdr.Type), err)
		return
	}
	hostID, _ := h.world.Host()
	if c.playerID == 0 || c.playerID != hostID {
		return
	}
	h.ackClient(c, hdr)
	h.restart(reason, now)
}
