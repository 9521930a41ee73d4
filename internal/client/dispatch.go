package client

import (
	"context"
	"time"

	"emberfall/server/internal/proto"
	"emberfall/server/logging"
	networklog "emberfall/server/logging/network"
)

// dispatch decodes one server datagram and feeds it to the engine. Any
// datagram at all counts as first contact while connecting.
func (c *Client) dispatch(data []byte, now time.Time) {
	hdr, err := proto.ParseHeader(data)
	if err != nil {
		c.decodeFailure(0, len(data), err)
		return
	}
	c.engine.FirstContact(now)

	switch hdr.Type {
	case proto.MsgJoinAck:
		c.handleJoinAck(hdr, data, now)
	case proto.MsgSpectateAck:
		c.ackServer(hdr)
		// FirstContact above already put the engine in spectating mode.
		c.consumeReliable(hdr)
	case proto.MsgState:
		worldSeq, players, err := proto.DecodeState(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.engine.ApplyStateBroadcast(worldSeq, players, now)
	case proto.MsgEntityState:
		entities, err := proto.DecodeEntityState(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.engine.ApplyEntityState(entities, now)
	case proto.MsgPong:
		stamp, err := proto.DecodePing(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.engine.RecordPong(stamp, now)
		c.metrics.Store("latency_ms", uint64(c.engine.Latency().Milliseconds()))
	case proto.MsgAck:
		ackedSeq, err := proto.DecodeAck(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		if next, acked := c.rel.Ack(ackedSeq, now); acked && next != nil {
			c.send(next)
		}
	case proto.MsgHostChange:
		c.ackServer(hdr)
		if !c.consumeReliable(hdr) {
			return
		}
		hostID, authorityID, err := proto.DecodeHostChange(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.engine.SetHost(hostID, authorityID)
	case proto.MsgPlayerDamage:
		rec, err := proto.DecodeDamage(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		if rec.TargetID == c.engine.LocalID() {
			c.events.OnDamageReceived(rec.Damage, rec.Knockback, rec.AttackerEntityID)
		}
	case proto.MsgEntityDamage:
		// Entity health arrives authoritative with the next entity
		// snapshot; the relayed damage record is informational only.
	case proto.MsgProjectileSpawn:
		rec, err := proto.DecodeProjectileSpawn(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.events.OnProjectileSpawned(rec)
	case proto.MsgProjectileHit:
		hit, err := proto.DecodeProjectileHit(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.events.OnProjectileHit(hit)
	case proto.MsgGameRestart:
		c.ackServer(hdr)
		if !c.consumeReliable(hdr) {
			return
		}
		reason, err := proto.DecodeRestart(data)
		if err != nil {
			c.decodeFailure(uint8(hdr.Type), len(data), err)
			return
		}
		c.events.OnRestartRequested(reason)
		c.engine.Disconnect()
		c.rel.Clear()
	default:
		c.decodeFailure(uint8(hdr.Type), len(data), proto.ErrShortBuffer)
	}
}

func (c *Client) handleJoinAck(hdr proto.Header, data []byte, now time.Time) {
	c.ackServer(hdr)
	if !c.consumeReliable(hdr) {
		return
	}
	assignedID, hostID, _, err := proto.DecodeJoinAck(data)
	if err != nil {
		c.decodeFailure(uint8(hdr.Type), len(data), err)
		return
	}
	if assignedID == 0 {
		// Full server. The connection stays up in spectating mode; the
		// embedding game decides whether to retry or watch.
		c.joinRejected = true
		return
	}
	c.engine.JoinConfirmed(assignedID, hostID, now)
	// Seed the optimistic local state with the spawn record the join
	// carried, so the first moves go out with sane values.
	c.engine.SubmitLocalIntent(c.pendingJoin.Pos, c.pendingJoin.Yaw, c.pendingJoin.State, c.pendingJoin.AnimName, c.pendingJoin.Health)
}

// ackServer acknowledges a reliable server message by echoing its sequence.
func (c *Client) ackServer(hdr proto.Header) {
	c.send(proto.EncodeAck(proto.Header{
		Type:   proto.MsgAck,
		Seq:    c.nextSeq(),
		Sender: c.engine.LocalID(),
	}, hdr.Seq))
}

// consumeReliable reports whether a reliable server message is new. The
// server's sequence counter is monotonic, so anything at or below the last
// consumed value is a redelivery: re-acknowledged, not reprocessed.
func (c *Client) consumeReliable(hdr proto.Header) bool {
	if hdr.Seq <= c.lastServerReliableSeq {
		return false
	}
	c.lastServerReliableSeq = hdr.Seq
	return true
}

func (c *Client) decodeFailure(msgType uint8, size int, err error) {
	networklog.DecodeFailed(context.Background(), c.pub, logging.PlayerRef(c.engine.LocalID()), networklog.DecodePayload{
		MsgType: msgType,
		Size:    size,
		Reason:  err.Error(),
	})
}
