package proto

import "encoding/binary"

// Payload sizes (after the header) for the fixed-size message bodies.
const (
	joinAckPayloadSize     = 12
	ackPayloadSize         = 4
	pingPayloadSize        = 8
	hostChangePayloadSize  = 8
	spectateAckPayloadSize = 4
	restartPayloadSize     = 1
)

// maxRecordCount is the ceiling imposed by the one-byte count field; encoders
// truncate rather than grow the field.
const maxRecordCount = 255

// All decoders in this file take the complete datagram, header included, and
// reject anything shorter than header plus declared payload.

// EncodeHeaderOnly builds a message with no payload (Leave, Heartbeat,
// Spectate).
func EncodeHeaderOnly(h Header) []byte {
	return AppendHeader(make([]byte, 0, HeaderSize), h)
}

// EncodeJoin builds a Join message carrying the desired initial player state.
// The record's ID field is ignored by the authority, which assigns its own.
func EncodeJoin(h Header, rec PlayerRecord) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+PlayerRecordSize), h)
	return AppendPlayerRecord(buf, rec)
}

// DecodeJoin extracts the requested player state from a Join datagram.
func DecodeJoin(buf []byte) (PlayerRecord, error) {
	if len(buf) < HeaderSize+PlayerRecordSize {
		return PlayerRecord{}, ErrShortBuffer
	}
	return DecodePlayerRecord(buf[HeaderSize:])
}

// EncodeJoinAck builds the authority's reply to a Join: the assigned id, the
// current host, and the world sequence the client should start from.
func EncodeJoinAck(h Header, assignedID, hostID, worldSeq uint32) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+joinAckPayloadSize), h)
	buf = appendU32(buf, assignedID)
	buf = appendU32(buf, hostID)
	buf = appendU32(buf, worldSeq)
	return buf
}

// DecodeJoinAck extracts the assigned id, host id, and world sequence.
func DecodeJoinAck(buf []byte) (assignedID, hostID, worldSeq uint32, err error) {
	if len(buf) < HeaderSize+joinAckPayloadSize {
		return 0, 0, 0, ErrShortBuffer
	}
	p := buf[HeaderSize:]
	return binary.LittleEndian.Uint32(p[0:4]),
		binary.LittleEndian.Uint32(p[4:8]),
		binary.LittleEndian.Uint32(p[8:12]),
		nil
}

// EncodeState builds the full world broadcast: world sequence, record count,
// then one PlayerRecord per participant. Spectators receive it too.
func EncodeState(h Header, worldSeq uint32, players []PlayerRecord) []byte {
	if len(players) > maxRecordCount {
		players = players[:maxRecordCount]
	}
	buf := AppendHeader(make([]byte, 0, HeaderSize+5+len(players)*PlayerRecordSize), h)
	buf = appendU32(buf, worldSeq)
	buf = append(buf, byte(len(players)))
	for _, rec := range players {
		buf = AppendPlayerRecord(buf, rec)
	}
	return buf
}

// DecodeState extracts the world sequence and participant records from a
// State datagram.
func DecodeState(buf []byte) (worldSeq uint32, players []PlayerRecord, err error) {
	if len(buf) < HeaderSize+5 {
		return 0, nil, ErrShortBuffer
	}
	p := buf[HeaderSize:]
	worldSeq = binary.LittleEndian.Uint32(p[0:4])
	count := int(p[4])
	body := p[5:]
	if len(body) < count*PlayerRecordSize {
		return 0, nil, ErrShortBuffer
	}
	players = make([]PlayerRecord, 0, count)
	for i := 0; i < count; i++ {
		rec, err := DecodePlayerRecord(body[i*PlayerRecordSize:])
		if err != nil {
			return 0, nil, err
		}
		players = append(players, rec)
	}
	return worldSeq, players, nil
}

// EncodeMove builds the best-effort position update sent by clients each send
// interval.
func EncodeMove(h Header, rec PlayerRecord) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+PlayerRecordSize), h)
	return AppendPlayerRecord(buf, rec)
}

// DecodeMove extracts the sender's player record from a Move datagram.
func DecodeMove(buf []byte) (PlayerRecord, error) {
	if len(buf) < HeaderSize+PlayerRecordSize {
		return PlayerRecord{}, ErrShortBuffer
	}
	return DecodePlayerRecord(buf[HeaderSize:])
}

// EncodeAck builds the acknowledgment for a reliable message.
func EncodeAck(h Header, ackedSeq uint32) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+ackPayloadSize), h)
	return appendU32(buf, ackedSeq)
}

// DecodeAck extracts the acknowledged sequence number.
func DecodeAck(buf []byte) (uint32, error) {
	if len(buf) < HeaderSize+ackPayloadSize {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(buf[HeaderSize:]), nil
}

// EncodePing builds a latency probe carrying the sender's clock in unix
// milliseconds. Pong echoes the timestamp verbatim so the probing side can
// subtract without tracking outstanding probes.
func EncodePing(h Header, timestampMillis uint64) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+pingPayloadSize), h)
	return appendU64(buf, timestampMillis)
}

// DecodePing extracts the echoed timestamp from a Ping or Pong datagram.
func DecodePing(buf []byte) (uint64, error) {
	if len(buf) < HeaderSize+pingPayloadSize {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint64(buf[HeaderSize:]), nil
}

// EncodeEntityState builds the NPC broadcast: record count then one
// EntityRecord per live NPC.
func EncodeEntityState(h Header, entities []EntityRecord) []byte {
	if len(entities) > maxRecordCount {
		entities = entities[:maxRecordCount]
	}
	buf := AppendHeader(make([]byte, 0, HeaderSize+1+len(entities)*EntityRecordSize), h)
	buf = append(buf, byte(len(entities)))
	for _, rec := range entities {
		buf = AppendEntityRecord(buf, rec)
	}
	return buf
}

// DecodeEntityState extracts the NPC records from an EntityState datagram.
func DecodeEntityState(buf []byte) ([]EntityRecord, error) {
	if len(buf) < HeaderSize+1 {
		return nil, ErrShortBuffer
	}
	count := int(buf[HeaderSize])
	body := buf[HeaderSize+1:]
	if len(body) < count*EntityRecordSize {
		return nil, ErrShortBuffer
	}
	entities := make([]EntityRecord, 0, count)
	for i := 0; i < count; i++ {
		rec, err := DecodeEntityRecord(body[i*EntityRecordSize:])
		if err != nil {
			return nil, err
		}
		entities = append(entities, rec)
	}
	return entities, nil
}

// EncodeDamage builds an EntityDamage or PlayerDamage message; the header
// type distinguishes the two.
func EncodeDamage(h Header, rec DamageRecord) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+DamageRecordSize), h)
	return AppendDamageRecord(buf, rec)
}

// DecodeDamage extracts the damage record.
func DecodeDamage(buf []byte) (DamageRecord, error) {
	if len(buf) < HeaderSize+DamageRecordSize {
		return DamageRecord{}, ErrShortBuffer
	}
	return DecodeDamageRecord(buf[HeaderSize:])
}

// EncodeProjectileSpawn builds the spawn relay message.
func EncodeProjectileSpawn(h Header, rec ProjectileRecord) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+ProjectileRecordSize), h)
	return AppendProjectileRecord(buf, rec)
}

// DecodeProjectileSpawn extracts the projectile spawn record.
func DecodeProjectileSpawn(buf []byte) (ProjectileRecord, error) {
	if len(buf) < HeaderSize+ProjectileRecordSize {
		return ProjectileRecord{}, ErrShortBuffer
	}
	return DecodeProjectileRecord(buf[HeaderSize:])
}

// EncodeProjectileHit builds the impact relay message.
func EncodeProjectileHit(h Header, rec HitRecord) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+HitRecordSize), h)
	return AppendHitRecord(buf, rec)
}

// DecodeProjectileHit extracts the impact record.
func DecodeProjectileHit(buf []byte) (HitRecord, error) {
	if len(buf) < HeaderSize+HitRecordSize {
		return HitRecord{}, ErrShortBuffer
	}
	return DecodeHitRecord(buf[HeaderSize:])
}

// EncodeHostChange builds the host migration broadcast. HostID is the
// advisory joined-first marker; AuthorityID is the participant simulating
// NPCs. Under a dedicated server the two can differ.
func EncodeHostChange(h Header, hostID, authorityID uint32) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+hostChangePayloadSize), h)
	buf = appendU32(buf, hostID)
	buf = appendU32(buf, authorityID)
	return buf
}

// DecodeHostChange extracts the new host and simulation-authority ids.
func DecodeHostChange(buf []byte) (hostID, authorityID uint32, err error) {
	if len(buf) < HeaderSize+hostChangePayloadSize {
		return 0, 0, ErrShortBuffer
	}
	p := buf[HeaderSize:]
	return binary.LittleEndian.Uint32(p[0:4]), binary.LittleEndian.Uint32(p[4:8]), nil
}

// EncodeSpectateAck builds the reply confirming spectator registration.
func EncodeSpectateAck(h Header, worldSeq uint32) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+spectateAckPayloadSize), h)
	return appendU32(buf, worldSeq)
}

// DecodeSpectateAck extracts the current world sequence.
func DecodeSpectateAck(buf []byte) (uint32, error) {
	if len(buf) < HeaderSize+spectateAckPayloadSize {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(buf[HeaderSize:]), nil
}

// RestartReason explains a GameRestart broadcast.
type RestartReason uint8

const (
	RestartReasonHostRequest RestartReason = iota + 1
	RestartReasonOperator
	RestartReasonMatchEnd
)

// EncodeRestart builds the forced-restart broadcast.
func EncodeRestart(h Header, reason RestartReason) []byte {
	buf := AppendHeader(make([]byte, 0, HeaderSize+restartPayloadSize), h)
	return append(buf, byte(reason))
}

// DecodeRestart extracts the restart reason.
func DecodeRestart(buf []byte) (RestartReason, error) {
	if len(buf) < HeaderSize+restartPayloadSize {
		return 0, ErrShortBuffer
	}
	return RestartReason(buf[HeaderSize]), nil
}
