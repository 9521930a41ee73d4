// Package proto implements the fixed-layout binary wire protocol shared by the
// server, the game clients, and the loopback test harness. Every message is a
// 9-byte header followed by zero or more fixed-size records concatenated
// without delimiters; receivers iterate by stride. All numeric fields are
// little-endian regardless of host byte order. There is no version field:
// layout changes require a new message type, never a mutated record.
package proto

import (
	"encoding/binary"
	"errors"
	"math"
)

// MsgType identifies a wire message. The catalog is append-only.
type MsgType uint8

const (
	MsgJoin MsgType = iota + 1
	MsgJoinAck
	MsgLeave
	MsgState
	MsgMove
	MsgAck
	MsgPing
	MsgPong
	MsgEntityState
	MsgEntityDamage
	MsgProjectileSpawn
	MsgProjectileHit
	MsgHostChange
	MsgHeartbeat
	MsgSpectate
	MsgSpectateAck
	MsgPlayerDamage
	MsgGameRestart
)

// HeaderSize is the length of the wire header preceding every payload.
const HeaderSize = 9

// ServerSender is the sender_id carried by messages originating from the
// authority rather than a participant.
const ServerSender uint32 = 0

// ErrShortBuffer reports a datagram too small for its declared contents.
// Decoders return it instead of reading past the provided buffer.
var ErrShortBuffer = errors.New("proto: buffer too short")

// Header prefixes every message on the wire.
type Header struct {
	Type   MsgType
	Seq    uint32
	Sender uint32
}

// AppendHeader appends the 9-byte wire form of h to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = append(dst, byte(h.Type))
	dst = appendU32(dst, h.Seq)
	dst = appendU32(dst, h.Sender)
	return dst
}

// ParseHeader decodes the leading header of a datagram.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	return Header{
		Type:   MsgType(buf[0]),
		Seq:    binary.LittleEndian.Uint32(buf[1:5]),
		Sender: binary.LittleEndian.Uint32(buf[5:9]),
	}, nil
}

func appendU32(dst []byte, v uint32) []byte {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	return append(dst, scratch[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], v)
	return append(dst, scratch[:]...)
}

func appendF32(dst []byte, v float32) []byte {
	return appendU32(dst, math.Float32bits(v))
}

func readF32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

// appendString pads or truncates s to exactly size bytes. Oversized names are
// cut at the capacity; the buffer never grows to fit.
func appendString(dst []byte, s string, size int) []byte {
	raw := []byte(s)
	if len(raw) > size {
		raw = raw[:size]
	}
	dst = append(dst, raw...)
	for i := len(raw); i < size; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// cutString interprets the bytes before the first zero byte as UTF-8.
func cutString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
