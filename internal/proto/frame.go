package proto

import "encoding/binary"

// Loopback framing for the local-testing transport. The loopback harness
// exchanges a coarser fixed frame than the UDP protocol: an 8-byte frame
// header followed by up to LoopMaxParticipants player records. The remote
// side displays whatever the authority last pushed; there is no
// reconciliation layer on this path.

// FrameKind identifies a loopback frame.
type FrameKind uint8

const (
	FrameJoin FrameKind = iota + 1
	FrameLeave
	FrameGlobalState
)

const (
	// FrameHeaderSize is the fixed loopback frame header length.
	FrameHeaderSize = 8
	// LoopMaxParticipants caps the loopback harness participant table.
	LoopMaxParticipants = 4
)

// FrameHeader prefixes every loopback frame.
type FrameHeader struct {
	Kind  FrameKind
	Count uint8
	Seq   uint32
}

// EncodeFrame builds a loopback frame. Records beyond the participant cap are
// dropped, matching the fixed display table on the receiving side.
func EncodeFrame(h FrameHeader, players []PlayerRecord) []byte {
	if len(players) > LoopMaxParticipants {
		players = players[:LoopMaxParticipants]
	}
	h.Count = uint8(len(players))
	buf := make([]byte, 0, FrameHeaderSize+len(players)*PlayerRecordSize)
	buf = append(buf, byte(h.Kind), h.Count, 0, 0)
	buf = appendU32(buf, h.Seq)
	for _, rec := range players {
		buf = AppendPlayerRecord(buf, rec)
	}
	return buf
}

// DecodeFrame parses a loopback frame.
func DecodeFrame(buf []byte) (FrameHeader, []PlayerRecord, error) {
	if len(buf) < FrameHeaderSize {
		return FrameHeader{}, nil, ErrShortBuffer
	}
	h := FrameHeader{
		Kind:  FrameKind(buf[0]),
		Count: buf[1],
		Seq:   binary.LittleEndian.Uint32(buf[4:8]),
	}
	count := int(h.Count)
	if count > LoopMaxParticipants {
		return FrameHeader{}, nil, ErrShortBuffer
	}
	body := buf[FrameHeaderSize:]
	if len(body) < count*PlayerRecordSize {
		return FrameHeader{}, nil, ErrShortBuffer
	}
	players := make([]PlayerRecord, 0, count)
	for i := 0; i < count; i++ {
		rec, err := DecodePlayerRecord(body[i*PlayerRecordSize:])
		if err != nil {
			return FrameHeader{}, nil, err
		}
		players = append(players, rec)
	}
	return h, players, nil
}
