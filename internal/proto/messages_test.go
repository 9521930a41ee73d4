package proto

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	want := Header{Type: MsgMove, Seq: 123456, Sender: 7}
	buf := AppendHeader(nil, want)
	if len(buf) != HeaderSize {
		t.Fatalf("expected %d header bytes, got %d", HeaderSize, len(buf))
	}
	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != want {
		t.Fatalf("header mismatch: got %+v, want %+v", got, want)
	}
}

func TestStateRoundTrip(t *testing.T) {
	players := []PlayerRecord{
		{ID: 1, Pos: Vec3{X: 1, Y: 2, Z: 3}, Health: 100, AnimName: "idle", Active: 1},
		{ID: 2, Pos: Vec3{X: -4, Y: 0, Z: 9.5}, Health: 40, AnimName: "attack_light", Active: 1},
	}
	buf := EncodeState(Header{Type: MsgState, Seq: 9, Sender: ServerSender}, 77, players)

	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse header failed: %v", err)
	}
	if h.Type != MsgState || h.Sender != ServerSender {
		t.Fatalf("unexpected header %+v", h)
	}

	worldSeq, got, err := DecodeState(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if worldSeq != 77 {
		t.Fatalf("expected world seq 77, got %d", worldSeq)
	}
	if len(got) != len(players) {
		t.Fatalf("expected %d records, got %d", len(players), len(got))
	}
	for i := range players {
		if got[i] != players[i] {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, got[i], players[i])
		}
	}
}

func TestDecodeStateRejectsTruncatedBody(t *testing.T) {
	players := []PlayerRecord{{ID: 1, Active: 1}, {ID: 2, Active: 1}}
	buf := EncodeState(Header{Type: MsgState}, 1, players)
	if _, _, err := DecodeState(buf[:len(buf)-1]); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	// Count byte claims more records than the buffer holds.
	buf[HeaderSize+4] = 3
	if _, _, err := DecodeState(buf); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer for inflated count, got %v", err)
	}
}

func TestEntityStateRoundTrip(t *testing.T) {
	entities := []EntityRecord{
		{Type: EntityKindRoamer, ID: 100, Pos: Vec3{X: 3, Y: 0, Z: 3}, Health: 50},
		{Type: EntityKindFlyer, ID: 101, Yaw: 1.5, Health: 25, Extra: [8]uint8{2, 90}},
	}
	buf := EncodeEntityState(Header{Type: MsgEntityState, Sender: 4}, entities)
	got, err := DecodeEntityState(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != len(entities) {
		t.Fatalf("expected %d records, got %d", len(entities), len(got))
	}
	for i := range entities {
		if got[i] != entities[i] {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, got[i], entities[i])
		}
	}
}

func TestJoinAckRoundTrip(t *testing.T) {
	buf := EncodeJoinAck(Header{Type: MsgJoinAck, Seq: 2}, 11, 5, 900)
	assigned, host, worldSeq, err := DecodeJoinAck(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if assigned != 11 || host != 5 || worldSeq != 900 {
		t.Fatalf("got (%d, %d, %d), want (11, 5, 900)", assigned, host, worldSeq)
	}
}

func TestPingEchoesTimestamp(t *testing.T) {
	buf := EncodePing(Header{Type: MsgPing, Sender: 3}, 1700000000123)
	ts, err := DecodePing(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ts != 1700000000123 {
		t.Fatalf("expected echoed timestamp 1700000000123, got %d", ts)
	}
}

func TestSmallPayloadRoundTrips(t *testing.T) {
	if seq, err := DecodeAck(EncodeAck(Header{Type: MsgAck}, 41)); err != nil || seq != 41 {
		t.Fatalf("ack round trip: seq=%d err=%v", seq, err)
	}
	host, auth, err := DecodeHostChange(EncodeHostChange(Header{Type: MsgHostChange}, 2, 0))
	if err != nil || host != 2 || auth != 0 {
		t.Fatalf("host change round trip: host=%d auth=%d err=%v", host, auth, err)
	}
	if seq, err := DecodeSpectateAck(EncodeSpectateAck(Header{Type: MsgSpectateAck}, 55)); err != nil || seq != 55 {
		t.Fatalf("spectate ack round trip: seq=%d err=%v", seq, err)
	}
	if reason, err := DecodeRestart(EncodeRestart(Header{Type: MsgGameRestart}, RestartReasonHostRequest)); err != nil || reason != RestartReasonHostRequest {
		t.Fatalf("restart round trip: reason=%d err=%v", reason, err)
	}
	if rec, err := DecodeDamage(EncodeDamage(Header{Type: MsgPlayerDamage}, DamageRecord{TargetID: 1, Damage: 9})); err != nil || rec.Damage != 9 {
		t.Fatalf("damage round trip: rec=%+v err=%v", rec, err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	players := []PlayerRecord{
		{ID: 1, Pos: Vec3{X: 1, Y: 0, Z: 1}, Active: 1},
		{ID: 2, AnimName: "walk", Active: 1},
	}
	buf := EncodeFrame(FrameHeader{Kind: FrameGlobalState, Seq: 12}, players)
	h, got, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if h.Kind != FrameGlobalState || h.Seq != 12 || int(h.Count) != len(players) {
		t.Fatalf("unexpected frame header %+v", h)
	}
	for i := range players {
		if got[i] != players[i] {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, got[i], players[i])
		}
	}
}

func TestFrameDropsOverCapParticipants(t *testing.T) {
	players := make([]PlayerRecord, LoopMaxParticipants+2)
	for i := range players {
		players[i] = PlayerRecord{ID: uint32(i + 1), Active: 1}
	}
	buf := EncodeFrame(FrameHeader{Kind: FrameGlobalState}, players)
	h, got, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if int(h.Count) != LoopMaxParticipants || len(got) != LoopMaxParticipants {
		t.Fatalf("expected cap %d, got count=%d len=%d", LoopMaxParticipants, h.Count, len(got))
	}
}
