package server

import "sync/atomic"

// Counters are the hot-path metrics the tick loop records. Everything is
// atomic so the diagnostics endpoint can snapshot without touching the loop.
type Counters struct {
	datagramsIn        atomic.Uint64
	datagramsOut       atomic.Uint64
	bytesIn            atomic.Uint64
	bytesOut           atomic.Uint64
	broadcasts         atomic.Uint64
	lastBroadcastBytes atomic.Uint64
	decodeFailures     atomic.Uint64
	reliableRetries    atomic.Uint64
	reliableDrops      atomic.Uint64
	evictions          atomic.Uint64
	joinsRejected      atomic.Uint64
	tickDurationMillis atomic.Int64
}

// CountersSnapshot is the JSON shape served by the diagnostics endpoint.
type CountersSnapshot struct {
	DatagramsIn        uint64 `json:"datagramsIn"`
	DatagramsOut       uint64 `json:"datagramsOut"`
	BytesIn            uint64 `json:"bytesIn"`
	BytesOut           uint64 `json:"bytesOut"`
	Broadcasts         uint64 `json:"broadcasts"`
	LastBroadcastBytes uint64 `json:"lastBroadcastBytes"`
	DecodeFailures     uint64 `json:"decodeFailures"`
	ReliableRetries    uint64 `json:"reliableRetries"`
	ReliableDrops      uint64 `json:"reliableDrops"`
	Evictions          uint64 `json:"evictions"`
	JoinsRejected      uint64 `json:"joinsRejected"`
	TickDurationMillis int64  `json:"tickDurationMillis"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordInbound notes one received datagram.
func (c *Counters) RecordInbound(bytes int) {
	c.datagramsIn.Add(1)
	c.bytesIn.Add(uint64(bytes))
}

// RecordOutbound notes one sent datagram.
func (c *Counters) RecordOutbound(bytes int) {
	c.datagramsOut.Add(1)
	c.bytesOut.Add(uint64(bytes))
}

// RecordBroadcast notes one completed world broadcast.
func (c *Counters) RecordBroadcast(bytes int) {
	c.broadcasts.Add(1)
	c.lastBroadcastBytes.Store(uint64(bytes))
}

// RecordDecodeFailure notes a dropped unparseable datagram.
func (c *Counters) RecordDecodeFailure() {
	c.decodeFailures.Add(1)
}

// RecordReliableRetry notes one retransmission.
func (c *Counters) RecordReliableRetry() {
	c.reliableRetries.Add(1)
}

// RecordReliableDrop notes one abandoned reliable message.
func (c *Counters) RecordReliableDrop() {
	c.reliableDrops.Add(1)
}

// RecordEviction notes one stale connection dropped.
func (c *Counters) RecordEviction() {
	c.evictions.Add(1)
}

// RecordJoinRejected notes a join refused because the server was full.
func (c *Counters) RecordJoinRejected() {
	c.joinsRejected.Add(1)
}

// RecordTickDuration stores the latest tick wall time.
func (c *Counters) RecordTickDuration(millis int64) {
	c.tickDurationMillis.Store(millis)
}

// Snapshot copies every counter.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		DatagramsIn:        c.datagramsIn.Load(),
		DatagramsOut:       c.datagramsOut.Load(),
		BytesIn:            c.bytesIn.Load(),
		BytesOut:           c.bytesOut.Load(),
		Broadcasts:         c.broadcasts.Load(),
		LastBroadcastBytes: c.lastBroadcastBytes.Load(),
		DecodeFailures:     c.decodeFailures.Load(),
		ReliableRetries:    c.reliableRetries.Load(),
		ReliableDrops:      c.reliableDrops.Load(),
		Evictions:          c.evictions.Load(),
		JoinsRejected:      c.joinsRejected.Load(),
		TickDurationMillis: c.tickDurationMillis.Load(),
	}
}
