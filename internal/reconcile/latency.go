package reconcile

import "time"

// latencyWindow is the number of round-trip samples in the moving average.
const latencyWindow = 10

type latencyTracker struct {
	samples [latencyWindow]time.Duration
	next    int
	count   int
}

func (t *latencyTracker) add(sample time.Duration) {
	if sample < 0 {
		sample = 0
	}
	t.samples[t.next] = sample
	t.next = (t.next + 1) % latencyWindow
	if t.count < latencyWindow {
		t.count++
	}
}

func (t *latencyTracker) average() time.Duration {
	if t.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < t.count; i++ {
		total += t.samples[i]
	}
	return total / time.Duration(t.count)
}

// RecordPong ingests a latency probe reply. The pong echoes the probe's own
// send timestamp, so the round trip is simply now minus the echo; the oldest
// of the last ten samples is evicted.
func (e *Engine) RecordPong(echoedMillis uint64, now time.Time) {
	sent := time.UnixMilli(int64(echoedMillis))
	e.latency.add(now.Sub(sent))
}

// Latency reports the moving-average round-trip time.
func (e *Engine) Latency() time.Duration {
	return e.latency.average()
}
