// Command client is a headless participant for smoke tests and load checks:
// it joins a server, wanders in a slow circle, and reports its measured
// latency once a second.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emberfall/server/internal/client"
	"emberfall/server/internal/proto"
	"emberfall/server/internal/reconcile"
	"emberfall/server/internal/telemetry"
	"emberfall/server/internal/transport"
)

func main() {
	var (
		addr     string
		duration time.Duration
		spectate bool
	)
	flag.StringVar(&addr, "addr", transport.DefaultAddr, "server address")
	flag.DurationVar(&duration, "for", 0, "exit after this long (0 runs until interrupted)")
	flag.BoolVar(&spectate, "spectate", false, "watch without joining")
	flag.Parse()

	binding, err := transport.DialUDP(addr, telemetry.WrapLogger(log.Default()))
	if err != nil {
		log.Fatalf("dial %s: %v", addr, err)
	}

	metrics := telemetry.NewMapMetrics()
	cfg := client.DefaultConfig()
	cfg.Metrics = metrics
	c := client.New(binding, cfg, nil, nil)
	defer c.Close()

	now := time.Now()
	if spectate {
		c.Spectate(now)
	} else {
		c.Connect(proto.PlayerRecord{Health: 100, AnimName: "idle"}, now)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if duration > 0 {
		deadline = time.After(duration)
	}

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	start := time.Now()
	for {
		select {
		case <-sigs:
			c.Leave(time.Now())
			return
		case <-deadline:
			c.Leave(time.Now())
			return
		case <-report.C:
			engine := c.Engine()
			if engine.Phase() == reconcile.PhaseConnected {
				fmt.Printf("id=%d latency=%v desync=%v in=%d out=%d retries=%d\n",
					engine.LocalID(), engine.Latency(), engine.Desynchronized(),
					metrics.Value("datagrams_in"), metrics.Value("datagrams_out"),
					metrics.Value("reliable_retries"))
			}
		case now := <-ticker.C:
			wander(c, now.Sub(start))
			if err := c.Tick(now); err != nil {
				log.Fatalf("%v", err)
			}
		}
	}
}

// wander walks a 10-unit circle, one revolution per minute.
func wander(c *client.Client, elapsed time.Duration) {
	engine := c.Engine()
	if engine.LocalID() == 0 {
		return
	}
	angle := elapsed.Seconds() * 2 * math.Pi / 60
	pos := proto.Vec3{
		X: float32(10 * math.Cos(angle)),
		Z: float32(10 * math.Sin(angle)),
	}
	engine.SubmitLocalIntent(pos, float32(angle), 1, "walk", engine.LocalState().Health)
}
