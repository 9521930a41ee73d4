// Command mirror is the display half of the loopback harness: it registers
// with a server's mirror socket and prints whatever participant table the
// authority last pushed. Useful for watching a local session without joining.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emberfall/server/internal/proto"
	"emberfall/server/internal/telemetry"
	"emberfall/server/internal/transport"
)

func main() {
	var (
		remote string
		local  string
	)
	flag.StringVar(&remote, "socket", "", "server mirror socket path")
	flag.StringVar(&local, "local", "", "local socket path (defaults next to the remote)")
	flag.Parse()

	if remote == "" {
		fmt.Fprintln(os.Stderr, "--socket is required")
		os.Exit(1)
	}
	if local == "" {
		local = fmt.Sprintf("%s.mirror-%d", remote, os.Getpid())
	}

	binding, err := transport.DialLoopback(remote, local, telemetry.WrapLogger(log.Default()))
	if err != nil {
		log.Fatalf("dial %s: %v", remote, err)
	}
	defer binding.Close()

	if err := binding.Send(proto.EncodeFrame(proto.FrameHeader{Kind: proto.FrameJoin}, nil), nil); err != nil {
		log.Fatalf("register: %v", err)
	}

	mirror := transport.NewLoopMirror(binding)
	defer mirror.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigs:
			_ = binding.Send(proto.EncodeFrame(proto.FrameHeader{Kind: proto.FrameLeave}, nil), nil)
			return
		case <-ticker.C:
			players, seq, ok := mirror.Latest()
			if !ok {
				fmt.Println("waiting for the first frame")
				continue
			}
			fmt.Printf("frame %d, %d participants\n", seq, len(players))
			for _, rec := range players {
				fmt.Printf("  #%d pos=(%.1f, %.1f, %.1f) hp=%.0f\n", rec.ID, rec.Pos.X, rec.Pos.Y, rec.Pos.Z, rec.Health)
			}
		}
	}
}
