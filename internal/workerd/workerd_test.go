package workerd

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"swarmring/internal/barrier"
	"swarmring/internal/gridmap"
	"swarmring/internal/protocol"
	"swarmring/internal/worldcfg"
)

func testConfig(numUpdates int32) worldcfg.Config {
	return worldcfg.Config{
		WorldSize:       100,
		NumBlocks:       10,
		NumWorkers:      2,
		RobotRange:      20,
		FOVMilliradians: 3142,
		NumUpdates:      numUpdates,
	}
}

// runFakePeer stands in for the two runPeer goroutines during a tick-loop
// test: it just answers the barrier's rendezvous protocol for n
// generations without doing any real ghost/robot exchange.
func runFakePeer(b *barrier.Barrier, n int) {
	seen := 0
	for i := 0; i < n; i++ {
		seen = b.AwaitRelease(seen)
		b.PartyDone()
	}
}

func TestRunTickLoopSendsFrameFinishedForEachCountedTick(t *testing.T) {
	cfg := testConfig(2) // totalIterations = 3, but only 2 announce themselves
	grid := gridmap.New(cfg, 1)
	grid.Seed(nil)

	masterConn, remote := net.Pipe()
	defer masterConn.Close()
	defer remote.Close()

	w := &Worker{
		id:      1,
		cfg:     cfg,
		grid:    grid,
		barrier: barrier.New(2),
		master:  protocol.NewChannel(masterConn, "master"),
		tracer:  otel.Tracer("test"),
		log:     slog.Default(),
	}

	go runFakePeer(w.barrier, 3)
	go runFakePeer(w.barrier, 3)

	errCh := make(chan error, 1)
	go func() { errCh <- w.runTickLoop(context.Background()) }()

	remoteCh := protocol.NewChannel(remote, "worker")
	frames := 0
	for frames < 2 {
		_, tag, err := remoteCh.Expect(protocol.FrameFinished)
		if err != nil {
			t.Fatalf("Expect FRAME_FINISHED: %v", err)
		}
		if tag != protocol.FrameFinished {
			t.Fatalf("got tag %v, want FRAME_FINISHED", tag)
		}
		frames++
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runTickLoop returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runTickLoop did not return after its final (unannounced) iteration")
	}
	if frames != 2 {
		t.Fatalf("received %d FRAME_FINISHED messages, want exactly num_updates=2", frames)
	}
}

func TestRunTickLoopSkipsEntirelyWhenNumUpdatesIsZero(t *testing.T) {
	cfg := testConfig(0)
	grid := gridmap.New(cfg, 1)
	grid.Seed(nil)

	masterConn, remote := net.Pipe()
	defer masterConn.Close()
	defer remote.Close()

	w := &Worker{
		id:      1,
		cfg:     cfg,
		grid:    grid,
		barrier: barrier.New(2),
		master:  protocol.NewChannel(masterConn, "master"),
		tracer:  otel.Tracer("test"),
		log:     slog.Default(),
	}

	if err := w.runTickLoop(context.Background()); err != nil {
		t.Fatalf("runTickLoop: %v", err)
	}
}

func TestRunTickLoopStopsWhenContextIsCancelled(t *testing.T) {
	cfg := testConfig(-1) // unlimited
	grid := gridmap.New(cfg, 1)
	grid.Seed(nil)

	masterConn, remote := net.Pipe()
	defer masterConn.Close()

	w := &Worker{
		id:      1,
		cfg:     cfg,
		grid:    grid,
		barrier: barrier.New(2),
		master:  protocol.NewChannel(masterConn, "master"),
		tracer:  otel.Tracer("test"),
		log:     slog.Default(),
	}

	ctx, cancel := context.WithCancel(context.Background())

	stopPeer := make(chan struct{})
	runUntilStopped := func() {
		seen := 0
		for {
			select {
			case <-stopPeer:
				return
			default:
			}
			seen = w.barrier.AwaitRelease(seen)
			w.barrier.PartyDone()
		}
	}
	go runUntilStopped()
	go runUntilStopped()

	remoteCh := protocol.NewChannel(remote, "worker")
	go func() {
		for {
			if _, _, err := remoteCh.Expect(protocol.FrameFinished); err != nil {
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- w.runTickLoop(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("runTickLoop returned nil error after context cancellation, want ctx.Err()")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runTickLoop did not observe context cancellation")
	}
	close(stopPeer)
	remote.Close()
	masterConn.Close()
}
