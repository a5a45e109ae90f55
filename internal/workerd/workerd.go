// Package workerd implements the worker process: it joins the ring
// through the master's lobby, brings up its two peer channels, then
// drives the per-tick move/exchange/sense/decide pipeline until
// num_updates ticks have been reported with FRAME_FINISHED (or forever,
// if unlimited), runs one further unreported tick, and finally reports
// FINAL_POSITIONS. Grounded on
// internal/daemon/reconcile/worker.go's Run(ctx)-with-event-callbacks
// shape and convergence/loop.go's overall run-loop structure, generalized
// from "reconcile peers on membership change" to "run one fixed pipeline
// per tick, forever or for a bounded count."
package workerd

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"swarmring/internal/barrier"
	"swarmring/internal/gridmap"
	"swarmring/internal/netutil"
	"swarmring/internal/protocol"
	"swarmring/internal/telemetry"
	"swarmring/internal/worldcfg"
)

// Options configures a worker run.
type Options struct {
	MasterAddr string // host:port, port defaults to netutil.ServerPort if absent
}

// Worker is one running worker process.
type Worker struct {
	id         int32
	numWorkers int32

	master *protocol.Channel
	left   *protocol.Channel // accepted inbound connection from our left neighbor
	right  *protocol.Channel // outbound connection we dialed to our right neighbor

	cfg  worldcfg.Config
	grid *gridmap.Map

	barrier *barrier.Barrier // 2 parties: the left and right peer goroutines
	pending gridmap.Outbound // written by the main thread before LeaderRelease, read by peer goroutines
	stopped bool             // set before the final drain release

	tracer trace.Tracer
	log    *slog.Logger
}

// Run executes one worker process end to end: join, peer bring-up,
// setup handshake, tick loop, FINAL_POSITIONS, exit.
func Run(ctx context.Context, opts Options) error {
	log := slog.Default().With("component", "workerd")
	w := &Worker{tracer: otel.Tracer("workerd"), log: log}

	masterAddr := opts.MasterAddr
	if _, _, err := net.SplitHostPort(masterAddr); err != nil {
		masterAddr = fmt.Sprintf("%s:%d", masterAddr, netutil.ServerPort)
	}

	if err := w.join(ctx, masterAddr); err != nil {
		return err
	}
	defer w.master.Close()

	if err := w.bringUpPeers(ctx); err != nil {
		return err
	}
	defer w.left.Close()
	defer w.right.Close()

	if err := w.negotiateUniverse(); err != nil {
		return err
	}
	if err := w.negotiatePopulation(); err != nil {
		return err
	}
	if _, _, err := w.master.Expect(protocol.StartSimulation); err != nil {
		return err
	}

	w.barrier = barrier.New(2)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return w.runPeer(gridmap.Left, w.left) })
	g.Go(func() error { return w.runPeer(gridmap.Right, w.right) })

	if err := w.runTickLoop(ctx); err != nil {
		return err
	}

	w.stopped = true
	w.barrier.LeaderRelease()
	if err := g.Wait(); err != nil {
		return err
	}

	final := protocol.EncodeFinalPositions(w.grid.FinalPositions())
	if err := w.master.Send(final); err != nil {
		return fmt.Errorf("workerd: send FINAL_POSITIONS: %w", err)
	}
	return nil
}

func (w *Worker) join(ctx context.Context, masterAddr string) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", masterAddr)
	if err != nil {
		return fmt.Errorf("workerd: dial master %s: %w", masterAddr, err)
	}
	if err := netutil.TuneForControlLink(conn); err != nil {
		return fmt.Errorf("workerd: %w", err)
	}
	w.master = protocol.NewChannel(conn, "master")

	if err := w.master.Send(protocol.EncodeJoin()); err != nil {
		return err
	}
	payload, _, err := w.master.Expect(protocol.JoinAck)
	if err != nil {
		return err
	}
	id, numWorkers, err := protocol.DecodeJoinAck(payload)
	if err != nil {
		return fmt.Errorf("workerd: %w", err)
	}
	w.id = id
	w.numWorkers = numWorkers
	w.log = w.log.With("worker_id", id)
	w.log.Info("joined", "num_workers", numWorkers)
	return nil
}

func (w *Worker) bringUpPeers(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", netutil.BaseNeighbourPort+w.id))
	if err != nil {
		return fmt.Errorf("workerd: listen for left neighbor: %w", err)
	}
	tcpLn := ln.(*net.TCPListener)

	type acceptResult struct {
		ch  *protocol.Channel
		err error
	}
	acceptedCh := make(chan acceptResult, 1)
	go func() {
		defer ln.Close()
		conn, err := netutil.AcceptWithDeadlineRetry(tcpLn, ctx.Done())
		if err != nil {
			acceptedCh <- acceptResult{err: fmt.Errorf("workerd: accept left neighbor: %w", err)}
			return
		}
		if err := netutil.TuneForPeerLink(conn); err != nil {
			acceptedCh <- acceptResult{err: fmt.Errorf("workerd: %w", err)}
			return
		}
		ch := protocol.NewChannel(conn, "left-peer")
		if _, _, err := ch.Expect(protocol.NeighbourRequest); err != nil {
			acceptedCh <- acceptResult{err: err}
			return
		}
		if err := ch.Send(protocol.EncodeNeighbourRequestAck()); err != nil {
			acceptedCh <- acceptResult{err: err}
			return
		}
		acceptedCh <- acceptResult{ch: ch}
	}()

	if err := w.master.Send(protocol.EncodeListeningForNeighbour()); err != nil {
		return err
	}
	payload, _, err := w.master.Expect(protocol.RightNeighbourDiscover)
	if err != nil {
		return err
	}
	rightAddr, err := protocol.DecodeRightNeighbourDiscover(payload)
	if err != nil {
		return fmt.Errorf("workerd: %w", err)
	}

	rightConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", rightAddr)
	if err != nil {
		return fmt.Errorf("workerd: dial right neighbor %s: %w", rightAddr, err)
	}
	if err := netutil.TuneForPeerLink(rightConn); err != nil {
		return fmt.Errorf("workerd: %w", err)
	}
	w.right = protocol.NewChannel(rightConn, "right-peer")
	if err := w.right.Send(protocol.EncodeNeighbourRequest()); err != nil {
		return err
	}
	if _, _, err := w.right.Expect(protocol.NeighbourRequestAck); err != nil {
		return err
	}

	res := <-acceptedCh
	if res.err != nil {
		return res.err
	}
	w.left = res.ch

	if err := w.master.Send(protocol.EncodeNeighboursSet()); err != nil {
		return err
	}
	w.log.Info("ring peers connected")
	return nil
}

func (w *Worker) negotiateUniverse() error {
	payload, _, err := w.master.Expect(protocol.SetUniverseParameters)
	if err != nil {
		return err
	}
	params, err := protocol.DecodeSetUniverseParameters(payload)
	if err != nil {
		return fmt.Errorf("workerd: %w", err)
	}
	if err := w.master.Send(protocol.EncodeUniverseParametersSet()); err != nil {
		return err
	}
	w.cfg = params.ToConfig(w.numWorkers, 0)
	return nil
}

func (w *Worker) negotiatePopulation() error {
	payload, _, err := w.master.Expect(protocol.SetRobots)
	if err != nil {
		return err
	}
	agents, err := protocol.DecodeSetRobots(payload)
	if err != nil {
		return fmt.Errorf("workerd: %w", err)
	}
	w.cfg.Population = int32(len(agents))
	if err := w.cfg.Validate(); err != nil {
		return fmt.Errorf("workerd: negotiated configuration invalid: %w", err)
	}
	w.grid = gridmap.New(w.cfg, w.id)
	w.grid.Seed(agents)
	return w.master.Send(protocol.EncodeRobotsSet())
}

// runPeer drives one peer channel's per-tick four-step exchange:
// send-ghost, recv-ghost, send-moves, recv-moves — serialized within
// this goroutine, so there is no interleaving across steps.
func (w *Worker) runPeer(side gridmap.Side, ch *protocol.Channel) error {
	seen := 0
	for {
		seen = w.barrier.AwaitRelease(seen)
		if w.stopped {
			w.barrier.PartyDone()
			return nil
		}

		rows := w.grid.SendGhostStrip(side)
		if err := ch.Send(protocol.EncodeGhostStrip(rows)); err != nil {
			return fmt.Errorf("workerd: %s peer: %w", side, err)
		}
		peerGhostPayload, _, err := ch.Expect(protocol.GhostStrip)
		if err != nil {
			return fmt.Errorf("workerd: %s peer: %w", side, err)
		}
		peerGhosts, err := protocol.DecodeGhostStrip(peerGhostPayload)
		if err != nil {
			return fmt.Errorf("workerd: %s peer: %w", side, err)
		}
		w.grid.ReceiveGhostStrip(side, peerGhosts)

		moved := w.grid.TakeMovedRobots(w.pending, side)
		if err := ch.Send(protocol.EncodeAddRobots(moved)); err != nil {
			return fmt.Errorf("workerd: %s peer: %w", side, err)
		}
		peerMovedPayload, _, err := ch.Expect(protocol.AddRobots)
		if err != nil {
			return fmt.Errorf("workerd: %s peer: %w", side, err)
		}
		peerMoved, err := protocol.DecodeAddRobots(peerMovedPayload)
		if err != nil {
			return fmt.Errorf("workerd: %s peer: %w", side, err)
		}
		w.grid.ReceiveMovedRobots(peerMoved)

		w.barrier.PartyDone()
	}
}

func (w *Worker) runTickLoop(ctx context.Context) error {
	if w.cfg.NumUpdates == 0 {
		return nil
	}
	unlimited := w.cfg.NumUpdates < 0

	// The loop body always runs num_updates+1 times; FRAME_FINISHED is
	// sent only for the first num_updates of them. The final iteration
	// still advances the simulation one more tick before FINAL_POSITIONS
	// is captured, it just never announces itself — see the num_updates
	// open question this reproduces on purpose.
	totalIterations := w.cfg.NumUpdates + 1

	for tick := int32(0); unlimited || tick < totalIterations; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := telemetry.StartTick(ctx, w.tracer, w.id, int64(tick))
		var stats []protocol.BlockStat

		err := t.Phase("move", func(context.Context) error {
			w.grid.ClearGhostStrips()
			w.pending = w.grid.UpdatePositionsAndResetSensors()
			return nil
		})
		if err == nil {
			err = t.Phase("exchange", func(context.Context) error {
				w.barrier.LeaderRelease()
				return nil
			})
		}
		if err == nil {
			err = t.Phase("sense", func(context.Context) error {
				w.grid.UpdateSensors()
				return nil
			})
		}
		if err == nil {
			err = t.Phase("decide", func(context.Context) error {
				w.grid.SetSpeedsAndDirections()
				if w.cfg.VisualizationOn {
					stats = w.grid.FrameStatsMessage()
				}
				return nil
			})
		}
		t.End(err)
		if err != nil {
			return err
		}

		if unlimited || tick < w.cfg.NumUpdates {
			if w.cfg.VisualizationOn {
				err = w.master.Send(protocol.EncodeFrameFinishedWithStats(stats))
			} else {
				err = w.master.Send(protocol.EncodeFrameFinished())
			}
			if err != nil {
				return fmt.Errorf("workerd: send frame-finished: %w", err)
			}
		}
	}
	return nil
}
