// Package masterd implements the master process: the lobby that accepts
// exactly W JOINs and assigns sequential ids, the barrier-driven setup
// handshake that negotiates universe parameters and splits the initial
// population, and the steady-state tick counting, FPS reporting, and
// final dump once the swarm is running. Grounded on
// internal/daemon/supervisor's connection-handler-per-peer pattern
// generalized from "reconcile on membership change" to "drive a fixed
// setup handshake, then count until done."
package masterd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"swarmring/internal/agent"
	"swarmring/internal/barrier"
	"swarmring/internal/drand48"
	"swarmring/internal/dump"
	"swarmring/internal/netutil"
	"swarmring/internal/protocol"
	"swarmring/internal/report"
	"swarmring/internal/vizfeed"
	"swarmring/internal/worldcfg"
)

// UpdateFrameCountPeriod is how many completed ticks elapse between
// instantaneous-FPS log lines (spec.md §4.7).
const UpdateFrameCountPeriod = 10

// Options configures a master run.
type Options struct {
	ListenAddr string // host:port; port defaults to netutil.ServerPort if absent
	NumWorkers int32
	Params     protocol.UniverseParameters
	Population int32
	Seed       int64
	DumpPath   string
	DebugOn    bool
}

type joinedWorker struct {
	id   int32
	host string
	ch   *protocol.Channel
}

// Master runs one master process's full lifecycle.
type Master struct {
	opts    Options
	log     *slog.Logger
	tracer  trace.Tracer
	barrier *barrier.Barrier

	mu             sync.Mutex
	hostByID       map[int32]string
	frameArrivals  int64
	ticksCompleted int64
	startedAt      time.Time
	lastPeriodAt   time.Time
	debugCounts    map[int32]int64

	finalMu sync.Mutex
	final   []agent.Agent

	vizFeed *vizfeed.Feed
}

// Run executes the master process end to end: accept the lobby, build
// the ring, negotiate setup, run until every worker reports
// FINAL_POSITIONS, then write the dump and print the shutdown summary.
func Run(ctx context.Context, opts Options) error {
	m := &Master{
		opts:        opts,
		log:         slog.Default().With("component", "masterd"),
		tracer:      otel.Tracer("masterd"),
		barrier:     barrier.New(int(opts.NumWorkers)),
		debugCounts: make(map[int32]int64),
		hostByID:    make(map[int32]string),
		vizFeed:     vizfeed.New(vizfeed.NoopSink{}, opts.Population),
	}
	return m.run(ctx)
}

func (m *Master) run(ctx context.Context) error {
	addr := m.opts.ListenAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", netutil.ServerPort)
	} else if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = fmt.Sprintf("%s:%d", addr, netutil.ServerPort)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("masterd: listen on %s: %w", addr, err)
	}
	defer ln.Close()
	tcpLn := ln.(*net.TCPListener)

	workers, err := m.acceptLobby(ctx, tcpLn)
	if err != nil {
		return err
	}
	m.log.Info("lobby complete", "num_workers", len(workers))

	split := m.splitPopulation(workers)

	g, _ := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			if err := m.driveWorker(w, split[w.id]); err != nil {
				m.log.Error("worker handler failed", "worker_id", w.id, "err", err)
				return err
			}
			return nil
		})
	}

	m.barrier.LeaderRelease() // releases SET_UNIVERSE_PARAMETERS, waits for all UNIVERSE_PARAMETERS_SET
	m.barrier.LeaderRelease() // releases SET_ROBOTS, waits for all ROBOTS_SET
	m.barrier.LeaderRelease() // releases START_SIMULATION, waits for all FINAL_POSITIONS

	_ = g.Wait() // per-worker errors are already logged; one worker's failure shouldn't mask the others' dumps

	dumpPath := m.opts.DumpPath
	if dumpPath == "" {
		dumpPath = "robot_positions.txt"
	}
	if err := dump.WriteFinalPositions(dumpPath, m.final); err != nil {
		return err
	}

	fmt.Println(report.Render(m.summary()))
	return nil
}

func (m *Master) acceptLobby(ctx context.Context, ln *net.TCPListener) ([]joinedWorker, error) {
	workers := make([]joinedWorker, 0, m.opts.NumWorkers)
	for next := int32(1); next <= m.opts.NumWorkers; next++ {
		conn, err := netutil.AcceptWithDeadlineRetry(ln, ctx.Done())
		if err != nil {
			return nil, fmt.Errorf("masterd: accept worker %d: %w", next, err)
		}
		if err := netutil.TuneForControlLink(conn); err != nil {
			return nil, fmt.Errorf("masterd: %w", err)
		}
		ch := protocol.NewChannel(conn, fmt.Sprintf("worker-%d", next))
		if _, _, err := ch.Expect(protocol.Join); err != nil {
			return nil, err
		}
		if err := ch.Send(protocol.EncodeJoinAck(next, m.opts.NumWorkers)); err != nil {
			return nil, err
		}
		host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err != nil {
			host = conn.RemoteAddr().String()
		}
		workers = append(workers, joinedWorker{id: next, host: host, ch: ch})
		m.mu.Lock()
		m.hostByID[next] = host
		m.mu.Unlock()
	}
	return workers, nil
}

// splitPopulation generates the initial population with drand48(seed)
// and groups agents by which worker's world-coordinate slice owns
// their initial x.
func (m *Master) splitPopulation(workers []joinedWorker) map[int32][]agent.Agent {
	cfg := m.opts.Params.ToConfig(m.opts.NumWorkers, m.opts.Population)
	rng := drand48.New(m.opts.Seed)

	split := make(map[int32][]agent.Agent, len(workers))
	for _, w := range workers {
		split[w.id] = nil
	}

	for id := int32(1); id <= m.opts.Population; id++ {
		x := int32(rng.Float64() * float64(cfg.WorldSize))
		y := int32(rng.Float64() * float64(cfg.WorldSize))
		heading := agent.NormalizeHeading(int32(rng.Float64() * 2 * float64(worldcfg.PiMilli)))
		owner := cfg.WorkerForX(x)
		split[owner] = append(split[owner], agent.Agent{ID: uint32(id), X: x, Y: y, Heading: heading})
	}
	return split
}

// driveWorker runs one worker-connection handler's full conversation:
// ring bring-up relay, the three barrier-gated setup sends, then the
// steady-state tick-counting loop until FINAL_POSITIONS.
func (m *Master) driveWorker(w joinedWorker, robots []agent.Agent) error {
	defer w.ch.Close()

	if _, _, err := w.ch.Expect(protocol.ListeningForNeighbour); err != nil {
		return err
	}
	rightAddr := m.rightNeighbourAddr(w.id)
	if err := w.ch.Send(protocol.EncodeRightNeighbourDiscover(rightAddr)); err != nil {
		return err
	}

	if _, _, err := w.ch.Expect(protocol.NeighboursSet); err != nil {
		return err
	}
	seen := m.barrier.AwaitRelease(0)

	if err := w.ch.Send(protocol.EncodeSetUniverseParameters(m.opts.Params)); err != nil {
		return err
	}
	if _, _, err := w.ch.Expect(protocol.UniverseParametersSet); err != nil {
		return err
	}
	m.barrier.PartyDone()
	seen = m.barrier.AwaitRelease(seen)

	if err := w.ch.Send(protocol.EncodeSetRobots(robots)); err != nil {
		return err
	}
	if _, _, err := w.ch.Expect(protocol.RobotsSet); err != nil {
		return err
	}
	m.barrier.PartyDone()
	m.barrier.AwaitRelease(seen)

	if err := w.ch.Send(protocol.EncodeStartSimulation()); err != nil {
		return err
	}

	for {
		payload, tag, err := w.ch.Expect(protocol.FrameFinished, protocol.FrameFinishedWithStats, protocol.FinalPositions)
		if err != nil {
			return err
		}
		if tag == protocol.FinalPositions {
			agents, err := protocol.DecodeFinalPositions(payload)
			if err != nil {
				return fmt.Errorf("masterd: %w", err)
			}
			m.finalMu.Lock()
			m.final = append(m.final, agents...)
			m.finalMu.Unlock()
			break
		}

		if tag == protocol.FrameFinishedWithStats {
			stats, err := protocol.DecodeFrameFinishedWithStats(payload)
			if err != nil {
				return fmt.Errorf("masterd: %w", err)
			}
			m.vizFeed.Publish(stats)
		}
		m.recordFrameArrival(w.id)
	}

	m.barrier.PartyDone()
	return nil
}

func (m *Master) rightNeighbourAddr(id int32) string {
	rightID := id%m.opts.NumWorkers + 1
	// Workers dial each other directly on their own LAN; the lobby
	// connection's remote host is reused as that worker's address.
	return fmt.Sprintf("%s:%d", m.hostForID(rightID), netutil.BaseNeighbourPort+rightID)
}

func (m *Master) hostForID(id int32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hostByID[id]
}

func (m *Master) recordFrameArrival(workerID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startedAt.IsZero() {
		m.startedAt = time.Now()
	}
	m.frameArrivals++
	if m.frameArrivals%int64(m.opts.NumWorkers) != 0 {
		return
	}
	m.ticksCompleted++
	m.debugCounts[workerID]++

	if m.ticksCompleted%UpdateFrameCountPeriod == 0 {
		now := time.Now()
		if !m.lastPeriodAt.IsZero() {
			elapsed := now.Sub(m.lastPeriodAt).Seconds()
			if elapsed > 0 {
				fps := float64(UpdateFrameCountPeriod) / elapsed
				m.log.Info("instantaneous fps", "ticks", m.ticksCompleted, "fps", fps)
			}
		}
		m.lastPeriodAt = now
	}
}

func (m *Master) summary() report.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := report.Summary{TicksCompleted: m.ticksCompleted, DebugOn: m.opts.DebugOn}
	if m.ticksCompleted > 0 && !m.startedAt.IsZero() {
		elapsed := time.Since(m.startedAt).Seconds()
		if elapsed > 0 {
			s.AchievedFPS = float64(m.ticksCompleted) / elapsed
		}
	}
	for id, count := range m.debugCounts {
		s.Workers = append(s.Workers, report.WorkerDebugCounters{WorkerID: id, SlowestCount: count})
	}
	return s
}
