// Package gridmap implements the per-worker spatial partition: an owned
// vertical strip of the world's B×B block grid plus one halo column on
// each side, and the phase operations (clear/move/exchange/sense/decide)
// the per-tick pipeline drives in order. See spec.md §4.5.
package gridmap

import (
	"math"

	"swarmring/internal/agent"
	"swarmring/internal/check"
	"swarmring/internal/protocol"
	"swarmring/internal/worldcfg"
)

// Side identifies a halo/peer direction.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

type cell struct {
	owned  map[uint32]*agent.Agent
	ghosts []agent.Ghost
}

func newCell() cell {
	return cell{owned: make(map[uint32]*agent.Agent)}
}

// Map is one worker's owned slice of the world grid plus its halos. It
// is not safe for concurrent use; the barrier in package workerd ensures
// single-threaded access during each phase, matching spec.md §5.
type Map struct {
	cfg      worldcfg.Config
	workerID int32

	widthBlocks int32 // w = num_blocks / num_workers
	loBlock     int32 // first owned x-block (inclusive)
	hiBlock     int32 // one past the last owned x-block (exclusive)

	// columns[0] and columns[widthBlocks+1] are the halos; columns[1..w]
	// are owned. Each column has NumBlocks rows (full y range).
	columns [][]cell
}

// New builds an empty Map for the given worker.
func New(cfg worldcfg.Config, workerID int32) *Map {
	lo, hi := cfg.SliceBlockRange(workerID)
	w := hi - lo
	m := &Map{cfg: cfg, workerID: workerID, widthBlocks: w, loBlock: lo, hiBlock: hi}
	m.columns = make([][]cell, w+2)
	for c := range m.columns {
		rows := make([]cell, cfg.NumBlocks)
		for r := range rows {
			rows[r] = newCell()
		}
		m.columns[c] = rows
	}
	return m
}

func (m *Map) blockSize() int32 { return m.cfg.BlockSize() }

// localColumn returns the local column index for a world x-block, and
// whether that block is within this worker's owned range.
func (m *Map) localColumn(xBlock int32) (int32, bool) {
	if xBlock < m.loBlock || xBlock >= m.hiBlock {
		return 0, false
	}
	return xBlock - m.loBlock + 1, true
}

// Seed inserts the initial population assigned to this worker (from
// SET_ROBOTS) into owned cells.
func (m *Map) Seed(agents []agent.Agent) {
	for i := range agents {
		a := agents[i]
		c, ok := m.localColumn(a.Block(m.blockSize()))
		if !ok {
			continue // not ours; caller is expected to have already filtered
		}
		row := a.Y / m.blockSize()
		cp := a
		cp.ResetSensor(m.cfg.RobotRange)
		m.columns[c][row].owned[a.ID] = &cp
	}
}

// ClearGhostStrips drops all ghosts in the two halo columns, run once at
// the start of every tick.
func (m *Map) ClearGhostStrips() {
	m.clearColumnGhosts(0)
	m.clearColumnGhosts(m.widthBlocks + 1)
}

func (m *Map) clearColumnGhosts(col int32) {
	for r := range m.columns[col] {
		m.columns[col][r].ghosts = nil
	}
}

// Outbound holds the agents staged for handoff to each ring neighbor
// during UpdatePositionsAndResetSensors.
type Outbound struct {
	Left, Right []agent.Agent
}

// UpdatePositionsAndResetSensors moves every owned agent one tick,
// resets its transient sensor state, and stages any agent whose new
// x-block leaves this worker's slice into the returned Outbound sets —
// applying the torus-wrap routing exception at the ring's seam.
func (m *Map) UpdatePositionsAndResetSensors() Outbound {
	var out Outbound
	B := m.cfg.NumBlocks
	bs := m.blockSize()

	// Agents that change block but stay in the slice are reinserted only
	// after the sweep, so no agent is visited (and moved) twice.
	type relocation struct {
		a        *agent.Agent
		col, row int32
	}
	var local []relocation

	for c := int32(1); c <= m.widthBlocks; c++ {
		for r := range m.columns[c] {
			for id, a := range m.columns[c][r].owned {
				a.Move(m.cfg)
				a.ResetSensor(m.cfg.RobotRange)
				check.Assertf(a.X >= 0 && a.X < m.cfg.WorldSize, "agent %d x=%d out of torus bounds", a.ID, a.X)
				check.Assertf(a.Y >= 0 && a.Y < m.cfg.WorldSize, "agent %d y=%d out of torus bounds", a.ID, a.Y)

				newBlock := a.Block(bs)
				newRow := a.Y / bs

				if newCol, ok := m.localColumn(newBlock); ok {
					if newCol != c || newRow != int32(r) {
						delete(m.columns[c][r].owned, id)
						local = append(local, relocation{a: a, col: newCol, row: newRow})
					}
					continue
				}

				// Left slice exception: wrapped from block B-1 into 0
				// at a worker owning block B-1 routes right, not left.
				goesRight := newBlock >= m.hiBlock
				if newBlock < m.loBlock {
					if newBlock == 0 && m.hiBlock == B {
						goesRight = true
					} else {
						goesRight = false
					}
				} else {
					if newBlock == B-1 && m.loBlock == 0 {
						goesRight = false
					} else {
						goesRight = true
					}
				}

				delete(m.columns[c][r].owned, id)
				if goesRight {
					out.Right = append(out.Right, *a)
				} else {
					out.Left = append(out.Left, *a)
				}
			}
		}
	}
	for _, l := range local {
		m.columns[l.col][l.row].owned[l.a.ID] = l.a
	}
	return out
}

// SendGhostStrip serializes the edge column facing side (local column 1
// for Left, column w for Right) as a GHOST_STRIP payload's rows.
func (m *Map) SendGhostStrip(side Side) []protocol.GhostStripRow {
	col := int32(1)
	worldBlock := m.loBlock
	if side == Right {
		col = m.widthBlocks
		worldBlock = m.hiBlock - 1
	}

	rows := make([]protocol.GhostStripRow, 0, len(m.columns[col]))
	for r, cl := range m.columns[col] {
		ghosts := make([]agent.Ghost, 0, len(cl.owned))
		for _, a := range cl.owned {
			ghosts = append(ghosts, agent.Ghost{X: a.X, Y: a.Y})
		}
		rows = append(rows, protocol.GhostStripRow{XBlock: worldBlock, YBlock: int32(r), Ghosts: ghosts})
	}
	return rows
}

// ReceiveGhostStrip inserts a peer's GHOST_STRIP rows (the peer's edge
// column facing us) into our halo column on the side it arrived from: a
// strip received from the left peer populates our left halo (column 0),
// and vice versa.
func (m *Map) ReceiveGhostStrip(side Side, rows []protocol.GhostStripRow) {
	col := int32(0)
	if side == Right {
		col = m.widthBlocks + 1
	}
	for _, row := range rows {
		if int(row.YBlock) < 0 || int(row.YBlock) >= len(m.columns[col]) {
			continue
		}
		m.columns[col][row.YBlock].ghosts = append(m.columns[col][row.YBlock].ghosts, row.Ghosts...)
	}
}

// TakeMovedRobots returns the LONG-encodable agent list staged for side
// during this tick's move phase, and — as the spec'd optimization —
// also inserts each of them as a ghost into our own halo column on that
// side so the sensor pass already sees them without a further exchange.
func (m *Map) TakeMovedRobots(out Outbound, side Side) []agent.Agent {
	var agents []agent.Agent
	col := int32(0)
	if side == Left {
		agents = out.Left
	} else {
		agents = out.Right
		col = m.widthBlocks + 1
	}
	bs := m.blockSize()
	for _, a := range agents {
		row := a.Y / bs
		m.columns[col][row].ghosts = append(m.columns[col][row].ghosts, agent.GhostFromLong(a))
	}
	return agents
}

// ReceiveMovedRobots inserts agents handed off by a peer into our owned
// cells.
func (m *Map) ReceiveMovedRobots(agents []agent.Agent) {
	bs := m.blockSize()
	for i := range agents {
		a := agents[i]
		col, ok := m.localColumn(a.Block(bs))
		if !ok {
			continue
		}
		row := a.Y / bs
		cp := a
		m.columns[col][row].owned[a.ID] = &cp
	}
}

// UpdateSensors runs the 3x3-neighborhood sensor pass (including halo
// columns and y-wrapped rows) over every owned agent, applying the
// range-then-lower-pixel tie-break from spec.md §4.5/§9.
func (m *Map) UpdateSensors() {
	B := m.cfg.NumBlocks
	ws := m.cfg.WorldSize
	fov := m.cfg.FOVMilliradians
	pixelWidth := fov / worldcfg.NumPixels

	for c := int32(1); c <= m.widthBlocks; c++ {
		for r := range m.columns[c] {
			for _, a := range m.columns[c][r].owned {
				for _, nc := range [3]int32{c - 1, c, c + 1} {
					for _, nr := range [3]int32{wrap(int32(r)-1, B), int32(r), wrap(int32(r)+1, B)} {
						m.senseAgainstCell(a, a.ID, nc, nr, ws, fov, pixelWidth)
					}
				}
			}
		}
	}
}

func wrap(v, n int32) int32 {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func (m *Map) senseAgainstCell(a *agent.Agent, selfID uint32, col, row int32, worldSize, fov, pixelWidth int32) {
	cl := m.columns[col][row]
	for otherID, other := range cl.owned {
		if otherID == selfID {
			continue
		}
		m.senseCandidate(a, other.X, other.Y, worldSize, fov, pixelWidth)
	}
	for _, g := range cl.ghosts {
		m.senseCandidate(a, g.X, g.Y, worldSize, fov, pixelWidth)
	}
}

func (m *Map) senseCandidate(a *agent.Agent, cx, cy, worldSize, fov, pixelWidth int32) {
	dx := agent.ToroidalDelta(a.X, cx, worldSize)
	dy := agent.ToroidalDelta(a.Y, cy, worldSize)
	if abs32(dx) > a.ClosestRange || abs32(dy) > a.ClosestRange {
		return
	}
	rng := int32(agent.Range(dx, dy))
	if rng > a.ClosestRange {
		return
	}

	bearing := int32(math.Atan2(float64(dy), float64(dx)) * 1000)
	relative := agent.NormalizeHeading(bearing - a.Heading)
	if abs32(relative) > fov/2 {
		return
	}
	pixel := wrap((relative+fov/2)/pixelWidth, worldcfg.NumPixels)

	if rng < a.ClosestRange {
		a.ClosestRange = rng
		a.ClosestPixel = pixel
	} else if rng == a.ClosestRange && pixel < a.ClosestPixel {
		a.ClosestPixel = pixel
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// SetSpeedsAndDirections implements spec.md's decide phase.
func (m *Map) SetSpeedsAndDirections() {
	invert := m.cfg.InvertDirection
	for c := int32(1); c <= m.widthBlocks; c++ {
		for r := range m.columns[c] {
			for _, a := range m.columns[c][r].owned {
				a.LinearSpeed = 5
				switch {
				case a.ClosestPixel < 0:
					a.AngularSpeed = 0
				case a.ClosestPixel < worldcfg.NumPixels/2:
					a.AngularSpeed = 40
				default:
					a.AngularSpeed = -40
				}
				if invert {
					a.AngularSpeed = -a.AngularSpeed
				}
			}
		}
	}
}

// FrameStatsMessage returns one (x,y,count) triple per owned block.
func (m *Map) FrameStatsMessage() []protocol.BlockStat {
	stats := make([]protocol.BlockStat, 0, m.widthBlocks*m.cfg.NumBlocks)
	for c := int32(1); c <= m.widthBlocks; c++ {
		worldBlock := m.loBlock + (c - 1)
		for r, cl := range m.columns[c] {
			stats = append(stats, protocol.BlockStat{XBlock: worldBlock, YBlock: int32(r), Count: int32(len(cl.owned))})
		}
	}
	return stats
}

// FinalPositions returns every owned agent for the FINAL_POSITIONS dump.
func (m *Map) FinalPositions() []agent.Agent {
	var out []agent.Agent
	for c := int32(1); c <= m.widthBlocks; c++ {
		for _, cl := range m.columns[c] {
			for _, a := range cl.owned {
				out = append(out, *a)
			}
		}
	}
	return out
}

// OwnedCount returns the number of agents currently owned by this
// worker.
func (m *Map) OwnedCount() int {
	n := 0
	for c := int32(1); c <= m.widthBlocks; c++ {
		for _, cl := range m.columns[c] {
			n += len(cl.owned)
		}
	}
	return n
}
