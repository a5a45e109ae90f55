package protocol

import (
	"encoding/binary"
	"fmt"

	"swarmring/internal/agent"
	"swarmring/internal/worldcfg"
)

// BlockStat is one (x,y,count) triple of the visualization feed.
type BlockStat struct {
	XBlock, YBlock int32
	Count          int32
}

// GhostStripRow is one row of a GHOST_STRIP payload: the ghosts present
// in a single (x_block, y_block) cell of the sender's edge column.
type GhostStripRow struct {
	XBlock, YBlock int32
	Ghosts         []agent.Ghost
}

// UniverseParameters is the SET_UNIVERSE_PARAMETERS payload. NumWorkers
// (learned at JOIN_ACK) and Population (implicit in SET_ROBOTS's count)
// are deliberately not part of it.
type UniverseParameters struct {
	WorldSize       int32
	RobotRange      int32
	NumUpdates      int32
	NumBlocks       int32
	VisualizationOn bool
	FOVMilliradians int32
	InvertDirection bool
}

// ToConfig merges the negotiated universe parameters with the locally
// known worker count and population into a full worldcfg.Config.
func (p UniverseParameters) ToConfig(numWorkers, population int32) worldcfg.Config {
	return worldcfg.Config{
		WorldSize:       p.WorldSize,
		NumBlocks:       p.NumBlocks,
		NumWorkers:      numWorkers,
		RobotRange:      p.RobotRange,
		FOVMilliradians: p.FOVMilliradians,
		InvertDirection: p.InvertDirection,
		NumUpdates:      p.NumUpdates,
		VisualizationOn: p.VisualizationOn,
		Population:      population,
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func uint32ToBool(v uint32) bool { return v != 0 }

func putU32(buf []byte, off int, v int32) {
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(v))
}

func getU32(buf []byte, off int) int32 {
	return int32(binary.BigEndian.Uint32(buf[off : off+4]))
}

// --- empty-payload messages ---

func encodeTagOnly(t Tag) []byte { return []byte{byte(t)} }

func EncodeJoin() []byte                   { return encodeTagOnly(Join) }
func EncodeListeningForNeighbour() []byte  { return encodeTagOnly(ListeningForNeighbour) }
func EncodeNeighboursSet() []byte          { return encodeTagOnly(NeighboursSet) }
func EncodeNeighbourRequest() []byte       { return encodeTagOnly(NeighbourRequest) }
func EncodeNeighbourRequestAck() []byte    { return encodeTagOnly(NeighbourRequestAck) }
func EncodeUniverseParametersSet() []byte  { return encodeTagOnly(UniverseParametersSet) }
func EncodeRobotsSet() []byte              { return encodeTagOnly(RobotsSet) }
func EncodeStartSimulation() []byte        { return encodeTagOnly(StartSimulation) }
func EncodeFrameFinished() []byte          { return encodeTagOnly(FrameFinished) }

// --- JOIN_ACK ---

func EncodeJoinAck(id, numWorkers int32) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(JoinAck)
	putU32(buf, 1, id)
	putU32(buf, 5, numWorkers)
	return buf
}

func DecodeJoinAck(payload []byte) (id, numWorkers int32, err error) {
	if len(payload) < 9 {
		return 0, 0, fmt.Errorf("decode JOIN_ACK: short payload (%d bytes)", len(payload))
	}
	return getU32(payload, 1), getU32(payload, 5), nil
}

// --- RIGHT_NEIGHBOUR_DISCOVER ---

func EncodeRightNeighbourDiscover(addr string) []byte {
	if len(addr) > IPAddressLength {
		addr = addr[:IPAddressLength]
	}
	buf := make([]byte, 1+4+IPAddressLength)
	buf[0] = byte(RightNeighbourDiscover)
	putU32(buf, 1, IPAddressLength)
	copy(buf[5:], addr)
	return buf
}

func DecodeRightNeighbourDiscover(payload []byte) (string, error) {
	if len(payload) < 5+IPAddressLength {
		return "", fmt.Errorf("decode RIGHT_NEIGHBOUR_DISCOVER: short payload (%d bytes)", len(payload))
	}
	raw := payload[5 : 5+IPAddressLength]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n]), nil
}

// --- SET_UNIVERSE_PARAMETERS ---

func EncodeSetUniverseParameters(p UniverseParameters) []byte {
	buf := make([]byte, 1+7*4)
	buf[0] = byte(SetUniverseParameters)
	putU32(buf, 1, p.WorldSize)
	putU32(buf, 5, p.RobotRange)
	putU32(buf, 9, p.NumUpdates)
	putU32(buf, 13, p.NumBlocks)
	binary.BigEndian.PutUint32(buf[17:21], boolToUint32(p.VisualizationOn))
	putU32(buf, 21, p.FOVMilliradians)
	binary.BigEndian.PutUint32(buf[25:29], boolToUint32(p.InvertDirection))
	return buf
}

func DecodeSetUniverseParameters(payload []byte) (UniverseParameters, error) {
	if len(payload) < 1+7*4 {
		return UniverseParameters{}, fmt.Errorf("decode SET_UNIVERSE_PARAMETERS: short payload (%d bytes)", len(payload))
	}
	return UniverseParameters{
		WorldSize:       getU32(payload, 1),
		RobotRange:      getU32(payload, 5),
		NumUpdates:      getU32(payload, 9),
		NumBlocks:       getU32(payload, 13),
		VisualizationOn: uint32ToBool(binary.BigEndian.Uint32(payload[17:21])),
		FOVMilliradians: getU32(payload, 21),
		InvertDirection: uint32ToBool(binary.BigEndian.Uint32(payload[25:29])),
	}, nil
}

// --- SET_ROBOTS / ADD_ROBOTS (n x LONG) ---

func encodeAgentsLong(t Tag, agents []agent.Agent) []byte {
	buf := make([]byte, 1+4+len(agents)*agent.LongSize)
	buf[0] = byte(t)
	putU32(buf, 1, int32(len(agents)))
	off := 5
	for _, a := range agents {
		agent.EncodeLong(a, buf[off:off+agent.LongSize])
		off += agent.LongSize
	}
	return buf
}

func decodeAgentsLong(payload []byte) ([]agent.Agent, error) {
	if len(payload) < 5 {
		return nil, fmt.Errorf("decode agent list: short payload (%d bytes)", len(payload))
	}
	n := int(getU32(payload, 1))
	want := 5 + n*agent.LongSize
	if len(payload) < want {
		return nil, fmt.Errorf("decode agent list: expected %d bytes for %d agents, got %d", want, n, len(payload))
	}
	out := make([]agent.Agent, n)
	off := 5
	for i := 0; i < n; i++ {
		a, err := agent.DecodeLong(payload[off : off+agent.LongSize])
		if err != nil {
			return nil, err
		}
		out[i] = a
		off += agent.LongSize
	}
	return out, nil
}

func EncodeSetRobots(agents []agent.Agent) []byte { return encodeAgentsLong(SetRobots, agents) }
func DecodeSetRobots(payload []byte) ([]agent.Agent, error) { return decodeAgentsLong(payload) }

func EncodeAddRobots(agents []agent.Agent) []byte { return encodeAgentsLong(AddRobots, agents) }
func DecodeAddRobots(payload []byte) ([]agent.Agent, error) { return decodeAgentsLong(payload) }

// --- GHOST_STRIP ---

func EncodeGhostStrip(rows []GhostStripRow) []byte {
	size := 1
	for _, row := range rows {
		size += 12 + len(row.Ghosts)*agent.GhostSize
	}
	buf := make([]byte, size)
	buf[0] = byte(GhostStrip)
	off := 1
	for _, row := range rows {
		putU32(buf, off, row.XBlock)
		putU32(buf, off+4, row.YBlock)
		putU32(buf, off+8, int32(len(row.Ghosts)))
		off += 12
		for _, g := range row.Ghosts {
			agent.EncodeGhost(g, buf[off:off+agent.GhostSize])
			off += agent.GhostSize
		}
	}
	return buf
}

func DecodeGhostStrip(payload []byte) ([]GhostStripRow, error) {
	var rows []GhostStripRow
	off := 1
	for off < len(payload) {
		if off+12 > len(payload) {
			return nil, fmt.Errorf("decode GHOST_STRIP: truncated row header at offset %d", off)
		}
		row := GhostStripRow{XBlock: getU32(payload, off), YBlock: getU32(payload, off+4)}
		k := int(getU32(payload, off+8))
		off += 12
		need := k * agent.GhostSize
		if off+need > len(payload) {
			return nil, fmt.Errorf("decode GHOST_STRIP: truncated ghosts at offset %d", off)
		}
		row.Ghosts = make([]agent.Ghost, k)
		for i := 0; i < k; i++ {
			g, err := agent.DecodeGhost(payload[off : off+agent.GhostSize])
			if err != nil {
				return nil, err
			}
			row.Ghosts[i] = g
			off += agent.GhostSize
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// --- FRAME_FINISHED_WITH_STATS ---

func EncodeFrameFinishedWithStats(stats []BlockStat) []byte {
	buf := make([]byte, 1+4+len(stats)*12)
	buf[0] = byte(FrameFinishedWithStats)
	putU32(buf, 1, int32(len(stats)))
	off := 5
	for _, s := range stats {
		putU32(buf, off, s.XBlock)
		putU32(buf, off+4, s.YBlock)
		putU32(buf, off+8, s.Count)
		off += 12
	}
	return buf
}

func DecodeFrameFinishedWithStats(payload []byte) ([]BlockStat, error) {
	if len(payload) < 5 {
		return nil, fmt.Errorf("decode FRAME_FINISHED_WITH_STATS: short payload (%d bytes)", len(payload))
	}
	n := int(getU32(payload, 1))
	want := 5 + n*12
	if len(payload) < want {
		return nil, fmt.Errorf("decode FRAME_FINISHED_WITH_STATS: expected %d bytes for %d blocks, got %d", want, n, len(payload))
	}
	out := make([]BlockStat, n)
	off := 5
	for i := 0; i < n; i++ {
		out[i] = BlockStat{XBlock: getU32(payload, off), YBlock: getU32(payload, off+4), Count: getU32(payload, off+8)}
		off += 12
	}
	return out, nil
}

// --- FINAL_POSITIONS (n x NORMAL) ---

func EncodeFinalPositions(agents []agent.Agent) []byte {
	buf := make([]byte, 1+4+len(agents)*agent.NormalSize)
	buf[0] = byte(FinalPositions)
	putU32(buf, 1, int32(len(agents)))
	off := 5
	for _, a := range agents {
		agent.EncodeNormal(a, buf[off:off+agent.NormalSize])
		off += agent.NormalSize
	}
	return buf
}

func DecodeFinalPositions(payload []byte) ([]agent.Agent, error) {
	if len(payload) < 5 {
		return nil, fmt.Errorf("decode FINAL_POSITIONS: short payload (%d bytes)", len(payload))
	}
	n := int(getU32(payload, 1))
	want := 5 + n*agent.NormalSize
	if len(payload) < want {
		return nil, fmt.Errorf("decode FINAL_POSITIONS: expected %d bytes for %d agents, got %d", want, n, len(payload))
	}
	out := make([]agent.Agent, n)
	off := 5
	for i := 0; i < n; i++ {
		a, err := agent.DecodeNormal(payload[off : off+agent.NormalSize])
		if err != nil {
			return nil, err
		}
		out[i] = a
		off += agent.NormalSize
	}
	return out, nil
}

// PayloadTag returns the type tag of an already-received frame payload.
func PayloadTag(payload []byte) (Tag, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("empty payload")
	}
	return Tag(payload[0]), nil
}
