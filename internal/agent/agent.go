// Package agent implements the simulated robot: its position/heading
// state, the three wire encodings the protocol exchanges, and the
// toroidal-world math shared by the sensing and movement phases.
package agent

import (
	"encoding/binary"
	"fmt"
	"math"

	"swarmring/internal/worldcfg"
)

const (
	// NormalSize is the wire size in bytes of the NORMAL encoding.
	NormalSize = 16
	// LongSize is the wire size in bytes of the LONG encoding.
	LongSize = 24
	// GhostSize is the wire size in bytes of the GHOST encoding.
	GhostSize = 8
)

// Agent is a single simulated robot. ClosestRange/ClosestPixel are
// transient sensor state, reset every tick and never serialized on the
// wire except implicitly (they drive decide()'s output speeds).
type Agent struct {
	ID           uint32
	X, Y         int32
	Heading      int32 // milliradians, normalized to (-piMilli, piMilli]
	LinearSpeed  int32
	AngularSpeed int32

	ClosestRange int32
	ClosestPixel int32 // -1 means "nothing sensed"
}

// Ghost is a read-only copy of a neighbor's edge-column agent used only
// during sensing; it carries no identity and is dropped every tick.
type Ghost struct {
	X, Y int32
}

// NormalizeCoordinate wraps c into [0, worldSize) — the torus invariant.
func NormalizeCoordinate(c, worldSize int32) int32 {
	c %= worldSize
	if c < 0 {
		c += worldSize
	}
	return c
}

// NormalizeHeading wraps h into (-piMilli, piMilli].
func NormalizeHeading(h int32) int32 {
	const period = 2 * worldcfg.PiMilli
	h = ((h+worldcfg.PiMilli)%period + period) % period
	h -= worldcfg.PiMilli
	if h <= -worldcfg.PiMilli {
		h += period
	}
	return h
}

// ToroidalDelta returns the signed displacement from a to b along one
// axis of a world of the given size, choosing the shorter way around
// the torus.
func ToroidalDelta(a, b, worldSize int32) int32 {
	d := b - a
	half := worldSize / 2
	if d > half {
		d -= worldSize
	} else if d < -half {
		d += worldSize
	}
	return d
}

// Range returns the toroidal Euclidean distance between two points.
func Range(dx, dy int32) float64 {
	return math.Hypot(float64(dx), float64(dy))
}

// ResetSensor clears the transient sensor state to "nothing in range yet".
func (a *Agent) ResetSensor(robotRange int32) {
	a.ClosestRange = robotRange
	a.ClosestPixel = -1
}

// Move applies one tick of motion using the fixed-point trig contract
// (heading/1000 radians) and normalizes the result. It does not touch
// sensor state.
func (a *Agent) Move(cfg worldcfg.Config) {
	rad := float64(a.Heading) / 1000.0
	dx := int32(math.Round(float64(a.LinearSpeed) * math.Cos(rad)))
	dy := int32(math.Round(float64(a.LinearSpeed) * math.Sin(rad)))
	a.X = NormalizeCoordinate(a.X+dx, cfg.WorldSize)
	a.Y = NormalizeCoordinate(a.Y+dy, cfg.WorldSize)
	a.Heading = NormalizeHeading(a.Heading + a.AngularSpeed)
}

// Block returns the owning block index along the x axis.
func (a *Agent) Block(blockSize int32) int32 {
	return a.X / blockSize
}

// --- wire encodings ---

// EncodeNormal writes the NORMAL (id,x,y,heading) encoding.
func EncodeNormal(a Agent, buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], a.ID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(a.X))
	binary.BigEndian.PutUint32(buf[8:12], uint32(a.Y))
	binary.BigEndian.PutUint32(buf[12:16], uint32(a.Heading))
}

// DecodeNormal parses the NORMAL encoding.
func DecodeNormal(buf []byte) (Agent, error) {
	if len(buf) < NormalSize {
		return Agent{}, fmt.Errorf("decode NORMAL: need %d bytes, got %d", NormalSize, len(buf))
	}
	return Agent{
		ID:      binary.BigEndian.Uint32(buf[0:4]),
		X:       int32(binary.BigEndian.Uint32(buf[4:8])),
		Y:       int32(binary.BigEndian.Uint32(buf[8:12])),
		Heading: int32(binary.BigEndian.Uint32(buf[12:16])),
	}, nil
}

// EncodeLong writes the LONG (NORMAL + speeds) encoding.
func EncodeLong(a Agent, buf []byte) {
	EncodeNormal(a, buf[0:16])
	binary.BigEndian.PutUint32(buf[16:20], uint32(a.LinearSpeed))
	binary.BigEndian.PutUint32(buf[20:24], uint32(a.AngularSpeed))
}

// DecodeLong parses the LONG encoding.
func DecodeLong(buf []byte) (Agent, error) {
	if len(buf) < LongSize {
		return Agent{}, fmt.Errorf("decode LONG: need %d bytes, got %d", LongSize, len(buf))
	}
	a, err := DecodeNormal(buf[0:16])
	if err != nil {
		return Agent{}, err
	}
	a.LinearSpeed = int32(binary.BigEndian.Uint32(buf[16:20]))
	a.AngularSpeed = int32(binary.BigEndian.Uint32(buf[20:24]))
	return a, nil
}

// EncodeGhost writes the GHOST (x,y) encoding.
func EncodeGhost(g Ghost, buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(g.X))
	binary.BigEndian.PutUint32(buf[4:8], uint32(g.Y))
}

// DecodeGhost parses the GHOST encoding.
func DecodeGhost(buf []byte) (Ghost, error) {
	if len(buf) < GhostSize {
		return Ghost{}, fmt.Errorf("decode GHOST: need %d bytes, got %d", GhostSize, len(buf))
	}
	return Ghost{
		X: int32(binary.BigEndian.Uint32(buf[0:4])),
		Y: int32(binary.BigEndian.Uint32(buf[4:8])),
	}, nil
}

// GhostFromLong produces the ghost view of an agent being handed off,
// used by the owning worker to pre-populate its own halo column with a
// moved agent's new position ahead of the next ghost-strip exchange.
func GhostFromLong(a Agent) Ghost {
	return Ghost{X: a.X, Y: a.Y}
}
