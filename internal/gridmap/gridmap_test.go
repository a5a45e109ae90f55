package gridmap

import (
	"testing"

	"swarmring/internal/agent"
	"swarmring/internal/worldcfg"
)

func testConfig() worldcfg.Config {
	return worldcfg.Config{
		WorldSize:       100,
		NumBlocks:       10,
		NumWorkers:      2,
		RobotRange:      20,
		FOVMilliradians: 3142,
	}
}

func findByID(agents []agent.Agent, id uint32) (agent.Agent, bool) {
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return agent.Agent{}, false
}

func TestSeedOnlyRetainsOwnedSlice(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 1) // owns x-blocks [0,5) i.e. x in [0,50)

	m.Seed([]agent.Agent{
		{ID: 1, X: 10, Y: 10},
		{ID: 2, X: 60, Y: 10}, // belongs to worker 2
	})

	if n := m.OwnedCount(); n != 1 {
		t.Fatalf("OwnedCount() = %d, want 1", n)
	}
	fp := m.FinalPositions()
	if _, ok := findByID(fp, 1); !ok {
		t.Fatalf("expected agent 1 to be retained")
	}
	if _, ok := findByID(fp, 2); ok {
		t.Fatalf("agent 2 should not have been retained by worker 1's slice")
	}
}

func TestUpdatePositionsRoutesAcrossSliceBoundary(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 1) // owns x in [0,50)

	// heading 0 => moves +x only; speed fixed at 5 per decide(), but Move
	// uses whatever AngularSpeed/LinearSpeed the agent already carries.
	m.Seed([]agent.Agent{{ID: 1, X: 48, Y: 5, Heading: 0, LinearSpeed: 5}})

	out := m.UpdatePositionsAndResetSensors()
	if len(out.Right) != 1 || out.Right[0].ID != 1 {
		t.Fatalf("expected agent 1 staged to the right, got %+v", out)
	}
	if len(out.Left) != 0 {
		t.Fatalf("expected no left handoff, got %+v", out.Left)
	}
	if m.OwnedCount() != 0 {
		t.Fatalf("agent should have left the owned slice, OwnedCount=%d", m.OwnedCount())
	}
}

func TestUpdatePositionsLeftSlice(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 2) // owns x-blocks [5,10) i.e. x in [50,100)

	// heading = pi => moves -x only.
	m.Seed([]agent.Agent{{ID: 1, X: 52, Y: 5, Heading: worldcfg.PiMilli, LinearSpeed: 5}})

	out := m.UpdatePositionsAndResetSensors()
	if len(out.Left) != 1 || out.Left[0].ID != 1 {
		t.Fatalf("expected agent 1 staged to the left, got %+v", out)
	}
}

func TestUpdatePositionsTorusWrapRoutesRightNotLeft(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 2) // owns x-blocks [5,10), the ring's seam worker (hiBlock == NumBlocks)

	// x=98 heading 0 speed 5 wraps to x=3 (block 0) — naively "left" of
	// loBlock=5, but the torus-wrap exception routes it right instead.
	m.Seed([]agent.Agent{{ID: 1, X: 98, Y: 5, Heading: 0, LinearSpeed: 5}})

	out := m.UpdatePositionsAndResetSensors()
	if len(out.Right) != 1 || out.Right[0].ID != 1 {
		t.Fatalf("expected torus-wrapped agent routed right, got %+v", out)
	}
	if len(out.Left) != 0 {
		t.Fatalf("torus-wrapped agent must not go left, got %+v", out.Left)
	}
}

func TestGhostStripRoundTripFeedsSensors(t *testing.T) {
	cfg := testConfig()
	left := New(cfg, 1)  // x in [0,50)
	right := New(cfg, 2) // x in [50,100)

	// An agent of the left worker sitting on its right edge column.
	left.Seed([]agent.Agent{{ID: 1, X: 48, Y: 20, Heading: 0}})
	left.ClearGhostStrips()
	rows := left.SendGhostStrip(Right)

	right.ClearGhostStrips()
	right.ReceiveGhostStrip(Left, rows)

	// A right-worker agent near the seam, facing -x toward it, should
	// sense the left worker's edge agent as a ghost once sensing runs
	// over the halo.
	right.Seed([]agent.Agent{{ID: 2, X: 50, Y: 20, Heading: worldcfg.PiMilli}})
	right.UpdateSensors()

	got, ok := findByID(right.FinalPositions(), 2)
	if !ok {
		t.Fatalf("agent 2 missing after sensing")
	}
	if got.ClosestPixel < 0 {
		t.Fatalf("expected agent 2 to have sensed the ghost across the seam, got ClosestPixel=%d", got.ClosestPixel)
	}
}

func TestSenseTieBreakPrefersLowerPixelAtEqualRange(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 1)

	m.Seed([]agent.Agent{
		{ID: 1, X: 10, Y: 10, Heading: 0}, // observer
		{ID: 2, X: 20, Y: 10},             // dx=10,dy=0  -> range 10, pixel 4
		{ID: 3, X: 16, Y: 2},              // dx=6,dy=-8  -> range 10, pixel 1
	})
	m.UpdateSensors()

	got, ok := findByID(m.FinalPositions(), 1)
	if !ok {
		t.Fatalf("observer agent missing")
	}
	if got.ClosestRange != 10 {
		t.Fatalf("ClosestRange = %d, want 10", got.ClosestRange)
	}
	if got.ClosestPixel != 1 {
		t.Fatalf("ClosestPixel = %d, want 1 (lower pixel must win the tie)", got.ClosestPixel)
	}
}

func TestFrameStatsMessageCountsPerBlock(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 1)
	m.Seed([]agent.Agent{
		{ID: 1, X: 10, Y: 10},
		{ID: 2, X: 11, Y: 11},
		{ID: 3, X: 20, Y: 20},
	})

	stats := m.FrameStatsMessage()
	var total int32
	for _, s := range stats {
		total += s.Count
	}
	if total != 3 {
		t.Fatalf("total counted agents = %d, want 3", total)
	}
}

func TestSetSpeedsAndDirectionsUsesFixedLinearSpeed(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, 1)
	m.Seed([]agent.Agent{{ID: 1, X: 10, Y: 10, ClosestPixel: -1}})
	m.SetSpeedsAndDirections()

	got, _ := findByID(m.FinalPositions(), 1)
	if got.LinearSpeed != 5 {
		t.Fatalf("LinearSpeed = %d, want 5", got.LinearSpeed)
	}
	if got.AngularSpeed != 0 {
		t.Fatalf("AngularSpeed = %d, want 0 for no detection", got.AngularSpeed)
	}
}
