package agent

import (
	"testing"

	"swarmring/internal/worldcfg"
)

func TestNormalizeCoordinateWrapsIntoRange(t *testing.T) {
	cases := []struct{ in, worldSize, want int32 }{
		{5, 100, 5},
		{100, 100, 0},
		{-1, 100, 99},
		{-150, 100, 50},
		{250, 100, 50},
	}
	for _, c := range cases {
		if got := NormalizeCoordinate(c.in, c.worldSize); got != c.want {
			t.Errorf("NormalizeCoordinate(%d, %d) = %d, want %d", c.in, c.worldSize, got, c.want)
		}
	}
}

func TestNormalizeHeadingStaysWithinHalfOpenPiRange(t *testing.T) {
	for h := int32(-20000); h <= 20000; h += 137 {
		got := NormalizeHeading(h)
		if got <= -worldcfg.PiMilli || got > worldcfg.PiMilli {
			t.Fatalf("NormalizeHeading(%d) = %d out of (-pi, pi]", h, got)
		}
	}
}

func TestToroidalDeltaChoosesTheShorterWay(t *testing.T) {
	if d := ToroidalDelta(5, 95, 100); d != -10 {
		t.Fatalf("ToroidalDelta(5, 95, 100) = %d, want -10 (wrap the short way)", d)
	}
	if d := ToroidalDelta(95, 5, 100); d != 10 {
		t.Fatalf("ToroidalDelta(95, 5, 100) = %d, want 10", d)
	}
	if d := ToroidalDelta(10, 20, 100); d != 10 {
		t.Fatalf("ToroidalDelta(10, 20, 100) = %d, want 10 (no wrap needed)", d)
	}
}

func TestResetSensorClearsToNothingSensed(t *testing.T) {
	a := Agent{ClosestRange: 3, ClosestPixel: 2}
	a.ResetSensor(50)
	if a.ClosestRange != 50 || a.ClosestPixel != -1 {
		t.Fatalf("ResetSensor(50) = {%d, %d}, want {50, -1}", a.ClosestRange, a.ClosestPixel)
	}
}

func TestMoveAppliesFixedPointTrigAndWraps(t *testing.T) {
	cfg := worldcfg.Config{WorldSize: 100}
	a := Agent{X: 98, Y: 50, Heading: 0, LinearSpeed: 5}
	a.Move(cfg)
	if a.X != 3 { // 98 + round(5*cos(0)) = 103, wraps to 3
		t.Fatalf("Move: X = %d, want 3 (wrapped)", a.X)
	}
	if a.Y != 50 {
		t.Fatalf("Move: Y = %d, want 50 (no y component at heading 0)", a.Y)
	}
}

func TestEncodeDecodeNormalRoundTrips(t *testing.T) {
	a := Agent{ID: 7, X: 12, Y: 34, Heading: -500}
	buf := make([]byte, NormalSize)
	EncodeNormal(a, buf)
	got, err := DecodeNormal(buf)
	if err != nil {
		t.Fatalf("DecodeNormal: %v", err)
	}
	if got != a {
		t.Fatalf("round trip = %+v, want %+v", got, a)
	}
}

func TestEncodeDecodeLongRoundTrips(t *testing.T) {
	a := Agent{ID: 9, X: 1, Y: 2, Heading: 3, LinearSpeed: 5, AngularSpeed: -40}
	buf := make([]byte, LongSize)
	EncodeLong(a, buf)
	got, err := DecodeLong(buf)
	if err != nil {
		t.Fatalf("DecodeLong: %v", err)
	}
	if got != a {
		t.Fatalf("round trip = %+v, want %+v", got, a)
	}
}

func TestDecodeGhostRejectsShortBuffers(t *testing.T) {
	if _, err := DecodeGhost([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error decoding a truncated GHOST payload")
	}
}

func TestBlockUsesIntegerDivision(t *testing.T) {
	a := Agent{X: 55}
	if got := a.Block(10); got != 5 {
		t.Fatalf("Block(10) = %d, want 5", got)
	}
}
