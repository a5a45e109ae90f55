package drand48

import "testing"

func TestSameSeedReproducesSequence(t *testing.T) {
	a := New(0)
	b := New(0)
	for i := 0; i < 10; i++ {
		av, bv := a.Float64(), b.Float64()
		if av != bv {
			t.Fatalf("draw %d diverged: %v != %v", i, av, bv)
		}
	}
}

func TestValuesStayInUnitInterval(t *testing.T) {
	s := New(42)
	for i := 0; i < 1000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("draw %d out of range: %v", i, v)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(0)
	b := New(1)
	if a.Float64() == b.Float64() {
		t.Fatalf("expected different seeds to diverge on the first draw")
	}
}
