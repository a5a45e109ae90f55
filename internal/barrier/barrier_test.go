package barrier

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierTwoPhasesWithThreeParties(t *testing.T) {
	const parties = 3
	const phases = 2
	b := New(parties)

	var order []int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			seen := 0
			for p := 0; p < phases; p++ {
				seen = b.AwaitRelease(seen)
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				b.PartyDone()
			}
		}(int32(i))
	}

	for p := 0; p < phases; p++ {
		b.LeaderRelease()
	}
	wg.Wait()

	if len(order) != parties*phases {
		t.Fatalf("got %d phase entries, want %d", len(order), parties*phases)
	}
}

func TestBarrierLeaderBlocksUntilAllDone(t *testing.T) {
	b := New(2)
	var doneCount int32
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		b.AwaitRelease(0)
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&doneCount, 1)
		b.PartyDone()
	}()
	go func() {
		defer wg.Done()
		b.AwaitRelease(0)
		atomic.AddInt32(&doneCount, 1)
		b.PartyDone()
	}()

	b.LeaderRelease()
	if atomic.LoadInt32(&doneCount) != 2 {
		t.Fatalf("leader returned before both parties were done: doneCount=%d", doneCount)
	}
	wg.Wait()
}
