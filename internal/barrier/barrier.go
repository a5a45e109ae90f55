// Package barrier implements the rendezvous primitive used both by
// master (vs. its W worker-connection handlers) and by a worker (vs. its
// two peer threads): a mutex + condition-variable barrier where a single
// leader alternates "release" and "wait for all parties" phases while
// each party alternates "wait for release" and "signal done".
//
// This mirrors spec.md §4.7/§5 literally rather than the teacher's own
// channel/errgroup coordination style, because the spec names the
// locking primitive (mutex + two condvars) as part of the observable
// concurrency contract. One sync.Cond serves both signals: the leader's
// release broadcast and the last party's all-done wakeup.
package barrier

import "sync"

// Barrier coordinates one leader and a fixed number of parties across a
// sequence of phases ("generations"). The zero value is not usable; use
// New.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	remaining  int
	generation int
}

// New creates a Barrier for the given fixed party count.
func New(parties int) *Barrier {
	b := &Barrier{parties: parties, remaining: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// LeaderRelease is master_waits_on_workers()/ the worker main thread's
// "wake both peer threads" call: it advances to the next generation,
// broadcasting release to every party, then blocks until all parties
// have called PartyDone for that generation.
func (b *Barrier) LeaderRelease() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.remaining = b.parties
	b.cond.Broadcast()
	for b.remaining > 0 {
		b.cond.Wait()
	}
}

// AwaitRelease blocks until the generation advances past seen (the last
// generation this party observed; pass 0 before the party has ever been
// released) and returns the new generation.
func (b *Barrier) AwaitRelease(seen int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waitPastLocked(seen)
}

// PartyDone is worker_done(): the caller marks itself done for the current
// generation, waking the leader once the last party does so. It does not
// block — a caller that also needs to wait for the next release calls
// AwaitRelease itself, separately. (PartyDone used to both decrement and
// wait for the next generation, which double-counted the wait against
// AwaitRelease at the top of the caller's loop and deadlocked the leader
// after the first generation.)
func (b *Barrier) PartyDone() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining--
	if b.remaining == 0 {
		b.cond.Broadcast()
	}
}

func (b *Barrier) waitPastLocked(seen int) int {
	for b.generation == seen {
		b.cond.Wait()
	}
	return b.generation
}
