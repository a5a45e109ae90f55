// Package vizfeed is the seam for the out-of-scope 3D visualization data
// feed: it tracks the running minimum block population seen across
// published frames and hands completed per-tick snapshots to a
// pluggable Sink. No-op by default, so masterd can call Publish
// unconditionally whether or not visualization_on was negotiated.
package vizfeed

import "swarmring/internal/protocol"

// Sink receives one snapshot per published tick.
type Sink interface {
	Publish(stats []protocol.BlockStat, minBlockValue int32)
}

// NoopSink discards every snapshot.
type NoopSink struct{}

// Publish implements Sink.
func (NoopSink) Publish([]protocol.BlockStat, int32) {}

// Feed tracks the running minimum block occupancy across ticks and
// forwards snapshots to Sink.
type Feed struct {
	sink          Sink
	minBlockValue int32
	seeded        bool
}

// New returns a Feed seeded to population (the baseline only narrows
// from there, never widens, matching the source's visualization
// baseline behavior).
func New(sink Sink, population int32) *Feed {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Feed{sink: sink, minBlockValue: population, seeded: true}
}

// Publish narrows the running minimum against this tick's block counts
// and forwards the snapshot to the sink.
func (f *Feed) Publish(stats []protocol.BlockStat) {
	for _, s := range stats {
		if !f.seeded || s.Count < f.minBlockValue {
			f.minBlockValue = s.Count
			f.seeded = true
		}
	}
	f.sink.Publish(stats, f.minBlockValue)
}
