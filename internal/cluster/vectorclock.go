package cluster

// VectorClock (masterless replication only) maps node-id -> the last
// wall-clock timestamp (Unix seconds, fractional) that node applied to a
// given key. Unlike a causal vector clock, this one is only ever compared
// by its maximum entry — it drives last-write-wins, not happens-before.
type VectorClock map[string]float64

// Max returns the largest timestamp in the clock, or 0 for an empty clock.
func (vc VectorClock) Max() float64 {
	var max float64
	for _, ts := range vc {
		if ts > max {
			max = ts
		}
	}
	return max
}

// Merge returns a new clock holding, for every node-id appearing in either
// clock, the larger of the two timestamps. It does not decide a winner —
// callers compare Max() before merging.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := make(VectorClock, len(vc)+len(other))
	for node, ts := range vc {
		merged[node] = ts
	}
	for node, ts := range other {
		if ts > merged[node] {
			merged[node] = ts
		}
	}
	return merged
}

// Copy returns a shallow copy — safe since values are plain float64s.
func (vc VectorClock) Copy() VectorClock {
	c := make(VectorClock, len(vc))
	for node, ts := range vc {
		c[node] = ts
	}
	return c
}
