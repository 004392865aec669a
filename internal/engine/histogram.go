package engine

import (
	"github.com/qmjianda/loglayout-sub001/internal/model"
)

// NormalizeDistributions scales each layer's distribution into [0, 1] by
// dividing by that layer's own largest bucket, so every heat map is
// relative to its own peak. All-zero distributions stay zero.
func NormalizeDistributions(stats map[string]model.LayerStats) {
	for id, st := range stats {
		stats[id] = model.LayerStats{Count: st.Count, Distribution: Normalize(st.Distribution)}
	}
}

// Normalize returns a copy of dist divided by its maximum.
func Normalize(dist []float64) []float64 {
	out := make([]float64, len(dist))
	var peak float64
	for _, v := range dist {
		peak = max(peak, v)
	}
	if peak == 0 {
		return out
	}
	for i, v := range dist {
		out[i] = v / peak
	}
	return out
}

// Resample folds a distribution into n buckets, keeping the maximum of
// merged buckets. Used by narrow heat bars.
func Resample(dist []float64, n int) []float64 {
	if n <= 0 || len(dist) == 0 {
		return make([]float64, max(n, 0))
	}
	out := make([]float64, n)
	if n >= len(dist) {
		for i := range out {
			out[i] = dist[i*len(dist)/n]
		}
		return out
	}
	for i, v := range dist {
		b := i * n / len(dist)
		out[b] = max(out[b], v)
	}
	return out
}
