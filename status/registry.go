package status

import "sync/atomic"

// Registry is the central metrics facade. Only the two map kinds cotask's
// stat surface actually populates survive here — Ints for the allocated/
// in-use/peak-scratch/context-switch counters, Strings for the per-task
// debug-label/status/wait-state listing.
type Registry struct {
	Ints    *MetricMap[atomic.Int64]
	Strings *MetricMap[AtomicString]
}

// NewRegistry creates an initialized Registry
func NewRegistry() *Registry {
	return &Registry{
		Ints:    NewMetricMap[atomic.Int64](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// TotalCount returns total metrics across all types
func (r *Registry) TotalCount() int {
	return r.Ints.Count() + r.Strings.Count()
}