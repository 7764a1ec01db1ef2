// Package council implements the inner council: a per-test in-memory
// aggregator that reconciles Signal observations from heterogeneous
// channels into a Reflection — cross-channel inconsistencies and latency
// spike patterns surfaced before a Test's Signals are ever persisted.
//
// A Council is owned by a single test execution and is not safe for
// concurrent use, mirroring the Fact Store's single-writer assumption for
// in-flight reconciliation state.
package council

import (
	"fmt"
	"sort"

	"github.com/liminalqa/liminal/internal/entity"
)

// uiAPIWindowMs is the tolerance within which a UI signal must have a
// corresponding API signal to be considered reconciled.
const uiAPIWindowMs = 1000

// latencySpikeFactor is how far above a kind's mean latency a single
// sample must rise, with at least two samples present, to be reported as a
// spike.
const latencySpikeFactor = 3

// Council accumulates Signals in insertion order for a single Test.
type Council struct {
	signals []entity.Signal
}

// New returns an empty Council.
func New() *Council {
	return &Council{}
}

// Observe appends a Signal to the Council in arrival order.
func (c *Council) Observe(s entity.Signal) {
	c.signals = append(c.signals, s)
}

// Reflection is the pure value the Council produces by reconciling its
// accumulated Signals.
type Reflection struct {
	ByKind          map[entity.SignalKind]int
	Inconsistencies []string
	Patterns        []string
}

// Reconcile reduces the accumulated Signals to a Reflection. It does not
// mutate or reset the Council; a test execution may call it repeatedly as
// signals continue to arrive.
func (c *Council) Reconcile() Reflection {
	r := Reflection{ByKind: map[entity.SignalKind]int{}}

	byKind := make(map[entity.SignalKind][]entity.Signal)

	for _, s := range c.signals {
		r.ByKind[s.Kind]++
		byKind[s.Kind] = append(byKind[s.Kind], s)
	}

	r.Inconsistencies = reconcileUIAgainstAPI(byKind[entity.SignalUI], byKind[entity.SignalAPI])
	r.Patterns = latencySpikePatterns(byKind)

	return r
}

// reconcileUIAgainstAPI flags each UI signal with no API signal within
// ±uiAPIWindowMs of it.
func reconcileUIAgainstAPI(ui, api []entity.Signal) []string {
	var inconsistencies []string

	for _, u := range ui {
		matched := false

		for _, a := range api {
			if withinWindow(u, a) {
				matched = true

				break
			}
		}

		if !matched {
			inconsistencies = append(inconsistencies,
				fmt.Sprintf("ui signal %s: no matching api signal within %dms", u.ID, uiAPIWindowMs))
		}
	}

	return inconsistencies
}

func withinWindow(a, b entity.Signal) bool {
	diff := a.Timestamp.Sub(b.Timestamp).Milliseconds()
	if diff < 0 {
		diff = -diff
	}

	return diff <= uiAPIWindowMs
}

// latencySpikePatterns reports, per kind with ≥2 latency samples, a spike
// when the maximum exceeds latencySpikeFactor times the mean.
func latencySpikePatterns(byKind map[entity.SignalKind][]entity.Signal) []string {
	var patterns []string

	kinds := make([]entity.SignalKind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		latencies := latenciesOf(byKind[kind])
		if len(latencies) < 2 {
			continue
		}

		mean, max := meanAndMax(latencies)
		if mean > 0 && max > latencySpikeFactor*mean {
			patterns = append(patterns, fmt.Sprintf("latency spike: max=%.2f, avg=%.2f", max, mean))
		}
	}

	return patterns
}

func latenciesOf(signals []entity.Signal) []float64 {
	out := make([]float64, 0, len(signals))

	for _, s := range signals {
		if s.LatencyMs != nil {
			out = append(out, *s.LatencyMs)
		}
	}

	return out
}

func meanAndMax(values []float64) (mean, max float64) {
	var sum float64

	for _, v := range values {
		sum += v

		if v > max {
			max = v
		}
	}

	mean = sum / float64(len(values))

	return mean, max
}
