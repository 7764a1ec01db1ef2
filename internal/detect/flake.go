// Package detect provides pure, stateless analyses over a Test's recent
// history: flake scoring from status oscillation and duration drift from a
// rolling mean/stddev baseline.
package detect

import "github.com/liminalqa/liminal/internal/entity"

// FlakeDetector scores status oscillation over the trailing window of a
// Test's history. A test that keeps flipping between pass and fail scores
// high; a stable test, however consistently it fails, scores zero.
type FlakeDetector struct {
	windowSize int
	threshold  float64
}

// NewFlakeDetector builds a detector with an explicit window and threshold.
func NewFlakeDetector(windowSize int, threshold float64) FlakeDetector {
	return FlakeDetector{windowSize: windowSize, threshold: threshold}
}

// DefaultFlakeDetector uses a 10-run window and a 0.3 oscillation
// threshold.
func DefaultFlakeDetector() FlakeDetector {
	return NewFlakeDetector(10, 0.3)
}

// Score returns the fraction of adjacent success/failure switches within
// the trailing window. Pass reduces to success, fail and timeout to
// failure; xfail/flake/skip outcomes are dropped as non-determinative.
// Fewer than two relevant outcomes scores zero.
func (d FlakeDetector) Score(history []entity.TestStatus) float64 {
	relevant := make([]bool, 0, len(history))

	for _, s := range history {
		switch s {
		case entity.TestPass:
			relevant = append(relevant, true)
		case entity.TestFail, entity.TestTimeout:
			relevant = append(relevant, false)
		default:
			// xfail, flake, skip carry no success/failure signal.
		}
	}

	if len(relevant) < 2 {
		return 0.0
	}

	window := relevant
	if len(window) > d.windowSize {
		window = window[len(window)-d.windowSize:]
	}

	switches := 0
	prev := window[0]

	for _, status := range window[1:] {
		if status != prev {
			switches++
		}

		prev = status
	}

	return float64(switches) / float64(d.windowSize)
}

// IsFlaky reports whether history's score exceeds the detector's threshold.
func (d FlakeDetector) IsFlaky(history []entity.TestStatus) bool {
	return d.Score(history) > d.threshold
}
