package detect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liminalqa/liminal/internal/detect"
	"github.com/liminalqa/liminal/internal/entity"
)

func TestFlakeDetector_Score(t *testing.T) {
	d := detect.NewFlakeDetector(10, 0.3)

	stablePass := repeat(entity.TestPass, 10)
	require.InDelta(t, 0.0, d.Score(stablePass), 0.0001)
	require.False(t, d.IsFlaky(stablePass))

	stableFail := repeat(entity.TestFail, 10)
	require.InDelta(t, 0.0, d.Score(stableFail), 0.0001)
	require.False(t, d.IsFlaky(stableFail))

	// P F P F P F P F P F: 9 switches / window 10 = 0.9
	oscillating := make([]entity.TestStatus, 10)
	for i := range oscillating {
		if i%2 == 0 {
			oscillating[i] = entity.TestPass
		} else {
			oscillating[i] = entity.TestFail
		}
	}

	require.InDelta(t, 0.9, d.Score(oscillating), 0.0001)
	require.True(t, d.IsFlaky(oscillating))

	// P P P F F F P P P P: 2 switches / window 10 = 0.2 < 0.3
	fewSwitches := []entity.TestStatus{
		entity.TestPass, entity.TestPass, entity.TestPass,
		entity.TestFail, entity.TestFail, entity.TestFail,
		entity.TestPass, entity.TestPass, entity.TestPass, entity.TestPass,
	}

	require.InDelta(t, 0.2, d.Score(fewSwitches), 0.0001)
	require.False(t, d.IsFlaky(fewSwitches))
}

func TestFlakeDetector_IgnoresNonDeterminativeStatuses(t *testing.T) {
	d := detect.DefaultFlakeDetector()

	history := []entity.TestStatus{entity.TestSkip, entity.TestXFail}
	require.InDelta(t, 0.0, d.Score(history), 0.0001)
}

func TestFlakeDetector_WindowTrimsToTrailingEntries(t *testing.T) {
	d := detect.NewFlakeDetector(4, 0.3)

	// 12 alternating entries; only the trailing 4 matter: P F P F -> 3 switches / 4 = 0.75
	history := make([]entity.TestStatus, 12)
	for i := range history {
		if i%2 == 0 {
			history[i] = entity.TestPass
		} else {
			history[i] = entity.TestFail
		}
	}

	require.InDelta(t, 0.75, d.Score(history), 0.0001)
}

func repeat(s entity.TestStatus, n int) []entity.TestStatus {
	out := make([]entity.TestStatus, n)
	for i := range out {
		out[i] = s
	}

	return out
}
