package tem

import (
	"fmt"

	"benritz/duals/internal/types"
)

// AverageOverWindow returns the unweighted mean rate of the observations dated
// within the window, inclusive. Order is irrelevant and duplicate dates are
// each counted; no interpolation or forward-fill is done.
func AverageOverWindow(series []types.RateObservation, window types.AveragingWindow) (float64, error) {
	if err := window.Validate(); err != nil {
		return 0, err
	}

	sum := 0.0
	n := 0
	for _, o := range series {
		if window.Contains(o.Date) {
			sum += o.Rate
			n++
		}
	}

	if n == 0 {
		return 0, fmt.Errorf("%w: %s to %s", types.ErrInsufficientData, window.Start, window.End)
	}

	return sum / float64(n), nil
}

// inWindow returns the observations inside the window sorted by date.
func inWindow(series []types.RateObservation, window types.AveragingWindow) []types.RateObservation {
	out := make([]types.RateObservation, 0, len(series))
	for _, o := range series {
		if window.Contains(o.Date) {
			out = append(out, o)
		}
	}
	sortByDate(out)
	return out
}
