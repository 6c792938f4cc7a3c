package chart

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary is a one-line caption describing a series
type Summary struct {
	Mean     float64 `json:"mean"`
	Max      float64 `json:"max"`
	TopLabel string  `json:"top_label"`
}

// Summarize computes caption statistics over the open points of a series
func Summarize(s Series) (Summary, error) {
	values := s.Values()

	mean, err := stats.Mean(values)
	if err != nil {
		return Summary{}, err
	}
	max, err := stats.Max(values)
	if err != nil {
		return Summary{}, err
	}
	mean, err = stats.Round(mean, 2)
	if err != nil {
		return Summary{}, err
	}

	top := ""
	for _, p := range s.OpenPoints() {
		if p.Value == max {
			top = p.Label
			break
		}
	}

	return Summary{
		Mean:     mean,
		Max:      max,
		TopLabel: top,
	}, nil
}

// Caption renders the summary for display under a chart
func (sm Summary) Caption(kind Kind) string {
	if kind == KindBar {
		return fmt.Sprintf("Highest: %s (%.1f%%), mean %.1f%%", sm.TopLabel, sm.Max, sm.Mean)
	}
	return fmt.Sprintf("Highest: %s (%.1f/10), mean %.1f", sm.TopLabel, sm.Max, sm.Mean)
}
