package gof

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StatSummary compares one observed statistic with its simulated
// distribution. The interval is mean ± 2·std (population std). Runs whose
// value is NaN are counted in NaNRuns and left out of the moments.
type StatSummary struct {
	Name           string  `json:"name" yaml:"name"`
	Observed       float64 `json:"observed" yaml:"observed"`
	Mean           float64 `json:"mean" yaml:"mean"`
	Std            float64 `json:"std" yaml:"std"`
	Lower          float64 `json:"lower" yaml:"lower"`
	Upper          float64 `json:"upper" yaml:"upper"`
	WithinInterval bool    `json:"within_interval" yaml:"within_interval"`
	Samples        int     `json:"samples" yaml:"samples"`
	NaNRuns        int     `json:"nan_runs" yaml:"nan_runs"`
}

// Summarize builds the summary of samples against observed.
func Summarize(name string, observed float64, samples []float64) StatSummary {
	finite := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}

	s := StatSummary{
		Name:     name,
		Observed: observed,
		Samples:  len(finite),
		NaNRuns:  len(samples) - len(finite),
		Mean:     math.NaN(),
		Std:      math.NaN(),
		Lower:    math.NaN(),
		Upper:    math.NaN(),
	}
	if len(finite) == 0 {
		return s
	}

	s.Mean, s.Std = stat.PopMeanStdDev(finite, nil)
	s.Lower = s.Mean - 2*s.Std
	s.Upper = s.Mean + 2*s.Std
	// round-off in the mean must not push a degenerate (zero-std) run outside
	tol := 1e-9 * math.Max(1, math.Abs(s.Mean))
	s.WithinInterval = observed >= s.Lower-tol && observed <= s.Upper+tol
	return s
}

// MarshalJSON writes non-finite values as null.
func (s StatSummary) MarshalJSON() ([]byte, error) {
	type plain StatSummary
	return json.Marshal(struct {
		plain
		Observed *float64 `json:"observed"`
		Mean     *float64 `json:"mean"`
		Std      *float64 `json:"std"`
		Lower    *float64 `json:"lower"`
		Upper    *float64 `json:"upper"`
	}{
		plain:    plain(s),
		Observed: finiteOrNil(s.Observed),
		Mean:     finiteOrNil(s.Mean),
		Std:      finiteOrNil(s.Std),
		Lower:    finiteOrNil(s.Lower),
		Upper:    finiteOrNil(s.Upper),
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
