package profiling

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
)

// DataProfiler summarizes the feature distribution of a training partition.
// The profile is stored in the run summary so serving-time inputs can be
// compared with what the model saw.
type DataProfiler struct{}

// NewDataProfiler creates a new data profiler
func NewDataProfiler() *DataProfiler {
	return &DataProfiler{}
}

// ProfileColumn computes summary statistics of one column
func (dp *DataProfiler) ProfileColumn(data []float64, name string) (run.ColumnProfile, error) {
	profile := run.ColumnProfile{Column: name}

	mean, err := stats.Mean(data)
	if err != nil {
		return profile, fmt.Errorf("profile %s: %w", name, err)
	}
	profile.Mean = mean

	if profile.Min, err = stats.Min(data); err != nil {
		return profile, fmt.Errorf("profile %s: %w", name, err)
	}
	if profile.Max, err = stats.Max(data); err != nil {
		return profile, fmt.Errorf("profile %s: %w", name, err)
	}
	if profile.Median, err = stats.Median(data); err != nil {
		return profile, fmt.Errorf("profile %s: %w", name, err)
	}

	// sample deviation and quartiles are undefined for a single value
	if len(data) < 2 {
		profile.Q1, profile.Q3 = profile.Min, profile.Max
		return profile, nil
	}
	if profile.StdDev, err = stats.StandardDeviationSample(data); err != nil {
		return profile, fmt.Errorf("profile %s: %w", name, err)
	}
	quartiles, err := stats.Quartile(data)
	if err != nil {
		return profile, fmt.Errorf("profile %s: %w", name, err)
	}
	profile.Q1, profile.Q3 = quartiles.Q1, quartiles.Q3
	return profile, nil
}

// ProfileMatrix profiles every column of X in column order
func (dp *DataProfiler) ProfileMatrix(X *dataset.FeatureMatrix) ([]run.ColumnProfile, error) {
	profiles := make([]run.ColumnProfile, 0, len(X.Columns))
	for j, name := range X.Columns {
		p, err := dp.ProfileColumn(X.Column(j), name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
