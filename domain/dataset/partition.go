package dataset

// Partition names
const (
	PartitionTrain      = "train"
	PartitionValidation = "validation"
	PartitionTest       = "test"
)

// Partition is one subset of a loaded dataset. Indices refer to the rows of
// the source matrix the partition was cut from.
type Partition struct {
	Name     string
	Indices  []int
	Features *FeatureMatrix
	Labels   LabelVector
}

// Size is the number of rows in the partition.
func (p Partition) Size() int { return len(p.Indices) }

// NewPartition materializes the rows at indices from the source data.
func NewPartition(name string, indices []int, X *FeatureMatrix, y LabelVector) Partition {
	return Partition{
		Name:     name,
		Indices:  append([]int(nil), indices...),
		Features: X.Select(indices),
		Labels:   y.Select(indices),
	}
}

// Split is a disjoint train/validation/test partition of one dataset.
type Split struct {
	Train      Partition
	Validation Partition
	Test       Partition
	Stats      SplitStatistics
}

// Partitions returns the three partitions in train, validation, test order.
func (s *Split) Partitions() []Partition {
	return []Partition{s.Train, s.Validation, s.Test}
}

// SplitStatistics records how a split was produced.
type SplitStatistics struct {
	Method        string             `json:"method"`
	Seed          int64              `json:"seed"`
	TotalRows     int                `json:"total_rows"`
	Sizes         map[string]int     `json:"sizes"`
	PositiveRates map[string]float64 `json:"positive_rates"`
	SourceRate    float64            `json:"source_positive_rate"`
}
