package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
)

// Default partition fractions: 70% train, 30% held out, halved into
// validation and test.
const (
	DefaultHoldoutFraction = 0.30
	DefaultTestFraction    = 0.50

	methodStratified = "stratified_random"
)

// binaryClasses are the label values every partition must contain.
var binaryClasses = []int{0, 1}

// DataPartitioner implements seeded stratified train/validation/test splitting
type DataPartitioner struct {
	randomSeed      int64
	holdoutFraction float64
	testFraction    float64
}

// NewDataPartitionerWithSeed creates a partitioner with a specific seed for reproducibility
func NewDataPartitionerWithSeed(seed int64) *DataPartitioner {
	return &DataPartitioner{
		randomSeed:      seed,
		holdoutFraction: DefaultHoldoutFraction,
		testFraction:    DefaultTestFraction,
	}
}

// WithFractions overrides the held-out fraction of the source and the test
// fraction of the held-out rows.
func (dp *DataPartitioner) WithFractions(holdout, test float64) *DataPartitioner {
	cp := *dp
	cp.holdoutFraction = holdout
	cp.testFraction = test
	return &cp
}

// Seed returns the partitioner's seed
func (dp *DataPartitioner) Seed() int64 { return dp.randomSeed }

// Split cuts X and y into three disjoint stratified partitions whose union is
// every row. The same seed and input always yield the same partitions.
func (dp *DataPartitioner) Split(X *dataset.FeatureMatrix, y dataset.LabelVector) (*dataset.Split, error) {
	if X == nil || X.Len() != len(y) {
		return nil, fmt.Errorf("%w: feature rows and labels differ in length", core.ErrDataContract)
	}
	if err := dp.validateFractions(); err != nil {
		return nil, err
	}
	if err := checkClassCounts(y); err != nil {
		return nil, err
	}

	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	rng := rand.New(rand.NewSource(dp.randomSeed))
	train, temp, err := stratifiedPartition(all, y, dp.holdoutFraction, rng)
	if err != nil {
		return nil, err
	}
	validation, test, err := stratifiedPartition(temp, y, dp.testFraction, rng)
	if err != nil {
		return nil, err
	}

	split := &dataset.Split{
		Train:      dataset.NewPartition(dataset.PartitionTrain, train, X, y),
		Validation: dataset.NewPartition(dataset.PartitionValidation, validation, X, y),
		Test:       dataset.NewPartition(dataset.PartitionTest, test, X, y),
	}
	if err := ensureClassesPresent(split, y); err != nil {
		return nil, err
	}
	split.Stats = dp.statistics(split, y)
	return split, nil
}

func (dp *DataPartitioner) validateFractions() error {
	for name, f := range map[string]float64{"holdout": dp.holdoutFraction, "test": dp.testFraction} {
		if !(f > 0 && f < 1) {
			return fmt.Errorf("%w: %s fraction must be in (0,1), got %v", core.ErrInvalidHyperparameters, name, f)
		}
	}
	return nil
}

// checkClassCounts fails fast when a class cannot reach all three partitions.
func checkClassCounts(y dataset.LabelVector) error {
	counts := classCounts(y)
	var short []string
	for _, c := range binaryClasses {
		if counts[c] < 3 {
			short = append(short, fmt.Sprintf("class %d has %d examples", c, counts[c]))
		}
	}
	if len(short) > 0 {
		return core.NewInsufficientDataError("each class needs at least 3 examples for a three-way split: %s", strings.Join(short, ", "))
	}
	return nil
}

// stratifiedPartition holds out ceil(fraction*n) of indices, allocating the
// held-out count across classes by largest remainder and shuffling within
// each class. Both outputs are sorted ascending.
func stratifiedPartition(indices []int, y dataset.LabelVector, fraction float64, rng *rand.Rand) ([]int, []int, error) {
	n := len(indices)
	nHeld := int(math.Ceil(fraction * float64(n)))
	if nHeld < 1 || nHeld >= n {
		return nil, nil, core.NewInsufficientDataError("cannot hold out %d of %d rows", nHeld, n)
	}

	strata := make(map[int][]int)
	for _, idx := range indices {
		strata[y[idx]] = append(strata[y[idx]], idx)
	}
	classes := make([]int, 0, len(strata))
	for c := range strata {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	held := allocate(classes, strata, nHeld, n)

	var keep, out []int
	for _, c := range classes {
		members := append([]int(nil), strata[c]...)
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		out = append(out, members[:held[c]]...)
		keep = append(keep, members[held[c]:]...)
	}
	sort.Ints(keep)
	sort.Ints(out)
	return keep, out, nil
}

// allocate distributes total across classes proportionally to class size,
// handing leftover units to the largest fractional remainders.
func allocate(classes []int, strata map[int][]int, total, n int) map[int]int {
	type share struct {
		class int
		size  int
		rem   float64
	}
	alloc := make(map[int]int, len(classes))
	shares := make([]share, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		exact := float64(total) * float64(len(strata[c])) / float64(n)
		whole := int(math.Floor(exact))
		alloc[c] = whole
		assigned += whole
		shares = append(shares, share{class: c, size: len(strata[c]), rem: exact - float64(whole)})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].rem != shares[j].rem {
			return shares[i].rem > shares[j].rem
		}
		return shares[i].size > shares[j].size
	})
	for i := 0; assigned < total; i = (i + 1) % len(shares) {
		if alloc[shares[i].class] < shares[i].size {
			alloc[shares[i].class]++
			assigned++
		}
	}
	return alloc
}

func ensureClassesPresent(split *dataset.Split, y dataset.LabelVector) error {
	var problems []string
	for _, p := range split.Partitions() {
		counts := classCounts(p.Labels)
		for _, c := range binaryClasses {
			if counts[c] == 0 {
				problems = append(problems, fmt.Sprintf("%s has no class %d", p.Name, c))
			}
		}
	}
	if len(problems) > 0 {
		total := classCounts(y)
		return core.NewInsufficientDataError("%s (source counts: class 0=%d, class 1=%d)",
			strings.Join(problems, ", "), total[0], total[1])
	}
	return nil
}

func classCounts(y dataset.LabelVector) map[int]int {
	counts := make(map[int]int, 2)
	for _, v := range y {
		counts[v]++
	}
	return counts
}

func (dp *DataPartitioner) statistics(split *dataset.Split, y dataset.LabelVector) dataset.SplitStatistics {
	stats := dataset.SplitStatistics{
		Method:        methodStratified,
		Seed:          dp.randomSeed,
		TotalRows:     len(y),
		Sizes:         make(map[string]int, 3),
		PositiveRates: make(map[string]float64, 3),
		SourceRate:    stat.Mean(y.Floats(), nil),
	}
	for _, p := range split.Partitions() {
		stats.Sizes[p.Name] = p.Size()
		stats.PositiveRates[p.Name] = stat.Mean(p.Labels.Floats(), nil)
	}
	return stats
}

// ValidatePartitions checks that a split is disjoint and covers rows 0..n-1
func ValidatePartitions(split *dataset.Split, n int) error {
	seen := make([]bool, n)
	count := 0
	for _, p := range split.Partitions() {
		for _, idx := range p.Indices {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: %s index %d out of range", core.ErrDataContract, p.Name, idx)
			}
			if seen[idx] {
				return fmt.Errorf("%w: row %d appears in more than one partition", core.ErrDataContract, idx)
			}
			seen[idx] = true
			count++
		}
	}
	if count != n {
		return fmt.Errorf("%w: partitions cover %d of %d rows", core.ErrDataContract, count, n)
	}
	return nil
}
