package testkit

import (
	"math"
	"math/rand"
	"strconv"

	"delayrisk/domain/dataset"
	"delayrisk/domain/schema"
)

// ScheduleGeneratorConfig configures the synthetic project-schedule generator
type ScheduleGeneratorConfig struct {
	Projects    int     `json:"projects"`
	OutlierRate float64 `json:"outlier_rate"` // share of rows with spi/cpi outside [0,2]
	Seed        int64   `json:"seed"`
}

// DefaultScheduleConfig returns defaults large enough for a stratified split
func DefaultScheduleConfig() ScheduleGeneratorConfig {
	return ScheduleGeneratorConfig{
		Projects:    400,
		OutlierRate: 0.03,
		Seed:        42,
	}
}

// Project is one synthetic task network with its derived metrics.
type Project struct {
	NTasks           int
	NEdges           int
	Density          float64
	CriticalPathLen  int
	PctCriticalTasks float64
	TBaseline        float64
	MeanM            float64
	MeanRangePO      float64
	InstabilityM     float64
	SPIEarly         float64
	CPIEarly         float64
	PLateDiag        float64
	BufferFactor     float64
	Delayed          bool
}

// ScheduleDataGenerator produces deterministic schedule datasets in which
// delay depends on early performance indices and duration instability.
type ScheduleDataGenerator struct {
	config ScheduleGeneratorConfig
	rng    *rand.Rand
}

// NewScheduleDataGenerator creates a new generator
func NewScheduleDataGenerator(config ScheduleGeneratorConfig) *ScheduleDataGenerator {
	return &ScheduleDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateProjects draws config.Projects projects
func (g *ScheduleDataGenerator) GenerateProjects() []Project {
	projects := make([]Project, g.config.Projects)
	for i := range projects {
		projects[i] = g.project()
	}
	return projects
}

func (g *ScheduleDataGenerator) project() Project {
	nTasks := 30 // constant across the dataset, like the real generator
	nEdges := 35 + g.rng.Intn(60)
	density := float64(nEdges) / float64(nTasks*(nTasks-1)/2)
	cpLen := 5 + g.rng.Intn(15)
	pctCritical := float64(cpLen) / float64(nTasks)
	meanM := 3 + 4*g.rng.Float64()
	tBaseline := float64(cpLen) * meanM * (0.9 + 0.2*g.rng.Float64())
	meanRange := 0.5 + 2.5*g.rng.Float64()
	instability := g.rng.Float64()

	spi := 1.0 + 0.25*g.rng.NormFloat64()
	cpi := 1.0 + 0.25*g.rng.NormFloat64()
	if g.rng.Float64() < g.config.OutlierRate {
		spi = -0.5 + 3.5*g.rng.Float64()*float64(1+g.rng.Intn(2))
	}
	if g.rng.Float64() < g.config.OutlierRate {
		cpi = -0.5 + 3.5*g.rng.Float64()*float64(1+g.rng.Intn(2))
	}

	effSPI := math.Max(0, math.Min(2, spi))
	logit := -0.8 + 5*(1-effSPI) + 2.5*(instability-0.5) + 1.5*(pctCritical-0.4) + 0.3*(meanRange-1.75)
	p := 1 / (1 + math.Exp(-logit))
	delayed := g.rng.Float64() < p

	return Project{
		NTasks:           nTasks,
		NEdges:           nEdges,
		Density:          density,
		CriticalPathLen:  cpLen,
		PctCriticalTasks: pctCritical,
		TBaseline:        tBaseline,
		MeanM:            meanM,
		MeanRangePO:      meanRange,
		InstabilityM:     instability,
		SPIEarly:         spi,
		CPIEarly:         cpi,
		PLateDiag:        p,
		BufferFactor:     1.1,
		Delayed:          delayed,
	}
}

// TableHeaders lists the generated columns: every reference feature, the
// label, the three drop columns and an unrelated id column.
func TableHeaders() []string {
	return []string{
		"project_id", "n_tasks", "n_edges", "density", "critical_path_len", "pct_critical_tasks",
		"T_baseline", "mean_m", "mean_range_po", "instability_m", "spi_early", "cpi_early",
		"p_late_diag", "buffer_factor", schema.LabelDelay,
	}
}

// GenerateTable renders the projects as a raw string table
func (g *ScheduleDataGenerator) GenerateTable() *dataset.Table {
	projects := g.GenerateProjects()
	rows := make([][]string, len(projects))
	for i, p := range projects {
		rows[i] = []string{
			"P" + strconv.Itoa(i+1),
			strconv.Itoa(p.NTasks),
			strconv.Itoa(p.NEdges),
			ftoa(p.Density),
			strconv.Itoa(p.CriticalPathLen),
			ftoa(p.PctCriticalTasks),
			ftoa(p.TBaseline),
			ftoa(p.MeanM),
			ftoa(p.MeanRangePO),
			ftoa(p.InstabilityM),
			ftoa(p.SPIEarly),
			ftoa(p.CPIEarly),
			ftoa(p.PLateDiag),
			ftoa(p.BufferFactor),
			btoa(p.Delayed),
		}
	}
	return &dataset.Table{Source: "synthetic", Headers: TableHeaders(), Rows: rows}
}

// GenerateMatrix returns reference-schema features (already clipped) and labels
func (g *ScheduleDataGenerator) GenerateMatrix() (*dataset.FeatureMatrix, dataset.LabelVector) {
	projects := g.GenerateProjects()
	s := schema.Default()
	X := &dataset.FeatureMatrix{Columns: s.FeatureColumns(), Rows: make([][]float64, len(projects))}
	y := make(dataset.LabelVector, len(projects))
	for i, p := range projects {
		X.Rows[i] = []float64{
			float64(p.NEdges), p.Density, float64(p.CriticalPathLen), p.PctCriticalTasks,
			p.TBaseline, p.MeanM, p.MeanRangePO, p.InstabilityM,
			schema.Clip(p.SPIEarly, 0, 2), schema.Clip(p.CPIEarly, 0, 2),
		}
		if p.Delayed {
			y[i] = 1
		}
	}
	return X, y
}

// ReferenceRecord is a valid inference payload for the reference schema.
func ReferenceRecord() map[string]any {
	return map[string]any{
		"n_edges":            45,
		"density":            0.10,
		"critical_path_len":  12,
		"pct_critical_tasks": 0.40,
		"T_baseline":         60.0,
		"mean_m":             5.0,
		"mean_range_po":      1.5,
		"instability_m":      0.30,
		"spi_early":          0.95,
		"cpi_early":          1.05,
	}
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func btoa(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
