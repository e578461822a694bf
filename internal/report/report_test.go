package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
	"delayrisk/domain/schema"
)

func sampleSummary() *run.Summary {
	s := schema.Default()
	return &run.Summary{
		RunID:             core.RunID("run-42"),
		CreatedAt:         core.NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		DataSource:        "data/dataset.csv",
		ModelPath:         "models/run-42/model.json",
		SchemaFingerprint: s.Fingerprint(),
		FeatureColumns:    s.FeatureColumns(),
		LabelColumn:       s.LabelColumn(),
		DroppedColumns:    s.DropColumns(),
		Hyperparameters:   run.DefaultHyperparameters(),
		Split: run.SplitInfo{
			Method: "stratified",
			Seed:   42,
			Partitions: map[string]run.PartitionStats{
				"test":       {Size: 15, PositiveRate: 0.4},
				"train":      {Size: 70, PositiveRate: 0.4},
				"validation": {Size: 15, PositiveRate: 0.4},
			},
		},
		Validation: run.NewMetricsReport(0.8, 0.75, 0.9),
		Test:       run.NewMetricsReport(0.7, 0.65, 0.8123),
		FeatureProfile: []run.ColumnProfile{
			{Column: "spi_early", Mean: 0.95, StdDev: 0.1, Min: 0.5, Q1: 0.9, Median: 0.95, Q3: 1, Max: 1.3},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(sampleSummary()))

	assert.True(t, strings.HasPrefix(md, "# Training run run-42\n"))
	assert.Contains(t, md, "| roc_auc | 0.900 | 0.812 |")
	assert.Contains(t, md, "- n_estimators: 300")
	assert.Contains(t, md, "Dropped: `p_late_diag`")
	assert.Contains(t, md, "| spi_early |")

	train := strings.Index(md, "| train |")
	val := strings.Index(md, "| validation |")
	test := strings.Index(md, "| test |")
	assert.True(t, train >= 0 && train < val && val < test, "partitions in pipeline order")

	assert.Equal(t, "1. `n_edges`", strings.Split(strings.SplitAfter(md, "## Features\n\n")[1], "\n")[0])
}

func TestHTML(t *testing.T) {
	page := string(HTML(Markdown(sampleSummary()), "run-42"))

	assert.Contains(t, page, "<title>run-42</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "Training run run-42</h1>")
}
