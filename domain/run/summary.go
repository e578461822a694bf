package run

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"delayrisk/domain/core"
)

// Bundle file names
const (
	ModelFile   = "model.json"
	SummaryFile = "run_summary.json"
	ReportFile  = "report.md"
	ReportHTML  = "report.html"
)

// PartitionStats describes one partition of the split.
type PartitionStats struct {
	Size         int     `json:"size"`
	PositiveRate float64 `json:"positive_rate"`
}

// SplitInfo records how the dataset was partitioned.
type SplitInfo struct {
	Method     string                    `json:"method"`
	Seed       int64                     `json:"seed"`
	Partitions map[string]PartitionStats `json:"partitions"`
}

// ColumnProfile summarizes one feature column of the training partition.
type ColumnProfile struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Fingerprint ties a run to everything that determines its model.
type Fingerprint struct {
	SchemaHash  core.SchemaHash  `json:"schema_hash"`
	DatasetHash core.DatasetHash `json:"dataset_hash"`
	SplitSeed   int64            `json:"split_seed"`
	ParamsHash  core.Hash        `json:"params_hash"`
	CodeVersion string           `json:"code_version"`
	Value       core.Hash        `json:"value"`
}

// NewFingerprint hashes the determinism inputs of a run.
func NewFingerprint(schemaHash core.SchemaHash, datasetHash core.DatasetHash, splitSeed int64,
	params Hyperparameters, codeVersion string) Fingerprint {

	raw, _ := json.Marshal(params)
	paramsHash := core.NewHash(raw)

	data := fmt.Sprintf("schema:%s|dataset:%s|split_seed:%d|params:%s|code:%s",
		schemaHash, datasetHash, splitSeed, paramsHash, codeVersion)
	sum := sha256.Sum256([]byte(data))

	return Fingerprint{
		SchemaHash:  schemaHash,
		DatasetHash: datasetHash,
		SplitSeed:   splitSeed,
		ParamsHash:  paramsHash,
		CodeVersion: codeVersion,
		Value:       core.Hash(fmt.Sprintf("%x", sum)),
	}
}

// Summary is the run_summary.json document of a training bundle.
type Summary struct {
	RunID             core.RunID      `json:"run_id"`
	CreatedAt         core.Timestamp  `json:"created_at"`
	DataSource        string          `json:"data_source"`
	ModelPath         string          `json:"model_path"`
	SchemaFingerprint core.SchemaHash `json:"schema_fingerprint"`
	FeatureColumns    []string        `json:"feature_columns"`
	LabelColumn       string          `json:"label_column"`
	DroppedColumns    []string        `json:"dropped_columns"`
	Hyperparameters   Hyperparameters `json:"hyperparameters"`
	Split             SplitInfo       `json:"split"`
	Validation        MetricsReport   `json:"validation_metrics"`
	Test              MetricsReport   `json:"test_metrics"`
	FeatureProfile    []ColumnProfile `json:"feature_profile"`
	Fingerprint       Fingerprint     `json:"fingerprint"`
}

// Validate checks the summary is complete before it is persisted.
func (s *Summary) Validate() error {
	switch {
	case core.ID(s.RunID).IsEmpty():
		return fmt.Errorf("%w: run_summary: run_id cannot be empty", core.ErrArtifactIO)
	case s.SchemaFingerprint == "":
		return fmt.Errorf("%w: run_summary: schema fingerprint cannot be empty", core.ErrArtifactIO)
	case len(s.FeatureColumns) == 0:
		return fmt.Errorf("%w: run_summary: feature columns cannot be empty", core.ErrArtifactIO)
	case s.Validation == nil || s.Test == nil:
		return fmt.Errorf("%w: run_summary: validation and test metrics are required", core.ErrArtifactIO)
	case s.Fingerprint.Value.IsEmpty():
		return fmt.Errorf("%w: run_summary: fingerprint not computed", core.ErrArtifactIO)
	}
	return nil
}
