package forest

import (
	"encoding/json"
	"fmt"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
	"delayrisk/ports"
)

// FormatVersion identifies the on-disk model layout.
const FormatVersion = "delayrisk.forest/v1"

type modelDocument struct {
	Format          string              `json:"format"`
	FeatureColumns  []string            `json:"feature_columns"`
	Hyperparameters run.Hyperparameters `json:"hyperparameters"`
	Trees           []Tree              `json:"trees"`
}

// Codec stores forests as JSON documents.
type Codec struct{}

var _ ports.ModelCodec = Codec{}

// Encode serializes a fitted *Forest.
func (Codec) Encode(model ports.Classifier) ([]byte, error) {
	f, ok := model.(*Forest)
	if !ok {
		return nil, fmt.Errorf("%w: cannot encode model of type %T", core.ErrArtifactIO, model)
	}
	if len(f.trees) == 0 {
		return nil, core.ErrModelNotFitted
	}
	data, err := json.Marshal(modelDocument{
		Format:          FormatVersion,
		FeatureColumns:  f.columns,
		Hyperparameters: f.params,
		Trees:           f.trees,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode model: %v", core.ErrArtifactIO, err)
	}
	return data, nil
}

// Decode parses and structurally checks a model document.
func (Codec) Decode(data []byte) (ports.Classifier, error) {
	var doc modelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode model: %v", core.ErrArtifactIO, err)
	}
	if doc.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported model format %q", core.ErrArtifactIO, doc.Format)
	}
	if len(doc.FeatureColumns) == 0 {
		return nil, fmt.Errorf("%w: model has no feature columns", core.ErrArtifactIO)
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%w: model has no trees", core.ErrArtifactIO)
	}
	for i := range doc.Trees {
		if err := checkTree(&doc.Trees[i], len(doc.FeatureColumns)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", core.ErrArtifactIO, i, err)
		}
	}
	return &Forest{columns: doc.FeatureColumns, params: doc.Hyperparameters, trees: doc.Trees}, nil
}

// checkTree rejects documents that would index out of range or loop.
func checkTree(t *Tree, p int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			if n.Proba < 0 || n.Proba > 1 {
				return fmt.Errorf("node %d probability %v outside [0,1]", i, n.Proba)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= p {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, p)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
