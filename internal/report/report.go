package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
)

// Markdown renders the human-readable report of a run
func Markdown(summary *run.Summary) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Training run %s\n\n", summary.RunID)
	fmt.Fprintf(&b, "- Created: %s\n", summary.CreatedAt)
	fmt.Fprintf(&b, "- Data source: `%s`\n", summary.DataSource)
	fmt.Fprintf(&b, "- Model: `%s`\n", summary.ModelPath)
	fmt.Fprintf(&b, "- Schema fingerprint: `%s`\n", summary.SchemaFingerprint)
	fmt.Fprintf(&b, "- Run fingerprint: `%s` (code %s)\n\n", summary.Fingerprint.Value, summary.Fingerprint.CodeVersion)

	writeMetrics(&b, summary)
	writeSplit(&b, summary.Split)
	writeSchema(&b, summary)
	writeHyperparameters(&b, summary.Hyperparameters)
	writeProfile(&b, summary.FeatureProfile)

	return []byte(b.String())
}

// HTML converts a markdown report into a standalone page
func HTML(md []byte, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(markdown.NormalizeNewlines(md))

	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.Render(doc, renderer)
}

func writeMetrics(b *strings.Builder, summary *run.Summary) {
	b.WriteString("## Metrics\n\n")
	b.WriteString("| Metric | Validation | Test |\n|---|---|---|\n")
	names := summary.Validation.Names()
	for _, name := range summary.Test.Names() {
		if _, ok := summary.Validation[name]; !ok {
			names = append(names, name)
		}
	}
	for _, name := range names {
		fmt.Fprintf(b, "| %s | %s | %s |\n", name, cell(summary.Validation, name), cell(summary.Test, name))
	}
	b.WriteString("\n")
}

func cell(report run.MetricsReport, name string) string {
	v, ok := report[name]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

func writeSplit(b *strings.Builder, split run.SplitInfo) {
	fmt.Fprintf(b, "## Split\n\nMethod `%s`, seed %d.\n\n", split.Method, split.Seed)
	b.WriteString("| Partition | Rows | Positive rate |\n|---|---|---|\n")

	order := map[string]int{dataset.PartitionTrain: 0, dataset.PartitionValidation: 1, dataset.PartitionTest: 2}
	names := make([]string, 0, len(split.Partitions))
	for name := range split.Partitions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		p := split.Partitions[name]
		fmt.Fprintf(b, "| %s | %d | %.3f |\n", name, p.Size, p.PositiveRate)
	}
	b.WriteString("\n")
}

func writeSchema(b *strings.Builder, summary *run.Summary) {
	b.WriteString("## Features\n\n")
	for i, col := range summary.FeatureColumns {
		fmt.Fprintf(b, "%d. `%s`\n", i+1, col)
	}
	fmt.Fprintf(b, "\nLabel: `%s`", summary.LabelColumn)
	if len(summary.DroppedColumns) > 0 {
		quoted := make([]string, len(summary.DroppedColumns))
		for i, c := range summary.DroppedColumns {
			quoted[i] = "`" + c + "`"
		}
		fmt.Fprintf(b, ". Dropped: %s", strings.Join(quoted, ", "))
	}
	b.WriteString(".\n\n")
}

func writeHyperparameters(b *strings.Builder, p run.Hyperparameters) {
	b.WriteString("## Hyperparameters\n\n")
	fmt.Fprintf(b, "- n_estimators: %d\n", p.NEstimators)
	fmt.Fprintf(b, "- max_depth: %d\n", p.MaxDepth)
	fmt.Fprintf(b, "- min_samples_leaf: %d\n", p.MinSamplesLeaf)
	fmt.Fprintf(b, "- min_samples_split: %d\n", p.MinSamplesSplit)
	fmt.Fprintf(b, "- max_features: %s\n", p.MaxFeatures)
	fmt.Fprintf(b, "- bootstrap: %t\n", p.Bootstrap)
	fmt.Fprintf(b, "- criterion: %s\n", p.Criterion)
	fmt.Fprintf(b, "- random_state: %d\n\n", p.RandomState)
}

func writeProfile(b *strings.Builder, profile []run.ColumnProfile) {
	if len(profile) == 0 {
		return
	}
	b.WriteString("## Training feature profile\n\n")
	b.WriteString("| Column | Mean | Std | Min | Q1 | Median | Q3 | Max |\n|---|---|---|---|---|---|---|---|\n")
	for _, c := range profile {
		fmt.Fprintf(b, "| %s | %.4g | %.4g | %.4g | %.4g | %.4g | %.4g | %.4g |\n",
			c.Column, c.Mean, c.StdDev, c.Min, c.Q1, c.Median, c.Q3, c.Max)
	}
	b.WriteString("\n")
}
