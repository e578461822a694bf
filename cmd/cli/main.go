package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"delayrisk/app"
	"delayrisk/domain/core"
	"delayrisk/domain/schema"
	"delayrisk/internal"
	"delayrisk/internal/config"
	"delayrisk/internal/container"
	apperrors "delayrisk/internal/errors"
	"delayrisk/internal/features"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(os.Stdout)
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "delayrisk",
		Short:         "Train and query the schedule-delay risk model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(
		newTrainCmd(),
		newPredictCmd(),
		newSchemaCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

// exitCode maps contract violations to 2 and everything else to 1
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case apperrors.CodeOf(err) == apperrors.CodeDataContract:
		return exitValidation
	default:
		return exitFailure
	}
}

func setup(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := internal.NewLoggerWithFormat(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)
	return container.New(ctx, cfg, logger)
}

func newTrainCmd() *cobra.Command {
	var dataPath string
	var configFile string
	var seed int64

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and write its artifact bundle",
		Long: `Load the labeled dataset, split it 70/15/15 (stratified), fit the random
forest on the training partition, evaluate it on validation and test, and write
model.json, run_summary.json, report.md and report.html into a new bundle under
ARTIFACT_DIR.

Example: delayrisk train --data data/dataset.csv --config train.yaml --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := setup(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			if configFile != "" {
				c.Config.Training.ConfigFile = configFile
			}
			req, err := c.TrainRequest(dataPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				req.SplitSeed = seed
			}

			summary, err := c.Training.Run(ctx, req)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary.RunID, summary.ModelPath, summary.Validation, summary.Test)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "CSV or XLSX dataset (default DATA_PATH)")
	cmd.Flags().StringVar(&configFile, "config", "", "YAML hyperparameter file (default TRAINING_CONFIG)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Split seed (default SPLIT_SEED)")
	return cmd
}

func printSummary(out io.Writer, runID core.RunID, modelPath string, val, test map[string]float64) {
	fmt.Fprintf(out, "run %s\n", runID)
	fmt.Fprintf(out, "model %s\n", modelPath)
	for _, row := range []struct {
		name string
		m    map[string]float64
	}{{"validation", val}, {"test", test}} {
		fmt.Fprintf(out, "%-10s accuracy=%.3f f1=%.3f roc_auc=%.3f\n",
			row.name, row.m["accuracy"], row.m["f1"], row.m["roc_auc"])
	}
}

func newPredictCmd() *cobra.Command {
	var input string
	var modelPath string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one JSON feature record",
		Long: `Read one JSON object of feature values, validate it against the schema,
apply the training-time clipping and print the delay probability.

Exit status is 2 when the record violates the feature contract, 1 on any other
error.

Example: delayrisk predict --input record.json --model models/<run>/model.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			record, err := readRecord(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			c, err := setup(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			svc, err := c.InferenceService(ctx, modelPath)
			if err != nil {
				return err
			}
			return predict(ctx, cmd.OutOrStdout(), svc, record)
		},
	}

	cmd.Flags().StringVar(&input, "input", "-", "JSON record file, - for stdin")
	cmd.Flags().StringVar(&modelPath, "model", "", "model.json to load (default MODEL_PATH, then newest bundle)")
	return cmd
}

func predict(ctx context.Context, out io.Writer, svc *app.InferenceService, record features.Record) error {
	p, err := svc.Predict(ctx, record)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "P(delay) = %s\n", app.FormatProbability(p))
	return nil
}

// readRecord parses exactly one JSON object from path or stdin
func readRecord(stdin io.Reader, path string) (features.Record, error) {
	var r io.Reader = stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("malformed JSON: %v", err))
	}
	if dec.More() {
		return nil, apperrors.InvalidInput("input must contain a single JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("input must be a JSON object, got %T", v))
	}
	return features.Record(obj), nil
}

type schemaDocument struct {
	FeatureColumns []string          `json:"feature_columns"`
	LabelColumn    string            `json:"label_column"`
	DropColumns    []string          `json:"drop_columns"`
	ClipRules      []schema.ClipRule `json:"clip_rules"`
	Fingerprint    string            `json:"fingerprint"`
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the feature schema and its fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sch, err := config.LoadSchema(cfg.Data.SchemaFile)
			if err != nil {
				return err
			}
			doc := schemaDocument{
				FeatureColumns: sch.FeatureColumns(),
				LabelColumn:    sch.LabelColumn(),
				DropColumns:    sch.DropColumns(),
				ClipRules:      sch.ClipRules(),
				Fingerprint:    sch.Fingerprint().String(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List the bundles under ARTIFACT_DIR, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := setup(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			ids, err := c.Store.ListBundles(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return errors.New("no bundles found")
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
