package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"delayrisk/adapters/filestore"
	"delayrisk/adapters/forest"
	"delayrisk/app"
	"delayrisk/internal"
	"delayrisk/internal/config"
	"delayrisk/internal/container"
	"delayrisk/internal/migration"
	"delayrisk/internal/testkit"
	"delayrisk/internal/tracking"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "delayrisk-dev",
		Short:        "delayrisk development tools",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newSeedCmd(),
		newMigrateCmd(),
		newDeterminismTestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	var out string
	genCfg := testkit.DefaultScheduleConfig()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a synthetic schedule dataset (.csv or .xlsx)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateSeedData(out, genCfg)
		},
	}
	cmd.Flags().StringVar(&out, "out", "data/dataset.csv", "Output file")
	cmd.Flags().IntVar(&genCfg.Projects, "projects", genCfg.Projects, "Number of projects")
	cmd.Flags().Float64Var(&genCfg.OutlierRate, "outliers", genCfg.OutlierRate, "Share of rows with spi/cpi outside [0,2]")
	cmd.Flags().Int64Var(&genCfg.Seed, "seed", genCfg.Seed, "Generator seed")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the experiment tracking tables in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			db, err := sqlx.ConnectContext(cmd.Context(), "postgres", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			var runner migration.Migrator = migration.NewRunner()
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Printf("Migrations applied (version %s)\n", runner.Version())
			return nil
		},
	}
}

func newDeterminismTestCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "determinism",
		Short: "Train twice on the same data and compare the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return testDeterminism(cmd.Context(), dataPath)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "Dataset (default DATA_PATH)")
	return cmd
}

func generateSeedData(out string, genCfg testkit.ScheduleGeneratorConfig) error {
	fmt.Printf("Generating %d synthetic projects...\n", genCfg.Projects)
	table := testkit.NewScheduleDataGenerator(genCfg).GenerateTable()

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".xlsx":
		if err := testkit.WriteXLSX(out, table); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
	default:
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := testkit.WriteCSV(f, table); err != nil {
			f.Close()
			return fmt.Errorf("write csv: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	fmt.Printf("Wrote %s (dataset hash %s)\n", out, table.Fingerprint().String())
	return nil
}

func testDeterminism(ctx context.Context, dataPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewLoggerWithFormat(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)

	tmp, err := os.MkdirTemp("", "delayrisk-determinism-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	cfg.Training.ArtifactDir = tmp
	cfg.Database.URL = ""

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	req, err := c.TrainRequest(dataPath)
	if err != nil {
		return err
	}

	var models [][]byte
	for i := 0; i < 2; i++ {
		store, err := filestore.NewBundleStore(filepath.Join(tmp, fmt.Sprintf("replay-%d", i)), logger)
		if err != nil {
			return err
		}
		svc := app.NewTrainingService(c.Reader, forest.NewTrainer(logger).WithWorkers(i+1), c.Codec, store,
			tracking.NewLogTracker(logger), logger)
		summary, err := svc.Run(ctx, req)
		if err != nil {
			return fmt.Errorf("replay %d: %w", i, err)
		}
		data, err := os.ReadFile(summary.ModelPath)
		if err != nil {
			return err
		}
		models = append(models, data)
		fmt.Printf("replay %d: fingerprint %s test %v\n", i, summary.Fingerprint.Value.Short(), summary.Test)
	}

	if !bytes.Equal(models[0], models[1]) {
		return fmt.Errorf("determinism check failed: model documents differ")
	}
	fmt.Println("Determinism test passed: identical models")
	return nil
}
