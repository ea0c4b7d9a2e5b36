package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/config"
	"github.com/politicsradar/polr/internal/logging"
	"github.com/politicsradar/polr/internal/pipeline"
	"github.com/politicsradar/polr/internal/store"
)

// app carries global flags and the state resolved from them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	dbPath     string
	maxLen     string
	workers    string
	logLevel   string
	logFormat  string

	cfg config.ResolvedConfig
	log *logging.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "polr",
		Short: "polr - speech transcript segmentation and topic metrics",
		Long: `polr turns political speech transcripts into per-fragment metrics.

Each speech is split into content fragments (boilerplate removed), every
fragment is given a topic category and a depth level, and is placed on the
timeline of the office term it was delivered in (0 = first day, 1 = last).

Metrics are descriptive only. They carry no ranking or judgement.

Configuration precedence (highest first):
  1. CLI flags
  2. Environment (POLR_DB_PATH, POLR_SSD_ROOT, POLR_MAX_LEN, POLR_WORKERS,
     POLR_LOG_LEVEL, POLR_LOG_FORMAT)
  3. .env in the working directory
  4. Config file (~/.polr/config.yaml)
  5. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: ~/.polr/config.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file (default: ./.env)")
	pf.StringVar(&a.dbPath, "db", "", "database path (default: ~/.polr/db/pm_speeches.db)")
	pf.StringVar(&a.maxLen, "max-len", "", "maximum fragment length in characters (default: 600)")
	pf.StringVar(&a.workers, "workers", "", "segmentation workers (default: 4)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newInitCmd(a),
		newTermCmd(a),
		newIngestCmd(a),
		newChunksCmd(a),
		newMetricsCmd(a),
		newStatsCmd(a),
		newShowCmd(a),
		newExportCmd(a),
		newDoctorCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) resolve() error {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:   a.configPath,
		EnvFile:      a.envFile,
		CLIDBPath:    a.dbPath,
		CLIMaxLength: a.maxLen,
		CLIWorkers:   a.workers,
		CLILogLevel:  a.logLevel,
		CLILogFormat: a.logFormat,
	})
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(logging.Options{
		Level:  cfg.LogLevel.Value,
		Format: cfg.LogFormat.Value,
		Output: a.stderr,
	})
	return nil
}

func (a *app) openStore() (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: a.cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func (a *app) newPipeline(s store.Store) (*pipeline.Pipeline, error) {
	workers, err := a.cfg.WorkersInt()
	if err != nil {
		return nil, err
	}
	return pipeline.New(s, pipeline.WithLogger(a.log), pipeline.WithWorkers(workers)), nil
}

func (a *app) maxLength() (int, error) {
	return a.cfg.MaxLengthInt()
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.stdout, format, args...)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.printf("polr %s\n", version)
		},
	}
}
