package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/politicsradar/polr/internal/config"
	"github.com/politicsradar/polr/internal/store"
)

type doctorReport struct {
	Config   config.ResolvedConfig `json:"config"`
	DBExists bool                  `json:"db_exists"`
	Stats    *store.StoreStats     `json:"stats,omitempty"`
	Problems []string              `json:"problems,omitempty"`
}

func newDoctorCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Show resolved configuration and check the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := a.diagnose()
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			a.printDoctor(rep)
			if len(rep.Problems) > 0 {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) diagnose() *doctorReport {
	rep := &doctorReport{Config: a.cfg}
	if _, err := a.cfg.MaxLengthInt(); err != nil {
		rep.Problems = append(rep.Problems, err.Error())
	}
	if _, err := a.cfg.WorkersInt(); err != nil {
		rep.Problems = append(rep.Problems, err.Error())
	}

	// Doctor never creates the database.
	if _, err := os.Stat(a.cfg.DBPath.Value); err != nil {
		if !os.IsNotExist(err) {
			rep.Problems = append(rep.Problems, err.Error())
		}
		return rep
	}
	rep.DBExists = true

	s, err := a.openStore()
	if err != nil {
		rep.Problems = append(rep.Problems, err.Error())
		return rep
	}
	defer s.Close()
	stats, err := s.Stats(context.Background())
	if err != nil {
		rep.Problems = append(rep.Problems, err.Error())
		return rep
	}
	rep.Stats = stats
	return rep
}

func (a *app) printDoctor(rep *doctorReport) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)
	dim := color.New(color.Faint)

	bold.Fprintln(a.stdout, "Configuration")
	a.printf("  config file  %s\n", rep.Config.ConfigPath)
	if rep.Config.EnvFile != "" {
		a.printf("  env file     %s\n", rep.Config.EnvFile)
	}
	row := func(name string, v config.ResolvedValue) {
		a.printf("  %-12s %s ", name, v.Value)
		src := string(v.Source)
		if v.From != "" {
			src += ": " + v.From
		}
		dim.Fprintf(a.stdout, "(%s)\n", src)
	}
	row("db", rep.Config.DBPath)
	row("max-len", rep.Config.MaxLength)
	row("workers", rep.Config.Workers)
	row("log-level", rep.Config.LogLevel)
	row("log-format", rep.Config.LogFormat)

	a.printf("\n")
	bold.Fprintln(a.stdout, "Database")
	switch {
	case !rep.DBExists:
		warn.Fprint(a.stdout, "  missing")
		a.printf("  run `polr init` to create it\n")
	case rep.Stats != nil:
		ok.Fprint(a.stdout, "  OK")
		a.printf("  %s, %d terms, %d speeches, %d chunks, %d metrics\n",
			formatBytes(rep.Stats.DBSizeBytes), rep.Stats.TermCount, rep.Stats.SpeechCount,
			rep.Stats.ChunkCount, rep.Stats.MetricCount)
		if rep.Stats.ChunkCount > rep.Stats.MetricCount {
			warn.Fprintf(a.stdout, "  %d chunks have no metric; run `polr metrics`\n",
				rep.Stats.ChunkCount-rep.Stats.MetricCount)
		}
	}

	for _, p := range rep.Problems {
		bad.Fprint(a.stdout, "  problem")
		a.printf(" %s\n", p)
	}
}
