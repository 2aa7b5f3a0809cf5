package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
	"github.com/banshee-data/drive.eval/internal/security"
)

// app holds the persistent flags and the state shared by subcommands.
type app struct {
	dbPath     string
	configPath string
	logLevel   string
	outRoot    string
	overwrite  bool

	cfg *config.EvalConfig
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "drive-eval",
		Short:         "Evaluate state estimation and driving performance from recorded drive logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := monitoring.SetLevel(a.logLevel); err != nil {
				return err
			}
			cfg, err := config.LoadOrDefault(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.dbPath, "db", "drive_eval.db", "Recording database")
	pf.StringVar(&a.configPath, "config", "", "Evaluation config (.json, .yaml); built-in defaults when empty")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.outRoot, "out", "eval_out", "Root directory for evaluation output")
	pf.BoolVar(&a.overwrite, "overwrite", false, "Replace existing output directories")

	root.AddCommand(
		a.importCmd(),
		a.recordingsCmd(),
		a.topicsCmd(),
		a.cutCmd(),
		a.stripTopicsCmd(),
		a.copyTopicsCmd(),
		a.addTFCmd(),
		a.npcOdometryCmd(),
		a.migrateCmd(),
		a.gtEvalCmd(),
		a.cmdEvalCmd(),
		a.seCompareCmd(),
		a.alignWaypointsCmd(),
		a.trajectoryCmd(),
		a.plotFieldsCmd(),
		a.meanEvalCmd(),
		a.bestLapCmd(),
		a.checkStampsCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) openStore(ctx context.Context) (*recording.Store, error) {
	return recording.OpenAndMigrate(ctx, a.dbPath)
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(*recording.Store) error) error {
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (a *app) outputDir(name string) (string, error) {
	return report.PrepareOutputDir(a.outRoot, name, a.overwrite)
}

func (a *app) saveFigures(dir string, figs []report.NamedFigure) error {
	written, err := report.SaveFigures(dir, figs, a.cfg.GetPlotFormat(), a.cfg.GetHTML())
	if err != nil {
		return err
	}
	monitoring.Debugf("wrote %d plots to %s", len(written), dir)
	return nil
}

// record persists a run summary and logs its id.
func (a *app) record(ctx context.Context, s *recording.Store, rec, kind string, summary any) error {
	run, err := s.SaveEvaluation(ctx, rec, kind, summary)
	if err != nil {
		return err
	}
	monitoring.Logf("%s of %s stored as run %s", kind, rec, run.RunID)
	return nil
}

func (a *app) printf(format string, v ...any) {
	fmt.Fprintf(a.out, format, v...)
}

// writeTable writes t to dir/name.csv.
func writeTable(dir, name string, t *report.Table) error {
	return report.WriteTable(filepath.Join(dir, security.SanitizeFilename(name)+".csv"), t)
}
