package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/drive.eval/internal/evaluation"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
)

func (a *app) gtEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gt-eval <recording>...",
		Short: "Compare the state estimate of each recording with its ground truth",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := evaluation.GroundTruthOptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}
			return a.withStore(ctx, func(s *recording.Store) error {
				for _, rec := range args {
					res, err := evaluation.EvaluateGroundTruth(ctx, s, rec, opts)
					if err != nil {
						return err
					}
					dir, err := a.outputDir(rec + "_gt_eval")
					if err != nil {
						return err
					}
					if err := report.WriteMetrics(filepath.Join(dir, "errors.txt"), res.Metrics()); err != nil {
						return err
					}
					if err := writeTable(dir, "data", res.Table); err != nil {
						return err
					}
					if err := a.saveFigures(dir, res.Figures()); err != nil {
						return err
					}
					if err := a.record(ctx, s, rec, "gt-eval", res); err != nil {
						return err
					}
					for _, e := range res.Errors {
						a.printf("%s\t%s RMSE %.4f\n", rec, e.Channel, e.RMSE)
					}
				}
				return nil
			})
		},
	}
}

func (a *app) cmdEvalCmd() *cobra.Command {
	var ylabel string
	cmd := &cobra.Command{
		Use:   "cmd-eval <recording>...",
		Short: "Compare an estimated quantity with the commanded value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := evaluation.CommandOptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}
			return a.withStore(ctx, func(s *recording.Store) error {
				for _, rec := range args {
					res, err := evaluation.EvaluateCommand(ctx, s, rec, opts)
					if err != nil {
						return err
					}
					dir, err := a.outputDir(rec + "_cmd_eval")
					if err != nil {
						return err
					}
					if err := report.WriteMetrics(filepath.Join(dir, "errors.txt"), res.Metrics()); err != nil {
						return err
					}
					if err := writeTable(dir, "data", res.Table); err != nil {
						return err
					}
					if err := a.saveFigures(dir, res.Figures(ylabel)); err != nil {
						return err
					}
					if err := a.record(ctx, s, rec, "cmd-eval", res); err != nil {
						return err
					}
					a.printf("%s\tRMSE %.4f over %d samples\n", rec, res.RMSE, res.Samples)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ylabel, "ylabel", "speed [m/s]", "Axis label of the compared quantity")
	return cmd
}

func (a *app) seCompareCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "se-compare <recording>...",
		Short: "Score the state estimates of several runs against a reference run",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reference, err := evaluation.ParseReference(ref, args)
			if err != nil {
				return err
			}
			opts := evaluation.CompareOptionsFromConfig(a.cfg)
			return a.withStore(ctx, func(s *recording.Store) error {
				res, err := evaluation.CompareStateEstimates(ctx, s, reference, args, opts)
				if err != nil {
					return err
				}
				dir, err := a.outputDir(reference + "_se_compare")
				if err != nil {
					return err
				}
				if err := report.WriteJSON(filepath.Join(dir, "correlations.json"), res.Correlations()); err != nil {
					return err
				}
				if err := a.saveFigures(dir, res.Figures()); err != nil {
					return err
				}
				for _, c := range res.Comparisons {
					if err := a.record(ctx, s, c.Recording, "se-compare", c); err != nil {
						return err
					}
					a.printf("%s\tstart index %d, position MSE %.4f\n", c.Recording, c.StartIndex, c.PositionMSE)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ref, "reference", "0", "Reference run, by name or by position among the arguments")
	return cmd
}

func (a *app) trajectoryCmd() *cobra.Command {
	var relative bool
	cmd := &cobra.Command{
		Use:   "trajectory <recording>...",
		Short: "Extract and overlay the estimated trajectories of recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := evaluation.TrajectoryOptionsFromConfig(a.cfg)
			opts.Relative = relative
			return a.withStore(ctx, func(s *recording.Store) error {
				dir, err := a.outputDir("trajectory")
				if err != nil {
					return err
				}
				series := make([]evaluation.StateSeries, 0, len(args))
				for _, rec := range args {
					ss, err := evaluation.ExtractTrajectory(ctx, s, rec, opts)
					if err != nil {
						return err
					}
					if err := writeTable(dir, rec, ss.Table()); err != nil {
						return err
					}
					series = append(series, ss)
					a.printf("%s\t%d samples\n", rec, ss.Len())
				}
				return a.saveFigures(dir, evaluation.TrajectoryFigures(series))
			})
		},
	}
	cmd.Flags().BoolVar(&relative, "relative", false, "Make positions relative to the start of the window")
	return cmd
}

func (a *app) plotFieldsCmd() *cobra.Command {
	var (
		topic  string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "plot-fields <recording>...",
		Short: "Plot numeric message fields of a topic against time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if topic == "" || len(fields) == 0 {
				return fmt.Errorf("plot-fields needs --topic and at least one --field")
			}
			return a.withStore(ctx, func(s *recording.Store) error {
				dir, err := a.outputDir("fields")
				if err != nil {
					return err
				}
				tables := make([]*report.Table, 0, len(args))
				for _, rec := range args {
					t, err := evaluation.ExtractFields(ctx, s, rec, topic, fields, a.cfg.GetStartOffset())
					if err != nil {
						return err
					}
					if err := writeTable(dir, rec, t); err != nil {
						return err
					}
					tables = append(tables, t)
				}
				return a.saveFigures(dir, evaluation.FieldFigures(args, tables))
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Topic to read")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "Dotted field path (repeatable)")
	return cmd
}

func (a *app) meanEvalCmd() *cobra.Command {
	var (
		topic, field, ylabel string
		window               float64
	)
	cmd := &cobra.Command{
		Use:   "mean-eval <recording>...",
		Short: "Measure how far a field strays from its forward rolling mean",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := evaluation.RollingMeanOptionsFromConfig(a.cfg)
			if topic != "" {
				opts.Topic = topic
			}
			if field != "" {
				opts.Field = field
			}
			if cmd.Flags().Changed("window") {
				opts.Window = window
			}
			return a.withStore(ctx, func(s *recording.Store) error {
				dir, err := a.outputDir("mean_eval")
				if err != nil {
					return err
				}
				results := make([]evaluation.RollingMeanResult, 0, len(args))
				for _, rec := range args {
					res, err := evaluation.RollingMeanEvaluation(ctx, s, rec, opts)
					if err != nil {
						return err
					}
					if err := report.WriteMetrics(filepath.Join(dir, rec+"_var.txt"), res.Metrics()); err != nil {
						return err
					}
					if err := writeTable(dir, rec, res.Table); err != nil {
						return err
					}
					if err := a.record(ctx, s, rec, "mean-eval", res); err != nil {
						return err
					}
					results = append(results, res)
					a.printf("%s\tvar %.4f\n", rec, res.MeanAbsDeviation)
				}
				return a.saveFigures(dir, evaluation.RollingMeanFigures("rolling_mean", ylabel, results))
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Topic to read (default: the estimate topic)")
	cmd.Flags().StringVar(&field, "field", "", "Dotted field path (default: the estimate vx field)")
	cmd.Flags().Float64Var(&window, "window", 0, "Forward mean window in seconds (default from config)")
	cmd.Flags().StringVar(&ylabel, "ylabel", "vx [m/s]", "Axis label of the field")
	return cmd
}
