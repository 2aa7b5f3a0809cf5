package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/evaluation"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
)

func (a *app) alignWaypointsCmd() *cobra.Command {
	var (
		topic    string
		mapPath  string
		writeMap string
	)
	cmd := &cobra.Command{
		Use:   "align-waypoints <reference-recording> [moving-recording]",
		Short: "Align the waypoints of one map frame onto another",
		Long: "Align the waypoints recorded in moving-recording, or read from --map, onto those of " +
			"reference-recording. With --write the map file is rewritten with the aligned waypoints.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (len(args) == 2) == (mapPath != "") {
				return fmt.Errorf("give either a moving recording or --map")
			}
			if writeMap != "" && mapPath == "" {
				return fmt.Errorf("--write needs --map")
			}
			if topic == "" {
				topic = a.cfg.GetWaypointTopic()
			}
			opts, err := evaluation.AlignOptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}
			reference := args[0]

			return a.withStore(ctx, func(s *recording.Store) error {
				ref, err := evaluation.WaypointsFromRecording(ctx, s, reference, topic)
				if err != nil {
					return err
				}
				var (
					moving []align.Point2D
					m      *evaluation.WaypointMap
					label  string
				)
				if mapPath != "" {
					if m, err = evaluation.ReadWaypointMap(mapPath); err != nil {
						return err
					}
					if moving, err = m.Points(); err != nil {
						return err
					}
					label = strings.TrimSuffix(filepath.Base(mapPath), filepath.Ext(mapPath))
				} else {
					label = args[1]
					if moving, err = evaluation.WaypointsFromRecording(ctx, s, label, topic); err != nil {
						return err
					}
				}

				res, err := evaluation.AlignWaypoints(ref, moving, opts)
				if err != nil {
					return err
				}
				dir, err := a.outputDir("align_" + label)
				if err != nil {
					return err
				}
				if err := report.WriteJSON(filepath.Join(dir, "alignment.json"), res); err != nil {
					return err
				}
				if err := writeTable(dir, "aligned_waypoints", waypointTable(res.Rewritten())); err != nil {
					return err
				}
				if err := a.saveFigures(dir, res.Figures(reference, label)); err != nil {
					return err
				}
				if err := a.record(ctx, s, reference, "align-waypoints", res); err != nil {
					return err
				}
				tr := res.Result.Transform
				a.printf("dx %.4f dy %.4f theta %.5f mse %.6f (%d iterations)\n",
					tr.DX, tr.DY, tr.Theta, res.Result.MeanSquaredError, res.Result.Iterations)

				if writeMap == "" {
					return nil
				}
				if err := m.Replace(res.Rewritten()); err != nil {
					return err
				}
				if err := m.Write(writeMap); err != nil {
					return err
				}
				a.printf("wrote %d aligned waypoints to %s\n", len(res.Aligned), writeMap)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Waypoint topic (default from config)")
	cmd.Flags().StringVar(&mapPath, "map", "", "Read the moving waypoints from this global-waypoints JSON map")
	cmd.Flags().StringVar(&writeMap, "write", "", "Write the --map file with aligned waypoints to this path")
	return cmd
}

func waypointTable(pts []align.Point2D) *report.Table {
	t := report.NewTable("x", "y", "heading", "speed", "accel", "s")
	for _, p := range pts {
		_ = t.Append(p.X, p.Y, p.Heading, p.Speed, p.Accel, p.S)
	}
	return t
}

func (a *app) bestLapCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "best-lap <recording>...",
		Short: "Find the fastest lap driven with each value of the tuning scalar",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := evaluation.LapOptionsFromConfig(a.cfg)
			opts.All = all
			return a.withStore(ctx, func(s *recording.Store) error {
				candidates, err := evaluation.FindLapCandidates(ctx, s, args, opts)
				if err != nil {
					return err
				}
				dir, err := a.outputDir("best_lap")
				if err != nil {
					return err
				}
				path := filepath.Join(dir, "best_lap.json")
				if err := report.WriteJSON(path, evaluation.LapReport{Candidates: candidates}); err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "LAP TIME\tSCALAR\tLAT ERROR\tMAX LAT ERROR\tRECORDING")
				for _, c := range candidates {
					fmt.Fprintf(w, "%.3f\t%.3f\t%.3f\t%.3f\t%s\n", c.LapTime, c.Scalar, c.LatError, c.MaxLatError, c.Recording)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				a.printf("%d laps written to %s\n", len(candidates), path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Keep every valid lap, not only the fastest per scalar")
	return cmd
}

func (a *app) checkStampsCmd() *cobra.Command {
	var opts evaluation.StampOptions
	cmd := &cobra.Command{
		Use:   "check-stamps <recording>...",
		Short: "Report header stamps that repeat on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s *recording.Store) error {
				for _, rec := range args {
					dups, err := evaluation.FindDuplicateStamps(ctx, s, rec, opts)
					if err != nil {
						return err
					}
					for _, d := range dups {
						a.printf("%s\t%s\t%.9f\t%s\tx%d\n", rec, d.Topic, d.Stamp, d.FrameID, d.Count)
					}
					a.printf("%s: %d repeated stamps on %s\n", rec, len(dups), opts.Topic)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Topic, "topic", evaluation.TransformTopics[0], "Topic to check")
	cmd.Flags().StringVar(&opts.FrameID, "frame", "", "Only check transforms in this frame")
	return cmd
}
