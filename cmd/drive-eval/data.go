package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/drive.eval/internal/evaluation"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/version"
)

func (a *app) importCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSONL or CSV drive log as a new recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			return a.withStore(cmd.Context(), func(s *recording.Store) error {
				rec, n, err := recording.ImportFile(cmd.Context(), s, path, name)
				if err != nil {
					return err
				}
				a.printf("imported %d messages into %s (%s)\n", n, rec.Name, rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Recording name (default: file name without extension)")
	return cmd
}

func (a *app) recordingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recordings",
		Short: "List the recordings in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s *recording.Store) error {
				recs, err := s.Recordings(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tMESSAGES\tIMPORTED\tSOURCE")
				for _, r := range recs {
					n, err := s.Count(ctx, r.Name)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Name, n, r.ImportedAt.Format(time.RFC3339), r.Source)
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) topicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics <recording>",
		Short: "Summarise the topics of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s *recording.Store) error {
				infos, err := s.Topics(ctx, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TOPIC\tMESSAGES\tFIRST\tLAST\tRATE [Hz]")
				for _, t := range infos {
					rate := 0.0
					if span := t.Last - t.First; span > 0 {
						rate = float64(t.Messages-1) / span
					}
					fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.1f\n", t.Topic, t.Messages, t.First, t.Last, rate)
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) cutCmd() *cobra.Command {
	var (
		start, end float64
		topics     []string
		laps       string
	)
	cmd := &cobra.Command{
		Use:   "cut <recording> <new-recording>",
		Short: "Copy a time window of a recording into a new recording",
		Long: "Copy the messages between --start and --end, in seconds since the first message, " +
			"into a new recording. With --laps, every lap of the recording listed in a best-lap " +
			"report is cut into <new-recording>_lap<N> instead.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, dst := args[0], args[1]
			return a.withStore(ctx, func(s *recording.Store) error {
				if laps != "" {
					return a.cutLaps(ctx, s, src, dst, laps, topics)
				}
				t0, err := firstStamp(ctx, s, src)
				if err != nil {
					return err
				}
				lo, hi := math.Inf(-1), math.Inf(1)
				if cmd.Flags().Changed("start") {
					lo = t0 + start
				}
				if cmd.Flags().Changed("end") {
					hi = t0 + end
				}
				n, err := s.CopyRange(ctx, src, dst, topics, lo, hi)
				if err != nil {
					return err
				}
				a.printf("copied %d messages into %s\n", n, dst)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&start, "start", 0, "Window start, seconds since the first message")
	cmd.Flags().Float64Var(&end, "end", 0, "Window end, seconds since the first message")
	cmd.Flags().StringSliceVar(&topics, "topics", nil, "Only copy these topics")
	cmd.Flags().StringVar(&laps, "laps", "", "Best-lap report whose laps are cut out")
	return cmd
}

func (a *app) cutLaps(ctx context.Context, s *recording.Store, src, dst, reportPath string, topics []string) error {
	rep, err := evaluation.ReadLapReport(reportPath)
	if err != nil {
		return err
	}
	windows := rep.LapWindows(src)
	if len(windows) == 0 {
		return fmt.Errorf("%w: no lap of %s with a known start in %s", evaluation.ErrNoData, src, reportPath)
	}
	for i, w := range windows {
		name := fmt.Sprintf("%s_lap%d", dst, i)
		n, err := s.CopyRange(ctx, src, name, topics, w.Start, w.End)
		if err != nil {
			return err
		}
		a.printf("copied %d messages of the %.2fs lap into %s\n", n, w.LapTime, name)
	}
	return nil
}

func firstStamp(ctx context.Context, r recording.Reader, rec string) (float64, error) {
	infos, err := r.Topics(ctx, rec)
	if err != nil {
		return 0, err
	}
	if len(infos) == 0 {
		return 0, fmt.Errorf("%w: %s is empty", evaluation.ErrNoData, rec)
	}
	t0 := infos[0].First
	for _, t := range infos[1:] {
		t0 = math.Min(t0, t.First)
	}
	return t0, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the recording database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			s, err := recording.Open(cmd.Context(), a.dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			switch action {
			case "up":
				err = s.MigrateUp()
			case "down":
				err = s.MigrateDown()
			}
			if err != nil {
				return err
			}
			v, dirty, err := s.MigrateVersion()
			if err != nil {
				return err
			}
			a.printf("schema version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		// The root pre-run loads config; printing the version needs none.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "drive-eval "+version.String())
		},
	}
}
