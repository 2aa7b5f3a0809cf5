package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/banshee-data/drive.eval/internal/evaluation"
	"github.com/banshee-data/drive.eval/internal/recording"
)

func (a *app) stripTopicsCmd() *cobra.Command {
	var topics []string
	cmd := &cobra.Command{
		Use:   "strip-topics <recording> <new-recording>",
		Short: "Copy a recording without some topics (by default the transform topics)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, dst := args[0], args[1]
			return a.withStore(ctx, func(s *recording.Store) error {
				n, err := s.Count(ctx, src, topics...)
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("%w: none of %v in %s", evaluation.ErrNoData, topics, src)
				}
				copied, err := s.CopyExcluding(ctx, src, dst, topics)
				if err != nil {
					return err
				}
				a.printf("dropped %d messages, copied %d into %s\n", n, copied, dst)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&topics, "topic", evaluation.TransformTopics, "Topic to drop (repeatable)")
	return cmd
}

func (a *app) copyTopicsCmd() *cobra.Command {
	var (
		topics   []string
		keepTime bool
	)
	cmd := &cobra.Command{
		Use:   "copy-topics <from-recording> <into-recording>",
		Short: "Copy topics of one recording into another",
		Long: "Append the messages of --topic from one recording to another. Unless --keep-time is set " +
			"they are stored at the first timestamp of the target, so a map topic such as the global " +
			"waypoints is available from the start.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, dst := args[0], args[1]
			return a.withStore(ctx, func(s *recording.Store) error {
				var at *float64
				if !keepTime {
					t0, err := firstStamp(ctx, s, dst)
					if err != nil {
						return err
					}
					at = &t0
				}
				n, err := s.CopyTopics(ctx, src, dst, topics, at)
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("%w: none of %v in %s", evaluation.ErrNoData, topics, src)
				}
				a.printf("copied %d messages from %s into %s\n", n, src, dst)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&topics, "topic", []string{"/global_waypoints"}, "Topic to copy (repeatable)")
	cmd.Flags().BoolVar(&keepTime, "keep-time", false, "Keep the original timestamps")
	return cmd
}

// appendTo copies src to dst when dst is set and returns the recording the
// new messages go to.
func appendTo(ctx context.Context, s *recording.Store, src, dst string) (recording.Recording, error) {
	if dst != "" {
		if _, err := s.CopyRange(ctx, src, dst, nil, math.Inf(-1), math.Inf(1)); err != nil {
			return recording.Recording{}, err
		}
		src = dst
	}
	return s.Recording(ctx, src)
}

func (a *app) addTFCmd() *cobra.Command {
	var opts evaluation.TransformOptions
	cmd := &cobra.Command{
		Use:   "add-tf <recording> [new-recording]",
		Short: "Add /tf transforms built from an odometry topic",
		Long: "Build one map -> base_link transform per odometry message and add them on /tf. " +
			"With new-recording the recording is copied first and the transforms go to the copy.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.Topic == "" {
				opts.Topic = a.cfg.GetEstimateTopic()
			}
			dst := ""
			if len(args) == 2 {
				dst = args[1]
			}
			return a.withStore(ctx, func(s *recording.Store) error {
				tfs, err := evaluation.TransformsFromOdometry(ctx, s, args[0], opts)
				if err != nil {
					return err
				}
				rec, err := appendTo(ctx, s, args[0], dst)
				if err != nil {
					return err
				}
				if err := s.AppendMessages(ctx, rec.ID, tfs); err != nil {
					return err
				}
				a.printf("added %d transforms %s -> %s to %s\n", len(tfs), opts.FrameID, opts.ChildFrameID, rec.Name)
				return nil
			})
		},
	}
	defaults := evaluation.DefaultTransformOptions("")
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "Odometry topic (default: the estimate topic)")
	cmd.Flags().StringVar(&opts.PosePath, "pose-path", defaults.PosePath, "Dotted path of the pose in each message")
	cmd.Flags().StringVar(&opts.FrameID, "frame", defaults.FrameID, "Parent frame of the transforms")
	cmd.Flags().StringVar(&opts.ChildFrameID, "child-frame", defaults.ChildFrameID, "Child frame of the transforms")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "Restamp transforms at this rate in Hz (0 keeps the odometry stamps)")
	return cmd
}

func (a *app) npcOdometryCmd() *cobra.Command {
	var (
		opts    = evaluation.DefaultNPCOptions()
		mapPath string
	)
	cmd := &cobra.Command{
		Use:   "npc-odometry <recording> [new-recording]",
		Short: "Add odometry for an NPC that follows the waypoints of a map",
		Long: "Fit the velocity scalar the NPC drove the map's waypoints at, then add one odometry " +
			"message per NPC pose with the scaled waypoint speed and yaw rate.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if mapPath == "" {
				return fmt.Errorf("npc-odometry needs --map")
			}
			m, err := evaluation.ReadWaypointMap(mapPath)
			if err != nil {
				return err
			}
			wpnts, err := m.Points()
			if err != nil {
				return err
			}
			dst := ""
			if len(args) == 2 {
				dst = args[1]
			}
			return a.withStore(ctx, func(s *recording.Store) error {
				res, err := evaluation.NPCOdometry(ctx, s, args[0], wpnts, opts)
				if err != nil {
					return err
				}
				rec, err := appendTo(ctx, s, args[0], dst)
				if err != nil {
					return err
				}
				if err := s.AppendMessages(ctx, rec.ID, res.Messages); err != nil {
					return err
				}
				if err := a.record(ctx, s, rec.Name, "npc-odometry", res); err != nil {
					return err
				}
				a.printf("velocity scalar %.4f (error %.6f), added %d odometry messages to %s\n",
					res.Scalar, res.Error, len(res.Messages), rec.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mapPath, "map", "", "Global-waypoints JSON map the NPC follows")
	cmd.Flags().StringVar(&opts.PoseTopic, "pose-topic", opts.PoseTopic, "NPC pose topic")
	cmd.Flags().StringVar(&opts.OdomTopic, "odom-topic", opts.OdomTopic, "NPC odometry topic to write")
	cmd.Flags().Float64Var(&opts.InitialScalar, "initial", opts.InitialScalar, "Starting velocity scalar")
	return cmd
}
