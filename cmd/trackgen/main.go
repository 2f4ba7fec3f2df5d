// trackgen is the "synthetic-track test generator" §1 names as an
// external collaborator: it drives the scheduler's fire-and-forget
// producer API directly (§6) to exercise a track store without a real
// upstream detection/association/prediction pipeline.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trackmand/internal/logging"
	"trackmand/internal/scheduler"
	"trackmand/internal/track"
	"trackmand/internal/visualizer"
)

type cliConfig struct {
	trackCapacity int
	pointCapacity int
	numTracks     int
	tickInterval  time.Duration
	verbose       bool
}

func main() {
	var cfg cliConfig

	rootCmd := &cobra.Command{
		Use:   "trackgen",
		Short: "Generate synthetic tracks against an in-process scheduler for manual exercising",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	rootCmd.Flags().IntVar(&cfg.trackCapacity, "track-capacity", 64, "Store capacity")
	rootCmd.Flags().IntVar(&cfg.pointCapacity, "point-capacity", 16, "Points retained per track")
	rootCmd.Flags().IntVar(&cfg.numTracks, "tracks", 8, "Number of synthetic tracks to create")
	rootCmd.Flags().DurationVar(&cfg.tickInterval, "tick", 500*time.Millisecond, "Interval between synthetic updates")
	rootCmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "Verbose logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg cliConfig) error {
	log, err := logging.New(logging.Config{Verbose: cfg.verbose})
	if err != nil {
		return err
	}

	store := track.NewStore(cfg.trackCapacity, cfg.pointCapacity)
	sink := visualizer.NewLogSink(log)
	sched := scheduler.New(store, sink, log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	defer sched.Stop()

	seeds := make([][4]track.Point, cfg.numTracks)
	for i := range seeds {
		base := 10.0 + float64(i)
		seeds[i] = [4]track.Point{
			syntheticPoint(base, 0),
			syntheticPoint(base, 1),
			syntheticPoint(base, 2),
			syntheticPoint(base, 3),
		}
	}
	sched.CreateTrackCommand(seeds)

	log.WithField("count", cfg.numTracks).Info("trackgen: created synthetic tracks")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.tickInterval)
	defer ticker.Stop()

	step := 4
	for {
		select {
		case <-sigCh:
			log.Info("trackgen: shutting down")
			return nil

		case <-ticker.C:
			ids := sink.Latest().ActiveIDs
			if len(ids) == 0 {
				continue
			}

			var entries []scheduler.AddEntry
			var drawn []track.Point
			for _, id := range ids {
				p := syntheticPoint(float64(id)+10.0, step)
				entries = append(entries, scheduler.AddEntry{Header: track.Header{ID: id}, Point: p})
				drawn = append(drawn, p)
			}
			sched.DrawPointCommand(drawn)
			sched.AddTrackCommand(entries)
			step++

			if len(ids) >= 2 && rand.Intn(10) == 0 {
				sched.MergeCommand(ids[0], ids[1])
				log.WithField("source", ids[0]).WithField("target", ids[1]).Info("trackgen: requested fusion")
			}
		}
	}
}

func syntheticPoint(base float64, step int) track.Point {
	return track.Point{
		Longitude:        base + float64(step)*0.01,
		Latitude:         base + float64(step)*0.01,
		SpeedOverGround:  120,
		CourseOverGround: 90,
		ObservationAngle: 45,
		ObservationRange: 1000,
		Associated:       true,
		TimestampMillis:  time.Now().UnixMilli(),
	}
}
