package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trackmand/internal/facade"
	"trackmand/internal/logging"
	"trackmand/internal/metrics"
	"trackmand/internal/version"
)

type cliConfig struct {
	configPath    string
	logDir        string
	verbose       bool
	showVersion   bool
	metricsAddr   string
	trackCapacity int
	pointCapacity int
}

func main() {
	var cfg cliConfig

	rootCmd := &cobra.Command{
		Use:   "trackmand",
		Short: "Multi-target track management service",
		Long: `trackmand ingests upstream detection/association/prediction output,
maintains the authoritative state of every live track, serves operator-
initiated track fusion, and distributes track state over a fragmenting
UDP transport.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.showVersion {
				fmt.Printf("trackmand %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
				return nil
			}
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVarP(&cfg.configPath, "config", "c", "config/trackmand.ini", "Path to the configuration file")
	rootCmd.Flags().StringVarP(&cfg.logDir, "log-dir", "l", "", "Log directory (rotated); empty means stdout only")
	rootCmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&cfg.showVersion, "version", false, "Show version information")
	rootCmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address")
	rootCmd.Flags().IntVar(&cfg.trackCapacity, "track-capacity", 4096, "Maximum number of live tracks")
	rootCmd.Flags().IntVar(&cfg.pointCapacity, "point-capacity", 64, "Points retained per track")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg cliConfig) error {
	log, err := logging.New(logging.Config{LogDir: cfg.logDir, Verbose: cfg.verbose})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	log.WithFields(logrus.Fields{
		"version":    version.Version,
		"build_time": version.BuildTime,
		"git_commit": version.GitCommit,
	}).Info("starting trackmand")

	met := metrics.New(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := facade.New(ctx, facade.Options{
		ConfigPath:    cfg.configPath,
		TrackCapacity: cfg.trackCapacity,
		PointCapacity: cfg.pointCapacity,
	}, log, met)
	if err != nil {
		return fmt.Errorf("construct facade: %w", err)
	}

	go serveMetrics(cfg.metricsAddr, log)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		f.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("received shutdown signal")
	case <-runDone:
		log.Warn("facade run loop exited unexpectedly")
	}

	cancel()
	f.Stop()
	log.Info("trackmand shut down cleanly")
	return nil
}

func serveMetrics(addr string, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server exited")
	}
}
