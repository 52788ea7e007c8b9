package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/zulandar/inboxd/internal/allocation"
	"github.com/zulandar/inboxd/internal/api"
	"github.com/zulandar/inboxd/internal/config"
	"github.com/zulandar/inboxd/internal/db"
	"github.com/zulandar/inboxd/internal/events"
	"github.com/zulandar/inboxd/internal/grace"
	"github.com/zulandar/inboxd/internal/metrics"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the grace period sweeper",
		Long:  "Migrates the store, then serves the allocation API and sweeps expired grace periods on the configured schedule until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to inboxd config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides http.port)")
	return cmd
}

// newPublisher connects to the configured broker, or returns a publisher
// that drops events when none is configured.
func newPublisher(c config.EventsConfig, log *slog.Logger) (events.Publisher, error) {
	if c.AMQPURL == "" {
		return events.Nop{}, nil
	}
	return events.NewAMQP(c.AMQPURL, c.Exchange, log)
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.HTTP.Port = port
	}
	log := newLogger(cfg.Log, cmd.ErrOrStderr())

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	pub, err := newPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	engine := allocation.New(gormDB, allocation.Options{
		Logger:         log,
		Publisher:      pub,
		Metrics:        m,
		CandidateLimit: cfg.Allocation.CandidateLimit,
	})
	ledger := grace.New(gormDB, grace.Options{Logger: log, Publisher: pub, Metrics: m})
	sweeper, err := grace.NewSweeper(ledger, cfg.Grace.SweepSchedule)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sweeper.Run(ctx)

	err = api.Start(ctx, api.Options{
		DB:           gormDB,
		Engine:       engine,
		Ledger:       ledger,
		Gatherer:     reg,
		Logger:       log,
		GraceMinutes: cfg.Grace.Minutes,
		Port:         cfg.HTTP.Port,
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one grace period expiry pass",
		Long:  "Returns every conversation whose grace period has lapsed to the queue, then exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to inboxd config file")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log, cmd.ErrOrStderr())
	pub, err := newPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	ledger := grace.New(gormDB, grace.Options{Logger: log, Publisher: pub})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := ledger.ProcessExpiry(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Expired %d, reclaimed %d, skipped %d, failed %d\n",
		res.Expired, res.Reclaimed, res.Skipped, res.Failed)
	return nil
}
