package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cellsim/internal/bts"
	"cellsim/internal/config"
	"cellsim/internal/pcap"
	"cellsim/internal/stats"
)

var btsBindings = []flagBinding{
	{"listen", "bts.listen"},
	{"id", "bts.id"},
	{"sib-interval", "bts.sib_interval_ms"},
	{"trace", "trace.file"},
	{"stats-export", "stats.export_file"},
	{"stats-interval", "stats.report_interval_sec"},
}

func newBtsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bts",
		Short: "Run the base station with an operator console on stdin",
		Args:  cobra.NoArgs,
		RunE:  runBts,
	}
	cmd.Flags().String("listen", "", "Listen address (host:port)")
	cmd.Flags().Uint32("id", 0, "Base station identifier")
	cmd.Flags().Int("sib-interval", 0, "System information broadcast interval in ms (0 disables)")
	cmd.Flags().String("trace", "", "Write every frame to this pcap file")
	cmd.Flags().String("stats-export", "", "Export statistics as JSON on exit")
	cmd.Flags().Int("stats-interval", 0, "Statistics report interval in seconds")
	cmd.Flags().Bool("no-console", false, "Do not read operator commands from stdin")
	return cmd
}

func runBts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, btsBindings)
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)
	if err := cfg.Validate(config.RoleBTS); err != nil {
		return err
	}

	fmt.Printf("cellsim BTS v%s\n", version)
	fmt.Println("==============================")
	fmt.Print(cfg.Summary())
	fmt.Println()

	ctx, cancel := signalContext()
	defer cancel()

	collector := stats.NewCollector()
	server := bts.NewServer(cfg.BtsConfig(), collector)
	if err := server.Listen(); err != nil {
		return err
	}

	if cfg.Trace.File != "" {
		tracer, err := pcap.Create(cfg.Trace.File)
		if err != nil {
			return err
		}
		defer func() {
			if err := tracer.Close(); err != nil {
				log.WithError(err).Warn("Failed to close trace")
			}
		}()
		server.Relay().SetTracer(tracer)
	}

	reporter := stats.NewReporter(collector, cfg.Stats.ReportIntervalSec, cfg.Stats.ExportFile)
	if cfg.Stats.Enabled {
		reporter.StartPeriodicReport(ctx)
	}

	if noConsole, _ := cmd.Flags().GetBool("no-console"); !noConsole {
		console := bts.NewConsole(server.Relay(), collector, server.Addr().String(), os.Stdout)
		go func() {
			if err := console.Run(ctx, os.Stdin); errors.Is(err, bts.ErrQuit) {
				cancel()
			}
		}()
	}

	err = server.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Base station failed")
	}

	if cfg.Stats.Enabled {
		reporter.PrintFinalReport()
		if err := reporter.ExportJSON(); err != nil {
			log.WithError(err).Warn("Failed to export statistics")
		}
	}
	return err
}
