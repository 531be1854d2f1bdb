package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cellsim/internal/config"
	"cellsim/internal/ue/swarm"
)

var swarmBindings = []flagBinding{
	{"bts", "ue.bts_address"},
	{"count", "swarm.count"},
	{"address-start", "swarm.address_start"},
	{"address-end", "swarm.address_end"},
	{"auto-answer", "swarm.auto_answer"},
	{"reconnect-interval", "ue.reconnect_interval_ms"},
}

func newSwarmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Run many headless terminals in one process",
		Args:  cobra.NoArgs,
		RunE:  runSwarm,
	}
	cmd.Flags().String("bts", "", "Base station address (host:port)")
	cmd.Flags().Int("count", 0, "Number of terminals")
	cmd.Flags().Int("address-start", 0, "First phone number handed out")
	cmd.Flags().Int("address-end", 0, "Last phone number handed out")
	cmd.Flags().Bool("auto-answer", true, "Accept incoming calls automatically")
	cmd.Flags().Int("reconnect-interval", 0, "Delay before redialing the base station in ms")
	cmd.Flags().Duration("report", 10*time.Second, "Interval between state summaries (0 disables)")
	return cmd
}

func runSwarm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, swarmBindings)
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)
	if err := cfg.Validate(config.RoleSwarm); err != nil {
		return err
	}

	fmt.Printf("cellsim swarm v%s\n", version)
	fmt.Println("==============================")
	fmt.Print(cfg.Summary())
	fmt.Println()

	s, err := swarm.New(cfg.SwarmConfig())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if interval, _ := cmd.Flags().GetDuration("report"); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					log.WithField("states", formatSummary(s.Summary())).Info("Swarm status")
				}
			}
		}()
	}

	err = s.Run(ctx)

	c := s.Counters()
	fmt.Println("Swarm Summary:")
	fmt.Printf("  %-20s %d\n", "Attached:", c.Attached.Load())
	fmt.Printf("  %-20s %d\n", "SMS received:", c.SmsReceived.Load())
	fmt.Printf("  %-20s %d\n", "Calls received:", c.CallsReceived.Load())
	fmt.Printf("  %-20s %d\n", "Calls answered:", c.CallsAnswered.Load())
	fmt.Printf("  %-20s %d\n", "Calls ended:", c.CallsEnded.Load())
	fmt.Printf("  %-20s %d\n", "Errors:", c.Errors.Load())
	return err
}

func formatSummary(summary map[string]int) string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for i, name := range names {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", name, summary[name])
	}
	return out
}
