package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"cellsim/internal/pcap"
)

func newTraceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Print the frames recorded in a base station trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			parser := pcap.NewParser()
			if statsOnly, _ := cmd.Flags().GetBool("stats-only"); statsOnly {
				return showTraceStats(parser, args[0])
			}
			return showTrace(parser, args[0])
		},
	}
	cmd.Flags().Bool("stats-only", false, "Show per-message counts only")
	return cmd
}

func showTrace(parser *pcap.Parser, filename string) error {
	records, err := parser.Parse(filename)
	if err != nil {
		return fmt.Errorf("failed to parse trace: %w", err)
	}

	for _, r := range records {
		dir := "BTS -> UE"
		if r.Inbound {
			dir = "UE -> BTS"
		}
		line := fmt.Sprintf("%s  conn=%-4d %s  ", r.Timestamp.Format("15:04:05.000000"), r.ConnID, dir)
		if r.Err != nil {
			fmt.Printf("%smalformed (%v) % x\n", line, r.Err, r.Data)
			continue
		}
		fmt.Printf("%s%s\n", line, r.Message)
	}
	fmt.Printf("%d frame(s)\n", len(records))
	return nil
}

func showTraceStats(parser *pcap.Parser, filename string) error {
	counts, err := parser.CountMessages(filename)
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Println("Trace Message Statistics:")
	total := 0
	for _, t := range types {
		fmt.Printf("  %-24s %d\n", t, counts[t])
		total += counts[t]
	}
	fmt.Printf("  %-24s %d\n", "Total:", total)
	return nil
}
