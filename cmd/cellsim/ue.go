package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cellsim/internal/config"
	"cellsim/internal/ue"
	"cellsim/internal/ue/tui"
)

var ueBindings = []flagBinding{
	{"bts", "ue.bts_address"},
	{"address", "ue.address"},
	{"reconnect-interval", "ue.reconnect_interval_ms"},
	{"sms-export", "sms.export_file"},
	{"call-request-timeout", "timers.call_request_ms"},
	{"call-response-timeout", "timers.call_response_ms"},
	{"talk-timeout", "timers.talk_inactivity_ms"},
}

func newUECommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ue",
		Short: "Run one interactive terminal",
		Args:  cobra.NoArgs,
		RunE:  runUE,
	}
	cmd.Flags().String("bts", "", "Base station address (host:port)")
	cmd.Flags().Int("address", 0, "Phone number of this terminal (1-255)")
	cmd.Flags().Int("reconnect-interval", 0, "Delay before redialing the base station in ms")
	cmd.Flags().String("sms-export", "", "Write the SMS store to this YAML file on exit")
	cmd.Flags().Int("call-request-timeout", 0, "Outgoing call setup timeout in ms")
	cmd.Flags().Int("call-response-timeout", 0, "Time to answer an incoming call in ms")
	cmd.Flags().Int("talk-timeout", 0, "Call inactivity timeout in ms")
	return cmd
}

func runUE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, ueBindings)
	if err != nil {
		return err
	}
	// The screen belongs to the user interface; logs go to the file or nowhere.
	setupLogging(cfg, io.Discard)
	if err := cfg.Validate(config.RoleUE); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	ui := tui.NewUI()
	terminal := ue.NewTerminal(cfg.TerminalConfig(), ui)
	program := tea.NewProgram(tui.New(ui, terminal.Session()), tea.WithAltScreen(), tea.WithContext(ctx))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return terminal.Run(egCtx)
	})
	eg.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("user interface failed: %w", err)
		}
		return nil
	})
	err = eg.Wait()

	if cfg.Sms.ExportFile != "" {
		if exportErr := terminal.Session().Sms().Export(terminal.Session().Address(), cfg.Sms.ExportFile); exportErr != nil {
			log.WithError(exportErr).Warn("Failed to export SMS store")
		} else {
			fmt.Printf("SMS store written to %s\n", cfg.Sms.ExportFile)
		}
	}
	return err
}
