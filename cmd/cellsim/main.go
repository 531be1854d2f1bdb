package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cellsim/internal/config"
)

var (
	version = "1.0.0"
	cfgFile string
)

// flagBinding maps a command-line flag onto a configuration key.
type flagBinding struct {
	flag string
	key  string
}

var commonBindings = []flagBinding{
	{"log-level", "logging.level"},
	{"log-file", "logging.file"},
	{"max-frame-bytes", "transport.max_frame_bytes"},
	{"send-queue", "transport.send_queue"},
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "cellsim",
		Short: "Cellular access network simulator",
		Long: `cellsim simulates a small cellular access network: a base station (BTS)
relaying SMS and voice-call signalling between simulated mobile terminals (UEs)
over TCP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default: ./cellsim.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().Int("max-frame-bytes", 0, "Largest accepted frame in bytes")
	rootCmd.PersistentFlags().Int("send-queue", 0, "Outbound frames buffered per connection")

	rootCmd.AddCommand(newBtsCommand(), newUECommand(), newSwarmCommand(), newTraceCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file and any flags the user set.
func loadConfig(cmd *cobra.Command, bindings []flagBinding) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cellsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK if using CLI flags
		log.Debug("No config file found, using defaults and CLI flags")
	}

	bindViperFlags(v, cmd, append(commonBindings, bindings...))

	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// bindViperFlags overrides config values with the flags that were set
// explicitly on the command line.
func bindViperFlags(v *viper.Viper, cmd *cobra.Command, bindings []flagBinding) {
	for _, b := range bindings {
		if !cmd.Flags().Changed(b.flag) {
			continue
		}
		v.Set(b.key, cmd.Flags().Lookup(b.flag).Value.String())
	}
}

// setupLogging configures logrus. fallback receives the logs when no log
// file is configured.
func setupLogging(cfg *config.Config, fallback io.Writer) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(fallback)

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, using console only")
		} else {
			log.SetOutput(f)
		}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
