package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cellsim/internal/bts"
	"cellsim/internal/network"
	"cellsim/internal/ue"
	"cellsim/internal/ue/swarm"
	"cellsim/pkg/types"
)

// Config holds all configuration for the base station and the terminals.
type Config struct {
	BTS       BTSConfig       `yaml:"bts"       mapstructure:"bts"`
	UE        UEConfig        `yaml:"ue"        mapstructure:"ue"`
	Timers    TimersConfig    `yaml:"timers"    mapstructure:"timers"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Swarm     SwarmConfig     `yaml:"swarm"     mapstructure:"swarm"`
	Sms       SmsConfig       `yaml:"sms"       mapstructure:"sms"`
	Trace     TraceConfig     `yaml:"trace"     mapstructure:"trace"`
	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	Stats     StatsConfig     `yaml:"stats"     mapstructure:"stats"`
}

type BTSConfig struct {
	Listen        string `yaml:"listen"          mapstructure:"listen"`
	ID            uint32 `yaml:"id"              mapstructure:"id"`
	SibIntervalMs int    `yaml:"sib_interval_ms" mapstructure:"sib_interval_ms"`
}

type UEConfig struct {
	BtsAddress          string `yaml:"bts_address"           mapstructure:"bts_address"`
	Address             int    `yaml:"address"               mapstructure:"address"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms" mapstructure:"reconnect_interval_ms"`
}

type TimersConfig struct {
	AttachMs         int `yaml:"attach_ms"          mapstructure:"attach_ms"`
	CallRequestMs    int `yaml:"call_request_ms"    mapstructure:"call_request_ms"`
	CallResponseMs   int `yaml:"call_response_ms"   mapstructure:"call_response_ms"`
	TalkInactivityMs int `yaml:"talk_inactivity_ms" mapstructure:"talk_inactivity_ms"`
}

type TransportConfig struct {
	MaxFrameBytes int `yaml:"max_frame_bytes" mapstructure:"max_frame_bytes"`
	SendQueue     int `yaml:"send_queue"      mapstructure:"send_queue"`
}

type SwarmConfig struct {
	Count        int  `yaml:"count"         mapstructure:"count"`
	AddressStart int  `yaml:"address_start" mapstructure:"address_start"`
	AddressEnd   int  `yaml:"address_end"   mapstructure:"address_end"`
	AutoAnswer   bool `yaml:"auto_answer"   mapstructure:"auto_answer"`
}

type SmsConfig struct {
	ExportFile string `yaml:"export_file" mapstructure:"export_file"`
}

type TraceConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"   mapstructure:"level"`
	File    string `yaml:"file"    mapstructure:"file"`
	Console bool   `yaml:"console" mapstructure:"console"`
}

type StatsConfig struct {
	Enabled           bool   `yaml:"enabled"             mapstructure:"enabled"`
	ReportIntervalSec int    `yaml:"report_interval_sec" mapstructure:"report_interval_sec"`
	ExportFile        string `yaml:"export_file"         mapstructure:"export_file"`
}

// SetDefaults configures default values for the configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bts.listen", "127.0.0.1:7000")
	v.SetDefault("bts.id", 1)
	v.SetDefault("bts.sib_interval_ms", 5000)
	v.SetDefault("ue.bts_address", "127.0.0.1:7000")
	v.SetDefault("ue.reconnect_interval_ms", 2000)
	v.SetDefault("timers.attach_ms", 500)
	v.SetDefault("timers.call_request_ms", 62000)
	v.SetDefault("timers.call_response_ms", 30000)
	v.SetDefault("timers.talk_inactivity_ms", 120000)
	v.SetDefault("transport.max_frame_bytes", 64*1024)
	v.SetDefault("transport.send_queue", 256)
	v.SetDefault("swarm.count", 10)
	v.SetDefault("swarm.address_start", 100)
	v.SetDefault("swarm.address_end", 254)
	v.SetDefault("swarm.auto_answer", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("stats.enabled", true)
	v.SetDefault("stats.report_interval_sec", 10)
}

// Load reads configuration from a YAML file and returns a Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithViper reads configuration using an existing viper instance (for CLI flag binding).
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Timeouts returns the session timer values.
func (c *Config) Timeouts() ue.Timeouts {
	return ue.Timeouts{
		Attach:         ms(c.Timers.AttachMs),
		CallRequest:    ms(c.Timers.CallRequestMs),
		CallResponse:   ms(c.Timers.CallResponseMs),
		TalkInactivity: ms(c.Timers.TalkInactivityMs),
	}
}

// TransportOptions returns the framing options shared by both ends.
func (c *Config) TransportOptions() network.Options {
	return network.Options{
		MaxFrameBytes: c.Transport.MaxFrameBytes,
		SendQueue:     c.Transport.SendQueue,
	}
}

// BtsConfig returns the base station settings.
func (c *Config) BtsConfig() bts.Config {
	return bts.Config{
		Listen:      c.BTS.Listen,
		BtsID:       types.BtsID(c.BTS.ID),
		SibInterval: ms(c.BTS.SibIntervalMs),
		Transport:   c.TransportOptions(),
	}
}

// TerminalConfig returns the settings of the single interactive terminal.
func (c *Config) TerminalConfig() ue.TerminalConfig {
	return ue.TerminalConfig{
		BtsAddress:        c.UE.BtsAddress,
		Address:           types.Address(c.UE.Address),
		ReconnectInterval: ms(c.UE.ReconnectIntervalMs),
		Timeouts:          c.Timeouts(),
		Transport:         c.TransportOptions(),
	}
}

// SwarmConfig returns the headless multi-terminal settings.
func (c *Config) SwarmConfig() swarm.Config {
	return swarm.Config{
		BtsAddress:        c.UE.BtsAddress,
		Count:             c.Swarm.Count,
		AddressStart:      types.Address(c.Swarm.AddressStart),
		AddressEnd:        types.Address(c.Swarm.AddressEnd),
		AutoAnswer:        c.Swarm.AutoAnswer,
		ReconnectInterval: ms(c.UE.ReconnectIntervalMs),
		Timeouts:          c.Timeouts(),
		Transport:         c.TransportOptions(),
	}
}

// Summary returns a human-readable summary of the configuration.
func (c *Config) Summary() string {
	var sb strings.Builder
	sb.WriteString("Configuration:\n")
	sb.WriteString(fmt.Sprintf("  BTS:           %s (id %d, sib every %dms)\n", c.BTS.Listen, c.BTS.ID, c.BTS.SibIntervalMs))
	sb.WriteString(fmt.Sprintf("  UE:            address %d via %s\n", c.UE.Address, c.UE.BtsAddress))
	sb.WriteString(fmt.Sprintf("  Reconnect:     %dms\n", c.UE.ReconnectIntervalMs))
	sb.WriteString(fmt.Sprintf("  Timers:        attach=%dms call_request=%dms call_response=%dms talk=%dms\n",
		c.Timers.AttachMs, c.Timers.CallRequestMs, c.Timers.CallResponseMs, c.Timers.TalkInactivityMs))
	sb.WriteString(fmt.Sprintf("  Transport:     max_frame=%dB queue=%d\n", c.Transport.MaxFrameBytes, c.Transport.SendQueue))
	sb.WriteString(fmt.Sprintf("  Swarm:         %d UEs in %d-%d (auto_answer=%v)\n",
		c.Swarm.Count, c.Swarm.AddressStart, c.Swarm.AddressEnd, c.Swarm.AutoAnswer))
	if c.Trace.File != "" {
		sb.WriteString(fmt.Sprintf("  Trace:         %s\n", c.Trace.File))
	}
	if c.Sms.ExportFile != "" {
		sb.WriteString(fmt.Sprintf("  SMS export:    %s\n", c.Sms.ExportFile))
	}
	return sb.String()
}
