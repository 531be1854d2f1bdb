package config

import (
	"fmt"
	"net"
	"strings"
)

// Role selects which part of the configuration Validate checks.
type Role int

const (
	RoleBTS Role = iota
	RoleUE
	RoleSwarm
)

func validHostPort(s string) bool {
	_, port, err := net.SplitHostPort(s)
	return err == nil && port != ""
}

func validAddress(n int) bool {
	return n >= 1 && n <= 255
}

// Validate checks that the configuration is valid for the given role.
func (c *Config) Validate(role Role) error {
	var errs []string

	switch role {
	case RoleBTS:
		if !validHostPort(c.BTS.Listen) {
			errs = append(errs, fmt.Sprintf("bts.listen must be host:port, got %q", c.BTS.Listen))
		}
		if c.BTS.SibIntervalMs < 0 {
			errs = append(errs, "bts.sib_interval_ms must be >= 0")
		}
	case RoleUE, RoleSwarm:
		if !validHostPort(c.UE.BtsAddress) {
			errs = append(errs, fmt.Sprintf("ue.bts_address must be host:port, got %q", c.UE.BtsAddress))
		}
		if c.UE.ReconnectIntervalMs <= 0 {
			errs = append(errs, "ue.reconnect_interval_ms must be > 0")
		}

		timers := []struct {
			key string
			ms  int
		}{
			{"timers.attach_ms", c.Timers.AttachMs},
			{"timers.call_request_ms", c.Timers.CallRequestMs},
			{"timers.call_response_ms", c.Timers.CallResponseMs},
			{"timers.talk_inactivity_ms", c.Timers.TalkInactivityMs},
		}
		for _, t := range timers {
			if t.ms <= 0 {
				errs = append(errs, fmt.Sprintf("%s must be > 0", t.key))
			}
		}

		if role == RoleUE && !validAddress(c.UE.Address) {
			errs = append(errs, fmt.Sprintf("ue.address must be between 1 and 255, got %d", c.UE.Address))
		}
		if role == RoleSwarm {
			if !validAddress(c.Swarm.AddressStart) || !validAddress(c.Swarm.AddressEnd) {
				errs = append(errs, fmt.Sprintf("swarm address range must lie within 1-255, got %d-%d",
					c.Swarm.AddressStart, c.Swarm.AddressEnd))
			} else if c.Swarm.AddressStart > c.Swarm.AddressEnd {
				errs = append(errs, fmt.Sprintf("swarm.address_start %d is above swarm.address_end %d",
					c.Swarm.AddressStart, c.Swarm.AddressEnd))
			} else if c.Swarm.Count > c.Swarm.AddressEnd-c.Swarm.AddressStart+1 {
				errs = append(errs, fmt.Sprintf("swarm.count %d exceeds the %d addresses in range",
					c.Swarm.Count, c.Swarm.AddressEnd-c.Swarm.AddressStart+1))
			}
			if c.Swarm.Count <= 0 {
				errs = append(errs, "swarm.count must be > 0")
			}
		}
	}

	if c.Transport.MaxFrameBytes < 0 {
		errs = append(errs, "transport.max_frame_bytes must be >= 0")
	}
	if c.Transport.SendQueue < 0 {
		errs = append(errs, "transport.send_queue must be >= 0")
	}

	// Log level must be valid
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level))
	}

	if c.Stats.Enabled && c.Stats.ReportIntervalSec < 0 {
		errs = append(errs, "stats.report_interval_sec must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
