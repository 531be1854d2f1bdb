// Package swarm runs many headless terminals in one process. It is used
// for load and soak testing a base station.
package swarm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"cellsim/internal/network"
	"cellsim/internal/ue"
	"cellsim/pkg/types"
)

// Config describes a swarm.
type Config struct {
	BtsAddress        string
	Count             int
	AddressStart      types.Address
	AddressEnd        types.Address
	AutoAnswer        bool
	ReconnectInterval time.Duration
	Timeouts          ue.Timeouts
	Transport         network.Options
}

// Counters aggregates what the swarm's terminals have seen.
type Counters struct {
	Attached      atomic.Int64
	SmsReceived   atomic.Int64
	CallsReceived atomic.Int64
	CallsAnswered atomic.Int64
	CallsEnded    atomic.Int64
	Errors        atomic.Int64
}

// Swarm owns a set of terminals and the addresses they were given.
type Swarm struct {
	cfg       Config
	pool      *AddressPool
	terminals []*ue.Terminal
	counters  Counters
}

// New allocates an address for every terminal and builds them.
func New(cfg Config) (*Swarm, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("swarm count must be positive, got %d", cfg.Count)
	}
	pool, err := NewAddressPool(cfg.AddressStart, cfg.AddressEnd)
	if err != nil {
		return nil, err
	}

	s := &Swarm{cfg: cfg, pool: pool}
	for i := 0; i < cfg.Count; i++ {
		addr, err := pool.Allocate()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate address for terminal %d: %w", i, err)
		}
		ui := newHeadlessUI(addr, cfg.AutoAnswer, &s.counters)
		term := ue.NewTerminal(ue.TerminalConfig{
			BtsAddress:        cfg.BtsAddress,
			Address:           addr,
			ReconnectInterval: cfg.ReconnectInterval,
			Timeouts:          cfg.Timeouts,
			Transport:         cfg.Transport,
		}, ui)
		ui.session = term.Session()
		s.terminals = append(s.terminals, term)
	}
	return s, nil
}

// Terminals returns the swarm's terminals.
func (s *Swarm) Terminals() []*ue.Terminal {
	return s.terminals
}

// Counters returns the shared event counters.
func (s *Swarm) Counters() *Counters {
	return &s.counters
}

// Run starts every terminal and waits until ctx is cancelled or one of them
// fails.
func (s *Swarm) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"count": len(s.terminals),
		"bts":   s.cfg.BtsAddress,
		"range": fmt.Sprintf("%s-%s", s.cfg.AddressStart, s.cfg.AddressEnd),
	}).Info("Starting swarm")

	eg, ctx := errgroup.WithContext(ctx)
	for _, term := range s.terminals {
		eg.Go(func() error {
			defer s.pool.Release(term.Session().Address())
			return term.Run(ctx)
		})
	}
	err := eg.Wait()

	log.WithFields(log.Fields{
		"sms_received":   s.counters.SmsReceived.Load(),
		"calls_received": s.counters.CallsReceived.Load(),
		"calls_answered": s.counters.CallsAnswered.Load(),
	}).Info("Swarm stopped")
	return err
}

// Summary counts terminals per session state.
func (s *Swarm) Summary() map[string]int {
	out := make(map[string]int)
	for _, term := range s.terminals {
		out[term.Session().StateName()]++
	}
	return out
}
