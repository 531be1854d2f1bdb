// Package bts is the base station process: it accepts terminal connections,
// announces itself periodically and hands every frame to the relay.
package bts

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"cellsim/internal/network"
	"cellsim/internal/relay"
	"cellsim/internal/stats"
	"cellsim/pkg/types"
)

// Config holds the base station settings.
type Config struct {
	Listen      string
	BtsID       types.BtsID
	SibInterval time.Duration
	Transport   network.Options
}

// Server accepts terminal connections and wires them into the relay.
type Server struct {
	cfg   Config
	relay *relay.Relay
	stats *stats.Collector
	log   *log.Entry

	ln *network.Listener

	mu    sync.Mutex
	conns map[*network.Conn]struct{}
}

// NewServer creates a base station. collector may be nil.
func NewServer(cfg Config, collector *stats.Collector) *Server {
	if collector == nil {
		collector = stats.NewCollector()
	}
	return &Server{
		cfg:   cfg,
		relay: relay.New(cfg.BtsID, collector),
		stats: collector,
		log:   log.WithFields(log.Fields{"component": "bts", "bts": cfg.BtsID}),
		conns: make(map[*network.Conn]struct{}),
	}
}

// Relay returns the server's relay for queries and operator actions.
func (s *Server) Relay() *relay.Relay {
	return s.relay
}

// Stats returns the server's statistics collector.
func (s *Server) Stats() *stats.Collector {
	return s.stats
}

// Listen binds the listening socket. Run calls it when needed.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := network.Listen(s.cfg.Listen, s.cfg.Transport)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run serves terminals until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return fmt.Errorf("failed to start base station: %w", err)
	}
	s.log.WithFields(log.Fields{
		"listen":       s.ln.Addr().String(),
		"sib_interval": s.cfg.SibInterval,
	}).Info("Base station listening")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.ln.Serve(ctx, s.accept)
	})
	if s.cfg.SibInterval > 0 {
		eg.Go(func() error {
			s.broadcastLoop(ctx)
			return nil
		})
	}
	err := eg.Wait()

	s.closeAll()
	s.stats.Finish()
	s.log.Info("Base station stopped")
	return err
}

func (s *Server) accept(c *network.Conn) {
	id := s.relay.Add(c)
	c.RegisterMessageCallback(func(data []byte) {
		s.relay.HandleFrame(id, data)
	})
	c.RegisterDisconnectedCallback(func() {
		s.relay.Remove(id)
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	c.Start()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SibInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.relay.BroadcastSystemInfo()
			s.log.WithField("connections", n).Debug("System information broadcast")
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*network.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
