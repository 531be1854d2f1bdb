package ue

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"cellsim/internal/network"
	"cellsim/internal/timer"
	"cellsim/pkg/types"
)

// TerminalConfig holds the settings of one simulated terminal.
type TerminalConfig struct {
	BtsAddress        string
	Address           types.Address
	ReconnectInterval time.Duration
	Timeouts          Timeouts
	Transport         network.Options
}

// Terminal binds a Session to a live connection and a timer. It keeps
// redialing the base station whenever the connection is lost.
type Terminal struct {
	cfg     TerminalConfig
	session *Session
	timer   *timer.Timer
	log     *log.Entry

	mu   sync.Mutex
	conn *network.Conn
}

// NewTerminal creates a terminal whose session reports to ui.
func NewTerminal(cfg TerminalConfig, ui UserPort) *Terminal {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = time.Second
	}
	t := &Terminal{
		cfg:   cfg,
		timer: timer.New(),
		log:   log.WithFields(log.Fields{"component": "terminal", "address": cfg.Address}),
	}
	t.session = NewSession(cfg.Address, t, t.timer, ui, cfg.Timeouts)
	t.timer.RegisterHandler(func(kind timer.Kind, epoch uint64) {
		t.log.WithField("kind", kind).Debug("Timer expired")
		t.session.HandleTimeout(epoch)
	})
	return t
}

// Session returns the terminal's state machine.
func (t *Terminal) Session() *Session {
	return t.session
}

// SendMessage forwards a frame to the current connection. It reports false
// while no connection is up.
func (t *Terminal) SendMessage(data []byte) bool {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return false
	}
	return conn.SendMessage(data)
}

// Run connects to the base station and serves the session until ctx is
// cancelled.
func (t *Terminal) Run(ctx context.Context) error {
	t.session.Start()
	defer t.timer.StopTimer()

	for {
		conn, err := network.Dial(ctx, t.cfg.BtsAddress, t.cfg.Transport)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.log.WithError(err).Warn("Failed to reach base station, retrying")
		} else {
			t.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			t.log.WithField("retry_in", t.cfg.ReconnectInterval).Info("Connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.cfg.ReconnectInterval):
		}
	}
}

func (t *Terminal) serve(ctx context.Context, conn *network.Conn) {
	conn.RegisterMessageCallback(t.session.HandleMessage)
	conn.RegisterDisconnectedCallback(t.session.HandleDisconnected)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.log.WithField("bts", t.cfg.BtsAddress).Info("Connected to base station")
	conn.Start()

	select {
	case <-ctx.Done():
		conn.Close()
	case <-conn.Done():
	}

	t.mu.Lock()
	t.conn = nil
	t.mu.Unlock()
}
