package network

import (
	"context"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// Listener accepts transport connections from terminals.
type Listener struct {
	ln   net.Listener
	opts Options
}

// Listen binds a TCP listener on addr.
func Listen(addr string, opts Options) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Listener{ln: ln, opts: opts.withDefaults()}, nil
}

// Serve accepts connections until ctx is cancelled, handing each one to
// handle. The handler registers its callbacks and calls Start.
func (l *Listener) Serve(ctx context.Context, handle func(*Conn)) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		c, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithError(err).Warn("Error accepting connection")
			continue
		}
		log.WithField("remote", c.RemoteAddr()).Debug("Accepted connection")
		handle(NewConn(c, l.opts))
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
