package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MessageCallback receives one complete frame.
type MessageCallback func(data []byte)

// DisconnectedCallback is invoked once when the connection goes away.
type DisconnectedCallback func()

// Conn carries length-prefixed frames over a stream connection. Received
// frames are delivered to the message callback from a dedicated reader
// goroutine; sends are queued and written by a writer goroutine.
type Conn struct {
	conn net.Conn
	opts Options

	mu             sync.Mutex
	onMessage      MessageCallback
	onDisconnected DisconnectedCallback
	started        bool

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn wraps an established stream connection.
func NewConn(c net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		conn:   c,
		opts:   opts,
		out:    make(chan []byte, opts.SendQueue),
		closed: make(chan struct{}),
	}
}

// Dial connects to a listening peer.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewConn(c, opts), nil
}

// RegisterMessageCallback sets the receiver of inbound frames.
func (c *Conn) RegisterMessageCallback(fn MessageCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// RegisterDisconnectedCallback sets the function called when the connection closes.
func (c *Conn) RegisterDisconnectedCallback(fn DisconnectedCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnected = fn
}

// Start begins reading and writing in background goroutines.
func (c *Conn) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()
}

// SendMessage queues a frame for sending. It never blocks and reports false
// if the connection is closed or its send queue is full.
func (c *Conn) SendMessage(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		log.WithField("remote", c.RemoteAddr()).Warn("Send queue full, dropping frame")
		return false
	}
}

// Close shuts the connection down. The disconnected callback fires once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()

		c.mu.Lock()
		fn := c.onDisconnected
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	return err
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) readLoop() {
	defer c.Close()

	r := bufio.NewReader(c.conn)
	for {
		data, err := readFrame(r, c.opts.MaxFrameBytes)
		if err != nil {
			select {
			case <-c.closed:
			default:
				if errors.Is(err, io.EOF) {
					log.WithField("remote", c.RemoteAddr()).Debug("Peer closed connection")
				} else {
					log.WithError(err).WithField("remote", c.RemoteAddr()).Warn("Error reading frame")
				}
			}
			return
		}

		c.mu.Lock()
		fn := c.onMessage
		c.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}

func (c *Conn) writeLoop() {
	w := bufio.NewWriter(c.conn)
	for {
		select {
		case <-c.closed:
			return
		case data := <-c.out:
			if err := writeFrame(w, data, c.opts.MaxFrameBytes); err != nil {
				if errors.Is(err, ErrFrameTooLarge) {
					log.WithError(err).Error("Refusing to send oversized frame")
					continue
				}
				log.WithError(err).WithField("remote", c.RemoteAddr()).Error("Error writing frame")
				c.Close()
				return
			}
			if len(c.out) == 0 {
				if err := w.Flush(); err != nil {
					log.WithError(err).WithField("remote", c.RemoteAddr()).Error("Error flushing frames")
					c.Close()
					return
				}
			}
		}
	}
}
