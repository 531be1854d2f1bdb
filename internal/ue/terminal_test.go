package ue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellsim/internal/codec"
	"cellsim/internal/network"
	"cellsim/pkg/types"
)

// stubBts accepts terminal connections and hands every received frame to
// a channel.
type stubBts struct {
	ln     *network.Listener
	conns  chan *network.Conn
	frames chan codec.Message
}

func startStubBts(t *testing.T, ctx context.Context) *stubBts {
	t.Helper()
	ln, err := network.Listen("127.0.0.1:0", network.DefaultOptions())
	require.NoError(t, err)

	b := &stubBts{ln: ln, conns: make(chan *network.Conn, 4), frames: make(chan codec.Message, 16)}
	go ln.Serve(ctx, func(c *network.Conn) {
		c.RegisterMessageCallback(func(data []byte) {
			if m, err := codec.Decode(data); err == nil {
				b.frames <- m
			}
		})
		c.Start()
		b.conns <- c
	})
	return b
}

func (b *stubBts) send(t *testing.T, c *network.Conn, m codec.Message) {
	t.Helper()
	data, err := codec.Encode(m)
	require.NoError(t, err)
	require.True(t, c.SendMessage(data))
}

func (b *stubBts) nextConn(t *testing.T) *network.Conn {
	t.Helper()
	select {
	case c := <-b.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("terminal did not connect")
		return nil
	}
}

func (b *stubBts) nextFrame(t *testing.T) codec.Message {
	t.Helper()
	select {
	case m := <-b.frames:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return codec.Message{}
	}
}

func TestTerminal_AttachAndReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bts := startStubBts(t, ctx)

	term := NewTerminal(TerminalConfig{
		BtsAddress:        bts.ln.Addr().String(),
		Address:           42,
		ReconnectInterval: 50 * time.Millisecond,
		Timeouts:          DefaultTimeouts(),
		Transport:         network.DefaultOptions(),
	}, &fakeUI{})

	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	conn := bts.nextConn(t)
	bts.send(t, conn, codec.NewSystemInfoBroadcast(types.InvalidAddress, types.InvalidAddress, 7))

	req := bts.nextFrame(t)
	assert.Equal(t, codec.AttachRequest, req.ID)
	assert.Equal(t, types.Address(42), req.Source)
	assert.Equal(t, types.BtsID(7), req.Bts)

	bts.send(t, conn, codec.NewAttachResponse(types.InvalidAddress, 42, true))
	require.Eventually(t, func() bool {
		return term.Session().StateName() == "Connected"
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return term.Session().StateName() == "NotConnected"
	}, 2*time.Second, 10*time.Millisecond)

	// the terminal dials again and attaches on the next broadcast
	conn = bts.nextConn(t)
	bts.send(t, conn, codec.NewSystemInfoBroadcast(types.InvalidAddress, types.InvalidAddress, 7))
	assert.Equal(t, codec.AttachRequest, bts.nextFrame(t).ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal did not stop")
	}
}

func TestTerminal_SendWithoutConnection(t *testing.T) {
	term := NewTerminal(TerminalConfig{BtsAddress: "127.0.0.1:1", Address: 1}, &fakeUI{})
	assert.False(t, term.SendMessage([]byte{1, 2, 3}))
}

func TestTerminal_AttachTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bts := startStubBts(t, ctx)

	timeouts := DefaultTimeouts()
	timeouts.Attach = 30 * time.Millisecond
	term := NewTerminal(TerminalConfig{
		BtsAddress: bts.ln.Addr().String(),
		Address:    9,
		Timeouts:   timeouts,
	}, &fakeUI{})
	go term.Run(ctx)

	conn := bts.nextConn(t)
	bts.send(t, conn, codec.NewSystemInfoBroadcast(types.InvalidAddress, types.InvalidAddress, 1))
	bts.nextFrame(t)

	require.Eventually(t, func() bool {
		return term.Session().StateName() == "NotConnected"
	}, 2*time.Second, 10*time.Millisecond)
}
