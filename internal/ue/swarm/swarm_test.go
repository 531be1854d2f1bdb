package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellsim/internal/bts"
	"cellsim/internal/codec"
	"cellsim/internal/ue"
)

func startBts(t *testing.T) *bts.Server {
	t.Helper()
	srv := bts.NewServer(bts.Config{Listen: "127.0.0.1:0", BtsID: 3}, nil)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)
	t.Cleanup(cancel)
	return srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Count: 0, AddressStart: 1, AddressEnd: 10})
	assert.Error(t, err)

	_, err = New(Config{Count: 5, AddressStart: 1, AddressEnd: 3})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")

	s, err := New(Config{Count: 3, AddressStart: 10, AddressEnd: 20})
	require.NoError(t, err)
	require.Len(t, s.Terminals(), 3)
	assert.Equal(t, "10", s.Terminals()[0].Session().Address().String())
	assert.Equal(t, "12", s.Terminals()[2].Session().Address().String())
}

func TestSwarm_AttachesAndAutoAnswers(t *testing.T) {
	srv := startBts(t)

	s, err := New(Config{
		BtsAddress:        srv.Addr().String(),
		Count:             3,
		AddressStart:      50,
		AddressEnd:        60,
		AutoAnswer:        true,
		ReconnectInterval: 50 * time.Millisecond,
		Timeouts:          ue.DefaultTimeouts(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Summary()["Connected"] == 3
	}, 3*time.Second, 20*time.Millisecond)

	caller := s.Terminals()[0].Session().Address()
	callee := s.Terminals()[1].Session()
	require.True(t, srv.Relay().Route(codec.NewCallRequest(caller, callee.Address())))

	require.Eventually(t, func() bool {
		return callee.StateName() == "Talking"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), s.Counters().CallsReceived.Load())
	assert.Equal(t, int64(1), s.Counters().CallsAnswered.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("swarm did not stop")
	}
	assert.Equal(t, 0, s.pool.AllocatedCount())
}

func TestHeadlessUI_NoAutoAnswer(t *testing.T) {
	var counters Counters
	ui := newHeadlessUI(5, false, &counters)
	rec := &recordingAnswerer{}
	ui.session = rec

	ui.ShowIncomingCall(9)
	ui.ShowError("boom")
	ui.ShowNewSms(true)
	ui.ShowNewSms(false)

	assert.Equal(t, int64(1), counters.CallsReceived.Load())
	assert.Equal(t, int64(0), counters.CallsAnswered.Load())
	assert.Equal(t, int64(1), counters.Errors.Load())
	assert.Equal(t, int64(1), counters.SmsReceived.Load())
	assert.Zero(t, rec.count())
}

type recordingAnswerer struct {
	calls chan struct{}
}

func (r *recordingAnswerer) HandleUiAction(index *int) {
	if r.calls != nil {
		r.calls <- struct{}{}
	}
}

func (r *recordingAnswerer) count() int {
	if r.calls == nil {
		return 0
	}
	return len(r.calls)
}

func TestHeadlessUI_AutoAnswer(t *testing.T) {
	var counters Counters
	ui := newHeadlessUI(5, true, &counters)
	rec := &recordingAnswerer{calls: make(chan struct{}, 1)}
	ui.session = rec

	ui.ShowIncomingCall(9)

	select {
	case <-rec.calls:
	case <-time.After(time.Second):
		t.Fatal("call was not answered")
	}
	assert.Equal(t, int64(1), counters.CallsAnswered.Load())
}
