package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu    sync.Mutex
	kinds []Kind
}

func (r *recorder) handle(k Kind, _ uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, k)
}

func (r *recorder) fired() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Kind(nil), r.kinds...)
}

func TestTimer_FiresOnce(t *testing.T) {
	rec := &recorder{}
	tm := New()
	tm.RegisterHandler(rec.handle)

	tm.StartTimer(10 * time.Millisecond)
	assert.True(t, tm.Armed())

	assert.Eventually(t, func() bool { return len(rec.fired()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []Kind{Regular}, rec.fired())
	assert.False(t, tm.Armed())
}

func TestTimer_StopPreventsExpiry(t *testing.T) {
	rec := &recorder{}
	tm := New()
	tm.RegisterHandler(rec.handle)

	tm.StartTimer(20 * time.Millisecond)
	tm.StopTimer()
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.fired())
}

func TestTimer_RestartReplacesOutstanding(t *testing.T) {
	rec := &recorder{}
	tm := New()
	tm.RegisterHandler(rec.handle)

	tm.StartTimer(20 * time.Millisecond)
	tm.StartRedirectTimer(40 * time.Millisecond)

	assert.Eventually(t, func() bool { return len(rec.fired()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []Kind{Redirect}, rec.fired())
}

func TestTimer_HandlerReceivesStartEpoch(t *testing.T) {
	got := make(chan uint64, 1)
	tm := New()
	tm.RegisterHandler(func(_ Kind, epoch uint64) { got <- epoch })

	tm.StartRedirectTimer(5 * time.Millisecond)
	want := tm.Epoch()

	select {
	case epoch := <-got:
		assert.Equal(t, want, epoch)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimer_StaleEpochIsDiscarded(t *testing.T) {
	rec := &recorder{}
	tm := New()
	tm.RegisterHandler(rec.handle)

	tm.StartTimer(time.Hour)
	tm.mu.Lock()
	stale := tm.epoch
	tm.mu.Unlock()

	tm.StartTimer(time.Hour)
	tm.fire(stale)
	assert.Empty(t, rec.fired())
	assert.True(t, tm.Armed())
	tm.StopTimer()
}
