package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	calls   int
	results []error
	clock   *fakeClock
	onCall  func(call int)
}

func (f *fakePinger) Ping(context.Context) (int, error) {
	f.calls++
	f.clock.advance(10 * time.Millisecond)
	if f.onCall != nil {
		f.onCall(f.calls)
	}
	if i := f.calls - 1; i < len(f.results) && f.results[i] != nil {
		return 0, f.results[i]
	}
	return 200, nil
}

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.advance(d)
	return ctx.Err()
}

func newTestProber(results ...error) (*Prober, *fakePinger, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	pinger := &fakePinger{results: results, clock: clock}
	return &Prober{pinger: pinger, sleep: clock.sleep, now: clock.now}, pinger, clock
}

func collect(samples <-chan Sample) []Sample {
	var all []Sample
	for s := range samples {
		all = append(all, s)
	}
	return all
}

func TestProbe_Count(t *testing.T) {
	prober, pinger, clock := newTestProber()
	samples := collect(prober.Probe(context.Background(), 4, time.Second))
	require.Len(t, samples, 4)
	for i, s := range samples {
		assert.Equal(t, i+1, s.Seq)
		assert.Equal(t, 200, s.Status)
		assert.Equal(t, 10*time.Millisecond, s.Elapsed)
		assert.True(t, s.OK())
	}
	assert.Equal(t, 4, pinger.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clock.sleeps)
}

func TestProbe_DefaultCount(t *testing.T) {
	prober, _, _ := newTestProber()
	assert.Len(t, collect(prober.Probe(context.Background(), 0, time.Millisecond)), DefaultCount)
}

func TestProbe_FailureDoesNotAbort(t *testing.T) {
	refused := errors.New("connection refused")
	prober, _, _ := newTestProber(nil, refused, nil)
	samples := collect(prober.Probe(context.Background(), 3, time.Second))
	require.Len(t, samples, 3)
	assert.True(t, samples[0].OK())
	assert.False(t, samples[1].OK())
	assert.Equal(t, 0, samples[1].Status)
	assert.ErrorIs(t, samples[1].Err, refused)
	assert.True(t, samples[2].OK())
}

func TestProbe_CancelStopsSequence(t *testing.T) {
	prober, pinger, _ := newTestProber()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pinger.onCall = func(call int) {
		if call == 2 {
			cancel()
		}
	}
	samples := collect(prober.Probe(ctx, 10, time.Second))
	require.Len(t, samples, 2)
	assert.Equal(t, 2, samples[1].Seq)
	assert.Equal(t, 2, pinger.calls)
}

func TestStats(t *testing.T) {
	var stats Stats
	stats.Add(Sample{Seq: 1, Status: 200, Elapsed: 10 * time.Millisecond})
	stats.Add(Sample{Seq: 2, Err: errors.New("timeout")})
	stats.Add(Sample{Seq: 3, Status: 200, Elapsed: 30 * time.Millisecond})
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 2, stats.Received)
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)
	assert.Equal(t, 20*time.Millisecond, stats.Avg)
}
