// Package probe measures round trips to the cluster root, like ping does for hosts
package probe

import (
	"context"
	"time"

	"heckel.io/escli/util"
)

const (
	DefaultCount    = 4
	DefaultInterval = time.Second
)

// Pinger issues one lightweight request and returns the HTTP status. A backend
// rejection returns both the status and an error. *client.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) (int, error)
}

// Sample is the outcome of one probe
type Sample struct {
	Seq     int
	Status  int   // 0 if the request did not complete
	Err     error // nil for 2xx
	Elapsed time.Duration
}

func (s Sample) OK() bool {
	return s.Err == nil && s.Status >= 200 && s.Status < 300
}

type Prober struct {
	pinger Pinger
	sleep  util.SleepFunc
	now    func() time.Time
}

func New(pinger Pinger) *Prober {
	return &Prober{pinger: pinger, sleep: util.Sleep, now: time.Now}
}

// Probe sends count probes, interval apart, and emits one Sample per probe on the
// returned channel, which is closed when done. The caller must drain the channel. A
// count < 1 means DefaultCount. A failed probe does not stop the sequence; cancelling
// ctx does, after the sample in flight has been emitted.
func (p *Prober) Probe(ctx context.Context, count int, interval time.Duration) <-chan Sample {
	if count < 1 {
		count = DefaultCount
	}
	samples := make(chan Sample)
	go func() {
		defer close(samples)
		for seq := 1; seq <= count; seq++ {
			start := p.now()
			status, err := p.pinger.Ping(ctx)
			sample := Sample{Seq: seq, Status: status, Err: err, Elapsed: p.now().Sub(start)}
			samples <- sample
			if seq == count || ctx.Err() != nil {
				return
			}
			if err := p.sleep(ctx, interval); err != nil {
				return
			}
		}
	}()
	return samples
}

// Stats summarizes a sequence of samples
type Stats struct {
	Sent     int
	Received int // samples with a 2xx status
	Min      time.Duration
	Max      time.Duration
	Avg      time.Duration
}

func (s *Stats) Add(sample Sample) {
	s.Sent++
	if !sample.OK() {
		return
	}
	if s.Received == 0 || sample.Elapsed < s.Min {
		s.Min = sample.Elapsed
	}
	if sample.Elapsed > s.Max {
		s.Max = sample.Elapsed
	}
	s.Avg = (s.Avg*time.Duration(s.Received) + sample.Elapsed) / time.Duration(s.Received+1)
	s.Received++
}
