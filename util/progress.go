package util

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const renderInterval = 65 * time.Millisecond

// ProgressBar renders a single, constantly overwritten status line for a running
// bulk ingestion
type ProgressBar struct {
	started     time.Time
	writer      io.Writer
	docs        int
	failed      int
	batches     int
	size        int64
	rendered    time.Time
	rendercount int64
	prevlen     int
	now         func() time.Time
	mu          sync.Mutex
}

func NewProgressBar(writer io.Writer) *ProgressBar {
	return newProgressBar(writer, time.Now)
}

func newProgressBar(writer io.Writer, now func() time.Time) *ProgressBar {
	return &ProgressBar{
		started: now(),
		writer:  writer,
		now:     now,
	}
}

// Add records a submitted batch of docs documents (failed of which were rejected)
// totalling size bytes on the wire
func (p *ProgressBar) Add(docs, failed int, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs += docs
	p.failed += failed
	p.batches++
	p.size += size
	if p.now().Sub(p.rendered) > renderInterval {
		p.render(false)
	}
}

func (p *ProgressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render(true)
}

func (p *ProgressBar) render(done bool) {
	elapsed := p.now().Sub(p.started).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	docsPerSec := float64(p.docs) / elapsed
	size := humanize.Bytes(uint64(p.size))
	sizePerSec := humanize.Bytes(uint64(float64(p.size) / elapsed))
	failed := ""
	if p.failed > 0 {
		failed = fmt.Sprintf(", %d failed", p.failed)
	}
	var line string
	if done {
		line = fmt.Sprintf("\rcomplete: %d docs in %d batches%s (%.1f docs/s), %s (%s/s)", p.docs, p.batches, failed, docsPerSec, size, sizePerSec)
	} else {
		spin := spinner[p.rendercount%int64(len(spinner))]
		line = fmt.Sprintf("\r%s loading: %d docs in %d batches%s (%.1f docs/s), %s (%s/s)", spin, p.docs, p.batches, failed, docsPerSec, size, sizePerSec)
	}
	fmt.Fprint(p.writer, line)
	if p.prevlen > len(line) {
		fmt.Fprint(p.writer, strings.Repeat(" ", p.prevlen-len(line)))
	}
	if done {
		fmt.Fprintln(p.writer)
	}
	p.prevlen = len(line)
	p.rendered = p.now()
	p.rendercount++
}
