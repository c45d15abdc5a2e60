package bulk

import (
	"bytes"
)

// Batch is an ordered group of encoded operations sent as one _bulk request
type Batch struct {
	Seq   int      // 1-based batch number
	First int      // position of the first operation in the input
	Ops   []opInfo // metadata per operation, in submission order
	body  bytes.Buffer
}

type opInfo struct {
	Position int
	Action   Action
	Index    string
	ID       string
}

func (b *Batch) Len() int {
	return len(b.Ops)
}

// Size is the serialized size in bytes
func (b *Batch) Size() int {
	return b.body.Len()
}

func (b *Batch) Body() []byte {
	return b.body.Bytes()
}

func (b *Batch) add(position int, op Operation, encoded []byte) {
	b.Ops = append(b.Ops, opInfo{Position: position, Action: op.Action, Index: op.Index, ID: op.ID})
	b.body.Write(encoded)
}

// batcher accumulates encoded operations and hands out batches that respect both
// limits. A single operation larger than maxBytes gets a batch of its own.
type batcher struct {
	maxCount int
	maxBytes int
	seq      int
	current  *Batch
}

func newBatcher(maxCount, maxBytes int) *batcher {
	return &batcher{maxCount: maxCount, maxBytes: maxBytes}
}

// add appends an operation and returns a full batch if the operation did not fit
// into the current one
func (b *batcher) add(position int, op Operation, encoded []byte) *Batch {
	var full *Batch
	if b.current != nil && !b.fits(len(encoded)) {
		full = b.flush()
	}
	if b.current == nil {
		b.seq++
		b.current = &Batch{Seq: b.seq, First: position}
	}
	b.current.add(position, op, encoded)
	return full
}

func (b *batcher) fits(size int) bool {
	if b.maxCount > 0 && b.current.Len()+1 > b.maxCount {
		return false
	}
	if b.maxBytes > 0 && b.current.Size()+size > b.maxBytes {
		return false
	}
	return true
}

// flush returns the current batch, or nil if it is empty
func (b *batcher) flush() *Batch {
	batch := b.current
	b.current = nil
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return batch
}
