package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"heckel.io/escli/client"
	"heckel.io/escli/util"
)

const (
	DefaultMaxCount = 1000
	DefaultMaxBytes = 5 * 1024 * 1024

	// Error types recorded for items that never got a per-item answer from the backend
	ErrorTypeParse       = "parse_exception"
	ErrorTypeInvalid     = "invalid_operation"
	ErrorTypeMissingItem = "missing_item_result"
)

// Bulker submits one encoded batch. *client.Client implements it.
type Bulker interface {
	Bulk(ctx context.Context, body []byte, refresh string) ([]byte, error)
}

// Options control batching and retrying. Zero limits fall back to the defaults, negative
// limits disable that bound.
type Options struct {
	MaxCount int
	MaxBytes int
	Backoff  util.Backoff
	Sleep    util.SleepFunc
	Refresh  string
	Pipeline int // batches encoded ahead of the one being submitted

	OnBatch func(BatchResult) // called after each batch is folded into the summary
	OnItem  func(Item)        // called for each item, in input order
}

// Item is the outcome of one input record
type Item struct {
	Position    int // 1-based position in the input
	Action      Action
	Index       string
	ID          string
	Status      int
	Result      string // created, updated, deleted, noop, not_found; a result without an error is a success
	Version     int64
	ErrorType   string
	ErrorReason string
}

func (i Item) Failed() bool {
	return i.ErrorType != ""
}

// BatchResult describes one submitted batch
type BatchResult struct {
	Seq       int
	Count     int
	Size      int
	Succeeded int
	Failed    int
	Attempts  int
	Err       error // set if the whole batch was given up on
}

// Summary accumulates the outcome of a run. Submitted always equals Succeeded + Failed.
type Summary struct {
	Submitted int
	Succeeded int
	Failed    int
	Batches   int
	Results   map[string]int // successful items per result
	Failures  []Item         // failed items, ordered by input position
}

func newSummary() *Summary {
	return &Summary{Results: make(map[string]int)}
}

func (s *Summary) add(item Item) {
	s.Submitted++
	if item.Failed() {
		s.Failed++
		s.Failures = append(s.Failures, item)
		return
	}
	s.Succeeded++
	s.Results[item.Result]++
}

func (s *Summary) finish() *Summary {
	sort.SliceStable(s.Failures, func(i, j int) bool {
		return s.Failures[i].Position < s.Failures[j].Position
	})
	return s
}

// Ingestor reads operations from a Source, groups them into batches and submits the
// batches one at a time, in order
type Ingestor struct {
	bulker Bulker
	log    *zap.Logger
	opts   Options
}

func NewIngestor(bulker Bulker, logger *zap.Logger, opts Options) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxCount == 0 {
		opts.MaxCount = DefaultMaxCount
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Backoff.Attempts == 0 {
		opts.Backoff = util.DefaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = util.Sleep
	}
	if opts.Pipeline < 0 {
		opts.Pipeline = 0
	}
	return &Ingestor{bulker: bulker, log: logger, opts: opts}
}

// unit is a batch together with the records rejected while it was being filled, or
// rejected records alone when no batch was pending. The last unit marks the end of
// the input.
type unit struct {
	batch    *Batch
	rejected []Item
	last     bool
}

var (
	errCanceled = errors.New("batch canceled")
	errStopped  = errors.New("producer stopped")
)

// Ingest drains src. The returned summary is never nil; on cancellation or a read
// error it holds everything that was completed before, and the error is returned
// alongside it. Cancellation returns promptly even while src is blocked in Next.
func (in *Ingestor) Ingest(ctx context.Context, src Source) (*Summary, error) {
	summary := newSummary()
	units := make(chan unit, in.opts.Pipeline)
	pctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(pctx)
	g.Go(func() error {
		defer close(units)
		return in.produce(gctx, src, units)
	})
	err := in.consume(ctx, gctx, summary, units)
	stop()
	if err == nil || errors.Is(err, errStopped) {
		// the producer has sent its last unit or failed, so it returns
		err = g.Wait()
	}
	// otherwise the producer may still be blocked in src.Next; it exits once Next returns
	return summary.finish(), err
}

func (in *Ingestor) consume(ctx, gctx context.Context, summary *Summary, units <-chan unit) error {
	for {
		select {
		case <-gctx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return errStopped
		case u, ok := <-units:
			if !ok {
				return nil
			}
			if u.batch == nil {
				for _, item := range u.rejected {
					in.record(summary, item)
				}
			} else {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := in.submit(ctx, summary, u); err != nil {
					return err
				}
			}
			if u.last {
				return nil
			}
		}
	}
}

func (in *Ingestor) produce(ctx context.Context, src Source, units chan<- unit) error {
	send := func(u unit) error {
		select {
		case units <- u:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	batcher := newBatcher(in.opts.MaxCount, in.opts.MaxBytes)
	var pending []Item
	reject := func(position int, op Operation, errorType string, err error) error {
		item := Item{
			Position:    position,
			Action:      op.Action,
			Index:       op.Index,
			ID:          op.ID,
			ErrorType:   errorType,
			ErrorReason: err.Error(),
		}
		if batcher.current == nil {
			return send(unit{rejected: []Item{item}})
		}
		pending = append(pending, item)
		return nil
	}
	position := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		op, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var recordErr *RecordError
		if errors.As(err, &recordErr) {
			position++
			in.log.Debug("skipping unreadable record", zap.Error(err))
			if err := reject(position, Operation{Index: recordErr.Index}, ErrorTypeParse, err); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return fmt.Errorf("cannot read input: %w", err)
		}
		position++
		encoded, err := op.Encode()
		if err != nil {
			if err := reject(position, op, ErrorTypeInvalid, err); err != nil {
				return err
			}
			continue
		}
		if full := batcher.add(position, op, encoded); full != nil {
			if err := send(unit{batch: full, rejected: pending}); err != nil {
				return err
			}
			pending = nil
		}
	}
	return send(unit{batch: batcher.flush(), rejected: pending, last: true})
}

func (in *Ingestor) record(summary *Summary, item Item) {
	summary.add(item)
	if in.opts.OnItem != nil {
		in.opts.OnItem(item)
	}
}

// submit sends one batch, retrying it as a whole on transient failures, and folds the
// per-item outcome into the summary, merged with the unit's rejected records by
// position. A batch that still fails is recorded as failed item by item; only
// cancellation aborts the run.
func (in *Ingestor) submit(ctx context.Context, summary *Summary, u unit) error {
	batch := u.batch
	var raw []byte
	attempts := 0
	err := util.Retry(ctx, in.opts.Backoff, in.opts.Sleep, client.Retryable, func(attempt int) error {
		attempts = attempt
		var err error
		raw, err = in.bulker.Bulk(ctx, batch.Body(), in.opts.Refresh)
		if err != nil && client.Retryable(err) && attempt < in.opts.Backoff.Attempts {
			in.log.Warn("bulk request failed, retrying",
				zap.Int("batch", batch.Seq), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if err != nil && (client.IsKind(err, client.Canceled) || ctx.Err() != nil) {
		in.log.Debug("batch abandoned", zap.Int("batch", batch.Seq), zap.Error(err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errCanceled
	}
	result := BatchResult{Seq: batch.Seq, Count: batch.Len(), Size: batch.Size(), Attempts: attempts, Err: err}
	var items []Item
	if err != nil {
		in.log.Error("bulk request failed, giving up on batch",
			zap.Int("batch", batch.Seq), zap.Int("ops", batch.Len()), zap.Error(err))
		items = failAll(batch, err)
	} else {
		items = reconcile(batch, raw)
	}
	summary.Batches++
	for _, item := range items {
		if item.Failed() {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	for _, item := range merge(items, u.rejected) {
		in.record(summary, item)
	}
	in.log.Debug("batch submitted", zap.Int("batch", batch.Seq), zap.Int("ops", result.Count),
		zap.Int("bytes", result.Size), zap.Int("failed", result.Failed), zap.Int("attempts", attempts))
	if in.opts.OnBatch != nil {
		in.opts.OnBatch(result)
	}
	return nil
}

// merge combines two position-ordered item lists
func merge(a, b []Item) []Item {
	if len(b) == 0 {
		return a
	}
	merged := make([]Item, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		if a[0].Position < b[0].Position {
			merged, a = append(merged, a[0]), a[1:]
		} else {
			merged, b = append(merged, b[0]), b[1:]
		}
	}
	merged = append(merged, a...)
	return append(merged, b...)
}

func failAll(batch *Batch, err error) []Item {
	errorType := "error"
	var cerr *client.Error
	if errors.As(err, &cerr) {
		errorType = cerr.ErrorType()
	}
	items := make([]Item, 0, batch.Len())
	for _, op := range batch.Ops {
		item := newItem(op)
		if cerr != nil {
			item.Status = cerr.Status
		}
		item.ErrorType, item.ErrorReason = errorType, err.Error()
		items = append(items, item)
	}
	return items
}

// reconcile pairs the response "items" with the batch's operations by position. Each
// item is a single-key object named after the action, e.g. {"index":{"status":201,..}}.
func reconcile(batch *Batch, raw []byte) []Item {
	results := gjson.GetBytes(raw, "items").Array()
	items := make([]Item, 0, batch.Len())
	for i, op := range batch.Ops {
		item := newItem(op)
		if i >= len(results) {
			item.ErrorType = ErrorTypeMissingItem
			item.ErrorReason = fmt.Sprintf("no result for item %d of batch %d", i+1, batch.Seq)
			items = append(items, item)
			continue
		}
		var res gjson.Result
		results[i].ForEach(func(_, value gjson.Result) bool {
			res = value
			return false
		})
		item.Status = int(res.Get("status").Int())
		item.Result = res.Get("result").String()
		item.Version = res.Get("_version").Int()
		if id := res.Get("_id").String(); id != "" {
			item.ID = id
		}
		if errField := res.Get("error"); errField.Exists() {
			item.ErrorType = errField.Get("type").String()
			item.ErrorReason = errField.Get("reason").String()
			if item.ErrorType == "" {
				item.ErrorType, item.ErrorReason = "error", errField.String()
			}
		} else if item.Result == "" && (item.Status >= 300 || item.Status == 0) {
			item.ErrorType = "unexpected_status"
			item.ErrorReason = fmt.Sprintf("item returned status %d", item.Status)
		}
		if !item.Failed() && item.Result == "" {
			item.Result = op.Action.String()
		}
		items = append(items, item)
	}
	return items
}

func newItem(op opInfo) Item {
	return Item{Position: op.Position, Action: op.Action, Index: op.Index, ID: op.ID}
}
