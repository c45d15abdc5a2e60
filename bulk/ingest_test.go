package bulk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"heckel.io/escli/client"
	"heckel.io/escli/util"
)

// fakeBulker answers _bulk requests like Elasticsearch would, one item per operation
type fakeBulker struct {
	mu     sync.Mutex
	bodies [][]byte
	fail   func(call int) error                       // fails the whole request
	reject func(meta gjson.Result, doc []byte) string // returns an error type to reject an item
	drop   int                                        // trailing items left out of the response
}

func (f *fakeBulker) Bulk(_ context.Context, body []byte, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, append([]byte(nil), body...))
	call := len(f.bodies)
	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return nil, err
		}
	}
	var items []string
	lines := bytes.Split(bytes.TrimSuffix(body, []byte("\n")), []byte("\n"))
	for i := 0; i < len(lines); {
		var action string
		var meta gjson.Result
		gjson.ParseBytes(lines[i]).ForEach(func(key, value gjson.Result) bool {
			action, meta = key.String(), value
			return false
		})
		i++
		var doc []byte
		if action != "delete" {
			doc = lines[i]
			i++
		}
		id := meta.Get("_id").String()
		if id == "" {
			id = fmt.Sprintf("auto-%d-%d", call, len(items))
		}
		item, _ := sjson.Set(`{}`, "_index", meta.Get("_index").String())
		item, _ = sjson.Set(item, "_id", id)
		if errorType := f.rejectItem(meta, doc); errorType != "" {
			item, _ = sjson.Set(item, "status", 400)
			item, _ = sjson.Set(item, "error.type", errorType)
			item, _ = sjson.Set(item, "error.reason", "rejected "+id)
		} else {
			item, _ = sjson.Set(item, "status", 201)
			item, _ = sjson.Set(item, "result", "created")
			item, _ = sjson.Set(item, "_version", 1)
		}
		wrapped, _ := sjson.SetRaw(`{}`, action, item)
		items = append(items, wrapped)
	}
	items = items[:len(items)-f.drop]
	response := []byte(`{"took":3,"errors":false,"items":[]}`)
	for _, item := range items {
		response, _ = sjson.SetRawBytes(response, "items.-1", []byte(item))
	}
	return response, nil
}

func (f *fakeBulker) rejectItem(meta gjson.Result, doc []byte) string {
	if f.reject == nil {
		return ""
	}
	return f.reject(meta, doc)
}

func (f *fakeBulker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

type bulkerFunc func(ctx context.Context, body []byte, refresh string) ([]byte, error)

func (f bulkerFunc) Bulk(ctx context.Context, body []byte, refresh string) ([]byte, error) {
	return f(ctx, body, refresh)
}

func noSleep(context.Context, time.Duration) error {
	return nil
}

func docs(n int) *SliceSource {
	ops := make([]Operation, n)
	for i := range ops {
		ops[i] = Operation{Action: Index, Index: "songs", ID: fmt.Sprint(i + 1), Body: []byte(fmt.Sprintf(`{"n":%d}`, i+1))}
	}
	return NewSliceSource(ops...)
}

func assertConsistent(t *testing.T, s *Summary) {
	t.Helper()
	assert.Equal(t, s.Submitted, s.Succeeded+s.Failed)
	assert.Len(t, s.Failures, s.Failed)
}

func TestIngest_TenThousandDocuments(t *testing.T) {
	bulker := &fakeBulker{}
	var positions []int
	var seqs []int
	ingestor := NewIngestor(bulker, nil, Options{
		MaxCount: 1000,
		MaxBytes: -1,
		Sleep:    noSleep,
		OnItem:   func(item Item) { positions = append(positions, item.Position) },
		OnBatch:  func(r BatchResult) { seqs = append(seqs, r.Seq) },
	})
	summary, err := ingestor.Ingest(context.Background(), docs(10000))
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 10000, summary.Submitted)
	assert.Equal(t, 10000, summary.Succeeded)
	assert.Equal(t, 10, summary.Batches)
	assert.Equal(t, 10000, summary.Results["created"])
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seqs)
	require.Len(t, positions, 10000)
	for i, p := range positions {
		require.Equal(t, i+1, p)
	}
	require.Equal(t, 10, bulker.calls())
	for i, body := range bulker.bodies {
		lines := bytes.Split(bytes.TrimSuffix(body, []byte("\n")), []byte("\n"))
		require.Len(t, lines, 2000)
		assert.Equal(t, fmt.Sprint(i*1000+1), gjson.GetBytes(lines[0], "index._id").String())
	}
}

func TestIngest_PartialFailure(t *testing.T) {
	bulker := &fakeBulker{
		reject: func(meta gjson.Result, _ []byte) string {
			if meta.Get("_id").String() == "42" {
				return "mapper_parsing_exception"
			}
			return ""
		},
	}
	ingestor := NewIngestor(bulker, nil, Options{MaxCount: 50, Sleep: noSleep})
	summary, err := ingestor.Ingest(context.Background(), docs(150))
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 149, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	failure := summary.Failures[0]
	assert.Equal(t, 42, failure.Position)
	assert.Equal(t, "42", failure.ID)
	assert.Equal(t, 400, failure.Status)
	assert.Equal(t, "mapper_parsing_exception", failure.ErrorType)
	assert.Equal(t, "rejected 42", failure.ErrorReason)
}

func TestIngest_TransientFailureIsRetried(t *testing.T) {
	bulker := &fakeBulker{
		fail: func(call int) error {
			if call == 1 {
				return &client.Error{Kind: client.Backend, Status: 429, Type: "es_rejected_execution_exception"}
			}
			return nil
		},
	}
	var results []BatchResult
	ingestor := NewIngestor(bulker, nil, Options{MaxCount: 10, Sleep: noSleep, OnBatch: func(r BatchResult) { results = append(results, r) }})
	summary, err := ingestor.Ingest(context.Background(), docs(20))
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 20, summary.Succeeded)
	assert.Equal(t, 3, bulker.calls())
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, 1, results[1].Attempts)
}

func TestIngest_ExhaustedRetriesFailBatchAndContinue(t *testing.T) {
	bulker := &fakeBulker{
		fail: func(call int) error {
			if call <= 3 {
				return &client.Error{Kind: client.Network, Err: errors.New("connection reset by peer")}
			}
			return nil
		},
	}
	var results []BatchResult
	ingestor := NewIngestor(bulker, nil, Options{
		MaxCount: 10,
		Backoff:  util.Backoff{Attempts: 3, Initial: time.Millisecond},
		Sleep:    noSleep,
		OnBatch:  func(r BatchResult) { results = append(results, r) },
	})
	summary, err := ingestor.Ingest(context.Background(), docs(25))
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 25, summary.Submitted)
	assert.Equal(t, 10, summary.Failed)
	assert.Equal(t, 15, summary.Succeeded)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 5, bulker.calls())
	for i, failure := range summary.Failures {
		assert.Equal(t, i+1, failure.Position)
		assert.Equal(t, "network_error", failure.ErrorType)
	}
	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 3, results[0].Attempts)
	assert.NoError(t, results[1].Err)
}

func TestIngest_PermanentFailureIsNotRetried(t *testing.T) {
	bulker := &fakeBulker{
		fail: func(call int) error {
			return &client.Error{Kind: client.Backend, Status: 400, Type: "illegal_argument_exception", Reason: "bad"}
		},
	}
	ingestor := NewIngestor(bulker, nil, Options{MaxCount: 10, Sleep: noSleep})
	summary, err := ingestor.Ingest(context.Background(), docs(5))
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 1, bulker.calls())
	assert.Equal(t, 5, summary.Failed)
	assert.Equal(t, "illegal_argument_exception", summary.Failures[0].ErrorType)
	assert.Equal(t, 400, summary.Failures[0].Status)
}

func TestIngest_EmptyInput(t *testing.T) {
	bulker := &fakeBulker{}
	summary, err := NewIngestor(bulker, nil, Options{}).Ingest(context.Background(), NewSliceSource())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Submitted)
	assert.Equal(t, 0, summary.Batches)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 0, bulker.calls())
}

func TestIngest_MissingItemResults(t *testing.T) {
	bulker := &fakeBulker{drop: 1}
	summary, err := NewIngestor(bulker, nil, Options{MaxCount: 4, Sleep: noSleep}).Ingest(context.Background(), docs(4))
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	assert.Equal(t, ErrorTypeMissingItem, summary.Failures[0].ErrorType)
	assert.Equal(t, 4, summary.Failures[0].Position)
}

func TestIngest_UnreadableRecordsAreCounted(t *testing.T) {
	input := []struct {
		op  Operation
		err error
	}{
		{op: Operation{Action: Index, Index: "x", Body: []byte(`{"a":1}`)}},
		{err: &RecordError{Name: "in.ndjson", Line: 2, Err: errors.New("invalid JSON")}},
		{op: Operation{Action: Delete, Index: "x"}},
		{op: Operation{Action: Index, Index: "x", Body: []byte(`{"a":3}`)}},
	}
	i := 0
	src := FuncSource(func() (Operation, error) {
		if i >= len(input) {
			return Operation{}, io.EOF
		}
		next := input[i]
		i++
		return next.op, next.err
	})
	bulker := &fakeBulker{}
	summary, err := NewIngestor(bulker, nil, Options{Sleep: noSleep}).Ingest(context.Background(), src)
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 4, summary.Submitted)
	assert.Equal(t, 2, summary.Succeeded)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, 2, summary.Failures[0].Position)
	assert.Equal(t, ErrorTypeParse, summary.Failures[0].ErrorType)
	assert.Equal(t, 3, summary.Failures[1].Position)
	assert.Equal(t, ErrorTypeInvalid, summary.Failures[1].ErrorType)
	assert.Equal(t, 1, bulker.calls())
}

func TestIngest_ReadErrorStopsRun(t *testing.T) {
	broken := FuncSource(func() (Operation, error) {
		return Operation{}, errors.New("disk on fire")
	})
	bulker := &fakeBulker{}
	summary, err := NewIngestor(bulker, nil, Options{MaxCount: 5, Sleep: noSleep}).Ingest(context.Background(), Concat(docs(5), broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	require.NotNil(t, summary)
	assertConsistent(t, summary)
}

func TestIngest_CancellationKeepsCompletedBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bulker := &fakeBulker{}
	ingestor := NewIngestor(bulker, nil, Options{
		MaxCount: 10,
		Sleep:    noSleep,
		OnBatch: func(r BatchResult) {
			if r.Seq == 1 {
				cancel()
			}
		},
	})
	summary, err := ingestor.Ingest(ctx, docs(100))
	require.ErrorIs(t, err, context.Canceled)
	assertConsistent(t, summary)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 10, summary.Submitted)
	assert.Equal(t, 10, summary.Succeeded)
	assert.Equal(t, 1, bulker.calls())
}

func TestIngest_DeleteNotFoundSucceeds(t *testing.T) {
	bulker := bulkerFunc(func(context.Context, []byte, string) ([]byte, error) {
		return []byte(`{"errors":false,"items":[
			{"delete":{"_index":"songs","_id":"7","result":"not_found","status":404}},
			{"delete":{"_index":"songs","_id":"8","status":404}}
		]}`), nil
	})
	src := NewSliceSource(
		Operation{Action: Delete, Index: "songs", ID: "7"},
		Operation{Action: Delete, Index: "songs", ID: "8"},
	)
	summary, err := NewIngestor(bulker, nil, Options{Sleep: noSleep}).Ingest(context.Background(), src)
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Results["not_found"])
	require.Equal(t, 1, summary.Failed)
	assert.Equal(t, "8", summary.Failures[0].ID)
	assert.Equal(t, "unexpected_status", summary.Failures[0].ErrorType)
}

func TestIngest_CancelWhileSourceBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := make(chan struct{})
	defer close(release)
	batched := make(chan struct{}, 1)
	ops := docs(3)
	src := FuncSource(func() (Operation, error) {
		op, err := ops.Next()
		if err == nil {
			return op, nil
		}
		<-batched
		cancel()
		<-release
		return Operation{}, io.EOF
	})
	ingestor := NewIngestor(&fakeBulker{}, nil, Options{
		MaxCount: 2,
		Sleep:    noSleep,
		OnBatch:  func(BatchResult) { batched <- struct{}{} },
	})
	type outcome struct {
		summary *Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := ingestor.Ingest(ctx, src)
		done <- outcome{summary, err}
	}()
	select {
	case o := <-done:
		require.ErrorIs(t, o.err, context.Canceled)
		assertConsistent(t, o.summary)
		assert.Equal(t, 1, o.summary.Batches)
		assert.Equal(t, 2, o.summary.Succeeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Ingest did not return after cancel")
	}
}

func TestIngest_CancelAfterLastBatchIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ingestor := NewIngestor(&fakeBulker{}, nil, Options{
		MaxCount: 5,
		Sleep:    noSleep,
		OnItem: func(item Item) {
			if item.Position == 5 {
				cancel()
			}
		},
	})
	summary, err := ingestor.Ingest(ctx, docs(5))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Succeeded)
}

func TestIngest_ItemsInInputOrder(t *testing.T) {
	input := []struct {
		op  Operation
		err error
	}{
		{op: Operation{Action: Index, Index: "x", ID: "1", Body: []byte(`{"a":1}`)}},
		{op: Operation{Action: Index, Index: "x", ID: "2", Body: []byte(`{"a":2}`)}},
		{err: &RecordError{Name: "in.ndjson", Line: 3, Err: errors.New("invalid JSON")}},
		{op: Operation{Action: Index, Index: "x", ID: "4", Body: []byte(`{"a":4}`)}},
		{op: Operation{Action: Delete, Index: "x"}},
		{op: Operation{Action: Index, Index: "x", ID: "6", Body: []byte(`{"a":6}`)}},
	}
	i := 0
	src := FuncSource(func() (Operation, error) {
		if i >= len(input) {
			return Operation{}, io.EOF
		}
		next := input[i]
		i++
		return next.op, next.err
	})
	var positions []int
	ingestor := NewIngestor(&fakeBulker{}, nil, Options{
		MaxCount: 2,
		Sleep:    noSleep,
		OnItem:   func(item Item) { positions = append(positions, item.Position) },
	})
	summary, err := ingestor.Ingest(context.Background(), src)
	require.NoError(t, err)
	assertConsistent(t, summary)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, positions)
	assert.Equal(t, 2, summary.Failed)
}
