package bulk

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"heckel.io/escli/util"
)

const maxLineSize = 64 * 1024 * 1024

// Source yields operations lazily. Next returns io.EOF once exhausted. A *RecordError
// means one input record was unusable; the source can still be read afterwards.
type Source interface {
	Next() (Operation, error)
}

// RecordError describes an input record that could not be turned into an operation
type RecordError struct {
	Name  string // input name, e.g. a file name
	Line  int
	Index string // target index, if known
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Name, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// SliceSource serves operations from memory
type SliceSource struct {
	ops []Operation
	pos int
}

func NewSliceSource(ops ...Operation) *SliceSource {
	return &SliceSource{ops: ops}
}

func (s *SliceSource) Next() (Operation, error) {
	if s.pos >= len(s.ops) {
		return Operation{}, io.EOF
	}
	op := s.ops[s.pos]
	s.pos++
	return op, nil
}

// FuncSource adapts a generator function to a Source
type FuncSource func() (Operation, error)

func (f FuncSource) Next() (Operation, error) {
	return f()
}

// Concat reads the sources one after another
func Concat(sources ...Source) Source {
	return &multiSource{sources: sources}
}

type multiSource struct {
	sources []Source
}

func (m *multiSource) Next() (Operation, error) {
	for len(m.sources) > 0 {
		op, err := m.sources[0].Next()
		if errors.Is(err, io.EOF) {
			m.sources = m.sources[1:]
			continue
		}
		return op, err
	}
	return Operation{}, io.EOF
}

// NDJSONReader reads one JSON document per line. A line is either a plain document,
// or an export-style hit {"_index":..,"_id":..,"_source":{..}} with an optional
// "_op" of index, create, update or delete. A top-level "_id" in a plain document is
// moved into the operation. Index, if set, overrides any "_index" in the input.
type NDJSONReader struct {
	name    string
	index   string
	scanner *bufio.Scanner
	line    int
}

func NewNDJSONReader(r io.Reader, name, index string) *NDJSONReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &NDJSONReader{name: name, index: index, scanner: scanner}
}

func (r *NDJSONReader) Next() (Operation, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		op, err := r.parse(line)
		if err != nil {
			return Operation{}, &RecordError{Name: r.name, Line: r.line, Index: r.index, Err: err}
		}
		return op, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Operation{}, err
	}
	return Operation{}, io.EOF
}

func (r *NDJSONReader) parse(line []byte) (Operation, error) {
	if !gjson.ValidBytes(line) {
		return Operation{}, errors.New("invalid JSON")
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return Operation{}, errors.New("document is not a JSON object")
	}
	source, opField := doc.Get("_source"), doc.Get("_op")
	if !source.Exists() && !opField.Exists() {
		return r.plain(doc, line)
	}
	action, err := ParseAction(opField.String())
	if err != nil {
		return Operation{}, err
	}
	op := Operation{
		Action: action,
		Index:  r.target(doc.Get("_index").String()),
		ID:     doc.Get("_id").String(),
		Upsert: doc.Get("_upsert").Bool(),
	}
	if source.Exists() {
		op.Body = []byte(source.Raw)
	}
	return op, op.Validate()
}

func (r *NDJSONReader) plain(doc gjson.Result, line []byte) (Operation, error) {
	op := Operation{Action: Index, Index: r.target(doc.Get("_index").String()), Body: line}
	if id := doc.Get("_id"); id.Exists() {
		body, err := sjson.DeleteBytes(append([]byte(nil), line...), "_id")
		if err != nil {
			return Operation{}, err
		}
		op.ID, op.Body = id.String(), body
	}
	if doc.Get("_index").Exists() {
		body, err := sjson.DeleteBytes(append([]byte(nil), op.Body...), "_index")
		if err != nil {
			return Operation{}, err
		}
		op.Body = body
	}
	op.Body = append([]byte(nil), op.Body...)
	return op, op.Validate()
}

func (r *NDJSONReader) target(index string) string {
	if r.index != "" {
		return r.index
	}
	return index
}

// CSVReader reads a header row with field names, then one document per row. Numbers
// and booleans are stored as JSON numbers and booleans, empty cells are left out.
type CSVReader struct {
	name   string
	index  string
	reader *csv.Reader
	header []string
}

func NewCSVReader(r io.Reader, name, index string) *CSVReader {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	return &CSVReader{name: name, index: index, reader: reader}
}

func (r *CSVReader) Next() (Operation, error) {
	if r.header == nil {
		header, err := r.reader.Read()
		if err != nil {
			return Operation{}, err
		}
		r.header = append([]string(nil), header...)
	}
	record, err := r.reader.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Operation{}, &RecordError{Name: r.name, Line: perr.Line, Index: r.index, Err: perr.Err}
		}
		return Operation{}, err
	}
	doc := []byte(`{}`)
	for i, value := range record {
		if value == "" {
			continue
		}
		doc, err = sjson.SetBytes(doc, util.EscapePath(r.header[i]), typed(value))
		if err != nil {
			line, _ := r.reader.FieldPos(i)
			return Operation{}, &RecordError{Name: r.name, Line: line, Index: r.index, Err: err}
		}
	}
	return Operation{Action: Index, Index: r.index, Body: doc}, nil
}

func typed(value string) any {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
