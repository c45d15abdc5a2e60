// Package bulk streams document operations to the _bulk endpoint in bounded batches
package bulk

import (
	"bytes"
	"fmt"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Action is the kind of a bulk operation
type Action int

const (
	Index Action = iota
	Create
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Index:
		return "index"
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction maps "index", "create", "update" or "delete" to an Action
func ParseAction(s string) (Action, error) {
	switch s {
	case "", "index":
		return Index, nil
	case "create":
		return Create, nil
	case "update":
		return Update, nil
	case "delete":
		return Delete, nil
	default:
		return 0, fmt.Errorf("unknown bulk action %q", s)
	}
}

// Operation is a single document operation. Body is the document for Index and
// Create, the partial document for Update, and unused for Delete. Delete and Update
// require an ID.
type Operation struct {
	Action Action
	Index  string
	ID     string
	Body   []byte
	Upsert bool // Update only: create the document if it does not exist
}

// Validate checks the fields required by the action
func (op Operation) Validate() error {
	if op.Index == "" {
		return fmt.Errorf("%s operation without target index", op.Action)
	}
	switch op.Action {
	case Index, Create:
		if len(op.Body) == 0 {
			return fmt.Errorf("%s operation without document", op.Action)
		}
	case Update:
		if op.ID == "" {
			return fmt.Errorf("update operation without document id")
		}
		if len(op.Body) == 0 {
			return fmt.Errorf("update operation without document")
		}
	case Delete:
		if op.ID == "" {
			return fmt.Errorf("delete operation without document id")
		}
	default:
		return fmt.Errorf("unknown bulk action %d", int(op.Action))
	}
	return nil
}

// Encode renders the operation in the _bulk wire format: an action line, followed by a
// source line for all actions except delete. Every line ends with a newline.
func (op Operation) Encode() ([]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	action := op.Action.String()
	meta, err := sjson.SetBytes([]byte(`{}`), action+"._index", op.Index)
	if err != nil {
		return nil, err
	}
	if op.ID != "" {
		if meta, err = sjson.SetBytes(meta, action+"._id", op.ID); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	buf.Write(meta)
	buf.WriteByte('\n')
	switch op.Action {
	case Index, Create:
		buf.Write(singleLine(op.Body))
		buf.WriteByte('\n')
	case Update:
		doc, err := sjson.SetRawBytes([]byte(`{}`), "doc", singleLine(op.Body))
		if err != nil {
			return nil, err
		}
		if op.Upsert {
			if doc, err = sjson.SetBytes(doc, "doc_as_upsert", true); err != nil {
				return nil, err
			}
		}
		buf.Write(doc)
		buf.WriteByte('\n')
	case Delete:
	}
	return buf.Bytes(), nil
}

// singleLine compacts a document if it spans several lines, since a newline ends a
// record in the bulk format
func singleLine(doc []byte) []byte {
	doc = bytes.TrimSpace(doc)
	if bytes.ContainsAny(doc, "\r\n") {
		return pretty.Ugly(doc)
	}
	return doc
}
