package client

import (
	"bytes"
	"context"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/tidwall/gjson"
)

// Refresh values for bulk writes
const (
	RefreshWaitFor = "wait_for"
	RefreshTrue    = "true"
	RefreshFalse   = "false"
)

// Acknowledgement is the answer to index creation and deletion
type Acknowledgement struct {
	Index        string
	Acknowledged bool
}

// CreateIndex creates index with the given field mappings (PUT /{index}). It is
// not retried.
func (c *Client) CreateIndex(ctx context.Context, index string, mappings []Mapping) (*Acknowledgement, error) {
	body, err := mappingBody(mappings)
	if err != nil {
		return nil, err
	}
	res, err := c.perform(ctx, "create_index", false, func() esapi.Request {
		return esapi.IndicesCreateRequest{
			Index: index,
			Body:  bytes.NewReader(body),
		}
	})
	if err != nil {
		return nil, err
	}
	ack := &Acknowledgement{
		Index:        gjson.GetBytes(res.body, "index").String(),
		Acknowledged: gjson.GetBytes(res.body, "acknowledged").Bool(),
	}
	if ack.Index == "" {
		ack.Index = index
	}
	return ack, nil
}

// DeleteIndex removes index (DELETE /{index}). It is not retried.
func (c *Client) DeleteIndex(ctx context.Context, index string) (*Acknowledgement, error) {
	res, err := c.perform(ctx, "delete_index", false, func() esapi.Request {
		return esapi.IndicesDeleteRequest{
			Index: []string{index},
		}
	})
	if err != nil {
		return nil, err
	}
	return &Acknowledgement{
		Index:        index,
		Acknowledged: gjson.GetBytes(res.body, "acknowledged").Bool(),
	}, nil
}

// Bulk posts one newline-delimited batch to /_bulk and returns the raw response.
// Retrying is left to the caller, which knows whether the batch is safe to resend.
func (c *Client) Bulk(ctx context.Context, body []byte, refresh string) ([]byte, error) {
	res, err := c.perform(ctx, "bulk", false, func() esapi.Request {
		return esapi.BulkRequest{
			Body:    bytes.NewReader(body),
			Refresh: refresh,
		}
	})
	if err != nil {
		return nil, err
	}
	return res.body, nil
}
