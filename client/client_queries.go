package client

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/tidwall/gjson"
	"heckel.io/escli/util"
)

// DefaultSearchSize is the number of hits returned when no limit is given
const DefaultSearchSize = 10

// Info is the service root document (GET /)
type Info struct {
	Name        string
	ClusterName string
	ClusterUUID string
	Tagline     string
	Version     Version
	Raw         []byte
}

type Version struct {
	Number                           string
	BuildFlavor                      string
	BuildType                        string
	BuildHash                        string
	BuildDate                        string
	BuildSnapshot                    bool
	LuceneVersion                    string
	MinimumWireCompatibilityVersion  string
	MinimumIndexCompatibilityVersion string
}

// IndexInfo is one row of the index listing
type IndexInfo struct {
	Name        string
	UUID        string
	Health      string
	Status      string
	DocsCount   int64
	DatasetSize int64
}

func (i IndexInfo) Closed() bool {
	return i.Status == "close" || i.Status == "closed"
}

// ListOptions selects which indices Indices returns. Pattern defaults to "*".
type ListOptions struct {
	Pattern string
	All     bool // include hidden and dot-prefixed indices
	Open    bool
	Closed  bool
}

func (o ListOptions) expandWildcards() string {
	switch {
	case o.All:
		return "all"
	case o.Open && !o.Closed:
		return "open"
	case o.Closed && !o.Open:
		return "closed"
	default:
		return "open,closed"
	}
}

// SearchQuery describes a search against one index (or pattern)
type SearchQuery struct {
	Index  string
	Query  string   // Lucene query string; empty means match_all
	Sort   []string // field:asc|desc, see ParseSort
	Size   int      // 0 means DefaultSearchSize
	From   int
	Fields []string // _source includes
}

type Hit struct {
	Index  string
	ID     string
	Score  *float64
	Source []byte // raw JSON
}

type SearchResult struct {
	Total int64
	Hits  []Hit
}

// Ping issues HEAD / and returns the status code. A non-2xx status is returned
// together with a Backend error. Ping is never retried: one call is one sample.
func (c *Client) Ping(ctx context.Context) (int, error) {
	res, err := c.perform(ctx, "ping", false, func() esapi.Request {
		return esapi.PingRequest{}
	})
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) && cerr.Kind == Backend {
			return cerr.Status, err
		}
		return 0, err
	}
	return res.status, nil
}

// Info fetches the service and version details (GET /)
func (c *Client) Info(ctx context.Context) (*Info, error) {
	res, err := c.perform(ctx, "info", true, func() esapi.Request {
		return esapi.InfoRequest{}
	})
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(res.body)
	version := doc.Get("version")
	return &Info{
		Name:        doc.Get("name").String(),
		ClusterName: doc.Get("cluster_name").String(),
		ClusterUUID: doc.Get("cluster_uuid").String(),
		Tagline:     doc.Get("tagline").String(),
		Version: Version{
			Number:                           version.Get("number").String(),
			BuildFlavor:                      version.Get("build_flavor").String(),
			BuildType:                        version.Get("build_type").String(),
			BuildHash:                        version.Get("build_hash").String(),
			BuildDate:                        version.Get("build_date").String(),
			BuildSnapshot:                    version.Get("build_snapshot").Bool(),
			LuceneVersion:                    version.Get("lucene_version").String(),
			MinimumWireCompatibilityVersion:  version.Get("minimum_wire_compatibility_version").String(),
			MinimumIndexCompatibilityVersion: version.Get("minimum_index_compatibility_version").String(),
		},
		Raw: res.body,
	}, nil
}

// Indices lists indices via _cat/indices, sorted by name. Dot-prefixed indices are
// only included with ListOptions.All.
func (c *Client) Indices(ctx context.Context, opts ListOptions) ([]IndexInfo, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*"
	}
	res, err := c.perform(ctx, "indices", true, func() esapi.Request {
		return esapi.CatIndicesRequest{
			Index:           []string{pattern},
			Format:          "json",
			Bytes:           "b",
			ExpandWildcards: opts.expandWildcards(),
			H:               []string{"health", "status", "index", "uuid", "docs.count", "dataset.size"},
		}
	})
	if err != nil {
		return nil, err
	}
	indices := make([]IndexInfo, 0)
	gjson.ParseBytes(res.body).ForEach(func(_, row gjson.Result) bool {
		name := row.Get("index").String()
		if !opts.All && strings.HasPrefix(name, ".") {
			return true
		}
		indices = append(indices, IndexInfo{
			Name:        name,
			UUID:        row.Get("uuid").String(),
			Health:      row.Get("health").String(),
			Status:      row.Get("status").String(),
			DocsCount:   row.Get(util.EscapePath("docs.count")).Int(),
			DatasetSize: row.Get(util.EscapePath("dataset.size")).Int(),
		})
		return true
	})
	sort.Slice(indices, func(i, j int) bool {
		return indices[i].Name < indices[j].Name
	})
	return indices, nil
}

// Search runs a query against q.Index. Searches are read-only and are retried.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	size := q.Size
	if size <= 0 {
		size = DefaultSearchSize
	}
	body, err := searchBody(q.Query)
	if err != nil {
		return nil, err
	}
	res, err := c.perform(ctx, "search", true, func() esapi.Request {
		req := esapi.SearchRequest{
			Index:          []string{q.Index},
			Sort:           q.Sort,
			Size:           &size,
			SourceIncludes: q.Fields,
		}
		if q.From > 0 {
			from := q.From
			req.From = &from
		}
		if q.Query != "" {
			req.Query = q.Query
		}
		if body != nil {
			req.Body = strings.NewReader(string(body))
		}
		return req
	})
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(res.body)
	result := &SearchResult{
		Total: doc.Get("hits.total.value").Int(),
		Hits:  make([]Hit, 0),
	}
	doc.Get("hits.hits").ForEach(func(_, h gjson.Result) bool {
		hit := Hit{
			Index:  h.Get("_index").String(),
			ID:     h.Get("_id").String(),
			Source: []byte(h.Get("_source").Raw),
		}
		if score := h.Get("_score"); score.Type == gjson.Number {
			s := score.Float()
			hit.Score = &s
		}
		result.Hits = append(result.Hits, hit)
		return true
	})
	return result, nil
}
