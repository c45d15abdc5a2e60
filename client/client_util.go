package client

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
	"heckel.io/escli/util"
)

// Mapping is a single field:type pair used when creating an index
type Mapping struct {
	Field string
	Type  string
}

// ParseMapping parses "field:type", e.g. "uk.chart.debut:date"
func ParseMapping(s string) (Mapping, error) {
	field, typ, ok := strings.Cut(s, ":")
	if !ok || field == "" || typ == "" {
		return Mapping{}, fmt.Errorf("invalid mapping %q, expected FIELD:TYPE", s)
	}
	return Mapping{Field: field, Type: typ}, nil
}

// mappingBody renders {"mappings":{"properties":{FIELD:{"type":TYPE}}}}, keeping dotted
// field names as literal keys
func mappingBody(mappings []Mapping) ([]byte, error) {
	body := []byte(`{"mappings":{"properties":{}}}`)
	var err error
	for _, m := range mappings {
		body, err = sjson.SetBytes(body, "mappings.properties."+util.EscapePath(m.Field)+".type", m.Type)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// searchBody returns a match_all query when no query string is given, nil otherwise
func searchBody(query string) ([]byte, error) {
	if query != "" {
		return nil, nil
	}
	return sjson.SetRawBytes([]byte(`{}`), "query.match_all", []byte(`{}`))
}

// ParseSort turns "title,~year,date:desc" into ["title:asc", "year:desc", "date:desc"].
// A leading ~ means descending.
func ParseSort(s string) []string {
	var sorts []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "~") {
			sorts = append(sorts, strings.TrimPrefix(part, "~")+":desc")
		} else if strings.Contains(part, ":") {
			sorts = append(sorts, part)
		} else {
			sorts = append(sorts, part+":asc")
		}
	}
	return sorts
}
