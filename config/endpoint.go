// Package config resolves where the Elasticsearch service lives and how to authenticate against it
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Endpoint is the scheme/host/port triple used for every backend call
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// ParseEndpoint validates a raw URL. Only http and https are accepted; a missing
// port is filled in from the scheme.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("unsupported scheme %q, must be http or https", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("missing host in %q", raw)
	}
	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid port %q", p)
		}
	}
	return Endpoint{Scheme: u.Scheme, Host: host, Port: port}, nil
}

// URL returns the endpoint as a base URL without trailing slash, e.g. http://localhost:9200
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s", e.Scheme, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
}

func (e Endpoint) String() string {
	return e.URL()
}
