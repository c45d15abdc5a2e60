package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// DefaultUser is used when a password is given without a user name
	DefaultUser = "elastic"

	// StartLocalDir is the directory created by the start-local installer
	StartLocalDir = "elastic-start-local"

	settingsFile       = ".env"
	defaultLocalPort   = "9200"
	defaultLocalScheme = "http"
)

// Connection is the outcome of a successful resolution
type Connection struct {
	Endpoint    Endpoint
	Credentials Credentials
	Source      string
}

// Strategy is one link in the resolution chain. Resolve returns an error matching
// errAbsent if the source is missing or incomplete, in which case the next strategy
// is tried. Any other error stops the chain.
type Strategy interface {
	Name() string
	Resolve() (*Connection, error)
}

// Resolver tries its strategies in order and returns the first complete connection
type Resolver struct {
	strategies []Strategy
}

// NewResolver creates a resolver from an explicit chain
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// DefaultResolver creates the standard chain: ESCLI_URL + ESCLI_API_KEY, ESCLI_URL +
// ESCLI_USER/ESCLI_PASSWORD, .env in dir, .env in dir/elastic-start-local.
// A nil environ means the process environment.
func DefaultResolver(environ map[string]string, dir string) *Resolver {
	return NewResolver(
		&EnvAPIKey{Environ: environ},
		&EnvPassword{Environ: environ},
		&SettingsFile{Dir: dir},
		&SettingsFile{Dir: filepath.Join(dir, StartLocalDir)},
	)
}

// Resolve runs the default chain against the process environment and working directory
func Resolve() (*Connection, error) {
	return DefaultResolver(nil, ".").Resolve()
}

func (r *Resolver) Resolve() (*Connection, error) {
	attempts := make([]Attempt, 0, len(r.strategies))
	for _, s := range r.strategies {
		conn, err := s.Resolve()
		if err == nil {
			conn.Source = s.Name()
			return conn, nil
		}
		if !errors.Is(err, errAbsent) {
			return nil, err
		}
		attempts = append(attempts, Attempt{Source: s.Name(), Reason: err.Error()})
	}
	return nil, &Error{Kind: Unresolvable, Attempts: attempts}
}

type environment struct {
	URL      string `env:"ESCLI_URL"`
	APIKey   string `env:"ESCLI_API_KEY"`
	User     string `env:"ESCLI_USER" envDefault:"elastic"`
	Password string `env:"ESCLI_PASSWORD"`
}

func loadEnvironment(environ map[string]string, source string) (*environment, *Endpoint, error) {
	var e environment
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return nil, nil, &Error{Kind: InvalidSettings, Source: source, Err: err}
	}
	if e.URL == "" {
		return nil, nil, absent("ESCLI_URL not set")
	}
	endpoint, err := ParseEndpoint(e.URL)
	if err != nil {
		return nil, nil, &Error{Kind: InvalidURL, Source: "ESCLI_URL", Err: err}
	}
	return &e, &endpoint, nil
}

// EnvAPIKey reads ESCLI_URL and ESCLI_API_KEY
type EnvAPIKey struct {
	Environ map[string]string
}

func (s *EnvAPIKey) Name() string {
	return "environment (ESCLI_URL, ESCLI_API_KEY)"
}

func (s *EnvAPIKey) Resolve() (*Connection, error) {
	e, endpoint, err := loadEnvironment(s.Environ, s.Name())
	if err != nil {
		return nil, err
	}
	if e.APIKey == "" {
		return nil, absent("ESCLI_API_KEY not set")
	}
	return &Connection{Endpoint: *endpoint, Credentials: APIKey(e.APIKey)}, nil
}

// EnvPassword reads ESCLI_URL, ESCLI_USER and ESCLI_PASSWORD
type EnvPassword struct {
	Environ map[string]string
}

func (s *EnvPassword) Name() string {
	return "environment (ESCLI_URL, ESCLI_USER, ESCLI_PASSWORD)"
}

func (s *EnvPassword) Resolve() (*Connection, error) {
	e, endpoint, err := loadEnvironment(s.Environ, s.Name())
	if err != nil {
		return nil, err
	}
	if e.Password == "" {
		return nil, absent("ESCLI_PASSWORD not set")
	}
	user := e.User
	if user == "" {
		user = DefaultUser
	}
	return &Connection{Endpoint: *endpoint, Credentials: UserPassword(user, e.Password)}, nil
}

// SettingsFile reads a .env file in Dir, as written by the start-local installer
type SettingsFile struct {
	Dir string
}

func (s *SettingsFile) Name() string {
	return filepath.Join(s.Dir, settingsFile)
}

func (s *SettingsFile) Resolve() (*Connection, error) {
	filename := s.Name()
	vars, err := godotenv.Read(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, absent("file not found")
	} else if err != nil {
		return nil, &Error{Kind: InvalidSettings, Source: filename, Err: err}
	}
	rawURL := first(vars, "ESCLI_URL", "ES_LOCAL_URL")
	if rawURL == "" {
		port := first(vars, "ES_LOCAL_PORT")
		if port == "" {
			port = defaultLocalPort
		}
		rawURL = fmt.Sprintf("%s://localhost:%s", defaultLocalScheme, port)
	}
	endpoint, err := ParseEndpoint(rawURL)
	if err != nil {
		return nil, &Error{Kind: InvalidURL, Source: filename, Err: err}
	}
	if key := first(vars, "ESCLI_API_KEY", "ES_LOCAL_API_KEY"); key != "" {
		return &Connection{Endpoint: endpoint, Credentials: APIKey(key)}, nil
	}
	if password := first(vars, "ESCLI_PASSWORD", "ES_LOCAL_PASSWORD"); password != "" {
		user := first(vars, "ESCLI_USER", "ES_LOCAL_USER")
		if user == "" {
			user = DefaultUser
		}
		return &Connection{Endpoint: endpoint, Credentials: UserPassword(user, password)}, nil
	}
	return nil, absent("no API key or password in file")
}

func first(vars map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := vars[k]; v != "" {
			return v
		}
	}
	return ""
}
