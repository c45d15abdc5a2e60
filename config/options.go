package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Options are the non-connection settings shared by all commands. Command line
// flags override them.
type Options struct {
	Timeout  time.Duration `env:"ESCLI_TIMEOUT" envDefault:"30s"`
	Retries  int           `env:"ESCLI_RETRIES" envDefault:"3"`
	LogLevel string        `env:"ESCLI_LOG_LEVEL" envDefault:"warn"`
}

// LoadOptions parses Options from environ, or from the process environment if environ is nil
func LoadOptions(environ map[string]string) (Options, error) {
	var o Options
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return Options{}, &Error{Kind: InvalidSettings, Source: "environment", Err: err}
	}
	return o, nil
}
