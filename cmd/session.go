package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"heckel.io/escli/client"
	"heckel.io/escli/config"
	"heckel.io/escli/util"
)

// resolve is swapped in tests
var resolve = config.Resolve

// session is what every command that talks to the cluster needs
type session struct {
	client  *client.Client
	log     *zap.Logger
	options config.Options
}

func newSession(c *cli.Context) (*session, error) {
	options, err := config.LoadOptions(nil)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	if c.IsSet("timeout") {
		options.Timeout = c.Duration("timeout")
	}
	if c.Bool("verbose") {
		options.LogLevel = "debug"
	}
	log, err := util.NewLogger(options.LogLevel)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid log level %q: %s", options.LogLevel, err), 1)
	}
	conn, err := resolve()
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	log.Debug("connection resolved",
		zap.String("source", conn.Source),
		zap.Stringer("endpoint", conn.Endpoint),
		zap.Stringer("credentials", conn.Credentials))
	es, err := client.New(conn,
		client.WithLogger(log),
		client.WithTimeout(options.Timeout),
		client.WithBackoff(backoff(options.Retries)))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return &session{client: es, log: log, options: options}, nil
}

func (s *session) close() {
	_ = s.log.Sync()
}

func backoff(attempts int) util.Backoff {
	b := util.DefaultBackoff
	b.Attempts = attempts
	if b.Attempts < 1 {
		b.Attempts = 1
	}
	return b
}

// fail turns an operation error into an exit error
func fail(err error) error {
	return cli.Exit(err.Error(), 1)
}
