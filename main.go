package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/urfave/cli/v2"
	"heckel.io/escli/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.AppHelpTemplate += fmt.Sprintf(`
Connection details are read from $ESCLI_URL with $ESCLI_API_KEY, or with
$ESCLI_USER and $ESCLI_PASSWORD, or from a .env file in the current directory
or in elastic-start-local/.

Try 'escli COMMAND --help' for more information.

escli %s (%s), runtime %s, built at %s
`, version, shortCommit(commit), runtime.Version(), date)

	app := cmd.New()
	app.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop() // a second signal terminates the process
	}()
	if err := app.RunContext(ctx, cmd.Interspersed(app, os.Args)); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
