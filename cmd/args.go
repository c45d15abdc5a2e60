package cmd

import (
	"strings"

	"github.com/urfave/cli/v2"
)

// Interspersed moves command flags that follow positional arguments in front of them,
// so "escli mk bowie -m title:text" parses like "escli mk -m title:text bowie". The
// flag parser stops at the first positional argument otherwise. Everything after "--"
// is left alone.
func Interspersed(app *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}
	out := []string{args[0]}
	i := 1
	for i < len(args) && isFlag(args[i]) {
		out = append(out, args[i])
		if takesValue(app.Flags, args[i]) && i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
		i++
	}
	if i >= len(args) {
		return args
	}
	command := app.Command(args[i])
	if command == nil {
		return args
	}
	out = append(out, args[i])
	var flags, positional []string
	for i++; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !isFlag(arg) {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		if takesValue(command.Flags, arg) && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	out = append(out, flags...)
	if len(positional) > 0 {
		out = append(out, "--")
		out = append(out, positional...)
	}
	return out
}

// isFlag is false for "-", which names STDIN
func isFlag(arg string) bool {
	return len(arg) > 1 && strings.HasPrefix(arg, "-")
}

func takesValue(flags []cli.Flag, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	name := strings.TrimLeft(arg, "-")
	for _, flag := range flags {
		for _, n := range flag.Names() {
			if n != name {
				continue
			}
			if f, ok := flag.(interface{ TakesValue() bool }); ok {
				return f.TakesValue()
			}
			return false
		}
	}
	return false
}
