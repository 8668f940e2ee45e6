package command

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file; empty keeps history in memory",
				Value: repl.DefaultHistoryPath(),
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	history := repl.NewHistory(c.String("history"))
	if err := history.Load(); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: load history: %v\n", err)
	}

	// Shared so confirmation prompts read the line after the command.
	in := bufio.NewReader(c.App.Reader)
	base := shellBaseArgs(c)
	exec := func(ctx context.Context, args []string) error {
		if args[0] == "shell" {
			return fmt.Errorf("already in a shell")
		}
		sub := App()
		sub.Writer = c.App.Writer
		sub.ErrWriter = c.App.ErrWriter
		sub.Reader = in
		sub.ExitErrHandler = func(*cli.Context, error) {}
		return sub.RunContext(ctx, append(append([]string(nil), base...), args...))
	}

	shell := repl.New(exec,
		repl.WithIO(in, c.App.Writer),
		repl.WithCompleter(repl.NewCompleter(commandPaths(c.App.Commands, ""))),
		repl.WithHistory(history),
	)
	if err := shell.Run(c.Context); err != nil {
		return err
	}
	return history.Save()
}

// shellBaseArgs rebuilds the global flags so every shell line talks to the
// same server as the shell itself.
func shellBaseArgs(c *cli.Context) []string {
	flags := ParseGlobalFlags(c)
	args := []string{c.App.Name, "--config", c.String("config")}
	if p := c.String("profile"); p != "" {
		args = append(args, "--profile", p)
	}

	add := func(name, value string) {
		if value != "" {
			args = append(args, "--"+name, value)
		}
	}
	add("server", flags.Server)
	add("token", flags.Token)
	add("socket", flags.Socket)
	add("ca-cert", flags.CACert)
	add("timeout", flags.Timeout.String())
	add("output", flags.Output)
	if flags.Insecure {
		args = append(args, "--insecure")
	}
	if flags.Wide {
		args = append(args, "--wide")
	}
	return args
}

// commandPaths lists every command path, such as "dump show".
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var paths []string
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}
		path := strings.TrimSpace(prefix + " " + cmd.Name)
		paths = append(paths, path)
		paths = append(paths, commandPaths(cmd.Subcommands, path)...)
	}
	return paths
}
