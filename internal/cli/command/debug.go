package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/cli/connection"
)

// DebugCommand returns the debug subcommand group. The server rejects
// these unless its debug section enables them.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Debug capture commands",
		Subcommands: []*cli.Command{
			{
				Name:   "trigger",
				Usage:  "Run a capture without crashing the server",
				Action: debugTrigger,
			},
			{
				Name:  "crash",
				Usage: "Crash the server process to exercise the failure path",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Do not ask for confirmation",
					},
				},
				Action: debugCrash,
			},
		},
	}
}

func debugTrigger(c *cli.Context) error {
	client, err := ensureClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := client.Trigger(ctx)
	if err != nil {
		var apiErr *connection.Error
		if errors.As(err, &apiErr) && (apiErr.Code == "AP-DBG-4090" || apiErr.Code == "busy") {
			return errors.New("trigger: a capture is already in progress")
		}
		return fmt.Errorf("trigger: %w", err)
	}
	return render(c, res)
}

func debugCrash(c *cli.Context) error {
	if !c.Bool("yes") {
		fmt.Fprint(c.App.Writer, "Crash the server process? [y/N] ")
		if !confirm(c.App.Reader) {
			fmt.Fprintln(c.App.Writer, "aborted")
			return nil
		}
	}

	mgr, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	client, err := mgr.HTTP()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := client.Crash(ctx); err != nil {
		return fmt.Errorf("crash: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Crash requested")
	return nil
}
