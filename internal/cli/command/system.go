package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/infra/buildinfo"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "System management commands",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: systemHealth,
			},
			{
				Name:   "version",
				Usage:  "Show client and server versions",
				Action: systemVersion,
			},
			{
				Name:   "reload",
				Usage:  "Reload the server configuration (local socket only)",
				Action: systemReload,
			},
			{
				Name:   "shutdown",
				Usage:  "Stop the server (local socket only)",
				Action: systemShutdown,
			},
		},
	}
}

func systemHealth(c *cli.Context) error {
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

	result, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}

	if !textOutput(c) {
		return render(c, result)
	}
	if result.Status == "healthy" {
		fmt.Fprintf(c.App.Writer, "✓ Server is healthy\n")
		fmt.Fprintf(c.App.Writer, "  Target:  %s\n", client.BaseURL())
		fmt.Fprintf(c.App.Writer, "  Version: %s\n", result.Version)
	} else {
		fmt.Fprintf(c.App.Writer, "✗ Server is unhealthy: %s\n", result.Status)
	}
	return nil
}

type versionView struct {
	Client buildinfo.Info `json:"client"`
	Server string         `json:"server"`
}

func systemVersion(c *cli.Context) error {
	view := versionView{Client: buildinfo.Get()}

	client, err := ensureClient(c)
	if err == nil {
		ctx, cancel := requestContext(c)
		defer cancel()
		view.Server, err = client.Version(ctx)
	}
	if err != nil {
		view.Server = "unreachable"
		if c.Bool("verbose") {
			fmt.Fprintf(c.App.ErrWriter, "server version: %v\n", err)
		}
	}
	return render(c, view)
}

func systemReload(c *cli.Context) error {
	mgr, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	client, err := mgr.Socket()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := client.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Configuration reloaded")
	return nil
}

func systemShutdown(c *cli.Context) error {
	mgr, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	client, err := mgr.Socket()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := client.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Server is shutting down")
	return nil
}
