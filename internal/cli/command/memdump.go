package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/core/apanic"
)

// MemdumpCommand returns the memdump subcommand group.
func MemdumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "memdump",
		Usage: "Memory snapshot commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show whether a memory snapshot is present",
				Action: memdumpStatus,
			},
		},
	}
}

type memdumpView struct {
	Partition string `json:"partition,omitempty"`
	Present   bool   `json:"present"`
	Snapshot  *struct {
		Time        time.Time `json:"time"`
		SDRAMOffset uint32    `json:"sdram_offset"`
		SDRAMLength uint32    `json:"sdram_length"`
	} `json:"snapshot,omitempty"`
	LastSnapshot *apanic.SnapshotReport `json:"last_snapshot,omitempty"`
}

func memdumpStatus(c *cli.Context) error {
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

	var view memdumpView
	if err := client.MemdumpStatus(ctx, &view); err != nil {
		return fmt.Errorf("memdump status: %w", err)
	}
	return render(c, view)
}
