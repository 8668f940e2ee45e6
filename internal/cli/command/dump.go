package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/cli/connection"
	"github.com/yndnr/apanic-go/internal/cli/output"
)

// DumpCommand returns the dump subcommand group.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:    "dump",
		Aliases: []string{"apanic"},
		Usage:   "Panic record commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the engine state and published segments",
				Action: dumpStatus,
			},
			{
				Name:      "show",
				Usage:     "Print or save a published segment",
				ArgsUsage: "<console|threads>",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "offset",
						Usage: "Start reading at this byte offset",
					},
					&cli.Int64Flag{
						Name:  "count",
						Usage: "Read at most this many bytes (0 reads to the end)",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"f"},
						Usage:   "Write to this file instead of stdout",
					},
				},
				Action: dumpShow,
			},
			{
				Name:  "clear",
				Usage: "Erase the panic record from the partition",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Do not ask for confirmation",
					},
				},
				Action: dumpClear,
			},
		},
	}
}

func dumpStatus(c *cli.Context) error {
	client, err := ensureClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return render(c, st)
}

func dumpShow(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: %s %s", c.Command.FullName(), c.Command.ArgsUsage)
	}
	segment := c.Args().First()
	offset, count := c.Int64("offset"), c.Int64("count")
	if offset < 0 || count < 0 {
		return errors.New("--offset and --count must not be negative")
	}

	client, err := ensureClient(c)
	if err != nil {
		return err
	}

	var dst io.Writer = c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}
		defer f.Close()

		size := int64(-1)
		if count > 0 {
			size = count
		} else if st, err := client.Status(c.Context); err == nil {
			if seg, ok := st.Segment(segment); ok {
				size = seg.Size - offset
			}
		}
		pw := output.NewProgressWriter(f, c.App.ErrWriter, segment, size)
		defer pw.Finish()
		dst = pw
	}

	if count > 0 {
		if count > connection.ChunkSize*16 {
			return fmt.Errorf("--count must not exceed %d", connection.ChunkSize*16)
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		buf := make([]byte, count)
		n, eof, err := client.ReadAt(ctx, segment, buf, offset)
		if err != nil {
			return readError(segment, offset, err)
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			return err
		}
		if c.Bool("verbose") {
			fmt.Fprintf(c.App.ErrWriter, "read %d bytes at %d (eof=%t)\n", n, offset, eof)
		}
		return nil
	}

	var src io.Reader
	if hc, ok := client.(*connection.HTTPClient); ok && offset == 0 {
		body, _, err := hc.Download(c.Context, segment)
		if err != nil {
			return readError(segment, offset, err)
		}
		defer body.Close()
		src = body
	} else {
		src = connection.SegmentReader(c.Context, client, segment, offset)
	}

	if _, err := io.Copy(dst, src); err != nil {
		return readError(segment, offset, err)
	}
	return nil
}

func readError(segment string, offset int64, err error) error {
	if errors.Is(err, connection.ErrOutOfRange) {
		return fmt.Errorf("read %s: offset %d is past the end of the segment", segment, offset)
	}
	return fmt.Errorf("read %s: %w", segment, err)
}

func dumpClear(c *cli.Context) error {
	if !c.Bool("yes") {
		fmt.Fprint(c.App.Writer, "Erase the panic record? [y/N] ")
		if !confirm(c.App.Reader) {
			fmt.Fprintln(c.App.Writer, "aborted")
			return nil
		}
	}

	client, err := ensureClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := client.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if textOutput(c) {
		fmt.Fprintln(c.App.Writer, "Erase scheduled")
		return nil
	}
	return render(c, map[string]bool{"scheduled": true})
}

func confirm(r io.Reader) bool {
	if r == nil {
		r = os.Stdin
	}
	var answer string
	fmt.Fscanln(r, &answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}
