package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/cli/config"
	"github.com/yndnr/apanic-go/internal/cli/connection"
	"github.com/yndnr/apanic-go/internal/cli/output"
	"github.com/yndnr/apanic-go/internal/infra/buildinfo"
)

const (
	connMgrKey   = "connMgr"
	cliConfigKey = "cliConfig"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "apanic-cli",
		Usage:   "Inspect and manage crash records on an apanic-server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			DumpCommand(),
			MemdumpCommand(),
			DebugCommand(),
			SystemCommand(),
			ProfileCommand(),
			ShellCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if !c.IsSet("output") && cfg.DefaultOutput != "" {
				if err := c.Set("output", cfg.DefaultOutput); err != nil {
					return err
				}
			}
			if _, err := output.ParseFormat(c.String("output")); err != nil {
				return err
			}
			if name := c.String("profile"); name != "" {
				if _, ok := cfg.Profiles[name]; !ok {
					return fmt.Errorf("profile %q is not defined", name)
				}
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[cliConfigKey] = cfg
			c.App.Metadata[connMgrKey] = connection.NewManager()
			return nil
		},
		After: func(c *cli.Context) error {
			if mgr := GetConnectionManager(c); mgr != nil {
				mgr.Disconnect()
			}
			return nil
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI profile file",
			EnvVars: []string{"APANIC_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Connection profile to use instead of the current one",
			EnvVars: []string{"APANIC_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "apanic-server HTTP address",
			EnvVars: []string{"APANIC_SERVER"},
			Value:   "127.0.0.1:5080",
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Bearer token for mutating requests",
			EnvVars: []string{"APANIC_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "socket",
			Usage:   "Use the local management socket instead of HTTP",
			EnvVars: []string{"APANIC_SOCKET"},
		},
		&cli.StringFlag{
			Name:    "ca-cert",
			Usage:   "PEM file with the CA that signed the server certificate",
			EnvVars: []string{"APANIC_CA_CERT"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: 30 * time.Second,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	Token    string
	Socket   string
	CACert   string
	Insecure bool
	Timeout  time.Duration

	Output string
	Wide   bool

	Verbose bool
}

// ParseGlobalFlags extracts global flags from context. Connection flags that
// were not given on the command line or in the environment are taken from
// the selected profile.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	flags := &GlobalFlags{
		Server:   c.String("server"),
		Token:    c.String("token"),
		Socket:   c.String("socket"),
		CACert:   c.String("ca-cert"),
		Insecure: c.Bool("insecure"),
		Timeout:  c.Duration("timeout"),
		Output:   c.String("output"),
		Wide:     c.Bool("wide"),
		Verbose:  c.Bool("verbose"),
	}

	cfg := GetCLIConfig(c)
	if cfg == nil {
		return flags
	}
	p, ok := cfg.Lookup(c.String("profile"))
	if !ok {
		return flags
	}
	if !c.IsSet("server") && p.Server != "" {
		flags.Server = p.Server
	}
	if !c.IsSet("token") && p.Token != "" {
		flags.Token = p.Token
	}
	if !c.IsSet("socket") && p.Socket != "" {
		flags.Socket = p.Socket
	}
	if !c.IsSet("ca-cert") && p.CACert != "" {
		flags.CACert = p.CACert
	}
	if !c.IsSet("insecure") {
		flags.Insecure = p.Insecure
	}
	return flags
}

// GetCLIConfig retrieves the loaded profile file from context.
func GetCLIConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[cliConfigKey].(*config.CLIConfig); ok {
		return cfg
	}
	return nil
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[connMgrKey].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// EnsureConnected connects with the global flags on first use and returns
// the manager.
func EnsureConnected(c *cli.Context) (*connection.Manager, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		mgr = connection.NewManager()
		c.App.Metadata[connMgrKey] = mgr
	}
	if mgr.IsConnected() {
		return mgr, nil
	}

	flags := ParseGlobalFlags(c)
	err := mgr.Connect(&connection.Connection{
		Server:   flags.Server,
		Token:    flags.Token,
		Socket:   flags.Socket,
		CACert:   flags.CACert,
		Insecure: flags.Insecure,
		Timeout:  flags.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return mgr, nil
}

// ensureClient returns the transport-independent client.
func ensureClient(c *cli.Context) (connection.Client, error) {
	mgr, err := EnsureConnected(c)
	if err != nil {
		return nil, err
	}
	return mgr.Client()
}

// requestContext bounds a request by the --timeout flag.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, data)
}

// textOutput reports whether the human readable format was selected.
func textOutput(c *cli.Context) bool {
	format, _ := output.ParseFormat(c.String("output"))
	return format == output.FormatTable
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
