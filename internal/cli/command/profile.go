package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/cli/config"
)

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved profiles",
				Action: profileList,
			},
			{
				Name:      "save",
				Usage:     "Save the current connection flags as a profile",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "use",
						Usage: "Also make it the current profile",
					},
				},
				Action: profileSave,
			},
			{
				Name:      "use",
				Usage:     "Select the current profile",
				ArgsUsage: "<name>",
				Action:    profileUse,
			},
			{
				Name:      "delete",
				Usage:     "Delete a profile",
				ArgsUsage: "<name>",
				Action:    profileDelete,
			},
		},
	}
}

type profileView struct {
	Name     string `json:"name"`
	Current  string `json:"current"`
	Server   string `json:"server"`
	Socket   string `json:"socket"`
	CACert   string `json:"ca_cert" table:"wide"`
	Insecure bool   `json:"insecure" table:"wide"`
}

func profileList(c *cli.Context) error {
	cfg := GetCLIConfig(c)
	if cfg == nil {
		return fmt.Errorf("profile file not loaded")
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]profileView, 0, len(names))
	for _, name := range names {
		p := cfg.Profiles[name]
		v := profileView{
			Name:     name,
			Server:   p.Server,
			Socket:   p.Socket,
			CACert:   p.CACert,
			Insecure: p.Insecure,
		}
		if name == cfg.CurrentProfile {
			v.Current = "*"
		}
		views = append(views, v)
	}

	if len(views) == 0 && textOutput(c) {
		fmt.Fprintln(c.App.Writer, "No profiles saved.")
		return nil
	}
	return render(c, views)
}

func profileSave(c *cli.Context) error {
	name, err := profileName(c)
	if err != nil {
		return err
	}
	cfg := GetCLIConfig(c)
	if cfg == nil {
		return fmt.Errorf("profile file not loaded")
	}

	flags := ParseGlobalFlags(c)
	cfg.Profiles[name] = config.Profile{
		Server:   flags.Server,
		Token:    flags.Token,
		Socket:   flags.Socket,
		CACert:   flags.CACert,
		Insecure: flags.Insecure,
	}
	if c.Bool("use") || cfg.CurrentProfile == "" {
		cfg.CurrentProfile = name
	}

	if err := config.Save(cfg, c.String("config")); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Profile %q saved.\n", name)
	return nil
}

func profileUse(c *cli.Context) error {
	name, err := profileName(c)
	if err != nil {
		return err
	}
	cfg := GetCLIConfig(c)
	if cfg == nil {
		return fmt.Errorf("profile file not loaded")
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile %q is not defined", name)
	}

	cfg.CurrentProfile = name
	if err := config.Save(cfg, c.String("config")); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Now using profile %q.\n", name)
	return nil
}

func profileDelete(c *cli.Context) error {
	name, err := profileName(c)
	if err != nil {
		return err
	}
	cfg := GetCLIConfig(c)
	if cfg == nil {
		return fmt.Errorf("profile file not loaded")
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile %q is not defined", name)
	}

	delete(cfg.Profiles, name)
	if cfg.CurrentProfile == name {
		cfg.CurrentProfile = ""
	}
	if err := config.Save(cfg, c.String("config")); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Profile %q deleted.\n", name)
	return nil
}

func profileName(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one profile name")
	}
	return c.Args().First(), nil
}
