package config

// CLIConfig is the configuration for apanic-cli.
type CLIConfig struct {
	DefaultOutput string `yaml:"default_output,omitempty"`

	// CurrentProfile is used when --profile is not given.
	CurrentProfile string `yaml:"current_profile,omitempty"`

	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile stores how to reach one server.
type Profile struct {
	Server   string `yaml:"server,omitempty" json:"server,omitempty"`
	Token    string `yaml:"token,omitempty" json:"-"`
	Socket   string `yaml:"socket,omitempty" json:"socket,omitempty"`
	CACert   string `yaml:"ca_cert,omitempty" json:"ca_cert,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultOutput: "table",
		Profiles:      make(map[string]Profile),
	}
}

// Lookup returns the named profile, or the current one when name is empty.
// The second result is false when no profile applies.
func (c *CLIConfig) Lookup(name string) (Profile, bool) {
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return Profile{}, false
	}
	p, ok := c.Profiles[name]
	return p, ok
}
