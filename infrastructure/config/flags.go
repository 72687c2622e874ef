package config

import (
	"os"

	"github.com/spf13/pflag"
)

// Flags are the command-line settings of a service binary.
type Flags struct {
	ConfigPath string
	Address    string
	Watch      bool
}

// ParseFlags parses args. The config path defaults to CONFIG_FILE.
func ParseFlags(name string, args []string) (Flags, error) {
	var f Flags
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	fs.StringVar(&f.Address, "addr", "", "listen address, overrides the config")
	fs.BoolVar(&f.Watch, "watch", true, "reload the log level when the config file changes")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Apply copies flag overrides onto cfg.
func (f Flags) Apply(cfg *Config) {
	if f.Address != "" {
		cfg.ServerAddress = f.Address
	}
}
