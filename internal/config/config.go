// Package config layers the simulator's runtime settings the way the
// teacher's inmaputil.Cfg does: flags override environment variables
// (KIGALISIM_*) override a config file override the defaults set here,
// all via a single *viper.Viper instance wrapped in Cfg.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg wraps a *viper.Viper bound to a root cobra command's persistent
// flags, mirroring the teacher's Cfg struct in inmaputil/cmd.go.
type Cfg struct {
	*viper.Viper
}

// New returns a Cfg with defaults set and environment variable binding
// configured under the KIGALISIM prefix.
func New() *Cfg {
	v := viper.New()
	v.SetEnvPrefix("KIGALISIM")
	v.AutomaticEnv()

	v.SetDefault("trials", 1)
	v.SetDefault("startYear", 0)
	v.SetDefault("endYear", 0)
	v.SetDefault("logLevel", "info")
	v.SetDefault("config", "")

	return &Cfg{Viper: v}
}

// BindFlags registers this Cfg's options as persistent flags on cmd and
// binds them into viper, so flags take precedence over environment and
// file-based configuration.
func (cfg *Cfg) BindFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a configuration file")
	flags.Int("trials", 1, "number of replicate trials per scenario")
	flags.String("log-level", "info", "logrus log level")
	_ = cfg.BindPFlag("config", flags.Lookup("config"))
	_ = cfg.BindPFlag("trials", flags.Lookup("trials"))
	_ = cfg.BindPFlag("logLevel", flags.Lookup("log-level"))
}

// Load reads the configuration file named by the "config" key, if set.
// Grounded on the teacher's setConfig in inmaputil/cmd.go: a missing
// --config flag is not an error, a configured-but-unreadable file is.
func (cfg *Cfg) Load() error {
	path := cfg.GetString("config")
	if path == "" {
		return nil
	}
	cfg.SetConfigFile(path)
	if err := cfg.ReadInConfig(); err != nil {
		return fmt.Errorf("kigalisim: problem reading configuration file: %w", err)
	}
	return nil
}

// PersistentPreRunE returns a cobra hook that loads the configuration file
// before every command invocation, mirroring the teacher's Root command
// wiring.
func (cfg *Cfg) PersistentPreRunE() func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		return cfg.Load()
	}
}
