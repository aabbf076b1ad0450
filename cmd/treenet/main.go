// Command treenet builds network trees from traceroute measurements, infers
// routers by alias resolution and serves the result over HTTP.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"treenet/internal/config"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	cfgFile      string
	logLevel     string
	envPrefix    = "TREENET"
	cfg          *config.Config
)

// rootCmd represents the root command
var rootCmd = &cobra.Command{
	Use:           "treenet",
	Short:         "Build network trees and infer routers from traceroute measurements",
	Version:       fmt.Sprintf("%s (%s)", buildVersion, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	},
}

// initConfig loads the config file, then applies environment variables and
// flags on top of it
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	var (
		loaded *config.Config
		path   string
		err    error
	)
	if cfgFile != "" {
		loaded, path, err = config.LoadFromPath(cfgFile)
	} else {
		loaded, path, err = config.Load()
	}
	if err != nil {
		return err
	}

	if err := applyFlags(loaded, cmd.Flags()); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	initLogger(cfg.Log.Level)
	if path != "" {
		log.WithField("path", path).Debug("loaded config file")
	}
	return nil
}

func initLogger(level string) {
	ll, err := log.ParseLevel(level)
	if err != nil {
		ll = log.InfoLevel
	}
	log.SetLevel(ll)
	log.SetFormatter(&log.TextFormatter{DisableColors: false, FullTimestamp: true, PadLevelText: true, DisableQuote: true})
}

// envName maps a flag name to its environment variable
func envName(flag string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return fmt.Sprintf("%s_%s", envPrefix, strings.ToUpper(r.Replace(flag)))
}

// bindFlags applies TREENET_* environment values to the flags left unset on
// the command line
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var firstErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = v.BindEnv(f.Name, envName(f.Name))

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid value for %s: %w", envName(f.Name), err)
			}
		}
	})
	return firstErr
}

// applyFlags copies every flag set on the command line or through the
// environment into c
func applyFlags(c *config.Config, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "log-level":
			c.Log.Level = f.Value.String()
		case "input":
			c.Input.Path = f.Value.String()
		case "format":
			c.Input.Format = f.Value.String()
		case "dump":
			c.Output.Dump = f.Value.String()
		case "graph":
			c.Output.Graph = f.Value.String()
		case "graph-format":
			c.Output.GraphFormat = f.Value.String()
		case "db":
			c.Database.Path = f.Value.String()
		case "addr":
			c.Server.Addr = f.Value.String()
		case "watch":
			c.Server.Watch, err = flags.GetBool(f.Name)
		case "rdns":
			c.RDNS.Enabled, err = flags.GetBool(f.Name)
		case "rdns-server":
			c.RDNS.Server = f.Value.String()
		case "rdns-timeout":
			var d time.Duration
			d, err = flags.GetDuration(f.Name)
			c.RDNS.Timeout = config.Duration(d)
		}
	})
	return err
}

func initFlags() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $TREENET_CONFIG, ./treenet.yaml, ~/.config/treenet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warning, error")

	rootCmd.AddCommand(newBuildCmd(), newLookupCmd(), newServeCmd(), newConfigCmd(), newDocsCmd())
}

// addInputFlags registers the dataset and enrichment flags shared by commands
func addInputFlags(fs *pflag.FlagSet) {
	fs.String("input", "", "dataset file (yaml, json or nmap XML)")
	fs.String("format", "auto", "dataset format: auto, yaml, json, nmap")
	fs.Bool("rdns", false, "resolve missing host names with PTR lookups")
	fs.String("rdns-server", "127.0.0.1:53", "DNS server used for PTR lookups")
	fs.Duration("rdns-timeout", 2*time.Second, "timeout of one PTR lookup")
}

func main() {
	// Initialize flags (command line parameters)
	initFlags()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
