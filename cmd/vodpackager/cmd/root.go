// Package cmd implements the CLI commands for vodpackager, a thin host
// embedding the internal/vod packager core. It exists to demonstrate
// end-to-end wiring of the parser, muxers and encryptor described in
// spec.md §1-§6; the HTTP server, manifest templating, and block I/O layer
// a production embedding would supply are explicitly out of the core's
// scope and are stood in for here by reading the whole source file and a
// single in-memory read cache.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmylchreest/vodpackager/internal/config"
	"github.com/jmylchreest/vodpackager/internal/observability"
	"github.com/jmylchreest/vodpackager/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "vodpackager",
	Short:   "VOD packager core demonstration CLI",
	Version: version.Short(),
	Long: `vodpackager packages ISO Base Media File Format (MP4) assets into
adaptive-streaming fragments: HDS F4F fragments with an abst bootstrap box,
optionally protected with Common Encryption (CENC) AES-CTR.

This binary is a demonstration host for the internal/vod packager core, not
a production streaming server: it has no HTTP surface, no manifest
templating and no caching block-I/O layer of its own (those are out of the
core's scope per spec.md §1).`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vodpackager.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/vodpackager")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".vodpackager")
	}

	viper.SetEnvPrefix("VODPACKAGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the slog logger based on configuration. The
// packager core never writes to stdout/stderr itself (spec §7); this builds
// the host-side logger shim that runPackage passes into every core
// component constructor, through observability.NewLoggerWithWriter exactly
// as the teacher's own cmd/tvarr-ffmpegd/cmd/root.go wires its logger.
func initLogging() error {
	level := strings.ToLower(viper.GetString("log.level"))
	if level == "warning" {
		level = "warn"
	}
	cfg := config.LoggingConfig{
		Level:      level,
		Format:     strings.ToLower(viper.GetString("log.format")),
		TimeFormat: time.RFC3339,
	}
	logger := observability.NewLoggerWithWriter(cfg, os.Stderr)
	observability.SetDefault(logger)
	return nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
