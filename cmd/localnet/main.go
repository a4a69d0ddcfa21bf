package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix prefixes the environment variables that override flags, e.g. LOCALNET_BIN_DIR.
const envPrefix = "LOCALNET"

const (
	configKey   = "config"
	logFileKey  = "log-file"
	logLevelKey = "log-level"
	binDirKey   = "bin-dir"
	baseURLKey  = "base-url"
	keepDirsKey = "keep-dirs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "localnet",
		Short:         "Run local Zcash networks from native node binaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	fs := rootCmd.PersistentFlags()
	fs.String(configKey, "", "Optional config file (toml, yaml or json) providing flag values")
	fs.String(logFileKey, "", "Write logs to this file, rotated, instead of stderr")
	fs.String(logLevelKey, "info", "Log level (debug, info, warn, error)")
	fs.String(binDirKey, "", "Directory holding node binaries as <dir>/<name>/<name>; empty uses $PATH")
	fs.String(baseURLKey, "", "URL to download missing binaries from")
	fs.Bool(keepDirsKey, false, "Keep node directories after shutdown")

	rootCmd.AddCommand(newStartCmd(), newFetchCmd(), newVersionCmd())
	return rootCmd
}

// buildViper layers flags over LOCALNET_* environment variables over the optional config file.
func buildViper(flags ...*pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, fs := range flags {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}
	if path := v.GetString(configKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

func commandViper(cmd *cobra.Command) (*viper.Viper, error) {
	return buildViper(cmd.InheritedFlags(), cmd.LocalFlags())
}
