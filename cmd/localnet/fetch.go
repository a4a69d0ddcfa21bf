package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zingolabs/localnet/framework/local/fetcher"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [binary...]",
		Short: "Verify node binaries in --bin-dir, downloading missing ones from --base-url",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := commandViper(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(v.GetString(logLevelKey), v.GetString(logFileKey))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			dir := v.GetString(binDirKey)
			if dir == "" {
				return fmt.Errorf("--%s or %s_BIN_DIR is required", binDirKey, envPrefix)
			}
			bins, err := parseBinaries(args)
			if err != nil {
				return err
			}

			r := fetcher.NewResolver(dir, v.GetString(baseURLKey), log)
			paths, err := r.FetchAll(cmd.Context(), bins...)
			if err != nil {
				log.Error("failed to fetch binaries", zap.Error(err))
				return err
			}
			names := make([]string, 0, len(paths))
			for b := range paths {
				names = append(names, string(b))
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, paths[fetcher.Binary(name)])
			}
			return nil
		},
	}
}

func parseBinaries(args []string) ([]fetcher.Binary, error) {
	known := make(map[fetcher.Binary]bool)
	for _, b := range fetcher.All() {
		known[b] = true
	}
	bins := make([]fetcher.Binary, 0, len(args))
	for _, arg := range args {
		b := fetcher.Binary(arg)
		if !known[b] {
			return nil, fmt.Errorf("unknown binary %q", arg)
		}
		bins = append(bins, b)
	}
	return bins, nil
}
