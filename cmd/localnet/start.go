package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zingolabs/localnet/framework/local"
	"github.com/zingolabs/localnet/framework/local/fetcher"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/local/zainod"
	"github.com/zingolabs/localnet/framework/local/zcashd"
	"github.com/zingolabs/localnet/framework/local/zebrad"
	"github.com/zingolabs/localnet/framework/types"
)

const (
	validatorKey        = "validator"
	indexerKey          = "indexer"
	blocksKey           = "blocks"
	networkKey          = "network"
	chainCacheKey       = "chain-cache"
	rpcPortKey          = "rpc-port"
	indexerPortKey      = "indexer-port"
	minerAddressKey     = "miner-address"
	timeSourceKey       = "time-source"
	readinessTimeoutKey = "readiness-timeout"
	tempRootKey         = "temp-root"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch a validator and an indexer and run them until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := commandViper(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(v.GetString(logLevelKey), v.GetString(logFileKey))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runStart(cmd.Context(), v, log, cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.String(validatorKey, zcashd.Name, "Validator kind: "+strings.Join(local.ValidatorKinds, ", "))
	fs.String(indexerKey, zainod.Name, "Indexer kind: "+strings.Join(local.IndexerKinds, ", "))
	fs.Uint32(blocksKey, 0, "Blocks to generate after launch")
	fs.String(networkKey, types.Regtest.String(), "Network for zebrad: regtest, testnet or mainnet (non-regtest needs --chain-cache)")
	fs.String(chainCacheKey, "", "Chain cache to start the validator from")
	fs.Uint16(rpcPortKey, 0, "Validator RPC port; 0 picks an unused port")
	fs.Uint16(indexerPortKey, 0, "Indexer gRPC port; 0 picks an unused port")
	fs.String(minerAddressKey, "", "Miner address; empty uses the kind's default")
	fs.String(timeSourceKey, zebrad.CurTime.String(), "Header time source for zebrad block proposals")
	fs.Duration(readinessTimeoutKey, process.DefaultReadinessTimeout, "How long to wait for each node to become ready")
	fs.String(tempRootKey, "", "Parent of the node directories; empty uses the system temp dir")
	return cmd
}

func runStart(ctx context.Context, v *viper.Viper, log *zap.Logger, out io.Writer) error {
	settings := process.DefaultSettings()
	settings.Logger = log
	settings.ReadinessTimeout = v.GetDuration(readinessTimeoutKey)
	settings.KeepDirs = v.GetBool(keepDirsKey)
	settings.TempRoot = v.GetString(tempRootKey)
	if dir := v.GetString(binDirKey); dir != "" {
		settings.Binaries = fetcher.NewResolver(dir, v.GetString(baseURLKey), log)
	}

	opts, err := networkOptions(v, settings)
	if err != nil {
		return err
	}
	net, err := opts.LaunchKinds(ctx, v.GetString(indexerKey), v.GetString(validatorKey))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*settings.StopTimeout)
		defer cancel()
		if err := net.Close(closeCtx); err != nil {
			log.Error("failed to shut down", zap.Error(err))
		}
	}()

	if blocks := v.GetUint32(blocksKey); blocks > 0 {
		if err := net.Validator().GenerateBlocks(ctx, blocks); err != nil {
			return err
		}
	}
	if err := printEndpoints(ctx, out, net); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func networkOptions(v *viper.Viper, settings process.Settings) (local.Options, error) {
	network, err := types.ParseNetwork(v.GetString(networkKey))
	if err != nil {
		return local.Options{}, err
	}
	ts, err := zebrad.ParseTimeSource(v.GetString(timeSourceKey))
	if err != nil {
		return local.Options{}, err
	}
	return local.Options{
		Settings:     settings,
		RPCPort:      v.GetUint16(rpcPortKey),
		IndexerPort:  v.GetUint16(indexerPortKey),
		ChainCache:   v.GetString(chainCacheKey),
		Network:      network,
		MinerAddress: v.GetString(minerAddressKey),
		TimeSource:   ts,
	}, nil
}

func printEndpoints(ctx context.Context, out io.Writer, net *local.Network) error {
	val, idx := net.Validator(), net.Indexer()
	height, err := val.ChainHeight(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s) rpc 127.0.0.1:%d height %s\n", val.Name(), val.Network(), val.RPCPort(), height)
	fmt.Fprintf(out, "  config %s\n  logs   %s\n", val.ConfigPath(), val.LogsDir())
	if idx.Port() != 0 {
		fmt.Fprintf(out, "%s grpc 127.0.0.1:%d\n", idx.Name(), idx.Port())
	} else {
		fmt.Fprintf(out, "%s\n", idx.Name())
	}
	fmt.Fprintf(out, "  logs   %s\n", idx.LogsDir())
	return nil
}
