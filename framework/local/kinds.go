package local

import (
	"context"
	"fmt"

	"github.com/zingolabs/localnet/framework/local/empty"
	"github.com/zingolabs/localnet/framework/local/lightwalletd"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/local/zainod"
	"github.com/zingolabs/localnet/framework/local/zcashd"
	"github.com/zingolabs/localnet/framework/local/zebrad"
	"github.com/zingolabs/localnet/framework/types"
)

// Network is a LocalNet whose kinds are chosen at runtime.
type Network = LocalNet[types.Indexer, types.Validator]

// ValidatorKinds and IndexerKinds list the names accepted by Options.
var (
	ValidatorKinds = []string{zcashd.Name, zebrad.Name}
	IndexerKinds   = []string{zainod.Name, lightwalletd.Name, empty.Name}
)

// Options configure a Network chosen by kind name. Zero values keep each kind's defaults.
type Options struct {
	Settings     process.Settings
	RPCPort      uint16
	IndexerPort  uint16
	ChainCache   string
	Network      types.Network
	MinerAddress string
	TimeSource   zebrad.TimeSource
}

// Validator returns a launcher for the validator kind named kind.
func (o Options) Validator(kind string) (ValidatorFunc[types.Validator], error) {
	switch kind {
	case zcashd.Name:
		if o.Network != types.Regtest {
			return nil, fmt.Errorf("%s only runs %s", zcashd.Name, types.Regtest)
		}
		cfg := zcashd.DefaultConfig()
		cfg.RPCPort = o.RPCPort
		cfg.ChainCache = o.ChainCache
		if o.MinerAddress != "" {
			cfg.MinerAddress = o.MinerAddress
		}
		cfg.Settings = o.Settings
		return eraseValidator[types.Validator](cfg.LaunchValidator), nil
	case zebrad.Name:
		cfg := zebrad.DefaultConfig()
		cfg.Network = o.Network
		cfg.TimeSource = o.TimeSource
		cfg.RPCListenPort = o.RPCPort
		cfg.ChainCache = o.ChainCache
		if o.MinerAddress != "" {
			cfg.MinerAddress = o.MinerAddress
		}
		cfg.Settings = o.Settings
		return eraseValidator[types.Validator](cfg.LaunchValidator), nil
	default:
		return nil, fmt.Errorf("unknown validator %q", kind)
	}
}

// Indexer returns a launcher for the indexer kind named kind.
func (o Options) Indexer(kind string) (IndexerFunc[types.Indexer], error) {
	switch kind {
	case zainod.Name:
		cfg := zainod.DefaultConfig()
		cfg.ListenPort = o.IndexerPort
		cfg.Network = o.Network
		cfg.Settings = o.Settings
		return eraseIndexer[types.Indexer](cfg.LaunchIndexer), nil
	case lightwalletd.Name:
		cfg := lightwalletd.DefaultConfig()
		cfg.ListenPort = o.IndexerPort
		cfg.Settings = o.Settings
		return eraseIndexer[types.Indexer](cfg.LaunchIndexer), nil
	case empty.Name:
		return eraseIndexer[types.Indexer](empty.Config{Settings: o.Settings}.LaunchIndexer), nil
	default:
		return nil, fmt.Errorf("unknown indexer %q", kind)
	}
}

// LaunchKinds launches a Network from kind names.
func (o Options) LaunchKinds(ctx context.Context, indexer, validator string) (*Network, error) {
	v, err := o.Validator(validator)
	if err != nil {
		return nil, err
	}
	i, err := o.Indexer(indexer)
	if err != nil {
		return nil, err
	}
	return Launch(ctx, i, v)
}

// eraseValidator widens a concrete launcher to return the interface T, so a failed launch
// yields a nil interface rather than a typed nil.
func eraseValidator[T types.Validator, N types.Validator](launch func(context.Context) (N, error)) ValidatorFunc[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		n, err := launch(ctx)
		if err != nil {
			return zero, err
		}
		return any(n).(T), nil
	}
}

func eraseIndexer[T types.Indexer, N types.Indexer](launch func(context.Context, types.Validator) (N, error)) IndexerFunc[T] {
	return func(ctx context.Context, v types.Validator) (T, error) {
		var zero T
		n, err := launch(ctx, v)
		if err != nil {
			return zero, err
		}
		return any(n).(T), nil
	}
}
