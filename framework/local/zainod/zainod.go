// Package zainod launches the zaino indexer against a running validator.
package zainod

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/zingolabs/localnet/framework/local/config"
	"github.com/zingolabs/localnet/framework/local/indexer"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/types"
)

const Name = "zainod"

var Criteria = process.Criteria{
	Success: []string{"Zaino Indexer started successfully."},
	Errors:  []string{"Error:"},
}

// Config describes a zainod launch.
type Config struct {
	ZainodBin string
	// ListenPort is the gRPC port; 0 picks an unused one.
	ListenPort uint16
	// ValidatorPort is the validator's JSON-RPC port.
	ValidatorPort uint16
	// ChainCache holds zaino's database; empty uses the data directory.
	ChainCache string
	Network    types.Network
	Settings   process.Settings
}

func DefaultConfig() Config {
	return Config{Network: types.Regtest, Settings: process.DefaultSettings()}
}

// Node is a running zainod.
type Node struct {
	*process.Node
	port uint16
}

var _ types.Indexer = (*Node)(nil)

// Launch writes zindexer.toml pointing at the validator and starts zainod.
func Launch(ctx context.Context, cfg Config) (_ *Node, err error) {
	if cfg.ValidatorPort == 0 {
		return nil, fmt.Errorf("%s requires a validator port", Name)
	}
	pn, err := process.NewNode(Name, cfg.Settings)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = pn.Close(context.WithoutCancel(ctx))
		}
	}()

	n := &Node{Node: pn, port: cfg.ListenPort}
	if n.port == 0 {
		if n.port, err = process.PickUnusedPort(ctx); err != nil {
			return nil, err
		}
	} else {
		process.ReservePort(n.port)
	}

	cacheDir := cfg.ChainCache
	if cacheDir == "" {
		cacheDir = pn.DataDir()
	}
	confPath, err := config.Zainod(pn.ConfigDir(), config.ZainodParams{
		ListenPort:    n.port,
		ValidatorPort: cfg.ValidatorPort,
		CacheDir:      cacheDir,
		Network:       cfg.Network,
	})
	if err != nil {
		return nil, err
	}
	pn.SetConfigPath(confPath)

	bin, err := pn.Settings().ResolveBinary(ctx, cfg.ZainodBin, Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", Name, err)
	}
	err = pn.Spawn(ctx, process.SpawnOptions{
		Binary:   bin,
		Args:     []string{"--config", confPath},
		Criteria: Criteria,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Port returns the gRPC listen port.
func (n *Node) Port() uint16 { return n.port }

// Dial opens a gRPC client to zainod.
func (n *Node) Dial(ctx context.Context) (*grpc.ClientConn, error) {
	return indexer.Dial(ctx, n.port)
}

// LaunchIndexer points zainod at the validator's RPC port and launches it.
func (c Config) LaunchIndexer(ctx context.Context, v types.Validator) (*Node, error) {
	c.ValidatorPort = v.RPCPort()
	return Launch(ctx, c)
}
