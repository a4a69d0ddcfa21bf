// Package zcashd launches zcashd validators and drives them through zcash-cli.
package zcashd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zingolabs/localnet/framework/local/chaincache"
	"github.com/zingolabs/localnet/framework/local/config"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/testutil/wait"
	"github.com/zingolabs/localnet/framework/types"
)

const (
	Name    = "zcashd"
	CLIName = "zcash-cli"
)

// Criteria decide when zcashd has finished starting.
var Criteria = process.Criteria{
	Success: []string{"init message: Done loading"},
	Errors:  []string{"Error:"},
}

// Config describes a zcashd launch. Zero values select defaults.
type Config struct {
	// ZcashdBin and ZcashCliBin override the resolved binaries.
	ZcashdBin   string
	ZcashCliBin string
	// RPCPort is the JSON-RPC port; 0 picks an unused one.
	RPCPort           uint16
	ActivationHeights types.ActivationHeights
	MinerAddress      string
	// ChainCache is a directory previously written by CacheChain; empty starts from genesis.
	ChainCache string
	// CacheSettle is how long CacheChain waits after stopping; 0 uses chaincache.DefaultSettle.
	CacheSettle time.Duration
	Settings    process.Settings
}

// DefaultConfig returns a regtest config with every upgrade active at height 1.
func DefaultConfig() Config {
	return Config{
		ActivationHeights: types.DefaultActivationHeights(),
		Settings:          process.DefaultSettings(),
	}
}

// Node is a running zcashd.
type Node struct {
	*process.Node
	rpcPort uint16
	cliBin  string
	heights types.ActivationHeights
	settle  time.Duration
}

var _ types.Validator = (*Node)(nil)

// Launch starts zcashd and waits until it has loaded. A chain started without a cache gets its first block generated.
// On failure the process is stopped and its directories removed.
func Launch(ctx context.Context, cfg Config) (_ *Node, err error) {
	if err := cfg.ActivationHeights.Validate(); err != nil {
		return nil, err
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

	n := &Node{Node: pn, heights: cfg.ActivationHeights, settle: cfg.CacheSettle}
	if n.settle <= 0 {
		n.settle = chaincache.DefaultSettle
	}

	if cfg.ChainCache != "" {
		if _, err := chaincache.Load(cfg.ChainCache, pn.DataDir(), chaincache.ZcashdSubdir, types.Regtest); err != nil {
			return nil, err
		}
	}

	n.rpcPort = cfg.RPCPort
	if n.rpcPort == 0 {
		if n.rpcPort, err = process.PickUnusedPort(ctx); err != nil {
			return nil, err
		}
	} else {
		process.ReservePort(n.rpcPort)
	}

	confPath, err := config.Zcashd(pn.ConfigDir(), n.rpcPort, cfg.ActivationHeights, cfg.MinerAddress)
	if err != nil {
		return nil, err
	}
	pn.SetConfigPath(confPath)

	settings := pn.Settings()
	bin, err := settings.ResolveBinary(ctx, cfg.ZcashdBin, Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", Name, err)
	}
	if n.cliBin, err = settings.ResolveBinary(ctx, cfg.ZcashCliBin, CLIName); err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", CLIName, err)
	}

	pn.SetGracefulStop(func(ctx context.Context) error {
		_, err := n.CLICommand(ctx, "stop")
		return err
	})

	err = pn.Spawn(ctx, process.SpawnOptions{
		Binary: bin,
		Args: []string{
			"--printtoconsole",
			"--conf=" + confPath,
			"--datadir=" + pn.DataDir(),
			"-debug=1",
		},
		Criteria: Criteria,
	})
	if err != nil {
		return nil, err
	}

	if cfg.ChainCache == "" {
		if err := n.GenerateBlocks(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to generate genesis block: %w", err)
		}
	}
	return n, nil
}

func (n *Node) Network() types.Network { return types.Regtest }

// RPCPort returns the JSON-RPC port.
func (n *Node) RPCPort() uint16 { return n.rpcPort }

// ZcashConfPath returns the path of the generated zcash.conf.
func (n *Node) ZcashConfPath() string { return n.ConfigPath() }

// ActivationHeights returns the upgrade heights the node was configured with.
func (n *Node) ActivationHeights() types.ActivationHeights { return n.heights }

// CLICommand runs zcash-cli against this node and returns its standard output.
func (n *Node) CLICommand(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, n.cliBin, append([]string{"-conf=" + n.ConfigPath()}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", CLIName, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type chainTip struct {
	Height *uint32 `json:"height"`
	Status string  `json:"status"`
}

// ChainHeight returns the height of the first chain tip reported by getchaintips.
func (n *Node) ChainHeight(ctx context.Context) (types.ChainHeight, error) {
	out, err := n.CLICommand(ctx, "getchaintips")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrHeightQuery, err)
	}
	var tips []chainTip
	if err := json.Unmarshal(out, &tips); err != nil {
		return 0, fmt.Errorf("%w: malformed getchaintips output %q: %w", types.ErrHeightQuery, out, err)
	}
	if len(tips) == 0 || tips[0].Height == nil {
		return 0, fmt.Errorf("%w: getchaintips returned no height: %q", types.ErrHeightQuery, out)
	}
	return types.ChainHeight(*tips[0].Height), nil
}

// GenerateBlocks mines n blocks with zcash-cli and waits for the chain to reach them.
func (n *Node) GenerateBlocks(ctx context.Context, count uint32) error {
	start, err := n.ChainHeight(ctx)
	if err != nil {
		return err
	}
	out, err := n.CLICommand(ctx, "generate", strconv.FormatUint(uint64(count), 10))
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrBlockProduction, err)
	}
	var hashes []string
	if err := json.Unmarshal(out, &hashes); err != nil {
		return fmt.Errorf("%w: malformed generate output %q: %w", types.ErrBlockProduction, out, err)
	}
	n.Logger().Debug("generated blocks", zap.Uint32("count", count), zap.Stringer("from", start))
	return n.PollChainHeight(ctx, start.Add(count))
}

// PollChainHeight blocks until the chain height reaches target or the height timeout expires.
func (n *Node) PollChainHeight(ctx context.Context, target types.ChainHeight) error {
	s := n.Settings()
	return wait.ForHeight(ctx, n, target, s.HeightTimeout, s.PollInterval)
}

// CacheChain stops the node and copies its data directory to dest, which must not exist.
func (n *Node) CacheChain(ctx context.Context, dest string) error {
	return chaincache.Save(ctx, n, n.DataDir(), dest, n.settle)
}

// LaunchValidator launches zcashd from c.
func (c Config) LaunchValidator(ctx context.Context) (*Node, error) {
	return Launch(ctx, c)
}
