// Package zebrad launches zebrad validators and mines blocks on them over JSON-RPC.
package zebrad

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/zingolabs/localnet/framework/local/chaincache"
	"github.com/zingolabs/localnet/framework/local/config"
	"github.com/zingolabs/localnet/framework/local/process"
	tomlutil "github.com/zingolabs/localnet/framework/testutil/toml"
	"github.com/zingolabs/localnet/framework/testutil/wait"
	"github.com/zingolabs/localnet/framework/types"
)

const Name = "zebrad"

// DefaultMinerAddress is a transparent regtest address that receives mining rewards by default.
const DefaultMinerAddress = "t27eWDgjFYJGVXmzrXeVjnb5J3uXDM9xH9v"

// Criteria decide when zebrad has finished starting.
var Criteria = process.Criteria{
	Success:    []string{"Release always valid in Testnet", "starting sync"},
	Errors:     []string{"error:"},
	Exclusions: []string{`error: "failed to lookup address information: Temporary failure in name resolution"`},
}

// Config describes a zebrad launch. Zero values select defaults.
type Config struct {
	ZebradBin string
	// NetworkListenPort and RPCListenPort are picked when 0.
	NetworkListenPort uint16
	RPCListenPort     uint16
	ActivationHeights types.ActivationHeights
	MinerAddress      string
	// ChainCache is required on networks other than regtest, where it is used in place.
	ChainCache string
	Network    types.Network
	// TimeSource picks the header time of mined blocks.
	TimeSource TimeSource
	// Overrides are merged into the generated zebrad.toml.
	Overrides tomlutil.Toml
	// CacheSettle is how long CacheChain waits after stopping; 0 uses chaincache.DefaultSettle.
	CacheSettle time.Duration
	Settings    process.Settings
}

// DefaultConfig returns a regtest config mining to DefaultMinerAddress.
func DefaultConfig() Config {
	return Config{
		ActivationHeights: types.DefaultActivationHeights(),
		MinerAddress:      DefaultMinerAddress,
		Network:           types.Regtest,
		Settings:          process.DefaultSettings(),
	}
}

// Node is a running zebrad.
type Node struct {
	*process.Node
	network           types.Network
	networkListenPort uint16
	rpcPort           uint16
	zcashConf         string
	heights           types.ActivationHeights
	timeSource        TimeSource
	settle            time.Duration
	client            *RPCClient
}

var _ types.Validator = (*Node)(nil)

// Launch starts zebrad, waits for its log to report readiness and its RPC interface to answer.
// A regtest chain started without a cache gets its first block mined.
// On failure the process is stopped and its directories removed.
func Launch(ctx context.Context, cfg Config) (_ *Node, err error) {
	if cfg.Network != types.Regtest && cfg.ChainCache == "" {
		return nil, types.ErrChainCacheRequired
	}
	if cfg.Network == types.Regtest {
		if err := config.ValidateZebradHeights(cfg.ActivationHeights); err != nil {
			return nil, err
		}
	}
	if cfg.MinerAddress == "" {
		cfg.MinerAddress = DefaultMinerAddress
	}

	pn, err := process.NewNode(Name, cfg.Settings)
	if err != nil {
		return nil, err
	}
	n := &Node{
		Node:       pn,
		network:    cfg.Network,
		heights:    cfg.ActivationHeights,
		timeSource: cfg.TimeSource,
		settle:     cfg.CacheSettle,
	}
	defer func() {
		if err != nil {
			_ = n.Close(context.WithoutCancel(ctx))
		}
	}()
	if n.settle <= 0 {
		n.settle = chaincache.DefaultSettle
	}

	if cfg.ChainCache != "" {
		dataDir, err := chaincache.Load(cfg.ChainCache, pn.DataDir(), chaincache.ZebradSubdir, cfg.Network)
		if err != nil {
			return nil, err
		}
		pn.SetDataDir(dataDir)
	}

	if n.networkListenPort, err = resolvePort(ctx, cfg.NetworkListenPort); err != nil {
		return nil, err
	}
	if n.rpcPort, err = resolvePort(ctx, cfg.RPCListenPort); err != nil {
		return nil, err
	}

	confPath, err := config.Zebrad(pn.ConfigDir(), config.ZebradParams{
		CacheDir:          pn.DataDir(),
		NetworkListenPort: n.networkListenPort,
		RPCListenPort:     n.rpcPort,
		ActivationHeights: cfg.ActivationHeights,
		MinerAddress:      cfg.MinerAddress,
		Network:           cfg.Network,
		Overrides:         cfg.Overrides,
	})
	if err != nil {
		return nil, err
	}
	pn.SetConfigPath(confPath)

	// lightwalletd reads the RPC endpoint from a zcash.conf
	if n.zcashConf, err = config.Zcashd(pn.ConfigDir(), n.rpcPort, cfg.ActivationHeights, ""); err != nil {
		return nil, err
	}

	settings := pn.Settings()
	bin, err := settings.ResolveBinary(ctx, cfg.ZebradBin, Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", Name, err)
	}

	if n.client, err = DialRPC(ctx, fmt.Sprintf("http://127.0.0.1:%d", n.rpcPort)); err != nil {
		return nil, err
	}
	pn.SetGracefulStop(n.client.Stop)

	err = pn.Spawn(ctx, process.SpawnOptions{
		Binary:   bin,
		Args:     []string{"--config", confPath, "start"},
		Criteria: Criteria,
	})
	if err != nil {
		return nil, err
	}

	if err := n.waitForRPC(ctx); err != nil {
		return nil, err
	}

	if cfg.ChainCache == "" {
		if err := n.GenerateBlocks(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to mine genesis block: %w", err)
		}
	}
	return n, nil
}

func resolvePort(ctx context.Context, port uint16) (uint16, error) {
	if port != 0 {
		process.ReservePort(port)
		return port, nil
	}
	return process.PickUnusedPort(ctx)
}

// waitForRPC retries getblockchaininfo until zebrad answers or the readiness timeout expires.
func (n *Node) waitForRPC(ctx context.Context) error {
	s := n.Settings()
	ctx, cancel := context.WithTimeout(ctx, s.ReadinessTimeout)
	defer cancel()
	err := retry.Do(
		func() error {
			_, err := n.client.GetBlockchainInfo(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(s.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%s rpc did not become available: %w", Name, err)
	}
	return nil
}

func (n *Node) Network() types.Network { return n.network }

// RPCPort returns the JSON-RPC port.
func (n *Node) RPCPort() uint16 { return n.rpcPort }

// NetworkListenPort returns the peer-to-peer port.
func (n *Node) NetworkListenPort() uint16 { return n.networkListenPort }

// ZcashConfPath returns the zcash.conf written for clients that expect zcashd, such as lightwalletd.
func (n *Node) ZcashConfPath() string { return n.zcashConf }

// ActivationHeights returns the upgrade heights the node was configured with.
func (n *Node) ActivationHeights() types.ActivationHeights { return n.heights }

// Client returns the JSON-RPC client.
func (n *Node) Client() *RPCClient { return n.client }

// Close stops zebrad, releases the RPC client and removes the ephemeral directories.
func (n *Node) Close(ctx context.Context) error {
	err := n.Node.Close(ctx)
	if n.client != nil {
		n.client.Close()
	}
	return err
}

// ChainHeight returns the blocks field of getblockchaininfo.
func (n *Node) ChainHeight(ctx context.Context) (types.ChainHeight, error) {
	info, err := n.client.GetBlockchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrHeightQuery, err)
	}
	return types.ChainHeight(info.Blocks), nil
}

// GenerateBlocks mines count blocks from block templates and waits for the chain to reach them.
// The first block that is not accepted aborts the remaining iterations.
func (n *Node) GenerateBlocks(ctx context.Context, count uint32) error {
	start, err := n.ChainHeight(ctx)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := n.mineBlock(ctx); err != nil {
			return err
		}
	}
	return n.PollChainHeight(ctx, start.Add(count))
}

func (n *Node) mineBlock(ctx context.Context) error {
	t, err := n.client.GetBlockTemplate(ctx)
	if err != nil {
		return fmt.Errorf("%w: getblocktemplate: %w", types.ErrBlockProduction, err)
	}
	upgrade := SelectUpgrade(types.ChainHeight(t.Height), n.heights)
	block, err := ProposalBlock(t, n.timeSource, upgrade, time.Now())
	if err != nil {
		return fmt.Errorf("%w: building block at height %d: %w", types.ErrBlockProduction, t.Height, err)
	}
	accepted, verdict, err := n.client.SubmitBlock(ctx, hex.EncodeToString(block))
	if err != nil {
		return fmt.Errorf("%w: submitblock: %w", types.ErrBlockProduction, err)
	}
	if !accepted {
		return &BlockRejectedError{Height: t.Height, Verdict: verdict}
	}
	n.Logger().Debug("block accepted", zap.Uint32("height", t.Height), zap.Stringer("upgrade", upgrade))
	return nil
}

// PollChainHeight blocks until the chain height reaches target or the height timeout expires.
func (n *Node) PollChainHeight(ctx context.Context, target types.ChainHeight) error {
	s := n.Settings()
	return wait.ForHeight(ctx, n, target, s.HeightTimeout, s.PollInterval)
}

// CacheChain stops the node and copies its state to dest, which must not exist.
func (n *Node) CacheChain(ctx context.Context, dest string) error {
	return chaincache.Save(ctx, n, n.DataDir(), dest, n.settle)
}

// LaunchValidator launches zebrad from c.
func (c Config) LaunchValidator(ctx context.Context) (*Node, error) {
	return Launch(ctx, c)
}
