package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	tomlutil "github.com/zingolabs/localnet/framework/testutil/toml"
	"github.com/zingolabs/localnet/framework/types"
)

// ZebradParams are the inputs of a zebrad.toml.
type ZebradParams struct {
	// CacheDir holds the state database and the RPC cookie.
	CacheDir          string
	NetworkListenPort uint16
	RPCListenPort     uint16
	ActivationHeights types.ActivationHeights
	MinerAddress      string
	Network           types.Network
	// Overrides are merged into the generated document before it is written.
	Overrides tomlutil.Toml
}

// ZebradConfig is the subset of zebrad's configuration this package generates.
type ZebradConfig struct {
	Consensus ZebradConsensus `toml:"consensus"`
	Mempool   ZebradMempool   `toml:"mempool"`
	Metrics   struct{}        `toml:"metrics"`
	Network   ZebradNetwork   `toml:"network"`
	RPC       ZebradRPC       `toml:"rpc"`
	State     ZebradState     `toml:"state"`
	Sync      ZebradSync      `toml:"sync"`
	Tracing   ZebradTracing   `toml:"tracing"`
	Mining    ZebradMining    `toml:"mining"`
}

type ZebradConsensus struct {
	CheckpointSync bool `toml:"checkpoint_sync"`
}

type ZebradMempool struct {
	EvictionMemoryTime string `toml:"eviction_memory_time"`
	TxCostLimit        int64  `toml:"tx_cost_limit"`
}

type ZebradNetwork struct {
	CacheDir                 bool                     `toml:"cache_dir"`
	CrawlNewPeerInterval     string                   `toml:"crawl_new_peer_interval"`
	InitialMainnetPeers      []string                 `toml:"initial_mainnet_peers"`
	InitialTestnetPeers      []string                 `toml:"initial_testnet_peers"`
	ListenAddr               string                   `toml:"listen_addr"`
	MaxConnectionsPerIP      int                      `toml:"max_connections_per_ip"`
	Network                  string                   `toml:"network"`
	PeersetInitialTargetSize int                      `toml:"peerset_initial_target_size"`
	TestnetParameters        *ZebradTestnetParameters `toml:"testnet_parameters,omitempty"`
}

type ZebradTestnetParameters struct {
	DisablePoW        bool                    `toml:"disable_pow"`
	ActivationHeights ZebradActivationHeights `toml:"activation_heights"`
}

// ZebradActivationHeights lists the configurable upgrades; earlier ones are fixed at height 1 on regtest.
type ZebradActivationHeights struct {
	NU5 uint32 `toml:"NU5"`
	NU6 uint32 `toml:"NU6"`
}

type ZebradRPC struct {
	CookieDir              string `toml:"cookie_dir"`
	DebugForceFinishedSync bool   `toml:"debug_force_finished_sync"`
	EnableCookieAuth       bool   `toml:"enable_cookie_auth"`
	ParallelCPUThreads     int    `toml:"parallel_cpu_threads"`
	ListenAddr             string `toml:"listen_addr"`
}

type ZebradState struct {
	CacheDir          string `toml:"cache_dir"`
	DeleteOldDatabase bool   `toml:"delete_old_database"`
	// Ephemeral stays false so the state can be cached.
	Ephemeral bool `toml:"ephemeral"`
}

type ZebradSync struct {
	CheckpointVerifyConcurrencyLimit int `toml:"checkpoint_verify_concurrency_limit"`
	DownloadConcurrencyLimit         int `toml:"download_concurrency_limit"`
	FullVerifyConcurrencyLimit       int `toml:"full_verify_concurrency_limit"`
	ParallelCPUThreads               int `toml:"parallel_cpu_threads"`
}

type ZebradTracing struct {
	BufferLimit   int  `toml:"buffer_limit"`
	ForceUseColor bool `toml:"force_use_color"`
	UseColor      bool `toml:"use_color"`
	UseJournald   bool `toml:"use_journald"`
}

type ZebradMining struct {
	DebugLikeZcashd bool   `toml:"debug_like_zcashd"`
	MinerAddress    string `toml:"miner_address,omitempty"`
}

// ValidateZebradHeights checks that every upgrade up to Canopy activates at height 1, which zebrad's regtest mode requires.
func ValidateZebradHeights(h types.ActivationHeights) error {
	if err := h.Validate(); err != nil {
		return err
	}
	for _, u := range h.Ordered() {
		if u.Upgrade > types.Canopy {
			break
		}
		if u.Height != 1 {
			return fmt.Errorf("%w: %s must activate at height 1 for zebrad regtest mode, got %d",
				types.ErrInvalidActivationHeights, u.Upgrade, u.Height)
		}
	}
	return nil
}

// NewZebradConfig builds the document Zebrad writes, before overrides.
func NewZebradConfig(p ZebradParams) ZebradConfig {
	cfg := ZebradConfig{
		Consensus: ZebradConsensus{CheckpointSync: true},
		Mempool:   ZebradMempool{EvictionMemoryTime: "1h", TxCostLimit: 80000000},
		Network: ZebradNetwork{
			CrawlNewPeerInterval: "1m 1s",
			InitialMainnetPeers: []string{
				"dnsseed.z.cash:8233",
				"dnsseed.str4d.xyz:8233",
				"mainnet.seeder.zfnd.org:8233",
				"mainnet.is.yolo.money:8233",
			},
			InitialTestnetPeers: []string{
				"dnsseed.testnet.z.cash:18233",
				"testnet.seeder.zfnd.org:18233",
				"testnet.is.yolo.money:18233",
			},
			ListenAddr:               fmt.Sprintf("127.0.0.1:%d", p.NetworkListenPort),
			MaxConnectionsPerIP:      1,
			Network:                  p.Network.String(),
			PeersetInitialTargetSize: 25,
		},
		RPC: ZebradRPC{
			CookieDir:  p.CacheDir,
			ListenAddr: fmt.Sprintf("127.0.0.1:%d", p.RPCListenPort),
		},
		State: ZebradState{CacheDir: p.CacheDir, DeleteOldDatabase: true},
		Sync: ZebradSync{
			CheckpointVerifyConcurrencyLimit: 1000,
			DownloadConcurrencyLimit:         50,
			FullVerifyConcurrencyLimit:       20,
		},
		Tracing: ZebradTracing{BufferLimit: 128000, UseColor: true},
		Mining:  ZebradMining{DebugLikeZcashd: true},
	}
	if p.Network == types.Regtest {
		cfg.Mining.MinerAddress = p.MinerAddress
		cfg.Network.TestnetParameters = &ZebradTestnetParameters{
			DisablePoW: true,
			ActivationHeights: ZebradActivationHeights{
				NU5: uint32(p.ActivationHeights.NU5),
				NU6: uint32(p.ActivationHeights.NU6),
			},
		}
	}
	return cfg
}

// Zebrad writes zebrad.toml into dir and returns its path.
func Zebrad(dir string, p ZebradParams) (string, error) {
	if p.Network == types.Regtest {
		if err := ValidateZebradHeights(p.ActivationHeights); err != nil {
			return "", err
		}
	}

	b, err := encodeTOML(NewZebradConfig(p))
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", ZebradFilename, err)
	}

	if len(p.Overrides) > 0 {
		var doc map[string]any
		if err := toml.Unmarshal(b, &doc); err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", ZebradFilename, err)
		}
		if err := tomlutil.RecursiveModify(doc, p.Overrides); err != nil {
			return "", fmt.Errorf("failed to apply %s overrides: %w", ZebradFilename, err)
		}
		if b, err = encodeTOML(doc); err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", ZebradFilename, err)
		}
	}

	return writeFile(dir, ZebradFilename, b)
}
