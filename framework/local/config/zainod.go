package config

import (
	"fmt"
	"path/filepath"

	"github.com/zingolabs/localnet/framework/types"
)

// ZainodParams are the inputs of a zindexer.toml.
type ZainodParams struct {
	ListenPort    uint16
	ValidatorPort uint16
	// CacheDir is the parent of zaino's block cache database.
	CacheDir string
	Network  types.Network
}

// ZainodConfig mirrors the keys zainod reads from zindexer.toml.
type ZainodConfig struct {
	GRPCListenAddress      string `toml:"grpc_listen_address"`
	GRPCTLS                bool   `toml:"grpc_tls"`
	TLSCertPath            string `toml:"tls_cert_path"`
	TLSKeyPath             string `toml:"tls_key_path"`
	ValidatorListenAddress string `toml:"validator_listen_address"`
	ValidatorCookieAuth    bool   `toml:"validator_cookie_auth"`
	ValidatorCookiePath    string `toml:"validator_cookie_path"`
	ValidatorUser          string `toml:"validator_user"`
	ValidatorPassword      string `toml:"validator_password"`
	MapCapacity            string `toml:"map_capacity"`
	MapShardAmount         string `toml:"map_shard_amount"`
	DBPath                 string `toml:"db_path"`
	DBSize                 string `toml:"db_size"`
	Network                string `toml:"network"`
	NoSync                 bool   `toml:"no_sync"`
	NoDB                   bool   `toml:"no_db"`
	NoState                bool   `toml:"no_state"`
}

// zainod parses the literal "None" as an unset optional.
const tomlNone = "None"

// Zainod writes zindexer.toml into dir and returns its path.
func Zainod(dir string, p ZainodParams) (string, error) {
	cfg := ZainodConfig{
		GRPCListenAddress:      fmt.Sprintf("localhost:%d", p.ListenPort),
		TLSCertPath:            tomlNone,
		TLSKeyPath:             tomlNone,
		ValidatorListenAddress: fmt.Sprintf("localhost:%d", p.ValidatorPort),
		ValidatorCookiePath:    tomlNone,
		ValidatorUser:          RPCUser,
		ValidatorPassword:      RPCPassword,
		MapCapacity:            tomlNone,
		MapShardAmount:         tomlNone,
		DBPath:                 filepath.Join(p.CacheDir, "zaino"),
		DBSize:                 tomlNone,
		Network:                p.Network.String(),
		NoSync:                 true,
		NoDB:                   true,
	}
	b, err := encodeTOML(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", ZainodFilename, err)
	}
	return writeFile(dir, ZainodFilename, append([]byte("# Configuration for Zaino\n\n"), b...))
}
