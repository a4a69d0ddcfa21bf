package toml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecursiveModify(t *testing.T) {
	t.Run("overrides nested values and keeps siblings", func(t *testing.T) {
		cfg := map[string]any{
			"rpc": map[string]any{
				"listen_addr": "127.0.0.1:1",
				"parallel":    true,
			},
			"network": map[string]any{"network": "Regtest"},
		}
		err := RecursiveModify(cfg, Toml{
			"rpc": Toml{"listen_addr": "127.0.0.1:2"},
		})
		require.NoError(t, err)

		rpc := cfg["rpc"].(map[string]any)
		require.Equal(t, "127.0.0.1:2", rpc["listen_addr"])
		require.Equal(t, true, rpc["parallel"])
		require.Equal(t, "Regtest", cfg["network"].(map[string]any)["network"])
	})

	t.Run("creates missing tables", func(t *testing.T) {
		cfg := map[string]any{}
		err := RecursiveModify(cfg, Toml{
			"mining": Toml{"miner_address": "t27eWDgjFYJGVXmzrXeVjnb5J3uXDM9xH9v"},
		})
		require.NoError(t, err)
		require.Equal(t, "t27eWDgjFYJGVXmzrXeVjnb5J3uXDM9xH9v", cfg["mining"].(map[string]any)["miner_address"])
	})

	t.Run("rejects table over scalar", func(t *testing.T) {
		cfg := map[string]any{"state": "ephemeral"}
		err := RecursiveModify(cfg, Toml{"state": Toml{"cache_dir": "/tmp"}})
		require.Error(t, err)
	})
}
