package zainod

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/testutil/fakes"
)

func testConfig(t *testing.T, seen string) Config {
	cfg := DefaultConfig()
	cfg.ZainodBin = fakes.Zainod(t, seen)
	cfg.ValidatorPort = 18232
	cfg.Settings = process.Settings{
		Logger:           zaptest.NewLogger(t),
		ReadinessTimeout: 10 * time.Second,
		PollInterval:     10 * time.Millisecond,
		StopTimeout:      5 * time.Second,
		TempRoot:         t.TempDir(),
	}
	return cfg
}

func TestLaunch(t *testing.T) {
	ctx := context.Background()
	seen := t.TempDir()

	n, err := Launch(ctx, testConfig(t, seen))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close(ctx) })

	require.NotZero(t, n.Port())
	require.Equal(t, filepath.Join(n.ConfigDir(), "zindexer.toml"), n.ConfigPath())

	var conf map[string]any
	_, err = toml.DecodeFile(filepath.Join(seen, "zindexer.toml"), &conf)
	require.NoError(t, err)
	require.Equal(t, "localhost:18232", conf["validator_listen_address"])
	require.Equal(t, "localhost:"+strconv.Itoa(int(n.Port())), conf["grpc_listen_address"])
	require.Equal(t, filepath.Join(n.DataDir(), "zaino"), conf["db_path"])

	conn, err := n.Dial(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.NoError(t, n.Stop(ctx))
	require.True(t, n.Handle().Exited())
}

func TestLaunchWithChainCache(t *testing.T) {
	ctx := context.Background()
	seen := t.TempDir()
	cfg := testConfig(t, seen)
	cfg.ChainCache = t.TempDir()
	cfg.ListenPort = 19067

	n, err := Launch(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close(ctx) })
	require.Equal(t, uint16(19067), n.Port())

	b, err := os.ReadFile(filepath.Join(seen, "zindexer.toml"))
	require.NoError(t, err)
	require.Contains(t, string(b), filepath.Join(cfg.ChainCache, "zaino"))
}

func TestLaunchErrors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t, t.TempDir())
	cfg.ValidatorPort = 0
	_, err := Launch(ctx, cfg)
	require.Error(t, err)

	cfg = testConfig(t, t.TempDir())
	cfg.ZainodBin = fakes.Failing(t, Name, "Error: failed to connect to validator", 1)
	_, err = Launch(ctx, cfg)
	var launchErr *process.LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Contains(t, launchErr.Stderr, "failed to connect to validator")
}
