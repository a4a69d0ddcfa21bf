package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zingolabs/localnet/framework/local"
	"github.com/zingolabs/localnet/framework/local/empty"
	"github.com/zingolabs/localnet/framework/local/lightwalletd"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/local/zainod"
	"github.com/zingolabs/localnet/framework/local/zcashd"
	"github.com/zingolabs/localnet/framework/local/zebrad"
	"github.com/zingolabs/localnet/framework/testutil/fakes"
	"github.com/zingolabs/localnet/framework/types"
)

func testSettings(t *testing.T) process.Settings {
	return process.Settings{
		Logger:           zaptest.NewLogger(t),
		ReadinessTimeout: 10 * time.Second,
		HeightTimeout:    5 * time.Second,
		PollInterval:     10 * time.Millisecond,
		StopTimeout:      time.Second,
		TempRoot:         t.TempDir(),
	}
}

func zcashdConfig(t *testing.T) zcashd.Config {
	cfg := zcashd.DefaultConfig()
	cfg.ZcashdBin, cfg.ZcashCliBin = fakes.Zcashd(t)
	cfg.Settings = testSettings(t)
	return cfg
}

func TestZcashdWithZainod(t *testing.T) {
	ctx := context.Background()
	seen := t.TempDir()
	idx := zainod.DefaultConfig()
	idx.ZainodBin = fakes.Zainod(t, seen)
	idx.Settings = testSettings(t)

	net := local.LaunchForTest(t, idx, zcashdConfig(t))

	conf, err := os.ReadFile(filepath.Join(seen, "zindexer.toml"))
	require.NoError(t, err)
	require.Contains(t, string(conf), "localhost:"+strconv.Itoa(int(net.Validator().RPCPort())))

	require.NoError(t, net.Validator().GenerateBlocks(ctx, 2))
	height, err := net.Validator().ChainHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, types.ChainHeight(3), height)
	require.NotZero(t, net.Indexer().Port())
}

func TestZebradWithLightwalletd(t *testing.T) {
	rpc := fakes.NewZebradRPC(t)
	val := zebrad.DefaultConfig()
	val.ZebradBin = fakes.Zebrad(t)
	val.RPCListenPort = rpc.Port()
	val.Settings = testSettings(t)
	val.Settings.StopTimeout = 300 * time.Millisecond

	seen := t.TempDir()
	idx := lightwalletd.DefaultConfig()
	idx.LightwalletdBin = fakes.Lightwalletd(t, seen)
	idx.Settings = testSettings(t)

	net := local.LaunchForTest(t, idx, val)

	args, err := os.ReadFile(filepath.Join(seen, "args"))
	require.NoError(t, err)
	require.Contains(t, string(args), "--zcash-conf-path "+net.Validator().ZcashConfPath())
	require.Equal(t, rpc.Port(), net.Validator().RPCPort())
}

func TestTeardownOrder(t *testing.T) {
	ctx := context.Background()
	idx := empty.DefaultConfig()
	idx.Settings = testSettings(t)

	net, err := local.Launch(ctx, idx, zcashdConfig(t))
	require.NoError(t, err)

	var logs strings.Builder
	require.NoError(t, net.WriteLogs(ctx, &logs))
	require.Contains(t, logs.String(), "=== zcashd stdout ===\ninit message: Loading wallet...")
	require.Contains(t, logs.String(), "=== empty stderr ===")

	require.NoError(t, net.Stop(ctx))
	require.True(t, net.Validator().Handle().Exited())
	require.DirExists(t, net.Validator().ConfigDir())

	require.NoError(t, net.Close(ctx))
	require.NoDirExists(t, net.Validator().ConfigDir())
	require.NoDirExists(t, net.Indexer().ConfigDir())
}

func TestIndexerFailureClosesValidator(t *testing.T) {
	ctx := context.Background()
	var validator *zcashd.Node
	launchValidator := local.ValidatorFunc[*zcashd.Node](func(ctx context.Context) (*zcashd.Node, error) {
		n, err := zcashd.Launch(ctx, zcashdConfig(t))
		validator = n
		return n, err
	})

	idx := zainod.DefaultConfig()
	idx.ZainodBin = fakes.Failing(t, zainod.Name, "Error: validator unreachable", 1)
	idx.Settings = testSettings(t)

	_, err := local.Launch(ctx, idx, launchValidator)
	var launchErr *process.LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, zainod.Name, launchErr.Process)

	require.NotNil(t, validator)
	require.True(t, validator.Handle().Exited())
	require.NoDirExists(t, validator.ConfigDir())
}

func TestValidatorFailure(t *testing.T) {
	cfg := zcashdConfig(t)
	cfg.ZcashdBin = fakes.Failing(t, zcashd.Name, "cannot bind rpc port", 1)

	launched := false
	idx := local.IndexerFunc[*empty.Node](func(context.Context, types.Validator) (*empty.Node, error) {
		launched = true
		return nil, nil
	})

	_, err := local.Launch(context.Background(), idx, cfg)
	require.ErrorIs(t, err, process.ErrProcessExitedEarly)
	require.False(t, launched)
}
