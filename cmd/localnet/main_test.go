package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zingolabs/localnet/framework/local/fetcher"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/testutil/fakes"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestViperLayering(t *testing.T) {
	cmd := newStartCmd()
	root := newRootCmd()
	root.AddCommand(cmd)

	v, err := commandViper(cmd)
	require.NoError(t, err)
	require.Equal(t, "zcashd", v.GetString(validatorKey))
	require.Equal(t, process.DefaultReadinessTimeout, v.GetDuration(readinessTimeoutKey))

	t.Setenv("LOCALNET_VALIDATOR", "zebrad")
	t.Setenv("LOCALNET_READINESS_TIMEOUT", "5s")
	v, err = commandViper(cmd)
	require.NoError(t, err)
	require.Equal(t, "zebrad", v.GetString(validatorKey))
	require.Equal(t, 5*time.Second, v.GetDuration(readinessTimeoutKey))

	require.NoError(t, cmd.Flags().Set(validatorKey, "zcashd"))
	v, err = commandViper(cmd)
	require.NoError(t, err)
	require.Equal(t, "zcashd", v.GetString(validatorKey))
}

func TestViperConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localnet.toml")
	require.NoError(t, os.WriteFile(path, []byte("indexer = \"lightwalletd\"\nblocks = 4\n"), 0o644))

	cmd := newStartCmd()
	newRootCmd().AddCommand(cmd)
	t.Setenv("LOCALNET_CONFIG", path)

	v, err := commandViper(cmd)
	require.NoError(t, err)
	require.Equal(t, "lightwalletd", v.GetString(indexerKey))
	require.Equal(t, uint32(4), v.GetUint32(blocksKey))
}

func TestUnknownKinds(t *testing.T) {
	cmd := newStartCmd()
	newRootCmd().AddCommand(cmd)

	require.NoError(t, cmd.Flags().Set(validatorKey, "bitcoind"))
	require.NoError(t, cmd.Flags().Set(indexerKey, "electrum"))
	v, err := commandViper(cmd)
	require.NoError(t, err)

	opts, err := networkOptions(v, process.DefaultSettings())
	require.NoError(t, err)
	_, err = opts.LaunchKinds(context.Background(), v.GetString(indexerKey), v.GetString(validatorKey))
	require.ErrorContains(t, err, `unknown validator "bitcoind"`)

	require.NoError(t, cmd.Flags().Set(timeSourceKey, "sundial"))
	v, err = commandViper(cmd)
	require.NoError(t, err)
	_, err = networkOptions(v, process.DefaultSettings())
	require.Error(t, err)
}

func TestParseBinaries(t *testing.T) {
	bins, err := parseBinaries([]string{"zebrad", "zainod"})
	require.NoError(t, err)
	require.Equal(t, []fetcher.Binary{fetcher.Zebrad, fetcher.Zainod}, bins)

	bins, err = parseBinaries(nil)
	require.NoError(t, err)
	require.Empty(t, bins)

	_, err = parseBinaries([]string{"geth"})
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	require.True(t, strings.HasPrefix(out.String(), version))
}

func TestFetchRequiresBinDir(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"fetch"})
	root.SetOut(&bytes.Buffer{})
	require.ErrorContains(t, root.Execute(), "--bin-dir")
}

func TestStartRunsUntilCancelled(t *testing.T) {
	zcashdBin, cliBin := fakes.Zcashd(t)
	t.Setenv("PATH", strings.Join([]string{
		filepath.Dir(zcashdBin), filepath.Dir(cliBin), os.Getenv("PATH"),
	}, string(os.PathListSeparator)))

	tempRoot := t.TempDir()
	root := newRootCmd()
	out := &lockedBuffer{}
	root.SetOut(out)
	root.SetArgs([]string{
		"start",
		"--validator", "zcashd",
		"--indexer", "empty",
		"--blocks", "2",
		"--temp-root", tempRoot,
		"--log-level", "warn",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "height 3")
	}, 20*time.Second, 20*time.Millisecond)
	require.Contains(t, out.String(), "zcashd (Regtest) rpc 127.0.0.1:")
	require.Contains(t, out.String(), "empty\n")

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Minute):
		t.Fatal("start did not return after cancellation")
	}

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	require.Empty(t, entries)
}
