// Package chaincache loads and saves snapshots of a validator's on-disk chain state.
package chaincache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zingolabs/localnet/framework/types"
)

const (
	// ZcashdSubdir is the chain state directory zcashd keeps under its data directory on regtest.
	ZcashdSubdir = "regtest"
	// ZebradSubdir is the chain state directory zebrad keeps under its cache directory.
	ZebradSubdir = "state"

	// DefaultSettle is how long Save waits after stopping the node for file handles to be released.
	DefaultSettle = 3 * time.Second
)

// Stopper stops the process that owns a data directory.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Load prepares dataDir from the chain cache at cache and returns the data directory the node should use.
// On regtest the cache's subdir is copied into dataDir. On other networks the cache is used in place.
func Load(cache, dataDir, subdir string, network types.Network) (string, error) {
	state := filepath.Join(cache, subdir)
	info, err := os.Stat(state)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", types.ErrChainCacheNotFound, state)
	}
	if network != types.Regtest {
		return cache, nil
	}
	if err := copyDir(state, filepath.Join(dataDir, subdir)); err != nil {
		return "", fmt.Errorf("failed to load chain cache %s: %w", cache, err)
	}
	return dataDir, nil
}

// Save stops the node, waits settle for file handles to be released and copies dataDir to dest.
// It fails with types.ErrChainCacheExists without touching the node when dest already exists.
func Save(ctx context.Context, node Stopper, dataDir, dest string, settle time.Duration) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s", types.ErrChainCacheExists, dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", dest, err)
	}

	if err := node.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop node before caching chain: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settle):
	}

	if err := copyDir(dataDir, dest); err != nil {
		return fmt.Errorf("failed to cache chain to %s: %w", dest, err)
	}
	return nil
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.CopyFS(dst, os.DirFS(src))
}
