// Package local composes native validator and indexer processes into a local Zcash network.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/zingolabs/localnet/framework/types"
)

// KeepDirsOnFailureEnv keeps the directories of a failed test's network for inspection when set.
const KeepDirsOnFailureEnv = "LOCALNET_KEEP_DIRS_ON_FAILURE"

// ValidatorConfig launches a validator of kind V.
type ValidatorConfig[V types.Validator] interface {
	LaunchValidator(ctx context.Context) (V, error)
}

// IndexerConfig launches an indexer of kind I bound to a running validator.
type IndexerConfig[I types.Indexer] interface {
	LaunchIndexer(ctx context.Context, v types.Validator) (I, error)
}

// ValidatorFunc adapts a function to ValidatorConfig.
type ValidatorFunc[V types.Validator] func(ctx context.Context) (V, error)

func (f ValidatorFunc[V]) LaunchValidator(ctx context.Context) (V, error) { return f(ctx) }

// IndexerFunc adapts a function to IndexerConfig.
type IndexerFunc[I types.Indexer] func(ctx context.Context, v types.Validator) (I, error)

func (f IndexerFunc[I]) LaunchIndexer(ctx context.Context, v types.Validator) (I, error) {
	return f(ctx, v)
}

// LocalNet is a validator with an indexer serving its chain.
type LocalNet[I types.Indexer, V types.Validator] struct {
	indexer   I
	validator V
}

// Launch starts the validator, binds the indexer configuration to it and starts the indexer.
// If the indexer fails the validator is torn down before returning.
func Launch[I types.Indexer, V types.Validator](ctx context.Context, indexer IndexerConfig[I], validator ValidatorConfig[V]) (*LocalNet[I, V], error) {
	v, err := validator.LaunchValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch validator: %w", err)
	}
	i, err := indexer.LaunchIndexer(ctx, v)
	if err != nil {
		err = fmt.Errorf("failed to launch indexer: %w", err)
		if closeErr := v.Close(context.WithoutCancel(ctx)); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close validator: %w", closeErr))
		}
		return nil, err
	}
	return &LocalNet[I, V]{indexer: i, validator: v}, nil
}

// Validator returns the running validator.
func (n *LocalNet[I, V]) Validator() V { return n.validator }

// Indexer returns the running indexer.
func (n *LocalNet[I, V]) Indexer() I { return n.indexer }

// Stop stops the indexer, then the validator.
func (n *LocalNet[I, V]) Stop(ctx context.Context) error {
	return n.teardown(ctx, types.Process.Stop)
}

// Close stops both processes, indexer first, and removes their directories.
func (n *LocalNet[I, V]) Close(ctx context.Context) error {
	return n.teardown(ctx, types.Process.Close)
}

func (n *LocalNet[I, V]) teardown(ctx context.Context, fn func(types.Process, context.Context) error) error {
	var errs []error
	if err := fn(n.indexer, ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", n.indexer.Name(), err))
	}
	if err := fn(n.validator, ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", n.validator.Name(), err))
	}
	return errors.Join(errs...)
}

// WriteLogs reads the captured logs of both processes concurrently and writes them to w,
// validator first.
func (n *LocalNet[I, V]) WriteLogs(ctx context.Context, w io.Writer) error {
	procs := []types.Process{n.validator, n.indexer}
	logs := make([][2]string, len(procs))

	g, _ := errgroup.WithContext(ctx)
	for idx, p := range procs {
		g.Go(func() error {
			stdout, err := p.Stdout()
			if err != nil {
				return fmt.Errorf("%s stdout: %w", p.Name(), err)
			}
			stderr, err := p.Stderr()
			if err != nil {
				return fmt.Errorf("%s stderr: %w", p.Name(), err)
			}
			logs[idx] = [2]string{stdout, stderr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for idx, p := range procs {
		if _, err := fmt.Fprintf(w, "=== %s stdout ===\n%s=== %s stderr ===\n%s", p.Name(), logs[idx][0], p.Name(), logs[idx][1]); err != nil {
			return err
		}
	}
	return nil
}

// LaunchForTest launches a LocalNet and tears it down when t finishes. When t fails the
// logs are written to the test output, and with LOCALNET_KEEP_DIRS_ON_FAILURE set the
// processes are only stopped so their directories survive.
func LaunchForTest[I types.Indexer, V types.Validator](t testing.TB, indexer IndexerConfig[I], validator ValidatorConfig[V]) *LocalNet[I, V] {
	t.Helper()
	ctx := context.Background()
	n, err := Launch(ctx, indexer, validator)
	if err != nil {
		t.Fatalf("failed to launch local network: %v", err)
	}
	t.Cleanup(func() {
		if t.Failed() {
			if err := n.WriteLogs(ctx, testWriter{t}); err != nil {
				t.Logf("failed to read logs: %v", err)
			}
			if os.Getenv(KeepDirsOnFailureEnv) != "" {
				t.Logf("keeping %s dirs at %s and %s dirs at %s",
					n.validator.Name(), n.validator.ConfigDir(), n.indexer.Name(), n.indexer.ConfigDir())
				if err := n.Stop(ctx); err != nil {
					t.Errorf("failed to stop local network: %v", err)
				}
				return
			}
		}
		if err := n.Close(ctx); err != nil {
			t.Errorf("failed to close local network: %v", err)
		}
	})
	return n
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
