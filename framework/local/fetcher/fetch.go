package fetcher

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchAll resolves every binary in bins concurrently and returns their paths.
// All binaries are resolved when bins is empty.
func (r *Resolver) FetchAll(ctx context.Context, bins ...Binary) (map[Binary]string, error) {
	if len(bins) == 0 {
		bins = All()
	}
	var (
		mu    sync.Mutex
		paths = make(map[Binary]string, len(bins))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, b := range bins {
		eg.Go(func() error {
			p, err := r.Get(egCtx, b)
			if err != nil {
				return err
			}
			mu.Lock()
			paths[b] = p
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
