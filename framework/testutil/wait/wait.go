package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/zingolabs/localnet/framework/types"
)

// Heighter fetches the current chain height.
type Heighter interface {
	ChainHeight(ctx context.Context) (types.ChainHeight, error)
}

// ForCondition waits for fn to return true within timeoutAfter, polling at pollingInterval.
// fn is evaluated once immediately before the first tick.
func ForCondition(ctx context.Context, timeoutAfter, pollingInterval time.Duration, fn func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeoutAfter)
	defer cancel()

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	for {
		ok, err := fn()
		if err != nil {
			return fmt.Errorf("error checking condition: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("condition not met within %.2f seconds: %w", timeoutAfter.Seconds(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// ForHeight blocks until h reports a height of at least target.
// Query errors are returned immediately; the wait never returns nil while the height is below target.
func ForHeight(ctx context.Context, h Heighter, target types.ChainHeight, timeout, pollingInterval time.Duration) error {
	var last types.ChainHeight
	err := ForCondition(ctx, timeout, pollingInterval, func() (bool, error) {
		cur, err := h.ChainHeight(ctx)
		if err != nil {
			return false, err
		}
		last = cur
		return cur >= target, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for height %d (last seen %d): %w", target, last, err)
	}
	return nil
}
