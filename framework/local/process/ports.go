package process

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// PortRangeMin is the lowest port PickUnusedPort returns.
	PortRangeMin = 15000
	// PortRangeMax is the highest port PickUnusedPort returns.
	PortRangeMax = 25000

	portPickAttempts = 50
)

var errPortInUse = errors.New("port in use")

var (
	reservedMu sync.Mutex
	reserved   = map[uint16]struct{}{}
)

// PickUnusedPort returns a random port in [PortRangeMin, PortRangeMax] that is free on localhost
// and has not been handed out before by this process. A collision is retried with a fresh pick.
func PickUnusedPort(ctx context.Context) (uint16, error) {
	port, err := retry.DoWithData(
		func() (uint16, error) {
			p := uint16(PortRangeMin + rand.IntN(PortRangeMax-PortRangeMin+1))
			if !reserve(p) {
				return 0, errPortInUse
			}
			if !portFree(p) {
				release(p)
				return 0, errPortInUse
			}
			return p, nil
		},
		retry.Context(ctx),
		retry.Attempts(portPickAttempts),
		retry.Delay(5*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to pick an unused port: %w", err)
	}
	return port, nil
}

// ReservePort marks an explicitly requested port as taken so random picks avoid it.
func ReservePort(port uint16) {
	reserve(port)
}

func reserve(p uint16) bool {
	reservedMu.Lock()
	defer reservedMu.Unlock()
	if _, ok := reserved[p]; ok {
		return false
	}
	reserved[p] = struct{}{}
	return true
}

func release(p uint16) {
	reservedMu.Lock()
	defer reservedMu.Unlock()
	delete(reserved, p)
}

func portFree(p uint16) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(p))))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
