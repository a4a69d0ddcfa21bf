// Package indexer holds what the light-client facing node kinds share.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNoListener is returned when dialing an indexer that serves no clients.
var ErrNoListener = errors.New("indexer has no listen port")

// Dial creates a plaintext gRPC client for the indexer listening on port at localhost.
// The connection is established lazily on the first call.
func Dial(ctx context.Context, port uint16) (*grpc.ClientConn, error) {
	if port == 0 {
		return nil, ErrNoListener
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(
		net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return conn, nil
}
