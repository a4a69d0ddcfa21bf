package types

import (
	"context"

	"google.golang.org/grpc"
)

// Process is the lifecycle every launched node exposes.
type Process interface {
	// Name returns the node kind, e.g. "zebrad".
	Name() string
	// Stop shuts the process down, gracefully if possible. It is safe to call more than once.
	Stop(ctx context.Context) error
	// Close stops the process and removes its ephemeral directories.
	Close(ctx context.Context) error
	// ConfigDir returns the directory holding the generated configuration.
	ConfigDir() string
	// ConfigPath returns the path of the generated configuration file.
	ConfigPath() string
	// LogsDir returns the directory holding the captured stdout and stderr logs.
	LogsDir() string
	// DataDir returns the process data directory.
	DataDir() string
	// Stdout returns the captured stdout log.
	Stdout() (string, error)
	// Stderr returns the captured stderr log.
	Stderr() (string, error)
	// PrintStdout writes the captured stdout log to standard output.
	PrintStdout() error
	// PrintStderr writes the captured stderr log to standard output.
	PrintStderr() error
}

// Validator is a full node that maintains the chain and can produce blocks on demand.
type Validator interface {
	Process
	// Network returns the network the validator follows.
	Network() Network
	// RPCPort returns the port of the validator's JSON-RPC interface.
	RPCPort() uint16
	// ZcashConfPath returns the path of a zcash.conf describing the validator's RPC endpoint.
	ZcashConfPath() string
	// ChainHeight returns the current chain tip height.
	ChainHeight(ctx context.Context) (ChainHeight, error)
	// GenerateBlocks produces n blocks and returns once the chain has reached the new height.
	GenerateBlocks(ctx context.Context, n uint32) error
	// PollChainHeight blocks until the chain height is at least target.
	PollChainHeight(ctx context.Context, target ChainHeight) error
	// CacheChain stops the validator and copies its data directory to dest.
	CacheChain(ctx context.Context, dest string) error
}

// Indexer is a light-client facing service backed by a validator.
type Indexer interface {
	Process
	// Port returns the port the indexer serves light clients on, or 0 if it serves none.
	Port() uint16
	// Dial opens a gRPC client connection to the indexer.
	Dial(ctx context.Context) (*grpc.ClientConn, error)
}
