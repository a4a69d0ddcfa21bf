// Package lightwalletd launches lightwalletd against a running validator.
package lightwalletd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	"github.com/zingolabs/localnet/framework/local/config"
	"github.com/zingolabs/localnet/framework/local/indexer"
	"github.com/zingolabs/localnet/framework/local/process"
	"github.com/zingolabs/localnet/framework/types"
)

const (
	Name = "lightwalletd"
	// LogFile is lightwalletd's own log inside the logs directory.
	LogFile = "lwd.log"
)

var Criteria = process.Criteria{
	Success: []string{"Starting insecure no-TLS (plaintext) server"},
	Errors:  []string{"error"},
}

// Config describes a lightwalletd launch.
type Config struct {
	LightwalletdBin string
	// ListenPort is the gRPC port; 0 picks an unused one.
	ListenPort uint16
	// ZcashConfPath is the validator's zcash.conf.
	ZcashConfPath string
	Settings      process.Settings
}

func DefaultConfig() Config {
	return Config{Settings: process.DefaultSettings()}
}

// Node is a running lightwalletd.
type Node struct {
	*process.Node
	port    uint16
	logFile string
}

var _ types.Indexer = (*Node)(nil)

// Launch writes lightwalletd.yml and starts lightwalletd in plaintext mode.
// Readiness is also read from lightwalletd's own log file.
func Launch(ctx context.Context, cfg Config) (_ *Node, err error) {
	if cfg.ZcashConfPath == "" {
		return nil, fmt.Errorf("%s requires the validator's zcash.conf", Name)
	}
	pn, err := process.NewNode(Name, cfg.Settings)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = pn.Close(context.WithoutCancel(ctx))
		}
	}()

	n := &Node{Node: pn, port: cfg.ListenPort, logFile: filepath.Join(pn.LogsDir(), LogFile)}
	if n.port == 0 {
		if n.port, err = process.PickUnusedPort(ctx); err != nil {
			return nil, err
		}
	} else {
		process.ReservePort(n.port)
	}

	f, err := os.Create(n.logFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", n.logFile, err)
	}
	_ = f.Close()

	confPath, err := config.Lightwalletd(pn.ConfigDir(), n.port, n.logFile, cfg.ZcashConfPath)
	if err != nil {
		return nil, err
	}
	pn.SetConfigPath(confPath)

	bin, err := pn.Settings().ResolveBinary(ctx, cfg.LightwalletdBin, Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", Name, err)
	}
	err = pn.Spawn(ctx, process.SpawnOptions{
		Binary: bin,
		Args: []string{
			"--no-tls-very-insecure",
			"--data-dir", pn.DataDir(),
			"--log-file", n.logFile,
			"--zcash-conf-path", cfg.ZcashConfPath,
			"--config", confPath,
		},
		Criteria:      Criteria,
		AdditionalLog: n.logFile,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Port returns the gRPC listen port.
func (n *Node) Port() uint16 { return n.port }

// Dial opens a gRPC client to lightwalletd.
func (n *Node) Dial(ctx context.Context) (*grpc.ClientConn, error) {
	return indexer.Dial(ctx, n.port)
}

// LogPath returns the path of lightwalletd's own log.
func (n *Node) LogPath() string { return n.logFile }

// PrintLightwalletdLog writes lightwalletd's own log to os.Stdout.
func (n *Node) PrintLightwalletdLog() error {
	return process.PrintLog(os.Stdout, "lightwalletd log", n.logFile)
}

// LaunchIndexer points lightwalletd at the validator's zcash.conf and launches it.
func (c Config) LaunchIndexer(ctx context.Context, v types.Validator) (*Node, error) {
	c.ZcashConfPath = v.ZcashConfPath()
	return Launch(ctx, c)
}
