package process

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultReadinessTimeout bounds how long a launch waits for a readiness pattern.
	DefaultReadinessTimeout = 2 * time.Minute
	// DefaultHeightTimeout bounds how long a validator waits to reach a target height.
	DefaultHeightTimeout = 2 * time.Minute
	// DefaultPollInterval is the interval at which logs and chain height are polled.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultStopTimeout bounds a graceful shutdown before the process is killed.
	DefaultStopTimeout = 30 * time.Second
)

// BinaryResolver maps a managed binary name to an executable path.
type BinaryResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Settings holds the knobs shared by every node kind.
type Settings struct {
	// Logger receives lifecycle events. Nil disables logging.
	Logger *zap.Logger
	// ReadinessTimeout bounds the wait for a readiness pattern.
	ReadinessTimeout time.Duration
	// HeightTimeout bounds height polling after block generation.
	HeightTimeout time.Duration
	// PollInterval is the log and height polling interval.
	PollInterval time.Duration
	// StopTimeout bounds the graceful part of Stop.
	StopTimeout time.Duration
	// Binaries resolves default binaries when a config leaves the binary path empty.
	// Nil means the bare binary name is looked up on $PATH.
	Binaries BinaryResolver
	// TempRoot is the parent directory for ephemeral directories; empty uses os.TempDir.
	TempRoot string
	// KeepDirs leaves the ephemeral directories on disk after Close.
	KeepDirs bool
}

// DefaultSettings returns settings with every timeout populated.
func DefaultSettings() Settings {
	return Settings{
		Logger:           zap.NewNop(),
		ReadinessTimeout: DefaultReadinessTimeout,
		HeightTimeout:    DefaultHeightTimeout,
		PollInterval:     DefaultPollInterval,
		StopTimeout:      DefaultStopTimeout,
	}
}

// WithDefaults returns a copy of s with unset fields replaced by their defaults.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.Logger == nil {
		s.Logger = d.Logger
	}
	if s.ReadinessTimeout <= 0 {
		s.ReadinessTimeout = d.ReadinessTimeout
	}
	if s.HeightTimeout <= 0 {
		s.HeightTimeout = d.HeightTimeout
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = d.StopTimeout
	}
	return s
}

// ResolveBinary returns explicit when set, otherwise asks the resolver, otherwise returns name unchanged.
func (s Settings) ResolveBinary(ctx context.Context, explicit, name string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if s.Binaries == nil {
		return name, nil
	}
	return s.Binaries.Resolve(ctx, name)
}
