package fetcher

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cavaliergopher/grab/v3"
	"go.uber.org/zap"
)

var (
	// ErrBinaryNotFound is returned when a binary is missing and cannot be downloaded.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrChecksumMismatch is returned when a stored binary does not match its expected digest.
	ErrChecksumMismatch = errors.New("binary checksum mismatch")
	// ErrVersionMismatch is returned when a binary reports an unexpected version.
	ErrVersionMismatch = errors.New("binary version mismatch")
)

const defaultDownloadAttempts = 3

// Resolver stores binaries under <Dir>/<name>/<name>, verifies them and downloads missing ones.
type Resolver struct {
	// Dir is the root of the binary store.
	Dir string
	// BaseURL is where missing binaries are downloaded from as <BaseURL>/<name>. Empty disables downloads.
	BaseURL string
	// Expectations verify stored binaries. Binaries without an entry are not verified.
	Expectations map[Binary]Expectation
	// DownloadAttempts bounds download retries.
	DownloadAttempts uint
	Logger           *zap.Logger

	client   *grab.Client
	mu       sync.Mutex
	verified map[Binary]string
}

// NewResolver returns a resolver for dir verifying against DefaultExpectations.
func NewResolver(dir, baseURL string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		Dir:              dir,
		BaseURL:          baseURL,
		Expectations:     DefaultExpectations(),
		DownloadAttempts: defaultDownloadAttempts,
		Logger:           logger,
	}
}

// Path returns where b is stored.
func (r *Resolver) Path(b Binary) string {
	return filepath.Join(r.Dir, string(b), string(b))
}

// Resolve returns the verified path of the named binary, downloading it first if needed.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	return r.Get(ctx, Binary(name))
}

// Get returns the verified path of b, downloading it first if needed.
func (r *Resolver) Get(ctx context.Context, b Binary) (string, error) {
	r.mu.Lock()
	if p, ok := r.verified[b]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	logger := r.logger().With(zap.String("binary", string(b)))
	path := r.Path(b)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if r.BaseURL == "" {
			return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, path)
		}
		if err := r.download(ctx, b, path, logger); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := r.verify(ctx, b, path, logger); err != nil {
		return "", err
	}

	r.mu.Lock()
	if r.verified == nil {
		r.verified = make(map[Binary]string)
	}
	r.verified[b] = path
	r.mu.Unlock()
	return path, nil
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Resolver) download(ctx context.Context, b Binary, path string, logger *zap.Logger) error {
	src, err := url.JoinPath(r.BaseURL, string(b))
	if err != nil {
		return fmt.Errorf("invalid download url for %s: %w", b, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	r.mu.Lock()
	if r.client == nil {
		r.client = grab.NewClient()
	}
	client := r.client
	r.mu.Unlock()

	attempts := r.DownloadAttempts
	if attempts == 0 {
		attempts = defaultDownloadAttempts
	}
	partial := path + ".part"
	logger.Info("downloading binary", zap.String("url", src))

	err = retry.Do(
		func() error {
			req, err := grab.NewRequest(partial, src)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp := client.Do(req.WithContext(ctx))
			<-resp.Done
			if err := resp.Err(); err != nil {
				return err
			}
			logger.Info("download done", zap.String("filename", resp.Filename), zap.Duration("duration", resp.Duration()))
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("download attempt failed", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("failed to download %s: %w", b, err)
	}
	if err := os.Chmod(partial, 0o755); err != nil {
		return fmt.Errorf("failed to make %s executable: %w", partial, err)
	}
	if err := os.Rename(partial, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", b, err)
	}
	return nil
}

// verify checks the digest and version of a stored binary. A binary with a wrong digest is removed.
func (r *Resolver) verify(ctx context.Context, b Binary, path string, logger *zap.Logger) error {
	exp, ok := r.Expectations[b]
	if !ok {
		return nil
	}

	if exp.SHA512 != "" {
		sum, err := fileSHA512(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		if !strings.EqualFold(sum, exp.SHA512) {
			logger.Warn("removing binary with unexpected checksum", zap.String("path", path))
			_ = os.Remove(path)
			return fmt.Errorf("%w: %s has %s, want %s", ErrChecksumMismatch, b, sum, exp.SHA512)
		}
	}

	if exp.Version != "" {
		out, err := exec.CommandContext(ctx, path, exp.VersionArg).CombinedOutput()
		if err != nil && len(out) == 0 {
			return fmt.Errorf("failed to run %s %s: %w", path, exp.VersionArg, err)
		}
		if !strings.Contains(string(out), exp.Version) {
			return fmt.Errorf("%w: %s does not report %q", ErrVersionMismatch, b, exp.Version)
		}
	}
	logger.Debug("binary verified", zap.String("path", path))
	return nil
}

func fileSHA512(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
