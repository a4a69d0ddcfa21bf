// Package config materializes the configuration files of every node kind.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	tomlutil "github.com/zingolabs/localnet/framework/testutil/toml"
)

const (
	ZcashdFilename       = "zcash.conf"
	ZebradFilename       = "zebrad.toml"
	ZainodFilename       = "zindexer.toml"
	LightwalletdFilename = "lightwalletd.yml"

	// RPCUser and RPCPassword are the placeholder credentials every generated config shares.
	RPCUser     = "xxxxxx"
	RPCPassword = "xxxxxx"
)

func writeFile(dir, name string, content []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func encodeTOML(v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ModifyTypedConfigFile decodes the toml file at path into T, applies modification and writes it back.
func ModifyTypedConfigFile[T any](path string, modification func(cfg *T)) error {
	var cfg T
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	modification(&cfg)

	b, err := encodeTOML(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("overwriting %s: %w", path, err)
	}
	return nil
}

// ModifyConfigFile merges modifications into the toml file at path.
func ModifyConfigFile(path string, modifications tomlutil.Toml) error {
	var c map[string]any
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := tomlutil.RecursiveModify(c, modifications); err != nil {
		return fmt.Errorf("failed to modify %s: %w", path, err)
	}
	b, err := encodeTOML(c)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("overwriting %s: %w", path, err)
	}
	return nil
}
