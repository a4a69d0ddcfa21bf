package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LightwalletdConfig mirrors the keys lightwalletd reads from its yaml config.
type LightwalletdConfig struct {
	GRPCBindAddr  string `yaml:"grpc-bind-addr"`
	CacheSize     int    `yaml:"cache-size"`
	LogFile       string `yaml:"log-file"`
	LogLevel      int    `yaml:"log-level"`
	ZcashConfPath string `yaml:"zcash-conf-path"`
}

// Lightwalletd writes lightwalletd.yml into dir and returns its path.
func Lightwalletd(dir string, grpcPort uint16, logFile, zcashConf string) (string, error) {
	b, err := yaml.Marshal(LightwalletdConfig{
		GRPCBindAddr:  fmt.Sprintf("127.0.0.1:%d", grpcPort),
		CacheSize:     10,
		LogFile:       logFile,
		LogLevel:      10,
		ZcashConfPath: zcashConf,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", LightwalletdFilename, err)
	}
	return writeFile(dir, LightwalletdFilename, b)
}
