// Package fetcher resolves, verifies and downloads the node binaries a local network runs.
package fetcher

// Binary names a managed executable.
type Binary string

const (
	Zcashd       Binary = "zcashd"
	ZcashCli     Binary = "zcash-cli"
	Zebrad       Binary = "zebrad"
	Zainod       Binary = "zainod"
	Lightwalletd Binary = "lightwalletd"
	ZingoCli     Binary = "zingo-cli"
)

// All returns every managed binary.
func All() []Binary {
	return []Binary{Zcashd, ZcashCli, Zebrad, Zainod, Lightwalletd, ZingoCli}
}

// Expectation describes how a stored binary is verified. Empty fields skip the corresponding check.
type Expectation struct {
	// SHA512 is the hex encoded digest of the whole file.
	SHA512 string
	// VersionArg is passed to the binary to print its version.
	VersionArg string
	// Version must appear in the output of the version command.
	Version string
}

// DefaultExpectations are the release versions the framework is tested against.
func DefaultExpectations() map[Binary]Expectation {
	return map[Binary]Expectation{
		Zainod:       {VersionArg: "--help", Version: "zainod [OPTIONS]"},
		Lightwalletd: {VersionArg: "version", Version: "v0.4.17-18-g1e63bee"},
		Zcashd:       {VersionArg: "--version", Version: "Zcash Daemon version v6.1.0"},
		ZcashCli:     {VersionArg: "--version", Version: "v6.1.0-a3435336b"},
		ZingoCli:     {VersionArg: "--version", Version: "Zingo CLI 0.1.1"},
		Zebrad:       {VersionArg: "--version", Version: "zebrad 2.1.0"},
	}
}
