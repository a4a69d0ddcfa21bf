// Package fakes provides stand-ins for node binaries so lifecycle code can be tested without them.
// The scripts need a POSIX shell.
package fakes

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// SkipWithoutShell skips t on platforms that cannot run the fake scripts.
func SkipWithoutShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake node binaries need a POSIX shell")
	}
}

// WriteScript writes an executable shell script named name into a temp dir and returns its path.
func WriteScript(t testing.TB, name, body string) string {
	t.Helper()
	SkipWithoutShell(t)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// idle keeps a fake running until it receives SIGTERM.
const idle = `
trap 'echo "shutting down"; exit 0' TERM
while true; do sleep 1 & wait $!; done
`

// zcashdScript keeps its chain height in <datadir>/regtest/height so chain caches carry it, and
// leaves its data directory next to its config for the fake zcash-cli.
const zcashdScript = `
for arg in "$@"; do
  case "$arg" in
    --conf=*) conf="${arg#--conf=}" ;;
    --datadir=*) datadir="${arg#--datadir=}" ;;
  esac
done
mkdir -p "$datadir/regtest"
[ -f "$datadir/regtest/height" ] || echo 0 > "$datadir/regtest/height"
echo "$datadir" > "$(dirname "$conf")/fake-datadir"
echo $$ > "$datadir/pid"
echo "init message: Loading wallet..."
echo "init message: Done loading"
` + idle

const zcashCliScript = `
conf="${1#-conf=}"
shift
datadir=$(cat "$(dirname "$conf")/fake-datadir")
height=$(cat "$datadir/regtest/height")
case "$1" in
  generate)
    height=$((height + $2))
    echo "$height" > "$datadir/regtest/height"
    echo '["0000000000000000000000000000000000000000000000000000000000000001"]'
    ;;
  getchaintips)
    echo "[{\"height\": $height, \"hash\": \"00\", \"branchlen\": 0, \"status\": \"active\"}]"
    ;;
  stop)
    kill -TERM "$(cat "$datadir/pid")"
    echo "Zcash server stopping"
    ;;
  *)
    echo "error: unknown command $1" >&2
    exit 1
    ;;
esac
`

// Zcashd returns paths to a fake zcashd and a matching fake zcash-cli supporting generate, getchaintips and stop.
func Zcashd(t testing.TB) (zcashd, zcashCli string) {
	t.Helper()
	return WriteScript(t, "zcashd", zcashdScript), WriteScript(t, "zcash-cli", zcashCliScript)
}

// Zebrad returns a fake zebrad that reports readiness and idles. Pair it with a ZebradRPC.
func Zebrad(t testing.TB) string {
	t.Helper()
	return WriteScript(t, "zebrad", `
echo 'WARN error: "failed to lookup address information: Temporary failure in name resolution"'
echo "INFO zebrad::commands::start: starting sync"
`+idle)
}

// Zainod returns a fake zainod that copies its --config file to <dir>/zindexer.toml and reports readiness.
func Zainod(t testing.TB, dir string) string {
	t.Helper()
	return WriteScript(t, "zainod", `
[ "$1" = "--config" ] || { echo "Error: missing --config" >&2; exit 1; }
cp "$2" "`+dir+`/zindexer.toml"
echo "Zaino Indexer started successfully."
`+idle)
}

// Lightwalletd returns a fake lightwalletd that records its arguments in <dir>/args and reports readiness in its --log-file.
func Lightwalletd(t testing.TB, dir string) string {
	t.Helper()
	return WriteScript(t, "lightwalletd", `
echo "$@" > "`+dir+`/args"
while [ $# -gt 0 ]; do
  case "$1" in
    --log-file) log="$2"; shift ;;
  esac
  shift
done
echo '{"level":"info","msg":"Starting insecure no-TLS (plaintext) server"}' >> "$log"
`+idle)
}

// Failing returns a fake that prints line to stderr and exits with code.
func Failing(t testing.TB, name, line string, code int) string {
	t.Helper()
	return WriteScript(t, name, "echo '"+line+"' >&2\nexit "+strconv.Itoa(code)+"\n")
}
