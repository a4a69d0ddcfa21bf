package fakes

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// proposalHeaderSize is version, three hashes, time, bits, nonce and a CompactSize(1344) solution.
const proposalHeaderSize = 4 + 32*3 + 4 + 4 + 32 + 3 + 1344

// ZebradRPC is an in-memory chain behind zebrad's JSON-RPC methods. It accepts any well-formed
// proposal built on its tip.
type ZebradRPC struct {
	srv *httptest.Server

	mu     sync.Mutex
	height uint32
	blocks [][]byte
	// Reject, when set, is returned by submitblock instead of accepting.
	Reject string
	// Bits is the compact difficulty advertised in templates.
	Bits  string
	stops int
}

// NewZebradRPC starts a fake zebrad RPC server on localhost.
func NewZebradRPC(t testing.TB) *ZebradRPC {
	t.Helper()
	z := &ZebradRPC{Bits: "200f0f0f"}
	z.srv = httptest.NewServer(http.HandlerFunc(z.serve))
	t.Cleanup(z.srv.Close)
	return z
}

// URL returns the server's base URL.
func (z *ZebradRPC) URL() string { return z.srv.URL }

// Port returns the port the server listens on.
func (z *ZebradRPC) Port() uint16 {
	_, port, _ := net.SplitHostPort(z.srv.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return uint16(p)
}

// Height returns the tip height.
func (z *ZebradRPC) Height() uint32 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.height
}

// SetHeight moves the tip.
func (z *ZebradRPC) SetHeight(h uint32) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.height = h
}

// Blocks returns every accepted block in submission order.
func (z *ZebradRPC) Blocks() [][]byte {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([][]byte(nil), z.blocks...)
}

// Stops returns how many stop calls were received.
func (z *ZebradRPC) Stops() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.stops
}

// TipHash is the display-order hash the fake reports for the block at height.
func TipHash(height uint32) string {
	return fmt.Sprintf("%064x", uint64(height)+0xabc000)
}

// RootHash is the display-order root the fake reports for kind ("merkle", "history", "commitments") at height.
func RootHash(kind string, height uint32) string {
	prefix := map[string]uint64{"merkle": 0x1, "history": 0x2, "commitments": 0x3}[kind]
	return fmt.Sprintf("%064x", prefix<<32|uint64(height))
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (z *ZebradRPC) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, rerr := z.dispatch(req)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (z *ZebradRPC) dispatch(req rpcRequest) (any, *rpcError) {
	z.mu.Lock()
	defer z.mu.Unlock()

	switch req.Method {
	case "getblockchaininfo":
		return map[string]any{"chain": "test", "blocks": z.height}, nil
	case "getblocktemplate":
		next := z.height + 1
		now := time.Now().Unix()
		return map[string]any{
			"version":           4,
			"previousblockhash": TipHash(z.height),
			"defaultroots": map[string]string{
				"merkleroot":           RootHash("merkle", next),
				"chainhistoryroot":     RootHash("history", next),
				"authdataroot":         RootHash("merkle", 0),
				"blockcommitmentshash": RootHash("commitments", next),
			},
			"transactions": []any{},
			"coinbasetxn":  map[string]any{"data": fmt.Sprintf("0400008085202f89%08x", next)},
			"target":       "0f0f0f0000000000000000000000000000000000000000000000000000000000",
			"mintime":      now - 60,
			"curtime":      now,
			"maxtime":      now + 60,
			"bits":         z.Bits,
			"height":       next,
		}, nil
	case "submitblock":
		if len(req.Params) != 1 {
			return nil, &rpcError{Code: -32602, Message: "expected one parameter"}
		}
		var blockHex string
		if err := json.Unmarshal(req.Params[0], &blockHex); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		block, err := hex.DecodeString(blockHex)
		if err != nil || len(block) <= proposalHeaderSize {
			return "rejected", nil
		}
		if z.Reject != "" {
			return z.Reject, nil
		}
		if !z.buildsOnTip(block) {
			return "inconclusive", nil
		}
		z.height++
		z.blocks = append(z.blocks, block)
		return nil, nil
	case "stop":
		z.stops++
		return nil, nil
	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

func (z *ZebradRPC) buildsOnTip(block []byte) bool {
	want, _ := hex.DecodeString(TipHash(z.height))
	for i := range want {
		if block[4+i] != want[len(want)-1-i] {
			return false
		}
	}
	return binary.LittleEndian.Uint32(block[0:4]) == 4
}
