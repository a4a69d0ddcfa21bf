package zebrad

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCClient calls zebrad's JSON-RPC interface.
type RPCClient struct {
	c *rpc.Client
}

// DialRPC connects to the JSON-RPC endpoint at url. HTTP connections are established lazily.
func DialRPC(ctx context.Context, url string) (*RPCClient, error) {
	c, err := rpc.DialOptions(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &RPCClient{c: c}, nil
}

// Close releases the client.
func (r *RPCClient) Close() {
	r.c.Close()
}

// Call invokes method with params and decodes the result into result.
func (r *RPCClient) Call(ctx context.Context, result any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	return r.c.CallContext(ctx, result, method, params...)
}

// BlockchainInfo is the subset of getblockchaininfo this package reads.
type BlockchainInfo struct {
	Chain  string `json:"chain"`
	Blocks uint32 `json:"blocks"`
}

func (r *RPCClient) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	var info BlockchainInfo
	if err := r.Call(ctx, &info, "getblockchaininfo"); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *RPCClient) GetBlockTemplate(ctx context.Context) (*BlockTemplate, error) {
	var t BlockTemplate
	if err := r.Call(ctx, &t, "getblocktemplate"); err != nil {
		return nil, err
	}
	return &t, nil
}

// SubmitBlock submits a hex encoded block. A nil result means the block was accepted;
// otherwise the node's verdict, such as "rejected" or "duplicate", is returned.
func (r *RPCClient) SubmitBlock(ctx context.Context, blockHex string) (accepted bool, verdict string, err error) {
	var raw json.RawMessage
	if err := r.Call(ctx, &raw, "submitblock", blockHex); err != nil {
		return false, "", err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return true, "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, string(raw), nil
	}
	return false, s, nil
}

// Stop asks zebrad to shut down.
func (r *RPCClient) Stop(ctx context.Context) error {
	var raw json.RawMessage
	return r.Call(ctx, &raw, "stop")
}
