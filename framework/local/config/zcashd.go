package config

import (
	"fmt"
	"strings"

	"github.com/zingolabs/localnet/framework/types"
)

// consensusBranchIDs are the nuparams identifiers of each upgrade, in activation order.
var consensusBranchIDs = map[types.NetworkUpgrade]string{
	types.Overwinter: "5ba81b19",
	types.Sapling:    "76b809bb",
	types.Blossom:    "2bb40e60",
	types.Heartwood:  "f5b9230b",
	types.Canopy:     "e9ff75a6",
	types.NU5:        "c2d6d0b4",
	types.NU6:        "c8e71055",
}

// Zcashd writes a regtest zcash.conf into dir and returns its path. The same file describes
// the RPC endpoint of zebrad to lightwalletd.
func Zcashd(dir string, rpcPort uint16, heights types.ActivationHeights, minerAddress string) (string, error) {
	var b strings.Builder
	b.WriteString("### Blockchain Configuration\nregtest=1\n")
	for _, u := range heights.Ordered() {
		label := u.Upgrade.String()
		if u.Upgrade == types.NU5 {
			label = "NU5 (Orchard)"
		}
		fmt.Fprintf(&b, "nuparams=%s:%d # %s\n", consensusBranchIDs[u.Upgrade], u.Height, label)
	}
	b.WriteString(`
### MetaData Storage and Retrieval
# txindex:
# https://zcash.readthedocs.io/en/latest/rtd_pages/zcash_conf_guide.html#miscellaneous-options
txindex=1
# insightexplorer:
# https://zcash.readthedocs.io/en/latest/rtd_pages/insight_explorer.html?highlight=insightexplorer#additional-getrawtransaction-fields
insightexplorer=1
experimentalfeatures=1
lightwalletd=1

### RPC Server Interface Options:
# https://zcash.readthedocs.io/en/latest/rtd_pages/zcash_conf_guide.html#json-rpc-options
`)
	fmt.Fprintf(&b, "rpcuser=%s\nrpcpassword=%s\nrpcport=%d\nrpcallowip=127.0.0.1\n", RPCUser, RPCPassword, rpcPort)
	b.WriteString(`
# Buried config option to allow non-canonical RPC-PORT:
# https://zcash.readthedocs.io/en/latest/rtd_pages/zcash_conf_guide.html#zcash-conf-guide
listen=0`)

	if minerAddress != "" {
		fmt.Fprintf(&b, `

### Zcashd Help provides documentation of the following:
mineraddress=%s
minetolocalwallet=0 # This is set to false so that we can mine to a wallet, other than the zcashd wallet.`, minerAddress)
	}

	return writeFile(dir, ZcashdFilename, []byte(b.String()))
}
