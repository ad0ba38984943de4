package registry

import "math/big"

// Single source of truth for per-chain bridge parameters. The upstream app
// grew two independently edited copies of these tables; any new entry goes
// here and nowhere else.

// Cross-chain messaging endpoint ids by EVM chain id. Absence means the chain
// is not a supported bridge destination.
var bridgeIDByChainID = map[int64]uint16{
	1:     101,
	56:    102,
	43114: 106,
	137:   109,
	42161: 110,
	10:    111,
	8453:  184,
}

// Native-currency fee (wei) that the bridge endpoint charges for message
// delivery, by source chain id. Unlisted chains pay zero: quoting logic on
// unsupported chains must not be blocked by a missing fee entry, and callers
// that actually transfer cross-chain reject unsupported destinations through
// BridgeIDFor instead.
var nativeBridgeFeeWei = map[int64]string{
	1:     "3000000000000000",
	10:    "600000000000000",
	56:    "2500000000000000",
	137:   "1200000000000000000",
	8453:  "600000000000000",
	42161: "600000000000000",
	43114: "30000000000000000",
}

// BridgeIDFor returns the bridge endpoint id for a destination chain, or
// ok=false when the chain is not a supported destination.
func BridgeIDFor(chainID int64) (uint16, bool) {
	id, ok := bridgeIDByChainID[chainID]
	return id, ok
}

// NativeBridgeFee returns the native fee in wei for bridging out of chainID.
// Returns zero for unlisted chains by design.
func NativeBridgeFee(chainID int64) *big.Int {
	raw, ok := nativeBridgeFeeWei[chainID]
	if !ok {
		return big.NewInt(0)
	}
	fee, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return big.NewInt(0)
	}
	return fee
}

// BridgeDestinations lists the chain ids that can receive a bridge transfer.
func BridgeDestinations() []int64 {
	out := make([]int64, 0, len(bridgeIDByChainID))
	for chainID := range bridgeIDByChainID {
		out = append(out, chainID)
	}
	return out
}
