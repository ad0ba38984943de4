package registry

// Perps margin engine (order/collateral entry point) by EVM chain id. The
// engine is the spender for deposit approvals.
var perpsEngineByChainID = map[int64]string{
	42161: "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92",
	8453:  "0x2cd1b2BCd8769b2a3a9d0b64b261e65aFf71b617",
}

// Staking vault (stake entry point for the cross-chain flow) by chain id. The
// vault lives on the destination chain and stakes USDC on the user's behalf.
var stakingVaultByChainID = map[int64]string{
	42161: "0xB61371Ab661f2E79f3eC8a3eD9a0a5986A1a590D",
}

// Bridge router (swap entry point) by source chain id. Calls to swap() carry
// the native bridge fee as msg.value.
var bridgeRouterByChainID = map[int64]string{
	1:     "0x8731d54E9D02c286767d56ac03e8037C07e01e98",
	10:    "0xB0D502E938ed5f4df2E681fE6E419ff29631d62b",
	56:    "0x4a364f8c717cAAD9A442737Eb7b8A55cc6cf18D8",
	137:   "0x45A01E4e04F14f7A4a6702c74187c5F6222033cd",
	8453:  "0x45f1A95A4D3f3836523F5c83673c797f4d4d263B",
	42161: "0x53Bf833A5d6c4ddA888F69c22C88C9f356a41614",
	43114: "0x45A01E4e04F14f7A4a6702c74187c5F6222033cd",
}

// PerpsEngine returns the margin engine address for a chain.
func PerpsEngine(chainID int64) (string, bool) {
	addr, ok := perpsEngineByChainID[chainID]
	return addr, ok
}

// BridgeRouter returns the bridge swap entry point for a source chain.
func BridgeRouter(chainID int64) (string, bool) {
	addr, ok := bridgeRouterByChainID[chainID]
	return addr, ok
}

// StakingVault returns the staking vault address for a chain.
func StakingVault(chainID int64) (string, bool) {
	addr, ok := stakingVaultByChainID[chainID]
	return addr, ok
}

// StakingChainID is the chain the staking vault is deployed on; cross-chain
// stake routes always terminate here.
const StakingChainID int64 = 42161
