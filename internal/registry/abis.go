package registry

// ABI fragments used by the route planner and batch builders.
const (
	ERC20MinimalABI = `[
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	StakingVaultABI = `[
		{"name":"stake","type":"function","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"unstake","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
	]`

	BridgeRouterABI = `[
		{"name":"swap","type":"function","stateMutability":"payable","inputs":[{"name":"dstChainId","type":"uint16"},{"name":"to","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"minAmount","type":"uint256"}],"outputs":[]}
	]`
)
