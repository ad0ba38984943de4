package registry

// Default HTTP service endpoints. Each is overridable through config for
// testing against fakes.
const (
	// Perps API: deposit/withdraw calldata quoting, positions, balances.
	PerpsAPIBaseURL = "https://api.perpdex.exchange/v1"

	// Cross-chain route quoting service (black-box JSON in/out).
	RouteAPIBaseURL = "https://li.quest/v1"

	// Yield sources feeding the aggregate staking APR.
	VaultStatsBaseURL = "https://stats.perpdex.exchange"
	PoolsAPIBaseURL   = "https://yields.llama.fi"
)
