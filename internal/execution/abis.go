package execution

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/perpdex-labs/perpctl/internal/registry"
)

var (
	execERC20ABI = mustExecABI(registry.ERC20MinimalABI)

	execApproveSelector = execERC20ABI.Methods["approve"].ID
)

func mustExecABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
