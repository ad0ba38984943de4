package orchestrate

import (
	"strings"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

// Classify maps an execution failure into the error taxonomy. User rejection
// is checked first: wallets and RPC nodes surface it in wildly different
// shapes, so any "rejected" marker wins over whatever code the transport
// attached. Already-typed errors keep their code; everything else is an
// infrastructure failure. No retries happen here.
func Classify(err error) *clierr.Error {
	if err == nil {
		return nil
	}
	if isUserRejection(err.Error()) {
		return clierr.Wrap(clierr.CodeUserRejected, "user rejected the transaction", err)
	}
	if typed, ok := clierr.As(err); ok {
		return typed
	}
	return clierr.Wrap(clierr.CodeUnavailable, "execution failed", err)
}

func isUserRejection(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "rejected") {
		return true
	}
	// Provider-specific rejection codes surfaced as plain text.
	if strings.Contains(msg, "4001") || strings.Contains(msg, "ACTION_REJECTED") {
		return true
	}
	return false
}
