package execution

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

func NewBatchID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "batch-unknown"
	}
	return fmt.Sprintf("bat_%s", hex.EncodeToString(b))
}
