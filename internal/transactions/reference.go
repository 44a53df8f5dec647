package transactions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const referencePrefix = "TXN-"

// newReferenceNumber produces a TXN-XXXXXXXX candidate. Uniqueness is
// enforced by the DB constraint; callers retry on collision.
func newReferenceNumber() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating reference number: %w", err)
	}
	return referencePrefix + strings.ToUpper(hex.EncodeToString(raw)), nil
}
