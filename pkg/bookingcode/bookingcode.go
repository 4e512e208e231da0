// Package bookingcode generates human-facing booking references and the
// numeric order codes used as payment gateway references.
package bookingcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Prefix for all booking references.
const Prefix = "VEX-"

// charset excludes characters easy to misread over the phone: 0/O and 1/I.
const charset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const codeLength = 5

// New returns a booking reference like "VEX-7KQ2M". The random part uses
// crypto/rand; the generator does not dedupe. With 32^5 combinations and
// lookups scoped by contact email, collisions are acceptable at this
// volume.
func New() (string, error) {
	code := make([]byte, codeLength)
	max := big.NewInt(int64(len(charset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate booking code: %w", err)
		}
		code[i] = charset[n.Int64()]
	}
	return Prefix + string(code), nil
}

// NewOrderCode returns a numeric payment reference built from the current
// millisecond clock plus random digits. Gateways require a positive
// integer; collisions are practically excluded by the time component.
func NewOrderCode() (int64, error) {
	millis := time.Now().UnixMilli() % 1_000_000_000
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return 0, fmt.Errorf("failed to generate order code: %w", err)
	}
	return millis*1000 + n.Int64(), nil
}
