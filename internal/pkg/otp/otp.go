package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// MinDigits is the shortest code length accepted by Generate (10^6 code space).
const MinDigits = 6

// Generate draws a uniformly random numeric code of the given length from r.
// A nil r means crypto/rand.
func Generate(r io.Reader, digits int) (string, error) {
	if digits < MinDigits {
		return "", fmt.Errorf("code length %d below minimum %d", digits, MinDigits)
	}
	if r == nil {
		r = rand.Reader
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(r, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*s", digits, n.String()), nil
}

// Equal compares a stored code with a supplied one in constant time.
// Surrounding whitespace in supplied is ignored.
func Equal(stored, supplied string) bool {
	supplied = strings.TrimSpace(supplied)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
