package booking

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// 24 letters without O and I, plus the digits 2-9. 32 symbols, so a byte
// modulo the alphabet length is unbiased.
const confirmationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const confirmationLength = 6

func newConfirmationID() (string, error) {
	buf := make([]byte, confirmationLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = confirmationAlphabet[int(b)%len(confirmationAlphabet)]
	}
	return string(buf), nil
}

// ValidConfirmationID reports whether id could have been issued by the store.
func ValidConfirmationID(id string) bool {
	if len(id) != confirmationLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(confirmationAlphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
