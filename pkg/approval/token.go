package approval

import (
	"crypto/rand"
	"fmt"
)

// TokenLength is the number of characters in an approval token.
const TokenLength = 64

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// rejectionLimit is the largest multiple of len(tokenAlphabet) that fits in a byte.
// Bytes at or above it are discarded so every character is equally likely.
const rejectionLimit = 256 - 256%len(tokenAlphabet)

// GenerateToken returns a 64 character alphanumeric token read from crypto/rand.
func GenerateToken() (string, error) {
	token := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)

	for len(token) < TokenLength {
		_, err := rand.Read(buf)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= rejectionLimit {
				continue
			}

			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == TokenLength {
				break
			}
		}
	}

	return string(token), nil
}
