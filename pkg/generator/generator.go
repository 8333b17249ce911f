package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	alphabet         = "0123456789abcdefghijklmnopqrstuvwxyz"
	sessionSuffixLen = 9
)

func GenerateRandomID(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		randomIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		result[i] = alphabet[randomIndex.Int64()]
	}

	return string(result), nil
}

// SessionID returns "session_<unix ms>_<random suffix>".
func SessionID(now time.Time) (string, error) {
	suffix, err := GenerateRandomID(sessionSuffixLen)
	if err != nil {
		return "", fmt.Errorf("session id suffix: %w", err)
	}
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix), nil
}
