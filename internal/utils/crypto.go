// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
)

// keyCharset excludes easily confused characters (0/O, 1/I/L).
const keyCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func GenerateRandomString(charset string, length int) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateActivationKey returns a key formatted as XXXX-XXXX-XXXX-XXXX.
func GenerateActivationKey() (string, error) {
	groups := make([]string, 4)
	for i := range groups {
		g, err := GenerateRandomString(keyCharset, 4)
		if err != nil {
			return "", err
		}
		groups[i] = g
	}
	return strings.Join(groups, "-"), nil
}

// GenerateDownloadToken returns a urlsafe opaque token.
func GenerateDownloadToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}
