// internal/utils/crypto_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateActivationKeyFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := GenerateActivationKey()
		require.NoError(t, err)
		assert.True(t, ValidActivationKeyFormat(key), "key %q should match issued format", key)

		// Confusable characters are never issued
		for _, forbidden := range []string{"0", "O", "1", "I", "L"} {
			assert.NotContains(t, strings.ReplaceAll(key, "-", ""), forbidden)
		}
	}
}

func TestGenerateDownloadTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateDownloadToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "token collision")
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "+")
		seen[token] = true
	}
}

func TestValidActivationKeyFormat(t *testing.T) {
	assert.True(t, ValidActivationKeyFormat("ABCD-EFGH-JKMN-2345"))
	assert.False(t, ValidActivationKeyFormat("abcd-efgh-jkmn-2345"))
	assert.False(t, ValidActivationKeyFormat("ABCD-EFGH-JKMN"))
	assert.False(t, ValidActivationKeyFormat("ABCDEFGHJKMN2345"))
	assert.False(t, ValidActivationKeyFormat(""))
}
