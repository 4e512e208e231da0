package bookingcode

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		code, err := New()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^VEX-[23456789A-HJ-NP-Z]{5}$`), code)
	})

	t.Run("Excludes Ambiguous Characters", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			code, err := New()
			require.NoError(t, err)
			random := strings.TrimPrefix(code, Prefix)
			assert.NotContains(t, random, "0")
			assert.NotContains(t, random, "1")
			assert.NotContains(t, random, "I")
			assert.NotContains(t, random, "O")
		}
	})

	t.Run("Varies Between Calls", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			code, err := New()
			require.NoError(t, err)
			seen[code] = struct{}{}
		}
		// 32^5 possibilities; 100 draws colliding down to a handful
		// would mean the generator is broken
		assert.Greater(t, len(seen), 90)
	})
}

func TestNewOrderCode(t *testing.T) {
	t.Run("Positive Integer", func(t *testing.T) {
		orderCode, err := NewOrderCode()
		require.NoError(t, err)
		assert.Greater(t, orderCode, int64(0))
	})

	t.Run("Fits Gateway Range", func(t *testing.T) {
		orderCode, err := NewOrderCode()
		require.NoError(t, err)
		// millisecond component capped at 9 digits plus 3 random digits
		assert.Less(t, orderCode, int64(1_000_000_000_000))
	})
}
