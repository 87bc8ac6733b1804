package issuer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBase62(t *testing.T) {
	// Zero is the single-digit special case
	assert.Equal(t, "0", EncodeBase62(0))

	// Each alphabet region
	assert.Equal(t, "9", EncodeBase62(9))
	assert.Equal(t, "A", EncodeBase62(10))
	assert.Equal(t, "Z", EncodeBase62(35))
	assert.Equal(t, "a", EncodeBase62(36))
	assert.Equal(t, "z", EncodeBase62(61))

	// First two-digit value: 62 = 1*62 + 0
	assert.Equal(t, "10", EncodeBase62(62))
	assert.Equal(t, "11", EncodeBase62(63))
	assert.Equal(t, "1z", EncodeBase62(123))
	assert.Equal(t, "20", EncodeBase62(124))
}

func TestDecodeBase62_RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 9, 10, 35, 36, 61, 62, 63, 100, 3843, 3844, 1<<32 + 7, 1<<63 - 1}
	for _, v := range values {
		decoded, err := DecodeBase62(EncodeBase62(v))
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestDecodeBase62_Invalid(t *testing.T) {
	_, err := DecodeBase62("")
	assert.Error(t, err)

	_, err = DecodeBase62("PAM-1")
	assert.Error(t, err)

	_, err = DecodeBase62("12!0")
	assert.Error(t, err)
}

func TestCouponCode(t *testing.T) {
	assert.Equal(t, "PAM-1", CouponCode("PAM", 1))
	assert.Equal(t, "PAM-z", CouponCode("PAM", 61))
	assert.Equal(t, "PAM-10", CouponCode("PAM", 62))
	assert.Equal(t, "GOLD-0", CouponCode("GOLD", 0))
}
