package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeKeyPassesThroughPrintableASCII(t *testing.T) {
	require.Equal(t, "user-42", encodeKey([]byte("user-42")))
}

func TestEncodeKeyBase64EncodesBinary(t *testing.T) {
	key := []byte{0x00, 0xff, 0x10}
	encoded := encodeKey(key)
	require.NotEqual(t, string(key), encoded)
	require.Equal(t, "AP8Q", encoded)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.Equal(t, 500, cfg.batchSize())
	require.Equal(t, 1000, cfg.bufferSize())
	require.NotZero(t, cfg.pollTimeout())
}
