package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	require.Equal(t, 2*time.Second, ParseDuration("2s", time.Minute))
	require.Equal(t, time.Minute, ParseDuration("", time.Minute))
	require.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestNumeric(t *testing.T) {
	require.Equal(t, 3.0, Numeric(3))
	require.Equal(t, 3.0, Numeric(int64(3)))
	require.Equal(t, 3.5, Numeric(3.5))
	require.Equal(t, 3.0, Numeric(float32(3)))
	require.Equal(t, 3.0, Numeric(uint8(3)))
	require.Equal(t, 0.0, Numeric("3"))
	require.Equal(t, 0.0, Numeric(nil))
}
