package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatRFC3339Millis(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 3, 1, 12, 4, 5, 678_900_000, time.FixedZone("X", 3600))
	require.Equal(t, "2026-03-01T11:04:05.678Z", formatRFC3339Millis(ts))
}

func TestVerboseEnablesDebug(t *testing.T) {
	t.Parallel()
	var quiet, loud bytes.Buffer

	NewWithWriter(&quiet, false).Debug("pool: hidden")
	NewWithWriter(&loud, true).Debug("pool: shown", "empty", "")

	require.Empty(t, quiet.String())
	require.Contains(t, loud.String(), "pool: shown")
	require.NotContains(t, loud.String(), "empty=")
}
