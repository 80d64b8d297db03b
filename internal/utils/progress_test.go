package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgressBar(t *testing.T) {
	t.Run("known total writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		bar := NewProgressBar(3, DescScanning, &buf)
		require.NotNil(t, bar)

		require.NoError(t, bar.Add(1))
		assert.Contains(t, buf.String(), DescScanning)
	})

	t.Run("nil writer is silent", func(t *testing.T) {
		bar := NewProgressBar(2, DescScanning, nil)
		require.NotNil(t, bar)
		assert.NoError(t, bar.Add(2))
		assert.NoError(t, bar.Finish())
	})

	t.Run("indeterminate total", func(t *testing.T) {
		var buf bytes.Buffer
		bar := NewProgressBar(-1, DescLoading, &buf)
		require.NotNil(t, bar)
		assert.NoError(t, bar.Add(1))
	})
}
