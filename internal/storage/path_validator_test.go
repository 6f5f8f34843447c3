package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathValidatorResolveKey(t *testing.T) {
	t.Parallel()

	validator, err := NewPathValidator(t.TempDir())
	require.NoError(t, err)

	t.Run("nested key resolves inside root", func(t *testing.T) {
		resolved, resolveErr := validator.ResolveKey("avatars/alice.jpg")
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "avatars", "alice.jpg"), resolved)
	})

	t.Run("leading slash and backslashes are normalized", func(t *testing.T) {
		resolved, resolveErr := validator.ResolveKey(`/avatars\bob.jpg`)
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "avatars", "bob.jpg"), resolved)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		_, resolveErr := validator.ResolveKey(" / ")
		require.Error(t, resolveErr)
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		_, resolveErr := validator.ResolveKey("avatars/../../etc/passwd")
		require.Error(t, resolveErr)
	})

	t.Run("control characters are rejected", func(t *testing.T) {
		_, resolveErr := validator.ResolveKey("avatars/a\nb.jpg")
		require.Error(t, resolveErr)
	})

	t.Run("prefix sibling is not within root", func(t *testing.T) {
		require.False(t, isWithinRoot("/tmp/root", "/tmp/rootless/file"))
		require.True(t, isWithinRoot("/tmp/root", "/tmp/root/file"))
	})
}

func TestNewPathValidatorRequiresRoot(t *testing.T) {
	_, err := NewPathValidator("  ")
	require.Error(t, err)
}
