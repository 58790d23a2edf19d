// impersonate/store_test.go
package impersonate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsync/pulse/impersonate"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/model"
)

func TestFileStore(t *testing.T) {
	logger.InitTestLogger()

	session := model.ImpersonationSession{
		TargetUser: model.TargetUser{UserID: "u-2001", Name: "Priya Raman"},
		Reason:     "ticket 4821",
	}

	t.Run("RoundTrip", func(t *testing.T) {
		store := impersonate.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, store.Save(session))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, session, *loaded)
	})

	t.Run("MissingBlobMeansNoSession", func(t *testing.T) {
		store := impersonate.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		loaded, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveCreatesParentDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "state", "session.json")
		store := impersonate.NewFileStore(path)
		require.NoError(t, store.Save(session))

		_, err := os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("ClearRemovesBlob", func(t *testing.T) {
		store := impersonate.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, store.Save(session))
		require.NoError(t, store.Clear())

		loaded, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, loaded)

		// Clearing an already-absent blob is not an error.
		assert.NoError(t, store.Clear())
	})

	t.Run("SaveOverwritesWholeBlob", func(t *testing.T) {
		store := impersonate.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, store.Save(session))

		replacement := model.ImpersonationSession{
			TargetUser: model.TargetUser{UserID: "u-3001", Name: "Marcus Bell"},
		}
		require.NoError(t, store.Save(replacement))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, replacement, *loaded)
	})
}
