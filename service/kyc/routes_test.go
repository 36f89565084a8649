package kyc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfx/finfx-server/cmd/utils"
)

func TestValidDocumentType(t *testing.T) {
	for _, accepted := range []string{"passport", "national_id", "drivers_license"} {
		assert.True(t, validDocumentType(accepted), accepted)
	}
	for _, rejected := range []string{"Passport", "id_card", "visa", ""} {
		assert.False(t, validDocumentType(rejected), rejected)
	}
}

func TestDiscardDocumentsRemovesSavedFiles(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.MkdirAll(utils.DocumentPath, 0755))
	saved := "20250601-front.png"
	require.NoError(t, os.WriteFile(filepath.Join(utils.DocumentPath, saved), []byte("img"), 0644))

	// Blank slots and files that never reached disk are skipped without
	// touching the one that did.
	discardDocuments(saved, "", "20250601-back.png")

	_, err = os.Stat(filepath.Join(utils.DocumentPath, saved))
	assert.True(t, os.IsNotExist(err))
}
