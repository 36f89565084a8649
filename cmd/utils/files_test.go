package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFilePath(t *testing.T) {
	t.Run("plain filename resolves inside the upload directory", func(t *testing.T) {
		path, err := DocumentFilePath("20250101-abc.png")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(DocumentPath, "20250101-abc.png"), path)
	})

	rejected := []struct {
		name     string
		filename string
	}{
		{"empty", ""},
		{"dot", "."},
		{"parent traversal", "../secrets.txt"},
		{"nested path", "sub/doc.png"},
		{"absolute path", "/etc/passwd"},
	}

	for _, tt := range rejected {
		t.Run(tt.name+" is rejected", func(t *testing.T) {
			_, err := DocumentFilePath(tt.filename)
			assert.Error(t, err)
		})
	}
}

func TestIsValidDocumentType(t *testing.T) {
	assert.True(t, isValidDocumentType(".jpg"))
	assert.True(t, isValidDocumentType(".jpeg"))
	assert.True(t, isValidDocumentType(".png"))
	assert.True(t, isValidDocumentType(".pdf"))
	assert.False(t, isValidDocumentType(".exe"))
	assert.False(t, isValidDocumentType(".svg"))
	assert.False(t, isValidDocumentType(""))
}
