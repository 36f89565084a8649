package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxDocumentSize = 10 << 20 // 10 MB
	DocumentPath    = "uploads/kyc"
)

// SaveDocument stores an uploaded identity document under a generated
// filename and returns that filename. The original name never touches
// the filesystem.
func SaveDocument(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxDocumentSize {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", MaxDocumentSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !isValidDocumentType(ext) {
		return "", fmt.Errorf("invalid file type: %s", ext)
	}

	if err := os.MkdirAll(DocumentPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %v", err)
	}

	filename := fmt.Sprintf("%s-%s%s",
		time.Now().Format("20060102"),
		uuid.New().String(),
		ext,
	)
	filePath := filepath.Join(DocumentPath, filename)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %v", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}

	return filename, nil
}

func isValidDocumentType(ext string) bool {
	validTypes := map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".pdf":  true,
	}
	return validTypes[ext]
}

// DocumentFilePath resolves a stored filename inside the upload directory,
// rejecting anything that tries to escape it.
func DocumentFilePath(filename string) (string, error) {
	if filename != filepath.Base(filename) || filename == "." || filename == "" {
		return "", fmt.Errorf("invalid filename")
	}
	return filepath.Join(DocumentPath, filename), nil
}

func DeleteDocument(filename string) error {
	filePath, err := DocumentFilePath(filename)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(filePath)
}
