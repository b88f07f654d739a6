package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxReceiptSize = 10 << 20

var (
	ErrUnsupportedFileType = errors.New("unsupported receipt file type")
	ErrFileTooLarge        = errors.New("receipt file is too large")
	ErrInvalidScope        = errors.New("invalid receipt scope")
)

var allowedReceiptExt = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ReceiptStore keeps payment receipts on local disk under baseDir/<scope>/.
type ReceiptStore struct {
	baseDir string
}

func NewReceiptStore(baseDir string) *ReceiptStore {
	return &ReceiptStore{baseDir: baseDir}
}

// Save writes content under a generated name and returns the path relative to
// the store root, e.g. "store_7/3f1c....pdf".
func (s *ReceiptStore) Save(scope, originalName string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedReceiptExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}

	if scope == "" || scope != filepath.Base(scope) || scope == "." || scope == ".." {
		return "", ErrInvalidScope
	}

	dir := filepath.Join(s.baseDir, scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create receipt directory: %w", err)
	}

	name := uuid.New().String() + ext
	fullPath := filepath.Join(dir, name)

	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create receipt file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(content, MaxReceiptSize+1))
	closeErr := dst.Close()
	if err == nil && written > MaxReceiptSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write receipt file: %w", err)
	}

	return scope + "/" + name, nil
}

func (s *ReceiptStore) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(relPath)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
