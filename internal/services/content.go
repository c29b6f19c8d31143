package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// ContentService reads and overwrites the landing page file
type ContentService struct {
	path string
}

// NewContentService creates a new content service
func NewContentService(path string) *ContentService {
	return &ContentService{path: path}
}

// Load returns the file contents or the read error.
func (s *ContentService) Load() (string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Read returns the file contents, or an empty string when it cannot be read.
func (s *ContentService) Read() string {
	content, err := s.Load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[CONTENT] Failed to read %s: %v", s.path, err)
		}
		return ""
	}
	return content
}

// Write replaces the file contents verbatim.
func (s *ContentService) Write(content string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	log.Printf("[CONTENT] Landing page updated (%d bytes)", len(content))
	return nil
}

// EnsureDefault writes content only when the file does not exist yet.
func (s *ContentService) EnsureDefault(content string) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat content: %w", err)
	}
	return s.Write(content)
}
