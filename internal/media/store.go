package media

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is where the upload directory is served
const URLPrefix = "/uploads/"

// Store writes media files into the uploads directory and returns their public URIs
type Store struct {
	dir string
}

// NewStore creates the directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory served under URLPrefix
func (s *Store) Dir() string {
	return s.dir
}

// Save writes r to a new file named <prefix>_<uuid><ext> and returns its URI
func (s *Store) Save(prefix, ext string, r io.Reader) (string, error) {
	filename := fmt.Sprintf("%s_%s%s", prefix, uuid.New().String(), ext)
	fullPath := filepath.Join(s.dir, filename)

	outFile, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close media file: %w", err)
	}

	return URLPrefix + filename, nil
}

// Delete removes a file previously returned by Save. Unknown files are ignored.
func (s *Store) Delete(uri string) error {
	fullPath, ok := s.path(uri)
	if !ok {
		return nil
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Open returns a file previously returned by Save
func (s *Store) Open(uri string) (*os.File, error) {
	fullPath, ok := s.path(uri)
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(fullPath)
}

// path maps a stored URI onto a file directly inside the store directory
func (s *Store) path(uri string) (string, bool) {
	name := path.Base(strings.TrimPrefix(uri, URLPrefix))
	if name == "." || name == "/" || name == "" || name == ".." {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// ExtensionFor maps the MIME types we store to file extensions
func ExtensionFor(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	}
	return ".bin"
}
