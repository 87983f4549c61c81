// Package storage implements the local document store. Documents live
// under remote/ in the data directory; deleted files are copied into the
// backup/ subtree first, and pre-rendered preview artifacts live under
// preview/.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benyonsports/docstore/internal/observability"
)

// Subtree names under the data directory.
const (
	remoteDirName  = "remote"
	backupDirName  = "backup"
	previewDirName = "preview"
)

// Entry describes a single file or directory in a listing.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store is a local-disk document store. It is safe for concurrent use; the
// filesystem provides the only synchronization the operations need.
type Store struct {
	root       string
	remoteDir  string
	backupDir  string
	previewDir string
	logger     observability.Logger
}

// StoreOption is a functional option for configuring the store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger for the store.
func WithStoreLogger(logger observability.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store rooted at dataDir, creating the remote, backup
// and preview subtrees if they do not exist.
func NewStore(dataDir string, opts ...StoreOption) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	root, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}

	s := &Store{
		root:       root,
		remoteDir:  filepath.Join(root, remoteDirName),
		backupDir:  filepath.Join(root, backupDirName),
		previewDir: filepath.Join(root, previewDirName),
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{s.remoteDir, s.backupDir, s.previewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store subtree %s: %w", dir, err)
		}
	}

	return s, nil
}

// PreviewRoot returns the root of the preview artifact subtree.
func (s *Store) PreviewRoot() string {
	return s.previewDir
}

// Save writes a document under the given store-relative path, creating
// parent directories as needed. The copy checks for context cancellation
// between chunks and removes the partial file on abort.
func (s *Store) Save(ctx context.Context, path string, r io.Reader) (int64, error) {
	absPath, err := s.resolvePath(s.remoteDir, path)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	dst, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			_ = dst.Close()
			_ = os.Remove(absPath)
			return 0, ctx.Err()
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)
			if writeErr != nil {
				_ = dst.Close()
				_ = os.Remove(absPath)
				return 0, fmt.Errorf("write file: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = dst.Close()
			_ = os.Remove(absPath)
			return 0, fmt.Errorf("read upload: %w", readErr)
		}
	}

	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}

	s.logger.Info("document saved",
		observability.String("path", path),
		observability.Int64("bytes", written))
	return written, nil
}

// Open opens a stored document for reading.
func (s *Store) Open(path string) (*os.File, os.FileInfo, error) {
	absPath, err := s.resolvePath(s.remoteDir, path)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, info, nil
}

// Stat returns the Entry for a stored path.
func (s *Store) Stat(path string) (Entry, error) {
	absPath, err := s.resolvePath(s.remoteDir, path)
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return s.entryFor(path, info), nil
}

// List returns the direct children of a stored directory.
func (s *Store) List(ctx context.Context, dir string) ([]Entry, error) {
	absPath, err := s.resolvePath(s.remoteDir, dir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	dirEntries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, s.entryFor(filepath.Join(dir, de.Name()), info))
	}

	return entries, nil
}

// CreateDir creates a directory under the store, failing when the target
// already exists.
func (s *Store) CreateDir(path string) error {
	absPath, err := s.resolvePath(s.remoteDir, path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(absPath); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}

	s.logger.Info("directory created", observability.String("path", path))
	return nil
}

// Delete removes a stored file or directory. Files are copied into the
// backup subtree before removal so a delete is recoverable; directories
// are removed recursively without backup.
func (s *Store) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	absPath, err := s.resolvePath(s.remoteDir, path)
	if err != nil {
		return err
	}
	if absPath == s.remoteDir {
		return fmt.Errorf("%w: cannot delete store root", ErrInvalidPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		if err := os.RemoveAll(absPath); err != nil {
			return fmt.Errorf("delete directory %s: %w", path, err)
		}
		s.logger.Info("directory deleted", observability.String("path", path))
		return nil
	}

	if err := s.backup(path, absPath); err != nil {
		return err
	}

	if err := os.Remove(absPath); err != nil {
		return fmt.Errorf("delete file %s: %w", path, err)
	}

	s.logger.Info("document deleted", observability.String("path", path))
	return nil
}

// backup copies a file into the backup subtree at the same relative path.
func (s *Store) backup(path, absPath string) error {
	backupPath, err := s.resolvePath(s.backupDir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	src, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy to backup: %w", err)
	}
	return dst.Close()
}

// Search walks the store and returns entries whose name contains the query,
// case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]Entry, error) {
	needle := strings.ToLower(query)
	var matches []Entry

	err := filepath.WalkDir(s.remoteDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path == s.remoteDir {
			return nil
		}
		if !strings.Contains(strings.ToLower(d.Name()), needle) {
			return nil
		}

		rel, err := filepath.Rel(s.remoteDir, path)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, s.entryFor(rel, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search walk: %w", err)
	}

	return matches, nil
}

// NewlyAdded walks the store and returns files modified at or after the
// cutoff, most recent first. Directories are skipped; a fresh directory
// with no fresh files contributes nothing.
func (s *Store) NewlyAdded(ctx context.Context, since time.Time) ([]Entry, error) {
	var recent []Entry

	err := filepath.WalkDir(s.remoteDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(since) {
			return nil
		}

		rel, err := filepath.Rel(s.remoteDir, path)
		if err != nil {
			return nil
		}
		recent = append(recent, s.entryFor(rel, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("newly added walk: %w", err)
	}

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].ModTime.After(recent[j].ModTime)
	})
	return recent, nil
}

func (s *Store) entryFor(relPath string, info os.FileInfo) Entry {
	entry := Entry{
		Name:    info.Name(),
		Path:    filepath.ToSlash(relPath),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}
	if !info.IsDir() {
		entry.Size = info.Size()
	}
	return entry
}

// resolvePath joins a store-relative path onto a subtree root and rejects
// anything that escapes it.
func (s *Store) resolvePath(base, path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	absPath := filepath.Join(base, cleaned)

	if absPath != base && !strings.HasPrefix(absPath, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return absPath, nil
}
