// Package preview serves pre-rendered preview artifacts for stored
// documents. Rendering happens out of band; this package only resolves
// what exists under the preview subtree.
package preview

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/benyonsports/docstore/internal/storage"
)

// Info describes a stored document and its available preview artifacts.
type Info struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	MIME  string `json:"mime"`
	Pages int    `json:"pages"`
}

// Service resolves preview artifacts for documents in a store.
type Service struct {
	store       *storage.Store
	previewRoot string
}

// NewService creates a preview service over the given store.
func NewService(store *storage.Store) *Service {
	return &Service{
		store:       store,
		previewRoot: store.PreviewRoot(),
	}
}

// Info returns document metadata plus the number of pre-rendered page
// artifacts. The MIME type is sniffed from the document's leading bytes.
func (s *Service) Info(path string) (*Info, error) {
	entry, err := s.store.Stat(path)
	if err != nil {
		return nil, err
	}
	if entry.IsDir {
		return nil, fmt.Errorf("%w: %s is a directory", storage.ErrInvalidPath, path)
	}

	mime, err := s.sniffMIME(path)
	if err != nil {
		return nil, err
	}

	pages, err := s.pageArtifacts(path)
	if err != nil {
		return nil, err
	}

	return &Info{
		Name:  entry.Name,
		Path:  entry.Path,
		Size:  entry.Size,
		MIME:  mime,
		Pages: len(pages),
	}, nil
}

// Page returns the artifact path for one rendered page, 1-based.
func (s *Service) Page(path string, page int) (string, error) {
	pages, err := s.pageArtifacts(path)
	if err != nil {
		return "", err
	}
	if page < 1 || page > len(pages) {
		return "", fmt.Errorf("%w: page %d of %s", storage.ErrNotFound, page, path)
	}
	return pages[page-1], nil
}

// sniffMIME detects the content type from the document's first 512 bytes.
func (s *Service) sniffMIME(path string) (string, error) {
	f, _, err := s.store.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read document head: %w", err)
	}

	return http.DetectContentType(buf[:n]), nil
}

// pageArtifacts lists the rendered page files for a document, ordered by
// the page number embedded in the artifact name. Artifacts live in a
// directory named after the document's relative path under the preview
// subtree; an absent directory means zero pages.
func (s *Service) pageArtifacts(path string) ([]string, error) {
	dir := filepath.Join(s.previewRoot, filepath.Clean("/"+path))
	if !strings.HasPrefix(dir, s.previewRoot+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", storage.ErrInvalidPath, path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read preview directory: %w", err)
	}

	var pages []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pages = append(pages, filepath.Join(dir, e.Name()))
	}
	sort.SliceStable(pages, func(i, j int) bool {
		ni, oki := pageNumber(pages[i])
		nj, okj := pageNumber(pages[j])
		if oki && okj && ni != nj {
			return ni < nj
		}
		if oki != okj {
			return oki
		}
		return pages[i] < pages[j]
	})

	return pages, nil
}

var pageNumberPattern = regexp.MustCompile(`(\d+)\D*$`)

// pageNumber extracts the trailing page number from an artifact name, so
// page-10 sorts after page-2 rather than between page-1 and page-2.
func pageNumber(artifact string) (int, bool) {
	m := pageNumberPattern.FindStringSubmatch(filepath.Base(artifact))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
