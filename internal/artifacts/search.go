package artifacts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PageInfo describes a page directory found under the artifact root
type PageInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	HasResult    bool   `json:"has_result"`
	ModifiedTime string `json:"modified_time"`
}

// FindPagesResult lists the page directories matching a search
type FindPagesResult struct {
	Pages       []PageInfo `json:"pages"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// FindPages walks directory (relative to the root when not absolute) and
// returns every directory holding a record_candidates.json. A non-empty query
// keeps only pages whose path relative to directory contains it, ignoring case.
func (l *Loader) FindPages(directory, query string) (*FindPagesResult, error) {
	if directory == "" {
		directory = l.Root()
	}
	abs, err := l.ResolveDir(directory)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))

	pages := []PageInfo{}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped
			return nil //nolint:nilerr
		}
		if !d.IsDir() {
			return nil
		}

		within, err := l.paths.Contains(path)
		if err != nil || !within {
			return filepath.SkipDir
		}

		candidates, err := os.Stat(filepath.Join(path, CandidatesFile))
		if err != nil || candidates.IsDir() {
			return nil //nolint:nilerr
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			rel = path
		}
		if query != "" && !strings.Contains(strings.ToLower(rel), query) {
			return nil
		}

		_, resultErr := os.Stat(filepath.Join(path, ResultFile))
		pages = append(pages, PageInfo{
			Path:         path,
			Name:         rel,
			HasResult:    resultErr == nil,
			ModifiedTime: candidates.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })

	return &FindPagesResult{
		Pages:       pages,
		TotalCount:  len(pages),
		Directory:   abs,
		SearchQuery: query,
	}, nil
}
