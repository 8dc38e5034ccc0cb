package artifacts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_FindPages(t *testing.T) {
	loader, root := newTestLoader(t, 0)

	writePage(t, filepath.Join(root, "register_1890", "page_0001"), fullPage())
	writePage(t, filepath.Join(root, "register_1890", "page_0002"), map[string]string{
		CandidatesFile: candidatesJSON,
		ResultFile:     `{}`,
	})
	writePage(t, filepath.Join(root, "register_1921", "page_0001"), map[string]string{CandidatesFile: candidatesJSON})
	writePage(t, filepath.Join(root, "register_1921", "scans"), map[string]string{TokensFile: tokensJSON})

	tests := []struct {
		name          string
		directory     string
		query         string
		expectedCount int
		expectedError bool
	}{
		{name: "all pages from root", directory: "", expectedCount: 3},
		{name: "query by register", directory: root, query: "1890", expectedCount: 2},
		{name: "query is case insensitive", directory: root, query: "REGISTER_1921", expectedCount: 1},
		{name: "relative subdirectory", directory: "register_1921", expectedCount: 1},
		{name: "no match", directory: root, query: "1999", expectedCount: 0},
		{name: "missing directory", directory: "nope", expectedError: true},
		{name: "outside root", directory: os.TempDir(), expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := loader.FindPages(tt.directory, tt.query)
			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.TotalCount != tt.expectedCount {
				t.Errorf("expected %d pages, got %d: %+v", tt.expectedCount, result.TotalCount, result.Pages)
			}
			if len(result.Pages) != result.TotalCount {
				t.Errorf("TotalCount %d does not match %d pages", result.TotalCount, len(result.Pages))
			}
		})
	}
}

func TestLoader_FindPages_ResultFlag(t *testing.T) {
	loader, root := newTestLoader(t, 0)
	writePage(t, filepath.Join(root, "a"), map[string]string{CandidatesFile: candidatesJSON})
	writePage(t, filepath.Join(root, "b"), map[string]string{CandidatesFile: candidatesJSON, ResultFile: `{}`})

	result, err := loader.FindPages(root, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalCount != 2 {
		t.Fatalf("expected 2 pages, got %d", result.TotalCount)
	}
	if result.Pages[0].Name != "a" || result.Pages[0].HasResult {
		t.Errorf("unexpected first page: %+v", result.Pages[0])
	}
	if result.Pages[1].Name != "b" || !result.Pages[1].HasResult {
		t.Errorf("unexpected second page: %+v", result.Pages[1])
	}
}

func TestPathValidator(t *testing.T) {
	root := t.TempDir()
	v, err := NewPathValidator(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewPathValidator(""); err == nil {
		t.Error("expected error for empty root")
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"root itself", root, false},
		{"relative child", "book/page", false},
		{"absolute child", filepath.Join(root, "x"), false},
		{"parent traversal", "../escape", true},
		{"nested traversal", "a/../../escape", true},
		{"empty", "", true},
		{"null bytes only", "\x00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Resolve(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Resolve(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v, err := NewPathValidator(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := v.Resolve("link"); err == nil {
		t.Error("expected symlink pointing outside the root to be rejected")
	}
}
