// Package artifacts reads and writes the per-page JSON documents exchanged
// with the OCR pipeline. It is the only place the review-routing service
// touches disk; the scoring engine receives already-decoded documents.
package artifacts

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/a3tai/review-routing/internal/scoring"
)

// Artifact file names inside a page directory
const (
	TokensFile     = "tokens_normalized.json"
	TableFile      = "table_provenance.json"
	CandidatesFile = "record_candidates.json"
	ProvenanceFile = "record_candidates_provenance.json"
	ResultFile     = "scoring_v2.json"
)

// InputFiles lists the input documents in digest order
var InputFiles = []string{TokensFile, TableFile, CandidatesFile, ProvenanceFile}

var (
	// ErrArtifactTooLarge is returned when a document exceeds the size limit
	ErrArtifactTooLarge = errors.New("artifact too large")
	// ErrInvalidArtifact is returned when a document is not valid JSON or
	// does not have the expected shape
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Page is the decoded set of input documents of one page
type Page struct {
	Dir    string
	Inputs scoring.Inputs

	raw map[string][]byte
}

// Present returns the names of the documents that were supplied
func (p *Page) Present() []string {
	var names []string
	for _, name := range InputFiles {
		if _, ok := p.raw[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Digest returns the hex BLAKE3 digest of the raw input documents. Each
// document contributes its name and length-prefixed bytes; an absent
// document contributes a zero length.
func (p *Page) Digest() string {
	hasher := blake3.New()
	var size [8]byte
	for _, name := range InputFiles {
		data := p.raw[name]
		_, _ = hasher.Write([]byte(name))
		binary.BigEndian.PutUint64(size[:], uint64(len(data)))
		_, _ = hasher.Write(size[:])
		_, _ = hasher.Write(data)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Loader reads page directories under a fixed artifact root
type Loader struct {
	maxFileSize int64
	paths       *PathValidator
	schemas     schemaSet
}

// NewLoader creates a loader confined to root. A maxFileSize of zero or less
// disables the size limit.
func NewLoader(root string, maxFileSize int64) (*Loader, error) {
	paths, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Loader{
		maxFileSize: maxFileSize,
		paths:       paths,
		schemas:     schemas,
	}, nil
}

// Root returns the artifact root
func (l *Loader) Root() string {
	return l.paths.Root()
}

// ResolveDir validates a page directory path and returns it in absolute form
func (l *Loader) ResolveDir(dir string) (string, error) {
	abs, err := l.paths.Resolve(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("page directory does not exist: %s", dir)
		}
		return "", fmt.Errorf("cannot access page directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dir)
	}
	return abs, nil
}

// Load reads the four input documents of a page directory. A missing
// document is treated as empty.
func (l *Loader) Load(dir string) (*Page, error) {
	abs, err := l.ResolveDir(dir)
	if err != nil {
		return nil, err
	}

	docs := make(map[string][]byte, len(InputFiles))
	for _, name := range InputFiles {
		data, err := l.readFile(filepath.Join(abs, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		docs[name] = data
	}

	page, err := l.Decode(docs)
	if err != nil {
		return nil, err
	}
	page.Dir = abs
	return page, nil
}

// Decode validates and decodes raw documents keyed by file name. Documents
// that are missing or blank are treated as empty.
func (l *Loader) Decode(docs map[string][]byte) (*Page, error) {
	page := &Page{raw: make(map[string][]byte, len(docs))}

	for _, name := range InputFiles {
		data, ok := docs[name]
		if !ok || len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if l.maxFileSize > 0 && int64(len(data)) > l.maxFileSize {
			return nil, fmt.Errorf("%s: %w: %d bytes (max: %d bytes)",
				name, ErrArtifactTooLarge, len(data), l.maxFileSize)
		}
		if err := l.schemas.validate(name, data); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, ErrInvalidArtifact, err)
		}
		if err := decodeInto(&page.Inputs, name, data); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, ErrInvalidArtifact, err)
		}
		page.raw[name] = data
	}

	return page, nil
}

func decodeInto(in *scoring.Inputs, name string, data []byte) error {
	switch name {
	case TokensFile:
		in.Tokens = &scoring.TokensDoc{}
		return json.Unmarshal(data, in.Tokens)
	case TableFile:
		in.Table = &scoring.TableDoc{}
		return json.Unmarshal(data, in.Table)
	case CandidatesFile:
		in.Candidates = &scoring.CandidatesDoc{}
		return json.Unmarshal(data, in.Candidates)
	case ProvenanceFile:
		in.Provenance = &scoring.ProvenanceDoc{}
		return json.Unmarshal(data, in.Provenance)
	default:
		return fmt.Errorf("unknown artifact %s", name)
	}
}

// readFile reads a document, refusing files larger than the limit
func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: is a directory", ErrInvalidArtifact)
	}
	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrArtifactTooLarge, info.Size(), l.maxFileSize)
	}

	var r io.Reader = f
	if l.maxFileSize > 0 {
		r = io.LimitReader(f, l.maxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// WriteResult writes the scoring result next to the page inputs and returns
// the path written. The file is replaced atomically.
func (l *Loader) WriteResult(dir string, result *scoring.Result) (string, error) {
	abs, err := l.ResolveDir(dir)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(abs, ResultFile)
	tmp, err := os.CreateTemp(abs, ResultFile+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create result file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	return path, nil
}
