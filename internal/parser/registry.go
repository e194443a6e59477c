package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// Parser is the contract every language plugin satisfies. The registry is
// open for extension — registering a parser for Java, Kotlin, Go, etc. only
// requires implementing this interface.
type Parser interface {
	Language() string
	SupportedExtensions() []string
	Parse(filePath string, source []byte) (*ParsedFile, error)
}

// Registry maps file extensions to the parser that handles them.
type Registry struct {
	parsers     map[string]Parser
	extToLang   map[string]string
	maxFileSize int64
}

// NewRegistry builds a registry pre-populated with the Python and
// JavaScript/TypeScript-class parsers. maxFileSize is the oversize ceiling
// in bytes (default 1 MiB per the batch config).
func NewRegistry(maxFileSize int64) *Registry {
	r := &Registry{
		parsers:     make(map[string]Parser),
		extToLang:   make(map[string]string),
		maxFileSize: maxFileSize,
	}
	r.Register(NewPythonParser())
	r.Register(NewJSTSParser())
	return r
}

// Register adds a parser to the registry, indexing it by its declared
// extensions. A later registration overrides an earlier one for a shared
// extension.
func (r *Registry) Register(p Parser) {
	r.parsers[p.Language()] = p
	for _, ext := range p.SupportedExtensions() {
		r.extToLang[ext] = p.Language()
	}
}

// DetectLanguage returns the language identifier registered for a file's
// extension.
func (r *Registry) DetectLanguage(filePath string) (string, bool) {
	lang, ok := r.extToLang[filepath.Ext(filePath)]
	return lang, ok
}

// SupportedExtension reports whether ext (including the leading dot, e.g.
// ".py") has a registered parser. Used as the Repository Fetcher's walk
// filter so the CKG Builder never receives a file it has no parser for.
func (r *Registry) SupportedExtension(ext string) bool {
	_, ok := r.extToLang[ext]
	return ok
}

// ParseFile dispatches to the registered parser for filePath's extension. An
// unsupported extension or an oversize file is not an error: it yields a
// ParsedFile with no entities and a descriptive note, so the Builder can
// still create a bare File node.
func (r *Registry) ParseFile(filePath string, source []byte) (*ParsedFile, error) {
	hash := hashContent(source)
	size := int64(len(source))

	lang, ok := r.DetectLanguage(filePath)
	if !ok {
		return &ParsedFile{
			FilePath:    filePath,
			ContentHash: hash,
			SizeBytes:   size,
			Errors:      []string{fmt.Sprintf("unsupported language for extension %q", filepath.Ext(filePath))},
		}, nil
	}

	if size > r.maxFileSize {
		return &ParsedFile{
			FilePath:    filePath,
			Language:    lang,
			ContentHash: hash,
			SizeBytes:   size,
			Errors:      []string{"oversize"},
		}, nil
	}

	p := r.parsers[lang]
	pf, err := p.Parse(filePath, source)
	if err != nil {
		return &ParsedFile{
			FilePath:    filePath,
			Language:    lang,
			ContentHash: hash,
			SizeBytes:   size,
			Errors:      []string{err.Error()},
		}, nil
	}

	pf.ContentHash = hash
	pf.SizeBytes = size
	return pf, nil
}

func hashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
