// Package textanalyzer is the generic fallback Binding: a line-oriented
// regexp scan for common declaration shapes, used for any source file
// whose language has no dedicated Binding registered. It never fails
// analysis outright — files it cannot make sense of simply yield an empty
// fragment, since the fallback is an availability guarantee, not an
// accuracy one.
package textanalyzer

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

const languageID = "generic-text"

var declPatterns = []struct {
	re   *regexp.Regexp
	kind semindex.Kind
}{
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_]\w*)\s*\(`), semindex.KindFunction},
	{regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)\s*\(`), semindex.KindFunction},
	{regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_]\w*)`), semindex.KindClass},
	{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_]\w*)`), semindex.KindInterface},
}

// Binding is the regexp-based fallback; it registers no Extensions of its
// own — callers select it explicitly when no dedicated Binding matched.
type Binding struct{}

// New returns the fallback Binding.
func New() *Binding { return &Binding{} }

func (b *Binding) LanguageID() string   { return languageID }
func (b *Binding) PackageFile() string  { return "" }
func (b *Binding) Extensions() []string { return nil }

// Discover treats every regular file under root as belonging to a single
// synthetic package rooted at root, since generic text has no manifest
// format to key package boundaries on.
func (b *Binding) Discover(root string) ([]analysis.PackageDescriptor, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []analysis.PackageDescriptor{{Name: filepath.Base(root), Root: root, Files: files}}, nil
}

// Analyze scans content line by line for the declaration shapes in
// declPatterns, adding one symbol (with a single defining occurrence) per
// match. No relationships are extracted: without a grammar, call and
// import targets cannot be distinguished reliably enough to be worth the
// false positives.
func (b *Binding) Analyze(path string, content []byte) (*semindex.Index, error) {
	ix := semindex.New(path, languageID)
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		for _, p := range declPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			lineNo := i + 1
			col := strings.Index(line, name) + 1
			id := scipID(path, name, lineNo)
			ix.AddSymbol(semindex.Symbol{
				SCIPID:      id,
				Name:        name,
				Kind:        p.kind,
				File:        &path,
				Line:        lineNo,
				Column:      col,
				DisplayName: name,
				Language:    languageID,
			})
			ix.AddOccurrence(semindex.Occurrence{
				SymbolID:     id,
				File:         path,
				Line:         lineNo,
				Column:       col,
				IsDefinition: true,
			})
			break
		}
	}
	return ix, nil
}

func scipID(path, name string, line int) string {
	return path + "#" + name + "#" + strconv.Itoa(line)
}

var _ analysis.Binding = (*Binding)(nil)
