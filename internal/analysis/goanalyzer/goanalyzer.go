// Package goanalyzer is the tree-sitter-backed Binding for Go source: it
// walks the parse tree for declarations and the calls made from inside
// function and method bodies, adapted from the same AST-traversal shape used for
// every other tree-sitter language binding in the ecosystem this engine
// was built alongside.
package goanalyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

const languageID = "go"

// Binding is the Go language Binding: discovers packages rooted at go.mod
// files and analyzes individual .go files via tree-sitter.
type Binding struct{}

// New returns a ready-to-register Go Binding.
func New() *Binding { return &Binding{} }

func (b *Binding) LanguageID() string   { return languageID }
func (b *Binding) PackageFile() string  { return "go.mod" }
func (b *Binding) Extensions() []string { return []string{".go"} }

// Discover walks root looking for go.mod files, treating each as the root
// of one package and collecting its .go files (non-recursive into nested
// modules).
func (b *Binding) Discover(root string) ([]analysis.PackageDescriptor, error) {
	var pkgs []analysis.PackageDescriptor
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(path) != "go.mod" {
			return nil
		}
		dir := filepath.Dir(path)
		name, version := moduleNameAndVersion(path)
		files, ferr := collectGoFiles(dir)
		if ferr != nil {
			return ferr
		}
		pkgs = append(pkgs, analysis.PackageDescriptor{
			Name:    name,
			Version: version,
			Root:    dir,
			Files:   files,
		})
		return nil
	})
	return pkgs, err
}

func moduleNameAndVersion(goModPath string) (string, string) {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return filepath.Dir(goModPath), ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module")), ""
		}
	}
	return filepath.Dir(goModPath), ""
}

func collectGoFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "vendor" || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if path != dir {
				if _, statErr := os.Stat(filepath.Join(path, "go.mod")); statErr == nil {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Analyze parses one Go source file with tree-sitter and extracts
// function/method/type/var/const declarations as symbols (var, const and
// type declarations inside function bodies included; const is recorded
// with the variable kind), and call expressions inside functions and
// methods as "calls" relationships. Imports are not extracted.
func (b *Binding) Analyze(path string, content []byte) (*semindex.Index, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	ix := semindex.New(path, languageID)
	w := &walker{path: path, content: content, ix: ix}
	w.extractSymbols(tree.RootNode())
	w.extractRelationships(tree.RootNode())
	return ix, nil
}

type walker struct {
	path    string
	content []byte
	ix      *semindex.Index
}

// defSCIPID computes a definition's id from everything that distinguishes
// it from a same-named sibling: file path, declaration kind, receiver type
// (empty for non-methods), name, and declaration line — matching
// textanalyzer.go's path+name+line scheme, extended with kind/receiver so
// two methods sharing a name but not a receiver (e.g. two String()
// methods in one file) never collide.
func (w *walker) defSCIPID(kind semindex.Kind, receiver, name string, line int) string {
	h := sha256.Sum256([]byte(w.path + "#" + string(kind) + "#" + receiver + "#" + name + "#" + strconv.Itoa(line)))
	return hex.EncodeToString(h[:8])
}

// refSCIPID computes a best-effort id for a call target known only by
// name at the call site: tree-sitter syntax alone cannot resolve which
// receiver or overload a bare identifier or selector expression targets.
// It is deliberately namespaced apart from defSCIPID so it can never
// collide with a real definition's id; an unresolved call target is a
// legal dangling reference, since nothing enforces that a relationship's
// target id resolve to a known symbol.
func (w *walker) refSCIPID(name string) string {
	h := sha256.Sum256([]byte(w.path + "#ref#" + name))
	return hex.EncodeToString(h[:8])
}

// receiverType returns a method_declaration's receiver type name (e.g.
// "Greeter" for "func (g *Greeter) Name() string", pointer stripped), or
// "" for a plain function_declaration.
func (w *walker) receiverType(node *sitter.Node) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.ChildCount()); i++ {
		param := recv.Child(i)
		if param == nil || param.Type() != "parameter_declaration" {
			continue
		}
		typeNode := param.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		return strings.TrimPrefix(typeNode.Content(w.content), "*")
	}
	return ""
}

func (w *walker) extractSymbols(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_declaration":
			w.addFuncOrMethod(child, semindex.KindFunction)
		case "method_declaration":
			w.addFuncOrMethod(child, semindex.KindMethod)
		case "type_declaration":
			w.addTypeDecl(child)
		case "var_declaration":
			w.addVarOrConstDecl(child, semindex.KindVariable)
		case "const_declaration":
			w.addVarOrConstDecl(child, semindex.KindVariable)
		}
		w.extractSymbols(child)
	}
}

func (w *walker) addFuncOrMethod(node *sitter.Node, kind semindex.Kind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.content)
	receiver := w.receiverType(node)
	line := int(node.StartPoint().Row) + 1
	col := int(node.StartPoint().Column) + 1
	endLine := int(node.EndPoint().Row) + 1
	endCol := int(node.EndPoint().Column) + 1

	id := w.defSCIPID(kind, receiver, name, line)
	w.ix.AddSymbol(semindex.Symbol{
		SCIPID:      id,
		Name:        name,
		Kind:        kind,
		File:        &w.path,
		Line:        line,
		Column:      col,
		DisplayName: name,
		Language:    languageID,
	})
	w.ix.AddOccurrence(semindex.Occurrence{
		SymbolID:         id,
		File:             w.path,
		Line:             line,
		Column:           col,
		EndLine:          endLine,
		EndColumn:        endCol,
		IsDefinition:     true,
		EnclosingEndLine: endLine,
	})
}

func (w *walker) addTypeDecl(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec == nil || spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(w.content)
		kind := semindex.KindClass
		if typeNode := spec.ChildByFieldName("type"); typeNode != nil && typeNode.Type() == "interface_type" {
			kind = semindex.KindInterface
		}
		line := int(spec.StartPoint().Row) + 1
		col := int(spec.StartPoint().Column) + 1
		endLine := int(spec.EndPoint().Row) + 1
		endCol := int(spec.EndPoint().Column) + 1

		id := w.defSCIPID(kind, "", name, line)
		w.ix.AddSymbol(semindex.Symbol{
			SCIPID:      id,
			Name:        name,
			Kind:        kind,
			File:        &w.path,
			Line:        line,
			Column:      col,
			DisplayName: name,
			Language:    languageID,
		})
		w.ix.AddOccurrence(semindex.Occurrence{
			SymbolID:         id,
			File:             w.path,
			Line:             line,
			Column:           col,
			EndLine:          endLine,
			EndColumn:        endCol,
			IsDefinition:     true,
			EnclosingEndLine: endLine,
		})
	}
}

func (w *walker) addVarOrConstDecl(node *sitter.Node, kind semindex.Kind) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec == nil {
			continue
		}
		if spec.Type() != "var_spec" && spec.Type() != "const_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			for j := 0; j < int(spec.ChildCount()); j++ {
				c := spec.Child(j)
				if c != nil && c.Type() == "identifier" {
					nameNode = c
					break
				}
			}
		}
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(w.content)
		line := int(spec.StartPoint().Row) + 1
		col := int(spec.StartPoint().Column) + 1

		id := w.defSCIPID(kind, "", name, line)
		w.ix.AddSymbol(semindex.Symbol{
			SCIPID:      id,
			Name:        name,
			Kind:        kind,
			File:        &w.path,
			Line:        line,
			Column:      col,
			DisplayName: name,
			Language:    languageID,
		})
		w.ix.AddOccurrence(semindex.Occurrence{
			SymbolID:     id,
			File:         w.path,
			Line:         line,
			Column:       col,
			IsDefinition: true,
		})
	}
}

func (w *walker) extractRelationships(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "call_expression" {
			w.addCallRelationship(child)
		}
		w.extractRelationships(child)
	}
}

func (w *walker) addCallRelationship(node *sitter.Node) {
	funcNode := node.ChildByFieldName("function")
	if funcNode == nil {
		return
	}
	var target string
	switch funcNode.Type() {
	case "identifier":
		target = funcNode.Content(w.content)
	case "selector_expression":
		if field := funcNode.ChildByFieldName("field"); field != nil {
			target = field.Content(w.content)
		}
	default:
		return
	}
	if target == "" {
		return
	}
	fromID := w.enclosingFunctionID(node)
	if fromID == "" {
		return
	}
	w.ix.AddRelationship(semindex.Relationship{
		FromSymbol: fromID,
		ToSymbol:   w.refSCIPID(target),
		Kind:       semindex.RelCalls,
	})
}

// enclosingFunctionID walks up from node to find the nearest enclosing
// function/method declaration and returns its symbol id, computed the
// same way as addFuncOrMethod so it matches the enclosing declaration's
// actual SCIPID.
func (w *walker) enclosingFunctionID(node *sitter.Node) string {
	for n := node.Parent(); n != nil; n = n.Parent() {
		if n.Type() == "function_declaration" || n.Type() == "method_declaration" {
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				kind := semindex.KindFunction
				if n.Type() == "method_declaration" {
					kind = semindex.KindMethod
				}
				line := int(n.StartPoint().Row) + 1
				return w.defSCIPID(kind, w.receiverType(n), nameNode.Content(w.content), line)
			}
		}
	}
	return ""
}

var _ analysis.Binding = (*Binding)(nil)
