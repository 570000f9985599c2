// Package cli implements the command dispatch for the engine's binary:
// `init` scaffolds a workspace's `.semindex` layout, `serve` runs the
// JSON-RPC lifecycle facade over stdio. Adapted from this codebase's
// top-level subcommand-switch entrypoint.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/analysis/goanalyzer"
	"github.com/wenkaifan0720/code-context-sub001/internal/analysis/textanalyzer"
	"github.com/wenkaifan0720/code-context-sub001/internal/config"
)

// Run dispatches args[0] to the matching subcommand.
func Run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "init":
		return cmdInit(args[1:])
	case "serve":
		return cmdServe(args[1:])
	case "version", "--version", "-v":
		fmt.Println("code-context-sub001 0.1.0")
		return nil
	case "help", "-h", "--help":
		return usage()
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage() error {
	fmt.Println(`code-context-sub001 commands: init | serve

Examples:
  code-context-sub001 init --root .
  code-context-sub001 serve --root .   # start the JSON-RPC lifecycle facade on stdio`)
	return nil
}

// defaultRegistry returns the built-in Analyzer/Binding dispatch table:
// the tree-sitter Go binding plus the generic regex fallback.
func defaultRegistry() *analysis.Registry {
	reg := analysis.NewRegistry()
	reg.Register(goanalyzer.New())
	reg.Register(textanalyzer.New())
	return reg
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	layout, err := config.EnsureLayout(rootPath)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(layout.ConfigFile); statErr == nil && !*force {
		fmt.Printf("config already exists at %s (use --force to overwrite)\n", layout.ConfigFile)
		return nil
	}

	cfg := &config.ProjectConfig{SchemaVersion: "1.0.0"}
	cfg.Project.Name = filepath.Base(rootPath)
	cfg.Project.LanguageID = "go"
	cfg.Project.AnalyzerVersion = "1"
	if err := config.WriteProjectConfig(layout, cfg); err != nil {
		return err
	}
	fmt.Printf("initialized workspace layout in %s\n", layout.WorkDir)
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}

	engine := newEngine(rootPath, defaultRegistry())
	fmt.Fprintln(os.Stderr, "code-context-sub001: JSON-RPC facade listening on stdin/stdout")
	return engine.Serve(context.Background(), os.Stdin, os.Stdout)
}
