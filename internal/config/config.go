// Package config loads and lays out the per-workspace configuration: the
// `.semindex/` cache directory, guardrail globs that exclude paths from
// indexing and watching, and an optional JSONC project config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/muhammadmuzzammil1998/jsonc"

	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
)

// Guardrails defines glob patterns excluded from indexing and watching.
type Guardrails struct {
	ExcludeGlobs []string `json:"excludeGlobs,omitempty"`
}

// ProjectConfig mirrors the optional `.semindex/config.jsonc` file.
type ProjectConfig struct {
	SchemaVersion string `json:"schemaVersion"`
	Project       struct {
		Name            string `json:"name"`
		LanguageID      string `json:"languageId"`
		AnalyzerVersion string `json:"analyzerVersion"`
	} `json:"project"`
	Guardrails Guardrails `json:"guardrails"`
}

// Layout is the resolved set of paths for one workspace.
type Layout struct {
	Root       string
	WorkDir    string // <root>/.semindex
	CacheDir   string // <root>/.semindex/cache
	ConfigFile string // <root>/.semindex/config.jsonc
}

// EnsureLayout creates the `.semindex` directory hierarchy under root.
func EnsureLayout(root string) (Layout, error) {
	workDir := filepath.Join(root, ".semindex")
	cacheDir := filepath.Join(workDir, "cache")
	for _, d := range []string{workDir, cacheDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Layout{}, semerr.Config("create "+d, err)
		}
	}
	return Layout{
		Root:       root,
		WorkDir:    workDir,
		CacheDir:   cacheDir,
		ConfigFile: filepath.Join(workDir, "config.jsonc"),
	}, nil
}

// LoadProjectConfig parses `.semindex/config.jsonc` if present; a missing
// file is not an error — callers fall back to defaults.
func LoadProjectConfig(layout Layout) (*ProjectConfig, error) {
	data, err := os.ReadFile(layout.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, semerr.Config("read "+layout.ConfigFile, err)
	}
	clean := jsonc.ToJSON(data)
	var cfg ProjectConfig
	if err := json.Unmarshal(clean, &cfg); err != nil {
		return nil, semerr.Config("parse "+layout.ConfigFile, err)
	}
	return &cfg, nil
}

// LoadGuardrails merges default exclude globs with any user-supplied
// overrides from the project config.
func LoadGuardrails(layout Layout) Guardrails {
	cfg, err := LoadProjectConfig(layout)
	def := defaultGuardrails()
	if err != nil || cfg == nil {
		return def
	}
	return Guardrails{ExcludeGlobs: mergeGlobs(def.ExcludeGlobs, cfg.Guardrails.ExcludeGlobs)}
}

func defaultGuardrails() Guardrails {
	return Guardrails{ExcludeGlobs: []string{
		".git/**",
		".semindex/**",
		"node_modules/**",
		"vendor/**",
		"dist/**",
		"build/**",
		"**/*.min.*",
		"**/*.generated.*",
	}}
}

func mergeGlobs(defaults, user []string) []string {
	seen := make(map[string]struct{})
	var merged []string
	appendIfMissing := func(globs []string) {
		for _, g := range globs {
			norm := normalizeGlob(g)
			if norm == "" {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			merged = append(merged, norm)
		}
	}
	appendIfMissing(defaults)
	appendIfMissing(user)
	return merged
}

func normalizeGlob(g string) string {
	trimmed := strings.TrimSpace(g)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	for strings.Contains(trimmed, "//") {
		trimmed = strings.ReplaceAll(trimmed, "//", "/")
	}
	return filepath.ToSlash(trimmed)
}

// Excluded reports whether path matches any of g's exclude globs.
func (g Guardrails) Excluded(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, glob := range g.ExcludeGlobs {
		if glob == "" {
			continue
		}
		if ok, err := doublestar.Match(glob, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// WriteProjectConfig writes cfg as plain JSON (not JSONC) to the config
// file path, overwriting any existing content.
func WriteProjectConfig(layout Layout, cfg *ProjectConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return semerr.Config("marshal project config", err)
	}
	if err := os.WriteFile(layout.ConfigFile, data, 0o644); err != nil {
		return semerr.Config("write "+layout.ConfigFile, fmt.Errorf("%w", err))
	}
	return nil
}
