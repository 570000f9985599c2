package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

// runLines feeds lines (newline-joined JSON-RPC requests) through a fresh
// engine and returns each decoded response line.
func runLines(t *testing.T, root string, lines []string) []map[string]any {
	t.Helper()
	e := newEngine(root, defaultRegistry())
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out strings.Builder
	if err := e.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	var responses []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("unmarshal response %q: %v", line, err)
		}
		responses = append(responses, m)
	}
	return responses
}

// TestInitializeIndexesAndServesSQL exercises a query by kind end to end:
// a discovered Go package lands in the Store and is queryable through the
// RPC facade right after initialize.
func TestInitializeIndexesAndServesSQL(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/demo\n\ngo 1.21\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nfunc Greet() string { return \"hi\" }\n\nfunc main() { Greet() }\n")

	initReq := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"root_path":%q,"language_id":"go"}}`, root)
	sqlReq := `{"jsonrpc":"2.0","id":2,"method":"sql","params":{"query":"SELECT name FROM symbols WHERE kind = 'function'","format":"json"}}`
	resp := runLines(t, root, []string{initReq, sqlReq})
	if len(resp) != 2 {
		t.Fatalf("expected 2 responses, got %d: %+v", len(resp), resp)
	}

	initResult, _ := resp[0]["result"].(map[string]any)
	if initResult["success"] != true {
		t.Fatalf("initialize result = %+v, want success=true", initResult)
	}
	if fc, _ := initResult["symbol_count"].(float64); fc <= 0 {
		t.Errorf("symbol_count = %v, want > 0", initResult["symbol_count"])
	}

	sqlResult, _ := resp[1]["result"].(map[string]any)
	if sqlResult["success"] != true {
		t.Fatalf("sql result = %+v, want success=true", sqlResult)
	}
	payload, _ := sqlResult["json"].(map[string]any)
	rows, _ := payload["rows"].([]any)
	found := false
	for _, r := range rows {
		row, _ := r.(map[string]any)
		if row["name"] == "Greet" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Greet among function symbols, got rows %+v", rows)
	}
}

// TestSQLRejectsWriteStatement exercises the read-only query gate end to
// end through the RPC facade.
func TestSQLRejectsWriteStatement(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/demo\n\ngo 1.21\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nfunc main() {}\n")

	initReq := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"root_path":%q,"language_id":"go"}}`, root)
	sqlReq := `{"jsonrpc":"2.0","id":2,"method":"sql","params":{"query":"DELETE FROM symbols"}}`
	resp := runLines(t, root, []string{initReq, sqlReq})
	if len(resp) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resp))
	}
	sqlResult, _ := resp[1]["result"].(map[string]any)
	if sqlResult["success"] != false {
		t.Errorf("expected write statement to be rejected, got %+v", sqlResult)
	}
}

// TestShutdownClosesStore exercises the shutdown transition through the
// full facade: shutdown after a successful initialize reports success.
func TestShutdownClosesStore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/demo\n\ngo 1.21\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nfunc main() {}\n")

	initReq := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"root_path":%q,"language_id":"go"}}`, root)
	resp := runLines(t, root, []string{
		initReq,
		`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`,
	})
	if len(resp) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resp))
	}
	shutdownResult, _ := resp[1]["result"].(map[string]any)
	if shutdownResult["success"] != true {
		t.Errorf("shutdown result = %+v, want success=true", shutdownResult)
	}
}
