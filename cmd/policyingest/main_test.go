package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const policyText = "Our organisation uses automated systems to screen job applicants. " +
	"Every automated decision is reviewed by a trained member of staff before it takes effect."

func runApp(t *testing.T, stdin string, args ...string) (map[string]string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"policyingest"}, args...))

	var got map[string]string
	if out.Len() > 0 {
		if jerr := json.Unmarshal(out.Bytes(), &got); jerr != nil {
			t.Fatalf("output is not JSON: %q", out.String())
		}
	}
	return got, err
}

func TestFileCommand(t *testing.T) {
	// WHAT: `file` extracts a local text file and reports its base name as source.
	// WHY: Batch use from scripts.
	path := filepath.Join(t.TempDir(), "policy.txt")
	if err := os.WriteFile(path, []byte(policyText+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := runApp(t, "", "file", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got["content"] != policyText || got["source"] != "policy.txt" {
		t.Errorf("output = %v", got)
	}
}

func TestFileCommand_TooLarge(t *testing.T) {
	// WHAT: A file over --max-upload-mb fails with size_exceeded.
	// WHY: The CLI applies the same ceiling as the API.
	path := filepath.Join(t.TempDir(), "big.txt")
	if err := os.WriteFile(path, bytes.Repeat([]byte("a"), 1<<20+1), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := runApp(t, "", "--max-upload-mb", "1", "file", path)
	if err == nil {
		t.Fatal("expected error")
	}
	if got["class"] != "size_exceeded" || got["error"] != "Document exceeds max size of 1MB" {
		t.Errorf("output = %v", got)
	}
}

func TestTextCommand_Stdin(t *testing.T) {
	// WHAT: `text -` reads standard input and trims it.
	// WHY: Piping text into the pipeline.
	got, err := runApp(t, "\n  pasted policy  \n", "text", "-")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got["content"] != "pasted policy" || got["source"] != "Pasted text" {
		t.Errorf("output = %v", got)
	}
}

func TestCommands_BadArgs(t *testing.T) {
	// WHAT: Missing arguments and bad flags fail without output.
	// WHY: Scripts rely on the exit status.
	if _, err := runApp(t, "", "url"); err == nil {
		t.Error("url without argument must fail")
	}
	if _, err := runApp(t, "", "--log-level", "loud", "text", "x"); err == nil {
		t.Error("unknown log level must fail")
	}
	got, err := runApp(t, "", "file", "policy.exe")
	if err == nil || got != nil {
		t.Errorf("missing file: err=%v output=%v", err, got)
	}
}
