package systemprompt

import (
	"os"
	"sort"
	"strings"
	"testing"
)

func TestLoadConcatenatesPromptFiles(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("read system_prompt dir: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) < 2 {
		t.Fatalf("expected several .txt files in system_prompt, got %v", names)
	}

	sort.Strings(names)

	var parts []string
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		content := string(data)
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		parts = append(parts, content)
	}

	prompt, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if prompt != strings.Join(parts, "\n") {
		t.Fatalf("Load() output mismatch")
	}
}

func TestPromptMentionsLeanAndTools(t *testing.T) {
	prompt, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	for _, want := range []string{"Lean 4", "<name>.lean", "add_todo", "run_in_bg"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to mention %q", want)
		}
	}
}

func TestTask(t *testing.T) {
	got := Task("/work/ring.md")
	want := "read and analyse the file /work/ring.md, do the lean conversion"
	if got != want {
		t.Fatalf("Task() = %q, want %q", got, want)
	}
}
