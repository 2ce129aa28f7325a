package systemprompt

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.txt
var promptFiles embed.FS

// taskTemplate is the user message that starts a conversion run.
const taskTemplate = "read and analyse the file %s, do the lean conversion"

// Load concatenates all embedded prompt files in lexical order, separated by
// a blank line.
func Load() (string, error) {
	names, err := promptNames()
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for idx, name := range names {
		data, err := promptFiles.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("failed to read system prompt file %q: %w", name, err)
		}
		builder.Write(data)
		if len(data) == 0 || data[len(data)-1] != '\n' {
			builder.WriteString("\n")
		}
		if idx < len(names)-1 {
			builder.WriteString("\n")
		}
	}

	return builder.String(), nil
}

// Task returns the instruction that asks the agent to convert the markdown
// proof at path.
func Task(path string) string {
	return fmt.Sprintf(taskTemplate, path)
}

func promptNames() ([]string, error) {
	entries, err := fs.ReadDir(promptFiles, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded system prompt files: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("no system prompt files found in embedded set")
	}

	sort.Strings(names)
	return names, nil
}
