// Package ignore loads exclude patterns from a project's .bundleignore.
package ignore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// FileName is the ignore file looked up at the project root.
const FileName = ".bundleignore"

// Load reads FileName from the root of fsys and returns its patterns.
// A missing file yields no patterns and no error. Blank lines and lines
// starting with # are skipped.
func Load(fsys fs.FS) ([]string, error) {
	data, err := fs.ReadFile(fsys, FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	return parse(data)
}

func parse(data []byte) ([]string, error) {
	patterns := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", FileName, err)
	}
	return patterns, nil
}
