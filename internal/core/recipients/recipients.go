// Package recipients parses and stores lists of recipient handles.
package recipients

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// maxHandleLen is the longest handle the platform accepts.
const maxHandleLen = 30

// Parse reads one handle per line. Blank lines and lines starting with '#' are
// skipped, a leading '@' is stripped, and duplicates after the first occurrence
// are dropped. Input order is preserved.
func Parse(r io.Reader) ([]string, error) {
	var (
		handles []string
		seen    = make(map[string]bool)
		scanner = bufio.NewScanner(r)
	)

	for scanner.Scan() {
		h := normalize(scanner.Text())
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		handles = append(handles, h)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}

	return handles, nil
}

// ParseText is Parse over a string.
func ParseText(text string) []string {
	handles, _ := Parse(strings.NewReader(text))
	return handles
}

func normalize(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	return strings.TrimPrefix(line, "@")
}

// Validate checks a single handle against the platform's username rules:
// letters, digits, periods and underscores, at most 30 characters.
func Validate(handle string) error {
	if handle == "" {
		return fmt.Errorf("handle is empty")
	}
	if len(handle) > maxHandleLen {
		return fmt.Errorf("handle %q exceeds %d characters", handle, maxHandleLen)
	}
	for _, r := range handle {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_') {
			return fmt.Errorf("handle %q contains invalid character %q", handle, r)
		}
	}
	return nil
}

// LoadFiles reads every file matching pattern (doublestar syntax, e.g.
// "lists/**/*.txt") in lexical order and merges their handles. A pattern with
// no glob characters is treated as a single path that must exist.
func LoadFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("no recipient files match %q", pattern)
	}

	slices.Sort(matches)

	var (
		all  []string
		seen = make(map[string]bool)
	)

	for _, path := range matches {
		handles, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for _, h := range handles {
			if seen[h] {
				continue
			}
			seen[h] = true
			all = append(all, h)
		}
	}

	return all, nil
}

func loadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipients file: %w", err)
	}
	defer func() { _ = f.Close() }()

	handles, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return handles, nil
}

// WriteFile stores handles one per line, atomically replacing path.
func WriteFile(path string, handles []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create recipients directory: %w", err)
	}

	data := strings.Join(handles, "\n")
	if len(handles) > 0 {
		data += "\n"
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename recipients file: %w", err)
	}
	return nil
}
