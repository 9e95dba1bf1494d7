// Package tmpl renders Go templates for file paths such as report outputs.
package tmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// slug makes s safe to use as a single path element. Anything other than
// ASCII letters, digits, '.', '_' and '-' becomes '-'.
func slug(s string) string {
	if s == "" {
		return "_"
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	out := b.String()
	if out == "." || out == ".." {
		return strings.Repeat("_", len(out))
	}
	return out
}

func formatTime(layout string, t time.Time) string {
	return t.Format(layout)
}

var funcs = template.FuncMap{
	"slug":   slug,
	"format": formatTime,
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - slug: Replace characters that are unsafe in a file name
//   - format: Format a time.Time with a Go layout, e.g. {{ format "2006-01-02" .Time }}
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

// Validate parses tmpl without executing it.
func Validate(tmpl string) error {
	if _, err := template.New("").Funcs(funcs).Parse(tmpl); err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return nil
}
