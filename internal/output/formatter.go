// Package output turns received lines into what the CLI prints.
package output

import (
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Formatter selects and reshapes lines. The zero value passes every line
// through with a trailing carriage return removed.
type Formatter struct {
	// TrimPrefix, when set, is stripped from each line; lines without it
	// are dropped. "data: " turns server-sent events into their payloads.
	TrimPrefix string
	// Field is a gjson path extracted from each line. Lines that are not
	// JSON, or have nothing at the path, are dropped.
	Field string
	// Skip lists payloads (after prefix trimming) that are dropped, such
	// as "[DONE]".
	Skip []string
}

// Format returns the text to print for line, or false to drop it.
func (f Formatter) Format(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")

	if f.TrimPrefix != "" {
		rest, ok := strings.CutPrefix(line, f.TrimPrefix)
		if !ok {
			return "", false
		}
		line = rest
	}
	if slices.Contains(f.Skip, strings.TrimSpace(line)) {
		return "", false
	}
	if f.Field == "" {
		return line, true
	}

	if !gjson.Valid(line) {
		return "", false
	}
	r := gjson.Get(line, f.Field)
	if !r.Exists() {
		return "", false
	}
	return r.String(), true
}
