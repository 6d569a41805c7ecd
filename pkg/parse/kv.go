// Package parse turns raw terminal output from managed devices into
// structured records. All parsers are pure functions: malformed input that
// merely yields no matches produces an empty result, and only structurally
// nonsensical input (e.g. a missing mandatory header) is an error.
package parse

import "strings"

// Field returns the value of the first line whose text case-insensitively
// contains label, taken as everything after the first colon, trimmed.
// Returns "" when no line matches.
//
// The match is a substring test, not a tokenized key lookup, so a label
// that also appears in a free-text value can false-match. This mirrors the
// behavior the inventory was built on; callers pass labels specific enough
// to be safe for their command output (e.g. "serial-number:").
func Field(raw, label string) string {
	label = strings.ToLower(label)
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), label) {
			continue
		}
		_, rest, ok := strings.Cut(line, ":")
		if !ok {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return ""
}
