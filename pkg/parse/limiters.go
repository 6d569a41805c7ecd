package parse

import (
	"regexp"
	"strings"
)

// Limiter is one bandwidth-shaping rule extracted from a queue export.
type Limiter struct {
	Name      string
	Bandwidth string
	Target    string
}

// blockStart is the keyword opening one logical rule in the export.
const blockStart = "add"

var (
	nameRe     = keyRe("name")
	maxLimitRe = keyRe("max-limit")
	targetRe   = keyRe("target")
	spaceRe    = regexp.MustCompile(`\s+`)
)

// keyRe matches key=<value> where value is either quoted (with escapes)
// or a bare token.
func keyRe(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(key) + `=("(?:[^"\\]|\\.)*"|\S+)`)
}

// LimiterBlocks parses a queue-rule export in which each logical rule may
// wrap across physical lines with a trailing backslash. Comment and blank
// lines are dropped; a new block starts at any line beginning with the
// block-start keyword. Blocks missing any of name, max-limit, or target
// are discarded whole: a partial record is never emitted.
func LimiterBlocks(raw string) ([]Limiter, error) {
	var blocks []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, joinBlock(current))
			current = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, blockStart+" ") || trimmed == blockStart {
			flush()
			current = []string{trimmed}
			continue
		}
		if current != nil {
			current = append(current, trimmed)
		}
	}
	flush()

	limiters := []Limiter{}
	for _, block := range blocks {
		name, okName := extract(nameRe, block)
		limit, okLimit := extract(maxLimitRe, block)
		target, okTarget := extract(targetRe, block)
		if !okName || !okLimit || !okTarget {
			continue
		}
		limiters = append(limiters, Limiter{Name: name, Bandwidth: limit, Target: target})
	}
	return limiters, nil
}

// joinBlock collapses a wrapped rule to one line: trailing continuation
// backslashes removed, internal whitespace squeezed to single spaces.
func joinBlock(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, strings.TrimSuffix(l, "\\"))
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.Join(parts, " "), " "))
}

// extract pulls one key=value field out of a joined block, stripping
// surrounding quotes and escape slashes from the value.
func extract(re *regexp.Regexp, block string) (string, bool) {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return "", false
	}
	return Unquote(m[1]), true
}

// Unquote strips surrounding double quotes and unescapes \" and \\ in a
// field value. Bare values are returned unchanged.
func Unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
		v = strings.ReplaceAll(v, `\"`, `"`)
		v = strings.ReplaceAll(v, `\\`, `\`)
	}
	return v
}
