package parse

import "regexp"

var versionRe = regexp.MustCompile(`(?i)Version\s+([^,\s]+)`)

// VersionToken extracts the token following the literal word "Version" up
// to the next comma or whitespace, as printed by switch-dialect "show
// version" output. Returns "" when absent.
func VersionToken(raw string) string {
	m := versionRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}
