// Package normalize canonicalizes the raw phone and timestamp values coming
// off both ledgers so that equality comparison works as the matching key.
package normalize

import "strings"

// Phone canonicalizes a raw phone string to E.164, or "" when nothing
// usable remains. Applied identically to both ledgers.
func Phone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case strings.HasPrefix(raw, "+"):
		// Already E.164-shaped; trust the source.
		return raw
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	case len(d) == 10:
		return "+1" + d
	case len(d) > 0:
		return "+" + d
	default:
		return ""
	}
}
