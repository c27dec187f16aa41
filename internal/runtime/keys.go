package runtime

import (
	"strings"
	"unicode"
)

// NormalizeKey maps a context field name to its canonical snake_case form.
// "clientName", "ClientName", "client-name" and "client_name" all become "client_name";
// acronyms stay together ("IVRNumber" becomes "ivr_number").
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	runes := []rune(key)

	var b strings.Builder
	b.Grow(len(key) + 4)

	lastUnderscore := true // suppresses a leading separator
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		case unicode.IsUpper(r):
			if !lastUnderscore && i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}

// NormalizeContext returns a copy of patch with every key normalized.
// When two keys collapse to the same name, the one already in canonical form wins.
func NormalizeContext(patch map[string]string) map[string]string {
	out := make(map[string]string, len(patch))
	for k, v := range patch {
		nk := NormalizeKey(k)
		if nk == "" {
			continue
		}
		if _, exists := out[nk]; exists && k != nk {
			continue
		}
		out[nk] = v
	}
	return out
}
