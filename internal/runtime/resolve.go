package runtime

import (
	"regexp"
)

// Defaults are the values used for fields the context does not provide.
var Defaults = map[string]string{
	"client_name":       "Client",
	"phone_number":      "555-1234",
	"office_location":   "Main Office",
	"office_state":      "California",
	"adjusted_time":     "9:05",
	"adjusted_end_time": "17:05",
}

var tokenPattern = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Resolve replaces every {field} token in template.
//
// Token names are normalized, so {clientName} and {client_name} are the same field.
// A field resolves to its context value, then to its default; empty values count
// as missing. Tokens with neither are left untouched.
func Resolve(template string, ctx map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := NormalizeKey(token[1 : len(token)-1])
		if v := ctx[key]; v != "" {
			return v
		}
		if v, ok := Defaults[key]; ok {
			return v
		}
		return token
	})
}

// Placeholders lists the normalized field names referenced by template, in order of first use.
func Placeholders(template string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		key := NormalizeKey(m[1])
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
