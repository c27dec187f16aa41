package runtime

import (
	"strings"

	"github.com/aretw0/carecall/pkg/domain"
)

// Classify returns the first accepted category with a keyword contained in the input.
//
// Priority is the order of accepted, then the keyword order of each category.
// Matching is plain substring containment on the trimmed, lowercased input.
// A category missing from the table matches on its own name.
func Classify(table domain.CategoryTable, accepted []string, input string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return "", false
	}

	for _, name := range accepted {
		keywords, ok := table.Lookup(name)
		if !ok {
			keywords = []string{name}
		}
		for _, kw := range keywords {
			kw = strings.ToLower(kw)
			if kw != "" && strings.Contains(text, kw) {
				return name, true
			}
		}
	}
	return "", false
}
