package services

import (
	"fmt"
	"strings"
)

// itemFragment is how an attached item is summarized in its transaction's name.
func itemFragment(name string, quantity int) string {
	return fmt.Sprintf("%s (x%d)", name, quantity)
}

// appendFragment adds a fragment to a comma-separated narrative.
func appendFragment(narrative, fragment string) string {
	return strings.TrimPrefix(strings.TrimSpace(narrative)+", "+fragment, ", ")
}

// replaceFragment swaps every occurrence of one fragment for another.
func replaceFragment(narrative, oldFragment, newFragment string) string {
	return strings.ReplaceAll(narrative, oldFragment, newFragment)
}

// removeFragment drops every segment equal to fragment and rejoins the rest.
func removeFragment(narrative, fragment string) string {
	parts := strings.Split(narrative, ",")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == fragment {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, ", ")
}
