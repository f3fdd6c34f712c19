package internal

import (
	"fmt"
	"strings"
)

// ChainAnnotation returns a parenthetical annotation like " (2 unlinked, 1 ambiguous)"
// for non-zero counts, or an empty string if both are zero.
func ChainAnnotation(unlinked, ambiguous int) string {
	var parts []string
	if unlinked > 0 {
		parts = append(parts, fmt.Sprintf("%d unlinked", unlinked))
	}
	if ambiguous > 0 {
		parts = append(parts, fmt.Sprintf("%d ambiguous", ambiguous))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
