package wizard

import (
	"fmt"
	"strconv"
	"strings"
)

const suggestionCount = 3

// SuggestNames proposes alternative plan names when name collides
// case-insensitively with an existing plan. Candidates continue the highest
// numeric "-N" suffix already in use among near matches: existing
// ["Launch", "Launch-1", "Launch-3"] and candidate "Launch" yield
// ["Launch-4", "Launch-5", "Launch-6"]. Returns nil when there is no
// collision.
func SuggestNames(name string, existing []string) []string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil
	}

	lower := strings.ToLower(trimmed)
	collision := false
	maxSuffix := 0
	for _, prev := range existing {
		prevLower := strings.ToLower(strings.TrimSpace(prev))
		if prevLower == lower {
			collision = true
			continue
		}
		rest, ok := strings.CutPrefix(prevLower, lower+"-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			continue
		}
		if n > maxSuffix {
			maxSuffix = n
		}
	}
	if !collision {
		return nil
	}

	suggestions := make([]string, 0, suggestionCount)
	for i := 1; i <= suggestionCount; i++ {
		suggestions = append(suggestions, fmt.Sprintf("%s-%d", trimmed, maxSuffix+i))
	}
	return suggestions
}
