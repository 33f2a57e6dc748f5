package symbols

import "strings"

const (
	MatchExact     = "exact"
	MatchSubstring = "substring"
)

// EntryMatcher decides whether an exported symbol marks a program entry point.
//
// Exact mode compares names after dropping one leading underscore, so the
// Mach-O spelling "_main" and the ELF spelling "main" are the same routine.
// Substring mode is a case-sensitive containment test on the raw name and will
// also flag names such as "domain_init" for marker "main".
type EntryMatcher struct {
	Symbol string
	Mode   string
}

func NewEntryMatcher(symbol, mode string) EntryMatcher {
	if mode == "" {
		mode = MatchExact
	}
	return EntryMatcher{Symbol: symbol, Mode: mode}
}

func (m EntryMatcher) Match(name string) bool {
	if m.Symbol == "" || name == "" {
		return false
	}
	if m.Mode == MatchSubstring {
		return strings.Contains(name, m.Symbol)
	}
	return trimUnderscore(name) == trimUnderscore(m.Symbol)
}

// Any reports whether any of names matches.
func (m EntryMatcher) Any(names []string) bool {
	for _, n := range names {
		if m.Match(n) {
			return true
		}
	}
	return false
}

func trimUnderscore(s string) string {
	return strings.TrimPrefix(s, "_")
}
