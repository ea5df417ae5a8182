package scorer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// normalize case-folds s and reduces it to space-separated alphanumeric
// words, so "OEKO-TEX®" and "oeko tex" compare equal.
func normalize(s string) string {
	folded := cases.Fold().String(s)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

// hasTerm reports whether term occurs in text on word boundaries. Both are
// expected to be normalized.
func hasTerm(text, term string) bool {
	if text == "" || term == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+term+" ")
}

// termMatch reports whether either normalized string contains the other.
func termMatch(a, b string) bool {
	return hasTerm(a, b) || hasTerm(b, a)
}

func hasAnyTerm(text string, terms []string) bool {
	for _, t := range terms {
		if hasTerm(text, normalize(t)) {
			return true
		}
	}
	return false
}

// normalizeAll keeps positions aligned with in; blank results stay blank.
func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = normalize(s)
	}
	return out
}

// regionOf returns the region a normalized location belongs to. A location
// that names a region directly maps to itself.
func regionOf(loc string) string {
	for _, r := range regions {
		if hasTerm(loc, r.name) {
			return r.name
		}
	}
	for _, r := range regions {
		for _, c := range r.countries {
			if hasTerm(loc, c) {
				return r.name
			}
		}
	}
	return ""
}

// isRegionName reports whether loc is exactly one of the known regions.
func isRegionName(loc string) bool {
	for _, r := range regions {
		if loc == r.name {
			return true
		}
	}
	return false
}

// certIndex returns the certTable entry a normalized certification names,
// or -1.
func certIndex(cert string) int {
	for i, e := range certTable {
		for _, a := range e.aliases {
			if hasTerm(cert, a) {
				return i
			}
		}
	}
	return -1
}

// sameCert reports whether two normalized certification names refer to the
// same scheme.
func sameCert(a, b string) bool {
	if termMatch(a, b) {
		return true
	}
	ia := certIndex(a)
	return ia >= 0 && ia == certIndex(b)
}

// related reports whether target shares a family with any of items.
func related(target string, items []string, families []family) bool {
	for _, f := range families {
		if !matchesAny(target, f.members) {
			continue
		}
		for _, it := range items {
			if matchesAny(it, f.members) {
				return true
			}
		}
	}
	return false
}

func matchesAny(s string, terms []string) bool {
	for _, t := range terms {
		if termMatch(s, t) {
			return true
		}
	}
	return false
}
