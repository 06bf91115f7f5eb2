package ledger

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/textnorm"
)

// countries maps every recognized country spelling, by normalized key, to
// its canonical display form. Header detection and post-parse
// canonicalization both read this table.
var countries = map[string]string{
	"chile":     "Chile",
	"peru":      "Perú",
	"colombia":  "Colombia",
	"argentina": "Argentina",
	"mexico":    "México",
	"espana":    "España",
}

// headerPattern matches "<publisher token> <country>" section headers such
// as "Ivrea Chile" or "Ovni Argentina".
var headerPattern = regexp.MustCompile(
	`(?i)^\s*([A-Za-zÁÉÍÓÚÜÑáéíóúüñ0-9.\-]+)\s+(` + alternation(spellings()) + `)\s*$`,
)

// spellings returns every accepted raw spelling from countries: the
// accent-free key and the canonical form, once each ignoring case.
func spellings() []string {
	seen := make(map[string]bool, 2*len(countries))
	var out []string
	for key, canonical := range countries {
		for _, w := range []string{key, canonical} {
			if lw := strings.ToLower(w); !seen[lw] {
				seen[lw] = true
				out = append(out, w)
			}
		}
	}
	return out
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	// Longest first so "México" is tried before a shorter prefix.
	sort.Slice(quoted, func(i, j int) bool {
		if len(quoted[i]) != len(quoted[j]) {
			return len(quoted[i]) > len(quoted[j])
		}
		return quoted[i] < quoted[j]
	})
	return strings.Join(quoted, "|")
}

// IsCountry reports whether s is a recognized country name in any spelling
// or casing.
func IsCountry(s string) bool {
	_, ok := countries[textnorm.Normalize(s)]
	return ok
}

// CanonicalCountry returns the canonical spelling of a recognized country
// ("peru", "PERU" and "Perú" all give "Perú"). Unrecognized values are
// returned trimmed but otherwise unchanged.
func CanonicalCountry(s string) string {
	if c, ok := countries[textnorm.Normalize(s)]; ok {
		return c
	}
	return strings.TrimSpace(s)
}

// matchHeader splits a "<publisher> <country>" cell. The country comes back
// in canonical form.
func matchHeader(s string) (publisher, country string, ok bool) {
	m := headerPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), CanonicalCountry(m[2]), true
}
