package identity

import (
	"strings"

	"github.com/gosimple/slug"
)

// corporateSuffixes are trailing legal-form tokens dropped during
// normalization so "Acme Corp" and "Acme" compare equal.
var corporateSuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "gmbh": true, "plc": true,
	"pty": true, "co": true, "corp": true, "sa": true, "bv": true,
}

// suffixAliases folds long legal forms onto the short suffix before
// stripping. CRM exports spell these out, billing systems abbreviate.
var suffixAliases = map[string]string{
	"incorporated": "inc",
	"limited":      "ltd",
	"corporation":  "corp",
	"company":      "co",
}

// NormalizeTokens lower-cases a company name, strips diacritics and
// punctuation, and drops a trailing corporate suffix. Returns the
// remaining tokens in order.
func NormalizeTokens(name string) []string {
	raw := strings.Split(slug.Make(name), "-")
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" {
			continue
		}
		if alias, ok := suffixAliases[t]; ok {
			t = alias
		}
		tokens = append(tokens, t)
	}
	if len(tokens) > 1 && corporateSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// Normalize returns the canonical comparison form of a company name.
func Normalize(name string) string {
	return strings.Join(NormalizeTokens(name), " ")
}
