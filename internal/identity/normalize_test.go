package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_StripsSuffixAndPunctuation(t *testing.T) {
	assert.Equal(t, "acme", Normalize("Acme Corp"))
	assert.Equal(t, "acme", Normalize("ACME, Inc."))
	assert.Equal(t, "techstart", Normalize("TechStart Limited"))
	assert.Equal(t, "techstart", Normalize("TechStart Ltd"))
	assert.Equal(t, "globex industries", Normalize("Globex  Industries GmbH"))
}

func TestNormalize_FoldsDiacritics(t *testing.T) {
	assert.Equal(t, "societe generale", Normalize("Société Générale SA"))
	assert.Equal(t, "muller", Normalize("Müller GmbH"))
}

func TestNormalize_KeepsSoleSuffixToken(t *testing.T) {
	// A name that is nothing but a legal form keeps its only token.
	assert.Equal(t, "inc", Normalize("Inc"))
}

func TestSimilarity_TokenSet(t *testing.T) {
	a := NormalizeTokens("Acme Data Services")
	b := NormalizeTokens("Acme Data Systems")
	// 2 common tokens of 3+3.
	assert.InDelta(t, 2.0*2/6, Similarity(a, b), 1e-9)

	assert.Equal(t, 1.0, Similarity(NormalizeTokens("Acme Corp"), NormalizeTokens("Acme Inc")))
	assert.Equal(t, 0.0, Similarity(NormalizeTokens("Acme"), nil))
}

func TestSimilarity_SingleTokenLevenshtein(t *testing.T) {
	// "globex" vs "globexx": distance 1, max len 7.
	got := Similarity([]string{"globex"}, []string{"globexx"})
	assert.InDelta(t, 1-1.0/7, got, 1e-9)

	assert.Equal(t, 1.0, Similarity([]string{"acme"}, []string{"acme"}))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 5, levenshtein("", "acmes"))
	assert.Equal(t, 0, levenshtein("same", "same"))
}
