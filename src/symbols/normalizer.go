package symbols

import (
	"sort"
	"strings"

	"quote-broadcaster/src/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// -----------------------------------------------------------------------------

// Normalizer maps client aliases to canonical instrument codes and back.
// The tables are built once and never mutated, so it is safe for concurrent use.
type Normalizer struct {
	forward map[string]models.MCanonicalSymbol
	reverse map[models.MCanonicalSymbol]string
	title   cases.Caser
}

// -----------------------------------------------------------------------------

// NewNormalizer builds the lookup tables from an alias -> canonical map.
func NewNormalizer(aliases map[string]string) *Normalizer {
	n := &Normalizer{
		forward: make(map[string]models.MCanonicalSymbol, len(aliases)),
		reverse: make(map[models.MCanonicalSymbol]string, len(aliases)),
		title:   cases.Title(language.Und),
	}
	for alias, canonical := range aliases {
		a := strings.ToUpper(strings.TrimSpace(alias))
		c := models.MCanonicalSymbol(strings.ToUpper(strings.TrimSpace(canonical)))
		n.forward[a] = c
		n.reverse[c] = a
	}
	return n
}

// -----------------------------------------------------------------------------

// Normalize is case-insensitive and total: unknown aliases come back uppercased.
func (n *Normalizer) Normalize(alias string) models.MCanonicalSymbol {
	a := strings.ToUpper(strings.TrimSpace(alias))
	if c, ok := n.forward[a]; ok {
		return c
	}
	return models.MCanonicalSymbol(a)
}

// -----------------------------------------------------------------------------

// NormalizeAll normalizes and de-duplicates, dropping blank entries.
func (n *Normalizer) NormalizeAll(aliases []string) []models.MCanonicalSymbol {
	seen := make(map[models.MCanonicalSymbol]struct{}, len(aliases))
	out := make([]models.MCanonicalSymbol, 0, len(aliases))
	for _, a := range aliases {
		if strings.TrimSpace(a) == "" {
			continue
		}
		c := n.Normalize(a)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// -----------------------------------------------------------------------------

// DisplayName returns the title-cased alias for a canonical symbol,
// or the title-cased symbol itself when it has no alias.
func (n *Normalizer) DisplayName(symbol models.MCanonicalSymbol) string {
	if alias, ok := n.reverse[symbol]; ok {
		return n.title.String(alias)
	}
	return n.title.String(string(symbol))
}

// -----------------------------------------------------------------------------

// Canonicals lists every mapped canonical symbol in stable order.
func (n *Normalizer) Canonicals() []models.MCanonicalSymbol {
	out := make([]models.MCanonicalSymbol, 0, len(n.reverse))
	for c := range n.reverse {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
