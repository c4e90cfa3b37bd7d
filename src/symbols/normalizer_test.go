package symbols

import (
	"testing"

	"quote-broadcaster/src/models"

	"github.com/stretchr/testify/assert"
)

var metals = map[string]string{
	"GOLD":     "XAUUSD",
	"SILVER":   "XAGUSD",
	"PLATINUM": "XPTUSD",
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(metals)

	tests := []struct {
		in   string
		want models.MCanonicalSymbol
	}{
		{"GOLD", "XAUUSD"},
		{"gold", "XAUUSD"},
		{" Silver ", "XAGUSD"},
		{"platinum", "XPTUSD"},
		{"eurusd", "EURUSD"},
		{"XAUUSD", "XAUUSD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.Normalize(tt.in), tt.in)
	}
}

func TestDisplayName(t *testing.T) {
	n := NewNormalizer(metals)

	assert.Equal(t, "Gold", n.DisplayName("XAUUSD"))
	assert.Equal(t, "Platinum", n.DisplayName("XPTUSD"))
	assert.Equal(t, "Eurusd", n.DisplayName("EURUSD"))
}

func TestNormalizeIsLeftInverseOfDisplayName(t *testing.T) {
	n := NewNormalizer(metals)

	for _, canonical := range n.Canonicals() {
		assert.Equal(t, canonical, n.Normalize(n.DisplayName(canonical)))
	}
	// Unmapped symbols round-trip through the uppercase pass-through.
	assert.Equal(t, models.MCanonicalSymbol("EURUSD"), n.Normalize(n.DisplayName("EURUSD")))
}

func TestNormalizeAll_Dedupes(t *testing.T) {
	n := NewNormalizer(metals)

	got := n.NormalizeAll([]string{"gold", "GOLD", "XAUUSD", "", "silver"})

	assert.Equal(t, []models.MCanonicalSymbol{"XAUUSD", "XAGUSD"}, got)
}

func TestCanonicals_Sorted(t *testing.T) {
	n := NewNormalizer(metals)

	assert.Equal(t, []models.MCanonicalSymbol{"XAGUSD", "XAUUSD", "XPTUSD"}, n.Canonicals())
}
