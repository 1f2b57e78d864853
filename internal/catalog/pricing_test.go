package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceMatrix(t *testing.T) {
	sizes, err := PriceMatrix(decimal.RequireFromString("199"), 500, []int{1000, 100, 250, 250, 1500})
	require.NoError(t, err)

	want := []struct {
		label string
		price string
	}{
		{"100g", "39.80"},
		{"250g", "99.50"},
		{"1kg", "398.00"},
		{"1.5kg", "597.00"},
	}
	require.Len(t, sizes, len(want))
	for i, w := range want {
		assert.Equal(t, w.label, sizes[i].Label)
		assert.Equal(t, w.price, sizes[i].Price.StringFixed(2))
	}
}

func TestPriceMatrixRoundsToPaise(t *testing.T) {
	sizes, err := PriceMatrix(decimal.RequireFromString("100"), 300, []int{100})
	require.NoError(t, err)
	assert.Equal(t, "33.33", sizes[0].Price.String())
}

func TestPriceMatrixDefaultsAndErrors(t *testing.T) {
	sizes, err := PriceMatrix(decimal.NewFromInt(400), 1000, nil)
	require.NoError(t, err)
	assert.Len(t, sizes, len(DefaultPackGrams))

	_, err = PriceMatrix(decimal.Zero, 1000, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PriceMatrix(decimal.NewFromInt(10), 0, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PriceMatrix(decimal.NewFromInt(10), 100, []int{0})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNormalizeAndSlug(t *testing.T) {
	assert.Equal(t, "organic powder", NormalizeName("  Organic \t Powder "))
	assert.Equal(t, NormalizeName("Organic Powder"), NormalizeName("organic powder "))
	assert.Equal(t, "cold-pressed-oils-ghee", Slugify("Cold-Pressed Oils & Ghee!"))
}
