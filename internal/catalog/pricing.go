package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPackGrams are the pack sizes offered when a product does not list its own.
var DefaultPackGrams = []int{250, 500, 1000}

// PriceMatrix derives a price for every pack size from the base price of baseGrams.
// Prices are proportional to weight and rounded to paise. The result is sorted by weight
// with duplicates removed.
func PriceMatrix(base decimal.Decimal, baseGrams int, grams []int) ([]PackSize, error) {
	if !base.IsPositive() {
		return nil, fmt.Errorf("%w: base price must be positive", ErrValidation)
	}
	if baseGrams <= 0 {
		return nil, fmt.Errorf("%w: base weight must be positive", ErrValidation)
	}
	if len(grams) == 0 {
		grams = DefaultPackGrams
	}

	sorted := append([]int(nil), grams...)
	sort.Ints(sorted)

	sizes := make([]PackSize, 0, len(sorted))
	for i, g := range sorted {
		if g <= 0 {
			return nil, fmt.Errorf("%w: pack weight must be positive, got %d", ErrValidation, g)
		}
		if i > 0 && g == sorted[i-1] {
			continue
		}
		price := base.Mul(decimal.NewFromInt(int64(g))).Div(decimal.NewFromInt(int64(baseGrams))).Round(2)
		sizes = append(sizes, PackSize{Label: PackLabel(g), Grams: g, Price: price})
	}
	return sizes, nil
}

// PackLabel renders a weight the way it is shown on the storefront: 250g, 1kg, 1.5kg.
func PackLabel(grams int) string {
	if grams < 1000 {
		return fmt.Sprintf("%dg", grams)
	}
	kg := decimal.NewFromInt(int64(grams)).Div(decimal.NewFromInt(1000))
	return kg.String() + "kg"
}

// NormalizeName folds a display name into the key used for uniqueness checks and grouping:
// trimmed, inner whitespace collapsed, lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(NormalizeName(name), "-"), "-")
}
