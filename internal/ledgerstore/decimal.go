package ledgerstore

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// parseDecimal wraps decimal.NewFromString with ledgerstore's own
// error context, since every numeric column is stored as a NUMERIC
// string to preserve exact precision (spec.md §8).
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("ledgerstore: parse decimal %q: %w", s, err)
	}
	return d, nil
}
