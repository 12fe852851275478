package console

import (
	"fmt"
	"math"
)

// FormatCurrency renders an amount in rupees. Non-finite values render as
// zero.
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "INR 0.00"
	}
	return fmt.Sprintf("INR %.2f", v)
}

// NextSKU suggests a SKU for a new product from the highest existing id.
func NextSKU(products []Product) string {
	var maxID int64
	for _, p := range products {
		maxID = max(maxID, p.ID)
	}
	return fmt.Sprintf("PROD-%03d", maxID+1)
}
