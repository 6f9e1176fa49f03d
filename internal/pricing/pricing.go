package pricing

import (
	"fmt"
	"math"
)

// Paper sizes accepted on an order.
const (
	PaperA4 = "A4"
	PaperA3 = "A3"
)

// Color modes accepted on an order.
const (
	ColorBW    = "bw"
	ColorColor = "color"
)

// Per-unit costs in the shop's currency. The total for a file is
// (paper cost + color cost) * quantity.
var (
	paperCosts = map[string]float64{
		PaperA4: 0.10,
		PaperA3: 0.20,
	}
	colorCosts = map[string]float64{
		ColorBW:    0.05,
		ColorColor: 0.25,
	}
)

// Cost computes the authoritative cost for one file. The result is left
// unrounded; use Round when formatting for display or persistence.
func Cost(quantity int, paperSize, colorMode string) (float64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	paperCost, ok := paperCosts[paperSize]
	if !ok {
		return 0, fmt.Errorf("unknown paper size %q", paperSize)
	}
	colorCost, ok := colorCosts[colorMode]
	if !ok {
		return 0, fmt.Errorf("unknown color mode %q", colorMode)
	}
	return (paperCost + colorCost) * float64(quantity), nil
}

// Round rounds a cost to currency precision (2 decimal places).
func Round(cost float64) float64 {
	return math.Round(cost*100) / 100
}
