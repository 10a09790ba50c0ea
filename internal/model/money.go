package model

import (
	"math"
	"strconv"
	"strings"
)

// ParseCents converts decimal string amounts (dollars) to cents (int64).
// WooCommerce REST v3 returns order and line totals in this format.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100))
}

// Amount converts a decimal string to the float value sent in tracking events.
// Rounded to cents so "29.990000001" style store output does not leak into payloads.
func Amount(s string) float64 {
	return float64(ParseCents(s)) / 100
}

// UnitPrice returns the per-unit price of a line whose total covers qty units.
// A non-positive quantity yields the line total unchanged.
func UnitPrice(lineTotal string, qty int) float64 {
	cents := ParseCents(lineTotal)
	if qty <= 0 {
		return float64(cents) / 100
	}
	return math.Round(float64(cents)/float64(qty)) / 100
}
