package food

import "strings"

// massFactors maps a unit to grams per one unit. Volumes assume water density.
var massFactors = map[string]float64{
	"g":           1,
	"gram":        1,
	"grams":       1,
	"kg":          1000,
	"kilogram":    1000,
	"kilograms":   1000,
	"ml":          1,
	"milliliter":  1,
	"milliliters": 1,
	"millilitre":  1,
	"millilitres": 1,
	"l":           1000,
	"liter":       1000,
	"liters":      1000,
	"litre":       1000,
	"litres":      1000,
	"cup":         240,
	"cups":        240,
	"tbsp":        15,
	"tablespoon":  15,
	"tablespoons": 15,
	"tsp":         5,
	"teaspoon":    5,
	"teaspoons":   5,
}

// countUnits are resolved through a per-food average piece weight.
var countUnits = map[string]bool{
	"piece":  true,
	"pieces": true,
	"pcs":    true,
}

// NormalizeUnit lowercases and trims a unit string.
func NormalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// MassFactor returns grams per unit for static mass/volume units.
func MassFactor(unit string) (float64, bool) {
	f, ok := massFactors[NormalizeUnit(unit)]
	return f, ok
}

// IsCountUnit reports whether unit counts pieces rather than mass.
func IsCountUnit(unit string) bool {
	return countUnits[NormalizeUnit(unit)]
}
