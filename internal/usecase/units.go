package usecase

import "strings"

// Canonical units every product unit is reduced to
const (
	UnitKilogram = "kg"
	UnitLiter    = "l"
	UnitPieces   = "pcs"
)

var canonicalUnits = map[string]string{
	// Mass
	"g": UnitKilogram, "gr": UnitKilogram, "gram": UnitKilogram, "grams": UnitKilogram,
	"mg": UnitKilogram, "kg": UnitKilogram, "kilo": UnitKilogram, "kilogram": UnitKilogram,
	"kgs": UnitKilogram,
	// Volume
	"ml": UnitLiter, "milliliter": UnitLiter, "l": UnitLiter, "liter": UnitLiter,
	"litre": UnitLiter, "ltr": UnitLiter, "lt": UnitLiter,
	// Count
	"pcs": UnitPieces, "pc": UnitPieces, "piece": UnitPieces, "pieces": UnitPieces,
	"buah": UnitPieces, "biji": UnitPieces, "ea": UnitPieces,
}

// unitFactors says how many of a sub-unit make one canonical unit
var unitFactors = map[string]float64{
	"g": 1000, "gr": 1000, "gram": 1000, "grams": 1000,
	"mg": 1_000_000,
	"ml": 1000, "milliliter": 1000,
}

// CanonicalUnit maps a unit to kg, l or pcs. Unknown units are returned unchanged.
func CanonicalUnit(unit string) string {
	key := strings.ToLower(strings.TrimSpace(unit))
	if c, ok := canonicalUnits[key]; ok {
		return c
	}
	return unit
}

// UnitPrice returns the price per canonical unit of a pack of quantity units.
// ok is false when quantity or unit is missing; such prices are not comparable.
func UnitPrice(price, quantity float64, unit string) (float64, bool) {
	key := strings.ToLower(strings.TrimSpace(unit))
	if quantity <= 0 || key == "" {
		return 0, false
	}
	factor, ok := unitFactors[key]
	if !ok {
		factor = 1
	}
	return price / (quantity / factor), true
}
