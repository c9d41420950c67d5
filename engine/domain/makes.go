package domain

import (
	"strings"
	"time"
)

// SupportedMakes lists the manufacturers the catalog is curated for, in their
// canonical spelling.
var SupportedMakes = []string{
	"Toyota", "Honda", "Ford", "Chevrolet", "BMW", "Mercedes-Benz", "Audi",
	"Nissan", "Hyundai", "Kia", "Volkswagen", "Subaru", "Mazda", "Jeep",
	"Ram", "GMC", "Dodge", "Lexus", "Acura", "Tesla",
}

// makeAliases maps common shorthand to canonical make names.
var makeAliases = map[string]string{
	"chevy":    "Chevrolet",
	"vw":       "Volkswagen",
	"mercedes": "Mercedes-Benz",
	"benz":     "Mercedes-Benz",
}

// MinModelYear is the earliest year we accept.
const MinModelYear = 1990

// MaxModelYear is the latest year accepted at now (next year's models included).
func MaxModelYear(now time.Time) int {
	return now.Year() + 1
}

// CanonicalMake returns the canonical spelling of name, or the trimmed input
// when the make is not in SupportedMakes.
func CanonicalMake(name string) string {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	if alias, ok := makeAliases[lower]; ok {
		return alias
	}
	for _, m := range SupportedMakes {
		if strings.ToLower(m) == lower {
			return m
		}
	}
	return trimmed
}
