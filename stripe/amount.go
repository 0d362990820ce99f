package stripe

import "math"

// MinorUnits converts a price in major currency units to integer minor
// units (e.g. 19.99 -> 1999). The conversion multiplies the float price by
// 100 and rounds half away from zero, which is the behavior the product
// form's prices were authored against; a decimal type would round
// differently on some inputs and break reconciliation with sessions created
// before a migration.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// MajorUnits converts a paid amount in minor units back to major units for
// comparison against the catalog price.
func MajorUnits(amount int64) float64 {
	return float64(amount) / 100
}
