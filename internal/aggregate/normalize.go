package aggregate

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/quickquote/internal/model"
)

// unitClass distinguishes how a quantity converts to its base unit.
type unitClass int

const (
	classMass unitClass = iota
	classVolume
	classCount
	classUnknown
)

// unitTable maps provider unit strings to a class and a factor into the
// base unit: grams for mass, millilitres for volume, the count itself
// for count-based units.
var unitTable = map[string]struct {
	class  unitClass
	factor float64
}{
	"mg":     {classMass, 0.001},
	"g":      {classMass, 1},
	"gm":     {classMass, 1},
	"gram":   {classMass, 1},
	"kg":     {classMass, 1000},
	"ml":     {classVolume, 1},
	"l":      {classVolume, 1000},
	"ltr":    {classVolume, 1000},
	"litre":  {classVolume, 1000},
	"liter":  {classVolume, 1000},
	"pc":     {classCount, 1},
	"pcs":    {classCount, 1},
	"piece":  {classCount, 1},
	"pieces": {classCount, 1},
	"unit":   {classCount, 1},
	"pack":   {classCount, 1},
}

// Normalize recomputes the quote's derived fields from its raw fields.
//
// Quantities convert through the unit table; unknown units pass through
// unchanged and are logged as a normalization miss. Price per unit is
// the price per 100 base units for mass and volume, and the per-item
// price for counts. A zero or negative divisor yields a price per unit
// of 0 rather than an error.
func Normalize(q *model.Quote) {
	class, base := baseQuantity(q.Quantity, q.Unit)

	q.BaseQuantity = base
	q.EffectivePrice = q.Price + q.DeliveryFee + q.PlatformFee

	switch class {
	case classMass, classVolume:
		if base > 0 {
			q.PricePerUnit = q.Price / (base / 100)
		} else {
			q.PricePerUnit = 0
		}
	default:
		if q.Quantity > 0 {
			q.PricePerUnit = q.Price / q.Quantity
		} else {
			q.PricePerUnit = 0
		}
	}

	// Clear any stale badges; ranking reassigns them on every pass.
	q.Cheapest = false
	q.Fastest = false
}

// baseQuantity converts a quantity into its base unit.
func baseQuantity(quantity float64, unit string) (unitClass, float64) {
	u, ok := unitTable[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		logrus.Debugf("Unknown unit %q, passing quantity through", unit)
		return classUnknown, quantity
	}
	return u.class, quantity * u.factor
}
