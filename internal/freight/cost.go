// Package freight prices transfer shipments and estimates delivery times.
// Costs are deterministic functions of weight and distance so a batch can be
// re-priced after consolidation and compared against the sum of its lines.
package freight

import (
	"math"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

// Weight tier boundaries and marginal rates, NZD per kg. Rates decrease with
// weight so consolidating shipments never costs more than sending them apart.
const (
	tierOneKG  = 10.0
	tierTwoKG  = 20.0
	rateOne    = 2.50
	rateTwo    = 1.50
	rateThree  = 1.00
	earthRadKM = 6371.0
)

// Calculator prices shipments between outlets using the configured base cost
// and distance multipliers.
type Calculator struct {
	cfg config.EngineConfig
}

func NewCalculator(cfg config.EngineConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Cost returns the shipping cost for the given weight between two outlets.
// Transfers within the same outlet are free.
func (c *Calculator) Cost(from, to domain.Outlet, weightGrams int) float64 {
	if from.ID == to.ID {
		return 0
	}
	charge := c.cfg.FreightBaseCost + weightCharge(float64(weightGrams)/1000.0)
	return round2(charge * c.Multiplier(from, to))
}

// weightCharge applies the tiered per-kg rates. Marginal rates only fall as
// weight grows, which keeps the total concave in weight.
func weightCharge(kg float64) float64 {
	if kg <= 0 {
		return 0
	}
	switch {
	case kg <= tierOneKG:
		return kg * rateOne
	case kg <= tierTwoKG:
		return tierOneKG*rateOne + (kg-tierOneKG)*rateTwo
	default:
		return tierOneKG*rateOne + (tierTwoKG-tierOneKG)*rateTwo + (kg-tierTwoKG)*rateThree
	}
}

// Multiplier returns the distance surcharge band between two outlets. Outlets
// without coordinates fall back to the configured default.
func (c *Calculator) Multiplier(from, to domain.Outlet) float64 {
	if from.ID == to.ID {
		return 0
	}
	if !from.HasCoordinates() || !to.HasCoordinates() {
		return c.cfg.DefaultDistanceMultiplier
	}
	return bandMultiplier(DistanceKM(from, to))
}

func bandMultiplier(km float64) float64 {
	switch {
	case km < 25:
		return 1.0
	case km < 100:
		return 1.2
	case km < 400:
		return 1.5
	default:
		return 2.0
	}
}

// DistanceKM computes the great-circle distance between two outlets. Outlets
// missing coordinates are treated as zero distance; callers use Multiplier for
// pricing, which handles that case separately.
func DistanceKM(from, to domain.Outlet) float64 {
	if !from.HasCoordinates() || !to.HasCoordinates() {
		return 0
	}
	lat1 := *from.Latitude * math.Pi / 180
	lat2 := *to.Latitude * math.Pi / 180
	dLat := (*to.Latitude - *from.Latitude) * math.Pi / 180
	dLon := (*to.Longitude - *from.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Container returns the packaging label for a shipment weight.
func Container(weightGrams int) string {
	kg := float64(weightGrams) / 1000.0
	switch {
	case kg <= 2:
		return "satchel"
	case kg <= 10:
		return "carton"
	case kg <= 25:
		return "crate"
	default:
		return "pallet"
	}
}

// LegMinutes estimates travel plus load time for one route leg.
func (c *Calculator) LegMinutes(distanceKM float64) float64 {
	return distanceKM/c.cfg.AvgSpeedKMH*60 + c.cfg.LoadTimeMinutes
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
