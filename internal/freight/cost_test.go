package freight

import (
	"math"
	"testing"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

func outletAt(id string, lat, lon float64) domain.Outlet {
	return domain.Outlet{ID: id, Name: id, Latitude: &lat, Longitude: &lon}
}

func TestCostSameOutletFree(t *testing.T) {
	c := NewCalculator(config.DefaultEngineConfig())
	a := outletAt("a", -36.85, 174.76)
	if got := c.Cost(a, a, 5000); got != 0 {
		t.Fatalf("same-outlet cost=%v want 0", got)
	}
}

func TestCostDefaultMultiplierWithoutCoordinates(t *testing.T) {
	c := NewCalculator(config.DefaultEngineConfig())
	from := domain.Outlet{ID: "a"}
	to := domain.Outlet{ID: "b"}

	// 1kg: (15 + 2.50) * 1.2
	if got := c.Cost(from, to, 1000); got != 21.0 {
		t.Fatalf("cost=%v want 21.0", got)
	}
}

func TestCostWeightTiers(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.DefaultDistanceMultiplier = 1.0
	c := NewCalculator(cfg)
	from := domain.Outlet{ID: "a"}
	to := domain.Outlet{ID: "b"}

	tests := []struct {
		grams int
		want  float64
	}{
		{0, 15.00},
		{1000, 17.50},
		{10000, 40.00},
		{15000, 47.50},
		{20000, 55.00},
		{30000, 65.00},
	}
	for _, tt := range tests {
		if got := c.Cost(from, to, tt.grams); math.Abs(got-tt.want) > 0.001 {
			t.Errorf("Cost(%dg)=%v want=%v", tt.grams, got, tt.want)
		}
	}
}

// Consolidating shipments between the same pair must never cost more than
// shipping the parts separately.
func TestCostSubadditive(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	c := NewCalculator(cfg)
	from := outletAt("a", -36.85, 174.76)
	to := outletAt("b", -37.79, 175.28)

	weights := []int{100, 500, 3000, 9500, 10500, 19000, 25000, 40000}
	for _, a := range weights {
		for _, b := range weights {
			combined := c.Cost(from, to, a+b)
			separate := c.Cost(from, to, a) + c.Cost(from, to, b)
			if combined > separate+0.001 {
				t.Errorf("combined %d+%d = %v exceeds separate %v", a, b, combined, separate)
			}
		}
	}
}

func TestBandMultiplier(t *testing.T) {
	tests := []struct {
		km   float64
		want float64
	}{
		{0, 1.0},
		{24.9, 1.0},
		{25, 1.2},
		{99, 1.2},
		{100, 1.5},
		{399, 1.5},
		{400, 2.0},
		{800, 2.0},
	}
	for _, tt := range tests {
		if got := bandMultiplier(tt.km); got != tt.want {
			t.Errorf("bandMultiplier(%v)=%v want=%v", tt.km, got, tt.want)
		}
	}
}

func TestDistanceKM(t *testing.T) {
	// Auckland CBD to Hamilton CBD is roughly 115 km great-circle.
	akl := outletAt("akl", -36.8485, 174.7633)
	ham := outletAt("ham", -37.7870, 175.2793)

	km := DistanceKM(akl, ham)
	if km < 110 || km > 120 {
		t.Fatalf("DistanceKM=%v want ~115", km)
	}
	if got := DistanceKM(akl, akl); got != 0 {
		t.Fatalf("self distance=%v want 0", got)
	}
}

func TestContainer(t *testing.T) {
	tests := []struct {
		grams int
		want  string
	}{
		{500, "satchel"},
		{2000, "satchel"},
		{2001, "carton"},
		{10000, "carton"},
		{18000, "crate"},
		{26000, "pallet"},
	}
	for _, tt := range tests {
		if got := Container(tt.grams); got != tt.want {
			t.Errorf("Container(%d)=%s want=%s", tt.grams, got, tt.want)
		}
	}
}

func TestLegMinutes(t *testing.T) {
	c := NewCalculator(config.DefaultEngineConfig())
	// 40 km at 40 km/h plus 15 min load.
	if got := c.LegMinutes(40); math.Abs(got-75) > 0.001 {
		t.Fatalf("LegMinutes(40)=%v want 75", got)
	}
	if got := c.LegMinutes(0); math.Abs(got-15) > 0.001 {
		t.Fatalf("LegMinutes(0)=%v want 15", got)
	}
}
