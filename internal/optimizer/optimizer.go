// Package optimizer consolidates viable opportunities into per-lane batches,
// re-prices freight on the combined weight, and sequences multi-drop routes
// for sources feeding more than one destination.
package optimizer

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/freight"
)

type Optimizer struct {
	cfg     config.EngineConfig
	freight *freight.Calculator
}

func New(cfg config.EngineConfig, calc *freight.Calculator) *Optimizer {
	return &Optimizer{cfg: cfg, freight: calc}
}

// Optimize groups opportunities by (source, target) lane, prices each batch
// once on its combined weight, and returns batches sorted by efficiency.
// Consolidation never costs more than the lines shipped separately.
func (o *Optimizer) Optimize(viable []domain.TransferOpportunity) []domain.TransferBatch {
	type laneKey struct{ source, target string }

	lanes := make(map[laneKey]*domain.TransferBatch)
	var order []laneKey
	for _, opp := range viable {
		key := laneKey{opp.Source.Outlet.ID, opp.Target.Outlet.ID}
		batch := lanes[key]
		if batch == nil {
			batch = &domain.TransferBatch{
				Source: opp.Source.Outlet,
				Target: opp.Target.Outlet,
			}
			lanes[key] = batch
			order = append(order, key)
		}
		batch.Opportunities = append(batch.Opportunities, opp)
	}

	batches := make([]domain.TransferBatch, 0, len(lanes))
	for _, key := range order {
		batches = append(batches, o.price(*lanes[key]))
	}

	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].EfficiencyScore > batches[j].EfficiencyScore
	})

	o.sequenceRoutes(batches)

	log.Info().
		Int("opportunities", len(viable)).
		Int("batches", len(batches)).
		Msg("batch optimization complete")

	return batches
}

func (o *Optimizer) price(batch domain.TransferBatch) domain.TransferBatch {
	weightGrams := 0.0
	profit := 0.0
	for _, opp := range batch.Opportunities {
		batch.TotalValue += opp.ProductValue
		weightGrams += opp.WeightGrams
		profit += opp.ProfitPotential
	}

	batch.TotalWeightKG = weightGrams / 1000
	batch.ShippingCost = o.freight.Cost(batch.Source, batch.Target, int(weightGrams))
	batch.Container = freight.Container(int(weightGrams))
	batch.NetBenefit = profit - batch.ShippingCost

	if batch.ShippingCost > 0.01 {
		batch.EfficiencyScore = batch.NetBenefit / batch.ShippingCost
	} else {
		batch.EfficiencyScore = math.Max(batch.NetBenefit, 0)
	}
	if batch.TotalValue > 0 {
		costPct := batch.ShippingCost / batch.TotalValue * 100
		batch.CostEfficiency = math.Max(0, (100-costPct)/100)
		batch.MarginPercent = profit / batch.TotalValue * 100
	}

	return batch
}

// sequenceRoutes orders each source's destinations nearest-neighbour from the
// source outlet and annotates the member batches with their leg. Sources with
// one destination keep a nil route.
func (o *Optimizer) sequenceRoutes(batches []domain.TransferBatch) {
	bySource := make(map[string][]*domain.TransferBatch)
	for i := range batches {
		id := batches[i].Source.ID
		bySource[id] = append(bySource[id], &batches[i])
	}

	for _, group := range bySource {
		if len(group) < 2 {
			continue
		}
		o.sequence(group)
	}
}

func (o *Optimizer) sequence(group []*domain.TransferBatch) {
	remaining := make([]*domain.TransferBatch, len(group))
	copy(remaining, group)

	position := group[0].Source
	totalKM := 0.0
	sequence := 0
	legs := make([]*domain.TransferBatch, 0, len(group))
	legKM := make([]float64, 0, len(group))

	for len(remaining) > 0 {
		best := 0
		bestKM := freight.DistanceKM(position, remaining[0].Target)
		for i := 1; i < len(remaining); i++ {
			if km := freight.DistanceKM(position, remaining[i].Target); km < bestKM {
				best, bestKM = i, km
			}
		}
		next := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)

		sequence++
		totalKM += bestKM
		legs = append(legs, next)
		legKM = append(legKM, bestKM)
		position = next.Target
	}

	efficiency := 1.0
	if totalKM > 0 {
		efficiency = math.Min(1, o.cfg.IdealKMPerStop*float64(len(legs))/totalKM)
	}

	for i, batch := range legs {
		batch.Route = &domain.RouteLeg{
			Sequence:        i + 1,
			DistanceKM:      round1(legKM[i]),
			TravelMinutes:   int(math.Round(o.freight.LegMinutes(legKM[i]))),
			RouteDistanceKM: round1(totalKM),
			EfficiencyScore: efficiency,
			Destinations:    len(legs),
		}
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
