// Package matcher pairs overstocked lines with understocked lines of the same
// product at other outlets, producing raw transfer candidates for the
// viability filter to price and judge.
package matcher

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/analyzer"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

type Matcher struct {
	cfg config.EngineConfig
}

func New(cfg config.EngineConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match scans every (overstock, understock) pair of the same product across
// different outlets. The scan stops at MaxCandidates evaluated pairs so a
// pathological snapshot cannot run unbounded.
func (m *Matcher) Match(snap *analyzer.Snapshot) []domain.TransferOpportunity {
	type bucket struct {
		overstock  []domain.InventoryLine
		understock []domain.InventoryLine
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	add := func(line domain.InventoryLine, over bool) {
		b := buckets[line.Product.ID]
		if b == nil {
			b = &bucket{}
			buckets[line.Product.ID] = b
			order = append(order, line.Product.ID)
		}
		if over {
			b.overstock = append(b.overstock, line)
		} else {
			b.understock = append(b.understock, line)
		}
	}
	for _, line := range snap.Overstock {
		add(line, true)
	}
	for _, line := range snap.Understock {
		add(line, false)
	}

	var opportunities []domain.TransferOpportunity
	evaluated := 0

	for _, productID := range order {
		b := buckets[productID]
		for _, source := range b.overstock {
			for _, target := range b.understock {
				if evaluated >= m.cfg.MaxCandidates {
					log.Warn().
						Int("evaluated", evaluated).
						Int("candidates", len(opportunities)).
						Msg("candidate cap reached, truncating match scan")
					return opportunities
				}
				evaluated++

				if source.Outlet.ID == target.Outlet.ID {
					continue
				}
				qty := m.transferableQty(source, target)
				if qty <= 0 {
					continue
				}
				opportunities = append(opportunities, domain.TransferOpportunity{
					Source:       source,
					Target:       target,
					Product:      source.Product,
					SuggestedQty: qty,
				})
			}
		}
	}

	log.Info().
		Int("evaluated", evaluated).
		Int("candidates", len(opportunities)).
		Msg("opportunity matching complete")

	return opportunities
}

// transferableQty is the unit count that helps the target without starving the
// source: the source keeps UnderstockDays of cover, the target is topped up to
// OverstockDays of cover.
func (m *Matcher) transferableQty(source, target domain.InventoryLine) int {
	excess := source.InventoryLevel - source.DailyVelocity*m.cfg.UnderstockDays
	needed := target.DailyVelocity*m.cfg.OverstockDays - target.InventoryLevel
	if excess <= 0 || needed <= 0 {
		return 0
	}
	return int(math.Floor(math.Min(excess, needed)))
}
