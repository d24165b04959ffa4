// Package analyzer builds the classified network inventory snapshot that every
// downstream stage works from. Outlets are read concurrently; a single outlet
// failing degrades the snapshot instead of failing the run.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

// InventorySource reads the network's master and stock data.
type InventorySource interface {
	Outlets(ctx context.Context) ([]domain.Outlet, error)
	OutletInventory(ctx context.Context, outletID string) ([]domain.InventoryLine, error)
}

// Snapshot is one run's classified view of the network.
type Snapshot struct {
	Lines      []domain.InventoryLine
	Overstock  []domain.InventoryLine
	Understock []domain.InventoryLine
	Summary    domain.NetworkSummary
}

type Analyzer struct {
	source InventorySource
	cfg    config.EngineConfig
}

func New(source InventorySource, cfg config.EngineConfig) *Analyzer {
	return &Analyzer{source: source, cfg: cfg}
}

// Analyze reads and classifies the whole network. It fails only when the outlet
// listing fails, every outlet read fails, or the snapshot comes back empty.
func (a *Analyzer) Analyze(ctx context.Context) (*Snapshot, error) {
	outlets, err := a.source.Outlets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing outlets: %w", err)
	}
	if len(outlets) == 0 {
		return nil, fmt.Errorf("no outlets in network")
	}

	perOutlet := make([][]domain.InventoryLine, len(outlets))
	var mu sync.Mutex
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.WorkerCount, 1))
	for i, outlet := range outlets {
		i, outlet := i, outlet
		g.Go(func() error {
			lines, err := a.source.OutletInventory(gctx, outlet.ID)
			if err != nil {
				log.Warn().Err(err).
					Str("outlet_id", outlet.ID).
					Str("outlet_name", outlet.Name).
					Msg("outlet inventory read failed, skipping outlet")
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			perOutlet[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if skipped == len(outlets) {
		return nil, fmt.Errorf("all %d outlets failed to load", len(outlets))
	}

	snap := &Snapshot{}
	snap.Summary.OutletCount = len(outlets) - skipped
	snap.Summary.OutletsSkipped = skipped

	marginSum := 0.0
	marginLines := 0
	perOutletCounts := make(map[string]*outletCounts)

	for i, lines := range perOutlet {
		for _, line := range lines {
			classified := a.classify(line)
			snap.Lines = append(snap.Lines, classified)

			snap.Summary.LineCount++
			snap.Summary.TotalValue += classified.RetailValue()
			if classified.Product.RetailPrice > 0 {
				marginSum += classified.MarginPercent
				marginLines++
			}

			counts := perOutletCounts[outlets[i].ID]
			if counts == nil {
				counts = &outletCounts{outlet: outlets[i]}
				perOutletCounts[outlets[i].ID] = counts
			}
			counts.total++

			switch classified.Classification {
			case domain.Overstock:
				snap.Overstock = append(snap.Overstock, classified)
				snap.Summary.OverstockCount++
				counts.overstock++
			case domain.Understock:
				snap.Understock = append(snap.Understock, classified)
				snap.Summary.UnderstockCount++
				counts.understock++
			default:
				snap.Summary.BalancedCount++
			}
		}
	}

	if snap.Summary.LineCount == 0 {
		return nil, fmt.Errorf("empty inventory snapshot across %d outlets", len(outlets)-skipped)
	}
	if marginLines > 0 {
		snap.Summary.AvgMarginPercent = marginSum / float64(marginLines)
	}
	snap.Summary.Imbalances = imbalances(perOutletCounts)

	log.Info().
		Int("outlets", snap.Summary.OutletCount).
		Int("skipped", skipped).
		Int("lines", snap.Summary.LineCount).
		Int("overstock", snap.Summary.OverstockCount).
		Int("understock", snap.Summary.UnderstockCount).
		Msg("network analysis complete")

	return snap, nil
}

// classify derives days of stock, margin and the stock classification for one
// line. Lines below the velocity floor get sentinel days: too slow to call
// overstocked, still understock-eligible through their reorder point.
func (a *Analyzer) classify(line domain.InventoryLine) domain.InventoryLine {
	if line.DailyVelocity >= a.cfg.MinVelocity {
		line.DaysOfStock = line.InventoryLevel / line.DailyVelocity
	} else {
		line.DaysOfStock = a.cfg.SentinelDays
	}

	line.ProfitPerUnit = line.Product.RetailPrice - line.Product.SupplyPrice
	if line.Product.RetailPrice > 0 {
		line.MarginPercent = line.ProfitPerUnit / line.Product.RetailPrice * 100
	}

	switch {
	case a.isUnderstock(line):
		line.Classification = domain.Understock
	case a.isOverstock(line):
		line.Classification = domain.Overstock
	default:
		line.Classification = domain.Balanced
	}

	return line
}

func (a *Analyzer) isUnderstock(line domain.InventoryLine) bool {
	if line.ReorderPoint > 0 && line.InventoryLevel <= line.ReorderPoint {
		return true
	}
	return line.DailyVelocity >= a.cfg.MinVelocity && line.DaysOfStock < a.cfg.UnderstockDays
}

func (a *Analyzer) isOverstock(line domain.InventoryLine) bool {
	return line.DailyVelocity >= a.cfg.MinVelocity &&
		line.DaysOfStock > a.cfg.OverstockDays &&
		line.InventoryLevel > line.ReorderPoint*a.cfg.OverstockMultiplier
}

type outletCounts struct {
	outlet     domain.Outlet
	total      int
	overstock  int
	understock int
}

// imbalances flags outlets where one classification dominates the assortment.
// An outlet qualifies when at least five lines, and at least a fifth of its
// assortment, share the classification.
func imbalances(counts map[string]*outletCounts) []domain.OutletImbalance {
	var out []domain.OutletImbalance
	for _, c := range counts {
		threshold := max(5, c.total/5)
		if c.overstock >= threshold {
			out = append(out, domain.OutletImbalance{
				Type:          domain.Overstock,
				OutletID:      c.outlet.ID,
				OutletName:    c.outlet.Name,
				Severity:      c.overstock,
				ItemsAffected: c.overstock,
			})
		}
		if c.understock >= threshold {
			out = append(out, domain.OutletImbalance{
				Type:          domain.Understock,
				OutletID:      c.outlet.ID,
				OutletName:    c.outlet.Name,
				Severity:      c.understock,
				ItemsAffected: c.understock,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].OutletID < out[j].OutletID
	})
	return out
}
