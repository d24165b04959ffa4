// Package viability prices transfer candidates and rejects the ones that do
// not pay for their own freight. Rejections are data, not errors: every failed
// check leaves a reason on the opportunity.
package viability

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/freight"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/packrules"
)

// ROISentinel is reported when shipping is effectively free and the ROI ratio
// is undefined. Free shipping always passes the ROI check.
const ROISentinel = 999.0

const (
	ReasonBelowPack     = "quantity below one pack"
	ReasonBelowMinValue = "transfer value below minimum"
	ReasonLowROI        = "roi below minimum"
	ReasonShippingRatio = "shipping ratio above maximum"
	ReasonLowMargin     = "source margin below minimum"
)

type Filter struct {
	cfg     config.EngineConfig
	freight *freight.Calculator
	packs   *packrules.Resolver
}

func New(cfg config.EngineConfig, calc *freight.Calculator, packs *packrules.Resolver) *Filter {
	return &Filter{cfg: cfg, freight: calc, packs: packs}
}

// Apply evaluates every candidate on a bounded worker pool and splits viable
// from rejected. Input order is preserved.
func (f *Filter) Apply(ctx context.Context, candidates []domain.TransferOpportunity) (viable, rejected []domain.TransferOpportunity) {
	results := make([]domain.TransferOpportunity, len(candidates))

	workers := f.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = f.Evaluate(ctx, candidates[i])
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, evaluated := range results {
		if evaluated.Viable {
			viable = append(viable, evaluated)
		} else {
			rejected = append(rejected, evaluated)
		}
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("viable", len(viable)).
		Int("rejected", len(rejected)).
		Msg("viability filtering complete")

	return viable, rejected
}

// Evaluate prices one candidate and runs every check. It is a pure function of
// the candidate's inputs: evaluating an already-evaluated opportunity yields
// the same result.
func (f *Filter) Evaluate(ctx context.Context, opp domain.TransferOpportunity) domain.TransferOpportunity {
	opp.Viable = false
	opp.RejectionReasons = nil

	rule := f.packs.Resolve(ctx, opp.Product)
	opp.PackSize = rule.PackSize
	opp.FinalQty = f.packCompliantQty(opp, rule)

	if opp.FinalQty <= 0 {
		opp.ProductValue, opp.ProfitPotential, opp.ShippingCost = 0, 0, 0
		opp.NetBenefit, opp.ROIPercent, opp.WeightGrams = 0, 0, 0
		opp.RejectionReasons = append(opp.RejectionReasons,
			fmt.Sprintf("%s (suggested %d, pack %d)", ReasonBelowPack, opp.SuggestedQty, rule.PackSize))
		return opp
	}

	unitWeight := opp.Product.WeightGrams
	if unitWeight <= 0 {
		unitWeight = f.cfg.DefaultWeightGrams
	}
	opp.WeightGrams = float64(opp.FinalQty) * unitWeight
	opp.ProductValue = float64(opp.FinalQty) * opp.Product.RetailPrice
	opp.ProfitPotential = float64(opp.FinalQty) * opp.Source.ProfitPerUnit
	opp.ShippingCost = f.freight.Cost(opp.Source.Outlet, opp.Target.Outlet, int(opp.WeightGrams))
	opp.NetBenefit = opp.ProfitPotential - opp.ShippingCost

	if opp.ShippingCost > 0.01 {
		opp.ROIPercent = opp.NetBenefit / opp.ShippingCost * 100
	} else {
		opp.ROIPercent = ROISentinel
	}

	var reasons []string
	if opp.ProductValue < f.cfg.MinTransferValue {
		reasons = append(reasons, fmt.Sprintf("%s ($%.2f < $%.2f)", ReasonBelowMinValue, opp.ProductValue, f.cfg.MinTransferValue))
	}
	if opp.ROIPercent < f.cfg.MinROIPercent {
		reasons = append(reasons, fmt.Sprintf("%s (%.1f%% < %.1f%%)", ReasonLowROI, opp.ROIPercent, f.cfg.MinROIPercent))
	}
	if opp.ProductValue > 0 && opp.ShippingCost/opp.ProductValue > f.cfg.MaxShippingRatio {
		reasons = append(reasons, fmt.Sprintf("%s (%.2f > %.2f)", ReasonShippingRatio, opp.ShippingCost/opp.ProductValue, f.cfg.MaxShippingRatio))
	}
	if opp.Source.MarginPercent < f.cfg.MinMarginPercent {
		reasons = append(reasons, fmt.Sprintf("%s (%.1f%% < %.1f%%)", ReasonLowMargin, opp.Source.MarginPercent, f.cfg.MinMarginPercent))
	}

	opp.RejectionReasons = reasons
	opp.Viable = len(reasons) == 0

	return opp
}

// packCompliantQty floors the suggested quantity to whole packs. A quantity
// just short of a single pack is topped up to one pack when the suggestion
// covers at least 80% of it and the source holds at least two packs of excess,
// so near-miss transfers are not lost to rounding.
func (f *Filter) packCompliantQty(opp domain.TransferOpportunity, rule domain.PackRule) int {
	floored := rule
	floored.RoundingMode = domain.RoundFloor

	qty := packrules.Snap(opp.SuggestedQty, floored)
	if qty > 0 || rule.PackSize <= 1 {
		return qty
	}

	excess := opp.Source.InventoryLevel - opp.Source.DailyVelocity*f.cfg.UnderstockDays
	if float64(opp.SuggestedQty) >= 0.8*float64(rule.PackSize) && excess >= float64(2*rule.PackSize) {
		return rule.PackSize
	}
	return 0
}
