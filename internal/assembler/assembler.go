// Package assembler turns optimized batches into finalized, scored
// recommendations: confidence, priority, recommended action, approval
// routing and expiry.
package assembler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

// Confidence weights. They must sum to one; confidence is a blend, not a score
// any single factor can max out.
const (
	weightCostEfficiency = 0.30
	weightMargin         = 0.25
	weightOpportunity    = 0.20
	weightDepth          = 0.15
	weightValue          = 0.10
)

// Action and priority thresholds.
const (
	executeConfidence  = 0.85
	executeCostEff     = 0.80
	scheduleConfidence = 0.70
	scheduleCostEff    = 0.60

	highPriorityScore   = 80.0
	mediumPriorityScore = 40.0
)

type Assembler struct {
	cfg config.EngineConfig
	now func() time.Time
}

func New(cfg config.EngineConfig) *Assembler {
	return &Assembler{cfg: cfg, now: time.Now}
}

// Result splits finalized recommendations from those diverted for approval.
type Result struct {
	Recommendations []domain.Recommendation
	PendingApproval []domain.Recommendation
	Summary         domain.ExecutiveSummary
}

// Assemble scores every batch, routes over-ceiling ones to the approval
// bucket, sorts by priority then confidence, and caps the main list at
// MaxRecommendations.
func (a *Assembler) Assemble(sessionID string, batches []domain.TransferBatch, understockByOutlet map[string]int) Result {
	now := a.now()
	var result Result

	for i, batch := range batches {
		rec := a.build(sessionID, i+1, batch, understockByOutlet[batch.Target.ID], now)
		if rec.RequiresApproval {
			result.PendingApproval = append(result.PendingApproval, rec)
		} else {
			result.Recommendations = append(result.Recommendations, rec)
		}
	}

	sortRecommendations(result.Recommendations)
	sortRecommendations(result.PendingApproval)

	if len(result.Recommendations) > a.cfg.MaxRecommendations {
		dropped := len(result.Recommendations) - a.cfg.MaxRecommendations
		result.Recommendations = result.Recommendations[:a.cfg.MaxRecommendations]
		log.Info().Int("dropped", dropped).Msg("recommendation cap applied")
	}

	result.Summary = summarize(result.Recommendations, result.PendingApproval)

	return result
}

func (a *Assembler) build(sessionID string, seq int, batch domain.TransferBatch, targetUnderstock int, now time.Time) domain.Recommendation {
	oppScore := opportunityScore(batch)
	confidence := a.confidence(batch, oppScore)
	priority := a.priority(batch, confidence, targetUnderstock)
	action := a.action(confidence, batch.CostEfficiency)

	roi := 999.0
	if batch.ShippingCost > 0.01 {
		roi = batch.NetBenefit / batch.ShippingCost * 100
	}

	rec := domain.Recommendation{
		ID:     fmt.Sprintf("%s_R%03d", sessionID, seq),
		Source: batch.Source,
		Target: batch.Target,
		Batch:  batch,
		Financial: domain.FinancialSummary{
			TotalValue:    batch.TotalValue,
			ShippingCost:  batch.ShippingCost,
			MarginPercent: batch.MarginPercent,
			NetBenefit:    batch.NetBenefit,
		},
		Logistics: domain.LogisticsSummary{
			TotalItems:    batch.ItemCount(),
			TotalWeightKG: batch.TotalWeightKG,
			Container:     batch.Container,
			Route:         batch.Route,
		},
		Decision: domain.DecisionBreakdown{
			OpportunityScore:   oppScore,
			Confidence:         confidence,
			CostEfficiency:     batch.CostEfficiency,
			PackComplianceRate: packComplianceRate(batch),
			ROIPercent:         roi,
		},
		Priority:  priority,
		Action:    action,
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.RecommendationTTL),
	}

	// Over the autonomous ceiling a human signs off, whatever the scores say.
	if batch.TotalValue > a.cfg.MaxAutonomousValue {
		rec.RequiresApproval = true
		rec.Action = domain.ActionManualReview
	}

	return rec
}

// opportunityScore blends transfer value with how deep the source was sitting
// on the stock.
func opportunityScore(batch domain.TransferBatch) float64 {
	daysSum := 0.0
	for _, opp := range batch.Opportunities {
		daysSum += opp.Source.DaysOfStock
	}
	avgDays := 0.0
	if len(batch.Opportunities) > 0 {
		avgDays = daysSum / float64(len(batch.Opportunities))
	}
	return batch.TotalValue/1000 + avgDays/10
}

func (a *Assembler) confidence(batch domain.TransferBatch, oppScore float64) float64 {
	return batch.CostEfficiency*weightCostEfficiency +
		math.Min(1, batch.MarginPercent/100)*weightMargin +
		math.Min(1, oppScore/100)*weightOpportunity +
		math.Min(1, float64(len(batch.Opportunities))/10)*weightDepth +
		math.Min(1, batch.TotalValue/1000)*weightValue
}

func (a *Assembler) priority(batch domain.TransferBatch, confidence float64, targetUnderstock int) domain.PriorityLevel {
	score := batch.TotalValue/1000 + confidence*50 + float64(targetUnderstock)*10
	switch {
	case score >= highPriorityScore:
		return domain.PriorityHigh
	case score >= mediumPriorityScore:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func (a *Assembler) action(confidence, costEfficiency float64) domain.RecommendedAction {
	switch {
	case confidence >= executeConfidence && costEfficiency >= executeCostEff:
		return domain.ActionExecuteImmediately
	case confidence >= scheduleConfidence && costEfficiency >= scheduleCostEff:
		return domain.ActionScheduleDelivery
	default:
		return domain.ActionManualReview
	}
}

// packComplianceRate is the share of suggested units that survived pack
// rounding.
func packComplianceRate(batch domain.TransferBatch) float64 {
	suggested, final := 0, 0
	for _, opp := range batch.Opportunities {
		suggested += opp.SuggestedQty
		final += opp.FinalQty
	}
	if suggested == 0 {
		return 0
	}
	return math.Min(1, float64(final)/float64(suggested))
}

func sortRecommendations(recs []domain.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		pi, pj := domain.PriorityOrder(recs[i].Priority), domain.PriorityOrder(recs[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return recs[i].Decision.Confidence > recs[j].Decision.Confidence
	})
}

func summarize(recs, pending []domain.Recommendation) domain.ExecutiveSummary {
	var summary domain.ExecutiveSummary
	summary.TotalRecommendations = len(recs)
	summary.PendingApproval = len(pending)

	roiSum, confSum := 0.0, 0.0
	all := append(append([]domain.Recommendation{}, recs...), pending...)
	for _, rec := range all {
		summary.TotalValue += rec.Financial.TotalValue
		summary.TotalShippingCost += rec.Financial.ShippingCost
		summary.EstimatedNetBenefit += rec.Financial.NetBenefit
		summary.TotalItems += rec.Logistics.TotalItems
		summary.TotalWeightKG += rec.Logistics.TotalWeightKG
		roiSum += rec.Decision.ROIPercent
		confSum += rec.Decision.Confidence

		switch rec.Priority {
		case domain.PriorityHigh:
			summary.HighPriority++
		case domain.PriorityMedium:
			summary.MediumPriority++
		default:
			summary.LowPriority++
		}
		switch rec.Action {
		case domain.ActionExecuteImmediately:
			summary.ExecuteImmediately++
		case domain.ActionScheduleDelivery:
			summary.ScheduleDelivery++
		default:
			summary.ManualReview++
		}
	}
	if len(all) > 0 {
		summary.AvgROIPercent = roiSum / float64(len(all))
		summary.AvgConfidence = confSum / float64(len(all))
	}

	return summary
}
