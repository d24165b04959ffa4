package assembler

import (
	"math"
	"testing"
	"time"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

func testAssembler(cfg config.EngineConfig) *Assembler {
	a := New(cfg)
	a.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }
	return a
}

// batch builds a priced batch with the given line count, all lines sharing the
// same source days-of-stock.
func batch(target string, value, costEff, margin float64, lines int, sourceDays, shipping, net float64) domain.TransferBatch {
	b := domain.TransferBatch{
		Source:         domain.Outlet{ID: "x", Name: "Store X"},
		Target:         domain.Outlet{ID: target, Name: target},
		TotalValue:     value,
		CostEfficiency: costEff,
		MarginPercent:  margin,
		ShippingCost:   shipping,
		NetBenefit:     net,
	}
	for i := 0; i < lines; i++ {
		b.Opportunities = append(b.Opportunities, domain.TransferOpportunity{
			Source:       domain.InventoryLine{Outlet: b.Source, DaysOfStock: sourceDays},
			Target:       domain.InventoryLine{Outlet: b.Target},
			SuggestedQty: 10,
			FinalQty:     10,
		})
	}
	return b
}

func TestConfidenceBlend(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())
	b := batch("y", 580, 0.939, 60, 1, 120, 35.40, 312.60)

	oppScore := opportunityScore(b)
	if math.Abs(oppScore-12.58) > 0.001 {
		t.Fatalf("opportunity score=%v want=12.58", oppScore)
	}

	// 0.939*0.30 + 0.60*0.25 + 0.1258*0.20 + 0.1*0.15 + 0.58*0.10
	conf := a.confidence(b, oppScore)
	if math.Abs(conf-0.52986) > 0.0001 {
		t.Fatalf("confidence=%v want~0.52986", conf)
	}
}

func TestActionThresholds(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())

	tests := []struct {
		name       string
		confidence float64
		costEff    float64
		want       domain.RecommendedAction
	}{
		{"high confidence and cheap freight executes", 0.90, 0.85, domain.ActionExecuteImmediately},
		{"solid confidence schedules", 0.75, 0.65, domain.ActionScheduleDelivery},
		{"high confidence but costly freight schedules", 0.90, 0.70, domain.ActionScheduleDelivery},
		{"low confidence goes to review", 0.50, 0.95, domain.ActionManualReview},
		{"costly freight goes to review", 0.75, 0.40, domain.ActionManualReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.action(tt.confidence, tt.costEff); got != tt.want {
				t.Fatalf("action=%s want=%s", got, tt.want)
			}
		})
	}
}

func TestPriorityThresholds(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())

	// value/1000 + confidence*50 + understock*10
	tests := []struct {
		name       string
		value      float64
		confidence float64
		understock int
		want       domain.PriorityLevel
	}{
		{"large urgent transfer is high", 4000, 0.9, 4, domain.PriorityHigh}, // 4 + 45 + 40 = 89
		{"middling transfer is medium", 2000, 0.7, 1, domain.PriorityMedium}, // 2 + 35 + 10 = 47
		{"small transfer is low", 500, 0.5, 1, domain.PriorityLow},           // 0.5 + 25 + 10 = 35.5
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := batch("y", tt.value, 0.9, 60, 1, 100, 20, 100)
			if got := a.priority(b, tt.confidence, tt.understock); got != tt.want {
				t.Fatalf("priority=%s want=%s", got, tt.want)
			}
		})
	}
}

func TestAssembleExecuteImmediately(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())
	// free freight, full margin, deep overstock: confidence ~0.854
	b := batch("y", 2000, 1.0, 100, 10, 250, 0, 2000)

	result := a.Assemble("TURBO_20260829100000_deadbeef", []domain.TransferBatch{b}, nil)
	if len(result.Recommendations) != 1 {
		t.Fatalf("recommendations=%d want=1", len(result.Recommendations))
	}
	rec := result.Recommendations[0]
	if rec.Action != domain.ActionExecuteImmediately {
		t.Fatalf("action=%s want=EXECUTE_IMMEDIATELY (conf=%v)", rec.Action, rec.Decision.Confidence)
	}
	if rec.ID != "TURBO_20260829100000_deadbeef_R001" {
		t.Fatalf("id=%s", rec.ID)
	}
	if rec.Decision.ROIPercent != 999 {
		t.Fatalf("roi=%v want sentinel on free freight", rec.Decision.ROIPercent)
	}
}

func TestAssembleApprovalCeiling(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())
	over := batch("y", 6000, 1.0, 100, 10, 250, 0, 6000)
	under := batch("z", 2000, 1.0, 100, 10, 250, 0, 2000)

	result := a.Assemble("s", []domain.TransferBatch{over, under}, nil)
	if len(result.Recommendations) != 1 || len(result.PendingApproval) != 1 {
		t.Fatalf("recs=%d pending=%d want 1/1", len(result.Recommendations), len(result.PendingApproval))
	}

	pending := result.PendingApproval[0]
	if !pending.RequiresApproval {
		t.Fatal("pending recommendation must require approval")
	}
	if pending.Action != domain.ActionManualReview {
		t.Fatalf("action=%s want=MANUAL_REVIEW despite high scores", pending.Action)
	}
	for _, rec := range result.Recommendations {
		if rec.RequiresApproval {
			t.Fatal("approval-bound recommendation leaked into the main list")
		}
	}
	if result.Summary.PendingApproval != 1 {
		t.Fatalf("summary pending=%d want=1", result.Summary.PendingApproval)
	}
}

func TestAssembleSortsAndCaps(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.MaxRecommendations = 2
	a := testAssembler(cfg)

	batches := []domain.TransferBatch{
		batch("low", 300, 0.5, 30, 1, 40, 20, 50),
		batch("high", 4000, 1.0, 100, 10, 250, 0, 4000),
		batch("mid", 2000, 0.9, 80, 5, 100, 30, 1500),
	}

	result := a.Assemble("s", batches, map[string]int{"high": 4})
	if len(result.Recommendations) != 2 {
		t.Fatalf("recommendations=%d want=2 (capped)", len(result.Recommendations))
	}
	if result.Recommendations[0].Target.ID != "high" {
		t.Fatalf("first=%s want=high", result.Recommendations[0].Target.ID)
	}
	if domain.PriorityOrder(result.Recommendations[0].Priority) > domain.PriorityOrder(result.Recommendations[1].Priority) {
		t.Fatal("priority order violated")
	}
}

func TestAssembleExpiry(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())
	result := a.Assemble("s", []domain.TransferBatch{batch("y", 580, 0.9, 60, 1, 120, 35, 300)}, nil)

	rec := result.Recommendations[0]
	if !rec.ExpiresAt.Equal(rec.CreatedAt.Add(4 * time.Hour)) {
		t.Fatalf("expiry=%v created=%v want 4h ttl", rec.ExpiresAt, rec.CreatedAt)
	}
}

func TestSummarize(t *testing.T) {
	a := testAssembler(config.DefaultEngineConfig())
	batches := []domain.TransferBatch{
		batch("y", 2000, 1.0, 100, 10, 250, 0, 2000),
		batch("z", 300, 0.5, 30, 1, 40, 20, 50),
	}

	result := a.Assemble("s", batches, nil)
	s := result.Summary
	if s.TotalRecommendations != 2 {
		t.Fatalf("total=%d want=2", s.TotalRecommendations)
	}
	if s.TotalValue != 2300 || s.EstimatedNetBenefit != 2050 {
		t.Fatalf("value=%v net=%v", s.TotalValue, s.EstimatedNetBenefit)
	}
	if s.ExecuteImmediately != 1 || s.ManualReview != 1 {
		t.Fatalf("actions exec=%d review=%d want 1/1", s.ExecuteImmediately, s.ManualReview)
	}
	if s.TotalItems != 110 {
		t.Fatalf("items=%d want=110", s.TotalItems)
	}
}
