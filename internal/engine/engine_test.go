package engine

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
)

type stubSource struct {
	outlets   []domain.Outlet
	inventory map[string][]domain.InventoryLine
	listErr   error
}

func (s *stubSource) Outlets(_ context.Context) ([]domain.Outlet, error) {
	return s.outlets, s.listErr
}

func (s *stubSource) OutletInventory(_ context.Context, outletID string) ([]domain.InventoryLine, error) {
	return s.inventory[outletID], nil
}

func transferableNetwork() *stubSource {
	x := domain.Outlet{ID: "x", Name: "Store X"}
	y := domain.Outlet{ID: "y", Name: "Store Y"}
	product := domain.Product{ID: "p1", Name: "Nic Salt 30ml", RetailPrice: 10, SupplyPrice: 4}

	return &stubSource{
		outlets: []domain.Outlet{x, y},
		inventory: map[string][]domain.InventoryLine{
			"x": {{Outlet: x, Product: product, InventoryLevel: 120, ReorderPoint: 10, DailyVelocity: 1.0}},
			"y": {{Outlet: y, Product: product, InventoryLevel: 2, DailyVelocity: 2.0}},
		},
	}
}

func balancedNetwork() *stubSource {
	x := domain.Outlet{ID: "x", Name: "Store X"}
	product := domain.Product{ID: "p1", Name: "Nic Salt 30ml", RetailPrice: 10, SupplyPrice: 4}

	return &stubSource{
		outlets: []domain.Outlet{x},
		inventory: map[string][]domain.InventoryLine{
			"x": {{Outlet: x, Product: product, InventoryLevel: 20, ReorderPoint: 5, DailyVelocity: 1.0}},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	e := New(transferableNetwork(), nil, config.DefaultEngineConfig(), nil)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.State != domain.StageDone || result.Partial {
		t.Fatalf("state=%s partial=%v", result.State, result.Partial)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("recommendations=%d want=1", len(result.Recommendations))
	}

	rec := result.Recommendations[0]
	if rec.Source.ID != "x" || rec.Target.ID != "y" {
		t.Fatalf("lane=%s->%s want x->y", rec.Source.ID, rec.Target.ID)
	}
	// source keeps 7 days of cover, target tops up to 30 days
	if rec.Logistics.TotalItems != 58 {
		t.Fatalf("items=%d want=58", rec.Logistics.TotalItems)
	}
	if result.Network.OverstockCount != 1 || result.Network.UnderstockCount != 1 {
		t.Fatalf("network=%+v", result.Network)
	}
	if result.Executive.TotalRecommendations != 1 {
		t.Fatalf("executive=%+v", result.Executive)
	}
}

func TestRunStageTrail(t *testing.T) {
	e := New(transferableNetwork(), nil, config.DefaultEngineConfig(), nil)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.DecisionLog) == 0 {
		t.Fatal("empty decision log")
	}

	first := result.DecisionLog[0]
	if first.Stage != string(domain.StageAnalyzing) || first.Type != "stage_start" {
		t.Fatalf("first event=%+v", first)
	}
	last := result.DecisionLog[len(result.DecisionLog)-1]
	if last.Stage != string(domain.StageDone) {
		t.Fatalf("last event stage=%s want DONE", last.Stage)
	}
	for _, event := range result.DecisionLog {
		if event.SessionID != result.SessionID {
			t.Fatalf("event session=%s want=%s", event.SessionID, result.SessionID)
		}
	}
}

func TestRunInfluenceFactors(t *testing.T) {
	e := New(transferableNetwork(), nil, config.DefaultEngineConfig(), nil)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, factor := range []string{"stock_levels", "demand_forecast", "pack_compliance", "shipping_costs", "profit_margins", "route_efficiency"} {
		if result.InfluenceFactors[factor] <= 0 {
			t.Fatalf("factor %s missing: %+v", factor, result.InfluenceFactors)
		}
	}
}

func TestRunNoOpportunities(t *testing.T) {
	e := New(balancedNetwork(), nil, config.DefaultEngineConfig(), nil)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.State != domain.StageDone {
		t.Fatalf("state=%s want DONE", result.State)
	}
	if len(result.Recommendations) != 0 {
		t.Fatalf("recommendations=%d want=0", len(result.Recommendations))
	}
	if result.Message != "no transfer opportunities found" {
		t.Fatalf("message=%q", result.Message)
	}
}

func TestRunFailsOnSourceError(t *testing.T) {
	e := New(&stubSource{listErr: errors.New("db down")}, nil, config.DefaultEngineConfig(), nil)

	result, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if result.State != domain.StageFailed {
		t.Fatalf("state=%s want FAILED", result.State)
	}
	if result.FailureReason == "" {
		t.Fatal("missing failure reason")
	}
}

func TestRunPartialOnDeadline(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.RunTimeout = 0 // caller-controlled deadline

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(transferableNetwork(), nil, cfg, nil).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Partial {
		t.Fatal("expected partial result")
	}
	if result.State != domain.StageDone {
		t.Fatalf("state=%s want DONE", result.State)
	}
	// analysis completed before the boundary check fired
	if result.Network.LineCount == 0 {
		t.Fatal("network summary missing from partial result")
	}
	if len(result.Recommendations) != 0 {
		t.Fatalf("recommendations=%d want=0 on early deadline", len(result.Recommendations))
	}
}

func TestNewSessionID(t *testing.T) {
	pattern := regexp.MustCompile(`^TURBO_\d{14}_[0-9a-f]{8}$`)
	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	id := NewSessionID(now)
	if !pattern.MatchString(id) {
		t.Fatalf("session id %q does not match format", id)
	}
	if id[:20] != "TURBO_20260829103000" {
		t.Fatalf("timestamp part wrong: %s", id)
	}
	if NewSessionID(now) == id {
		t.Fatal("session ids must be unique per run")
	}
}
