// Package engine orchestrates one analysis run through its stages:
// ANALYZING -> MATCHING -> FILTERING -> OPTIMIZING -> ASSEMBLING. The run
// deadline is checked at every stage boundary; hitting it ends the run with a
// partial result rather than an error.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/analyzer"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/assembler"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/decisionlog"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/freight"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/matcher"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/optimizer"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/packrules"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/viability"
)

// RunResult is the complete outcome of one run. It is immutable once returned.
type RunResult struct {
	SessionID      string          `json:"session_id"`
	State          domain.RunStage `json:"state"`
	Partial        bool            `json:"partial"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	Message        string          `json:"message,omitempty"`
	SimulationMode bool            `json:"simulation_mode"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`

	Network         domain.NetworkSummary   `json:"network_summary"`
	Executive       domain.ExecutiveSummary `json:"executive_summary"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	PendingApproval []domain.Recommendation `json:"pending_approval"`
	RejectedCount   int                     `json:"rejected_count"`

	InfluenceFactors map[string]float64  `json:"influence_factors"`
	DecisionLog      []decisionlog.Event `json:"decision_log"`
}

type Engine struct {
	cfg        config.EngineConfig
	source     analyzer.InventorySource
	packSource packrules.Source
	emitter    decisionlog.Emitter
}

func New(source analyzer.InventorySource, packSource packrules.Source, cfg config.EngineConfig, emitter decisionlog.Emitter) *Engine {
	return &Engine{
		cfg:        cfg,
		source:     source,
		packSource: packSource,
		emitter:    emitter,
	}
}

// run carries the mutable state of one execution.
type run struct {
	engine   *Engine
	ctx      context.Context
	recorder *decisionlog.Recorder
	result   *RunResult

	influence map[string]float64
}

// Run executes one full analysis. A fatal stage error ends the run FAILED with
// whatever was produced so far; the error describes the failing stage.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	sessionID := NewSessionID(time.Now())
	r := &run{
		engine:   e,
		ctx:      ctx,
		recorder: decisionlog.NewRecorder(sessionID, e.emitter),
		result: &RunResult{
			SessionID:      sessionID,
			State:          domain.StageIdle,
			SimulationMode: e.cfg.SimulationMode,
			StartedAt:      time.Now(),
		},
		influence: make(map[string]float64),
	}

	result, err := r.execute()
	result.CompletedAt = time.Now()
	result.DurationMS = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	result.InfluenceFactors = r.influence
	result.DecisionLog = r.recorder.Events()

	log.Info().
		Str("session_id", result.SessionID).
		Str("state", string(result.State)).
		Bool("partial", result.Partial).
		Int("recommendations", len(result.Recommendations)).
		Int64("duration_ms", result.DurationMS).
		Msg("run finished")

	return result, err
}

func (r *run) execute() (*RunResult, error) {
	cfg := r.engine.cfg

	// ANALYZING
	r.enter(domain.StageAnalyzing, "reading network inventory")
	snap, err := analyzer.New(r.engine.source, cfg).Analyze(r.ctx)
	if err != nil {
		return r.fail(domain.StageAnalyzing, err)
	}
	r.weigh("stock_levels", 0.30)
	r.weigh("demand_forecast", 0.15)
	r.mark(domain.StageAnalyzing, "network analyzed", map[string]any{
		"outlets":    snap.Summary.OutletCount,
		"lines":      snap.Summary.LineCount,
		"overstock":  snap.Summary.OverstockCount,
		"understock": snap.Summary.UnderstockCount,
	})
	r.result.Network = snap.Summary
	if r.expired(domain.StageAnalyzing) {
		return r.partial("deadline reached after network analysis")
	}

	// MATCHING
	r.enter(domain.StageMatching, "matching overstock to understock")
	candidates := matcher.New(cfg).Match(snap)
	r.weigh("stock_levels", 0.10)
	r.mark(domain.StageMatching, "candidates matched", map[string]any{"candidates": len(candidates)})
	if r.expired(domain.StageMatching) {
		return r.partial("deadline reached after matching")
	}

	// FILTERING
	r.enter(domain.StageFiltering, "filtering for financial viability")
	packs := packrules.NewResolver(r.engine.packSource)
	calc := freight.NewCalculator(cfg)
	viable, rejected := viability.New(cfg, calc, packs).Apply(r.ctx, candidates)
	r.result.RejectedCount = len(rejected)
	r.weigh("pack_compliance", 0.15)
	r.weigh("shipping_costs", 0.15)
	r.weigh("profit_margins", 0.15)
	r.mark(domain.StageFiltering, "viability filtered", map[string]any{
		"viable":   len(viable),
		"rejected": len(rejected),
	})
	if r.expired(domain.StageFiltering) {
		return r.partial("deadline reached after viability filtering")
	}

	// OPTIMIZING
	r.enter(domain.StageOptimizing, "consolidating batches and routes")
	batches := optimizer.New(cfg, calc).Optimize(viable)
	r.weigh("route_efficiency", 0.10)
	r.mark(domain.StageOptimizing, "batches optimized", map[string]any{"batches": len(batches)})
	if r.expired(domain.StageOptimizing) {
		return r.partial("deadline reached after batch optimization")
	}

	// ASSEMBLING
	r.enter(domain.StageAssembling, "assembling recommendations")
	understockByOutlet := make(map[string]int)
	for _, line := range snap.Understock {
		understockByOutlet[line.Outlet.ID]++
	}
	assembled := assembler.New(cfg).Assemble(r.result.SessionID, batches, understockByOutlet)
	r.result.Recommendations = assembled.Recommendations
	r.result.PendingApproval = assembled.PendingApproval
	r.result.Executive = assembled.Summary
	r.mark(domain.StageAssembling, "recommendations assembled", map[string]any{
		"recommendations":  len(assembled.Recommendations),
		"pending_approval": len(assembled.PendingApproval),
	})

	r.result.State = domain.StageDone
	if len(assembled.Recommendations) == 0 && len(assembled.PendingApproval) == 0 {
		r.result.Message = "no transfer opportunities found"
	}
	r.mark(domain.StageDone, "run complete", nil)

	return r.result, nil
}

func (r *run) enter(stage domain.RunStage, message string) {
	r.result.State = stage
	r.recorder.Record(string(stage), "stage_start", message, nil, r.influence)
}

func (r *run) mark(stage domain.RunStage, message string, data map[string]any) {
	r.recorder.Record(string(stage), "stage_complete", message, data, r.influence)
}

// weigh accumulates an influence factor's weight for the run.
func (r *run) weigh(factor string, weight float64) {
	r.influence[factor] += weight
}

func (r *run) expired(stage domain.RunStage) bool {
	select {
	case <-r.ctx.Done():
		r.recorder.Record(string(stage), "deadline", "run deadline reached", nil, r.influence)
		return true
	default:
		return false
	}
}

func (r *run) partial(message string) (*RunResult, error) {
	r.result.State = domain.StageDone
	r.result.Partial = true
	r.result.Message = message
	return r.result, nil
}

func (r *run) fail(stage domain.RunStage, err error) (*RunResult, error) {
	r.result.State = domain.StageFailed
	r.result.FailureReason = err.Error()
	r.recorder.Record(string(stage), "stage_failed", err.Error(), nil, r.influence)
	return r.result, fmt.Errorf("%s stage: %w", stage, err)
}

// NewSessionID builds a run session identifier: a timestamp plus a random
// suffix, sortable by start time.
func NewSessionID(now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("TURBO_%s_%s", now.Format("20060102150405"), hex.EncodeToString(suffix))
}
