// Package service wires the engine to its infrastructure: the network reader,
// the latest-run cache and the run archive.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/analyzer"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/cache"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/decisionlog"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/packrules"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/storage"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/pkg/logger"
)

// NetworkReader is everything the engine needs from persistence, plus the
// health probe.
type NetworkReader interface {
	analyzer.InventorySource
	packrules.Source
	ActiveOutletCount(ctx context.Context) (int, error)
}

// RunOverrides are per-request threshold overrides. Nil fields keep the
// configured value.
type RunOverrides struct {
	MinROIPercent      *float64 `json:"min_roi_percent,omitempty"`
	MaxShippingRatio   *float64 `json:"max_shipping_ratio,omitempty"`
	MinMarginPercent   *float64 `json:"min_margin_percent,omitempty"`
	MaxAutonomousValue *float64 `json:"max_autonomous_value,omitempty"`
	MaxRecommendations *int     `json:"max_recommendations,omitempty"`
	SimulationMode     *bool    `json:"simulation_mode,omitempty"`
	RunTimeoutSeconds  *int     `json:"run_timeout_seconds,omitempty"`
}

// Health is the service health report.
type Health struct {
	Status        string `json:"status"`
	Database      bool   `json:"database"`
	ActiveOutlets int    `json:"active_outlets"`
	Error         string `json:"error,omitempty"`
}

type TransferService struct {
	reader  NetworkReader
	cfg     config.EngineConfig
	cache   cache.RunCache
	archive storage.ObjectStorage
}

// NewTransferService builds the service. archive may be nil when no run
// archive is configured.
func NewTransferService(reader NetworkReader, cfg config.EngineConfig, runCache cache.RunCache, archive storage.ObjectStorage) *TransferService {
	if runCache == nil {
		runCache = cache.NewNoopRunCache()
	}
	return &TransferService{
		reader:  reader,
		cfg:     cfg,
		cache:   runCache,
		archive: archive,
	}
}

// Analyze executes one engine run with the given overrides, caches the result
// and archives it. Cache and archive failures are logged, never returned.
func (s *TransferService) Analyze(ctx context.Context, overrides *RunOverrides) (*engine.RunResult, error) {
	cfg := s.cfg
	applyOverrides(&cfg, overrides)

	emitter := decisionlog.ZerologEmitter{Logger: logger.Log}
	result, err := engine.New(s.reader, s.reader, cfg, emitter).Run(ctx)
	if err != nil {
		return result, err
	}

	if cacheErr := s.cache.SetLatest(ctx, result); cacheErr != nil {
		log.Warn().Err(cacheErr).Str("session_id", result.SessionID).Msg("run cache write failed")
	}
	s.archiveRun(result)

	return result, nil
}

// Latest returns the most recent cached run.
func (s *TransferService) Latest(ctx context.Context) (*engine.RunResult, bool, error) {
	return s.cache.GetLatest(ctx)
}

// Run returns one cached run by session ID.
func (s *TransferService) Run(ctx context.Context, sessionID string) (*engine.RunResult, bool, error) {
	return s.cache.GetRun(ctx, sessionID)
}

// FlushRuns drops every cached run, latest pointer included.
func (s *TransferService) FlushRuns(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// EngineConfig exposes the effective engine thresholds.
func (s *TransferService) EngineConfig() config.EngineConfig {
	return s.cfg
}

// HealthCheck probes the database and reports the active outlet count.
func (s *TransferService) HealthCheck(ctx context.Context) Health {
	count, err := s.reader.ActiveOutletCount(ctx)
	if err != nil {
		return Health{Status: "unhealthy", Error: err.Error()}
	}
	return Health{Status: "ok", Database: true, ActiveOutlets: count}
}

// ArchivedRuns lists archived run payloads, newest keys last.
func (s *TransferService) ArchivedRuns(ctx context.Context) ([]storage.ObjectInfo, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.ListObjects(ctx, "runs/")
}

// archiveRun uploads the run payload in the background. The run has already
// been returned to the caller; failure here only loses the archive copy.
func (s *TransferService) archiveRun(result *engine.RunResult) {
	if s.archive == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Str("session_id", result.SessionID).Msg("run archive encode failed")
		return
	}
	key := archiveKey(result)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archive.UploadObject(ctx, key, payload); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("run archive upload failed")
		}
	}()
}

func archiveKey(result *engine.RunResult) string {
	return fmt.Sprintf("runs/%s/%s.json", result.StartedAt.Format("2006/01/02"), result.SessionID)
}

func applyOverrides(cfg *config.EngineConfig, overrides *RunOverrides) {
	if overrides == nil {
		return
	}
	if overrides.MinROIPercent != nil {
		cfg.MinROIPercent = *overrides.MinROIPercent
	}
	if overrides.MaxShippingRatio != nil {
		cfg.MaxShippingRatio = *overrides.MaxShippingRatio
	}
	if overrides.MinMarginPercent != nil {
		cfg.MinMarginPercent = *overrides.MinMarginPercent
	}
	if overrides.MaxAutonomousValue != nil {
		cfg.MaxAutonomousValue = *overrides.MaxAutonomousValue
	}
	if overrides.MaxRecommendations != nil {
		cfg.MaxRecommendations = *overrides.MaxRecommendations
	}
	if overrides.SimulationMode != nil {
		cfg.SimulationMode = *overrides.SimulationMode
	}
	if overrides.RunTimeoutSeconds != nil {
		cfg.RunTimeout = time.Duration(*overrides.RunTimeoutSeconds) * time.Second
	}
}
