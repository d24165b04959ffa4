package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/domain"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/storage"
)

type stubReader struct {
	outlets   []domain.Outlet
	inventory map[string][]domain.InventoryLine
}

func (s *stubReader) Outlets(_ context.Context) ([]domain.Outlet, error) {
	return s.outlets, nil
}

func (s *stubReader) OutletInventory(_ context.Context, outletID string) ([]domain.InventoryLine, error) {
	return s.inventory[outletID], nil
}

func (s *stubReader) ProductRule(context.Context, string) (*domain.PackRule, error) {
	return nil, nil
}

func (s *stubReader) CategoryRule(context.Context, string) (*domain.PackRule, error) {
	return nil, nil
}

func (s *stubReader) CategoryDefault(context.Context, string) (*domain.PackRule, error) {
	return nil, nil
}

func (s *stubReader) ActiveOutletCount(context.Context) (int, error) {
	return len(s.outlets), nil
}

type memoryCache struct {
	mu     sync.Mutex
	latest *engine.RunResult
	byID   map[string]*engine.RunResult
}

func newMemoryCache() *memoryCache {
	return &memoryCache{byID: make(map[string]*engine.RunResult)}
}

func (c *memoryCache) SetLatest(_ context.Context, result *engine.RunResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = result
	c.byID[result.SessionID] = result
	return nil
}

func (c *memoryCache) GetLatest(context.Context) (*engine.RunResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latest != nil, nil
}

func (c *memoryCache) GetRun(_ context.Context, sessionID string) (*engine.RunResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.byID[sessionID]
	return result, ok, nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = nil
	c.byID = make(map[string]*engine.RunResult)
	return nil
}

type memoryArchive struct {
	mu       sync.Mutex
	uploaded chan string
	objects  map[string][]byte
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{
		uploaded: make(chan string, 8),
		objects:  make(map[string][]byte),
	}
}

func (a *memoryArchive) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range a.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (a *memoryArchive) UploadObject(_ context.Context, key string, data []byte) error {
	a.mu.Lock()
	a.objects[key] = data
	a.mu.Unlock()
	a.uploaded <- key
	return nil
}

func transferNetwork() *stubReader {
	x := domain.Outlet{ID: "x", Name: "Store X"}
	y := domain.Outlet{ID: "y", Name: "Store Y"}
	product := domain.Product{ID: "p1", Name: "Nic Salt 30ml", RetailPrice: 10, SupplyPrice: 4}

	return &stubReader{
		outlets: []domain.Outlet{x, y},
		inventory: map[string][]domain.InventoryLine{
			"x": {{Outlet: x, Product: product, InventoryLevel: 120, ReorderPoint: 10, DailyVelocity: 1.0}},
			"y": {{Outlet: y, Product: product, InventoryLevel: 2, DailyVelocity: 2.0}},
		},
	}
}

func TestAnalyzeCachesAndArchives(t *testing.T) {
	runCache := newMemoryCache()
	archive := newMemoryArchive()
	svc := NewTransferService(transferNetwork(), config.DefaultEngineConfig(), runCache, archive)

	result, err := svc.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("recommendations=%d want=1", len(result.Recommendations))
	}

	latest, ok, err := svc.Latest(context.Background())
	if err != nil || !ok {
		t.Fatalf("latest missing: ok=%v err=%v", ok, err)
	}
	if latest.SessionID != result.SessionID {
		t.Fatalf("cached session=%s want=%s", latest.SessionID, result.SessionID)
	}

	byID, ok, err := svc.Run(context.Background(), result.SessionID)
	if err != nil || !ok || byID.SessionID != result.SessionID {
		t.Fatalf("run lookup failed: ok=%v err=%v", ok, err)
	}

	select {
	case key := <-archive.uploaded:
		if !strings.HasPrefix(key, "runs/") || !strings.HasSuffix(key, result.SessionID+".json") {
			t.Fatalf("archive key=%s", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("archive upload never happened")
	}

	objects, err := svc.ArchivedRuns(context.Background())
	if err != nil || len(objects) != 1 {
		t.Fatalf("archived runs=%d err=%v", len(objects), err)
	}
}

func TestAnalyzeOverrides(t *testing.T) {
	svc := NewTransferService(transferNetwork(), config.DefaultEngineConfig(), nil, nil)

	// Force the transfer over the approval ceiling by dropping the ceiling
	// below the batch value (~$580).
	ceiling := 100.0
	simulate := false
	result, err := svc.Analyze(context.Background(), &RunOverrides{
		MaxAutonomousValue: &ceiling,
		SimulationMode:     &simulate,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PendingApproval) != 1 || len(result.Recommendations) != 0 {
		t.Fatalf("pending=%d recs=%d want 1/0", len(result.PendingApproval), len(result.Recommendations))
	}
	if result.SimulationMode {
		t.Fatal("simulation override ignored")
	}
}

func TestHealthCheck(t *testing.T) {
	svc := NewTransferService(transferNetwork(), config.DefaultEngineConfig(), nil, nil)

	health := svc.HealthCheck(context.Background())
	if health.Status != "ok" || !health.Database || health.ActiveOutlets != 2 {
		t.Fatalf("health=%+v", health)
	}
}

func TestFlushRunsClearsCache(t *testing.T) {
	runCache := newMemoryCache()
	svc := NewTransferService(transferNetwork(), config.DefaultEngineConfig(), runCache, nil)

	result, err := svc.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := svc.Latest(context.Background()); !ok {
		t.Fatal("latest missing after analyze")
	}

	if err := svc.FlushRuns(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := svc.Latest(context.Background()); ok {
		t.Fatal("latest survived flush")
	}
	if _, ok, _ := svc.Run(context.Background(), result.SessionID); ok {
		t.Fatal("session run survived flush")
	}
}
