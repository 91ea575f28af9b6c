package integration

import (
	"context"
	"occupancy/internal/archive"
	"occupancy/internal/blob"
	"occupancy/internal/core"
	"occupancy/internal/platform/metrics"
	"occupancy/internal/platform/tracing"
	"occupancy/pkg/domain"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestIntegrationSmoke runs a minimal end-to-end write/read cycle on each
// in-process storage backend and archives the result on each blob driver.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	coreVariants := []struct {
		name string
		cfg  func(t *testing.T) core.StorageConfig
	}{
		{
			name: "memory-store",
			cfg:  func(*testing.T) core.StorageConfig { return core.StorageConfig{Driver: core.StorageMemory} },
		},
		{
			name: "sqlite-store",
			cfg: func(t *testing.T) core.StorageConfig {
				return core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "core.db")}
			},
		},
	}

	blobVariants := []struct {
		name string
		cfg  func(t *testing.T) blob.Config
	}{
		{
			name: "memory-blob",
			cfg:  func(*testing.T) blob.Config { return blob.Config{Driver: blob.DriverMemory} },
		},
		{
			name: "filesystem-blob",
			cfg:  func(t *testing.T) blob.Config { return blob.Config{Driver: blob.DriverFilesystem, FSRoot: t.TempDir()} },
		},
	}

	for _, cv := range coreVariants {
		for _, bv := range blobVariants {
			t.Run(cv.name+"/"+bv.name, func(t *testing.T) {
				store, closeStore, err := core.OpenPersistentStore(ctx, cv.cfg(t), core.NewDefaultRulesEngine(core.DuplicateScopeAll))
				if err != nil {
					t.Fatalf("open store: %v", err)
				}
				t.Cleanup(func() { _ = closeStore() })

				reg := metrics.NewRegistry()
				recorder, err := metrics.NewRecorder(reg)
				if err != nil {
					t.Fatalf("metrics recorder: %v", err)
				}
				spans := tracetest.NewSpanRecorder()
				provider := tracing.NewProvider("smoke", spans)
				t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

				svc := core.NewService(store,
					core.WithMetricsRecorder(recorder),
					core.WithTracer(tracing.New(provider)),
				)
				if res := svc.Bootstrap(ctx); !res.Success {
					t.Fatalf("bootstrap: %s", res.Message)
				}
				tree, err := svc.Hierarchy(ctx)
				if err != nil || len(tree) == 0 {
					t.Fatalf("hierarchy: %v (%d blocks)", err, len(tree))
				}
				unitID := tree[0].Entries[0].Units[0].ID

				res := svc.ResolveAndLinkPerson(ctx, core.PersonCandidate{FullName: "Smoke Test", PrimaryID: "12345"}, unitID, domain.CategoryOwnerResident)
				if !res.Success {
					t.Fatalf("resolve and link: %s", res.Message)
				}
				links, err := svc.ListActiveLinksForUnit(ctx, unitID)
				if err != nil || len(links) != 1 || links[0].PersonID != res.PersonID {
					t.Fatalf("expected the new link on unit %s, got %+v (%v)", unitID, links, err)
				}

				if got := counterValue(t, reg, core.OpResolveAndLinkPerson, "success"); got != 1 {
					t.Fatalf("expected one successful resolve metric, got %v", got)
				}
				var foundSpan bool
				for _, s := range spans.Ended() {
					if s.Name() == core.OpBootstrap {
						foundSpan = true
						break
					}
				}
				if !foundSpan {
					t.Fatalf("expected a bootstrap span, got %d spans", len(spans.Ended()))
				}

				blobs, err := blob.Open(ctx, bv.cfg(t))
				if err != nil {
					t.Fatalf("open blob store: %v", err)
				}
				exporter := archive.NewExporter(svc.Coordinator(), blobs)
				info, snap, err := exporter.Export(ctx)
				if err != nil {
					t.Fatalf("export: %v", err)
				}
				if info.Size <= 0 || snap.Counts.Links != 1 || snap.Counts.Persons != 1 {
					t.Fatalf("unexpected export %+v counts=%+v", info, snap.Counts)
				}
				latest, _, err := exporter.Latest(ctx)
				if err != nil {
					t.Fatalf("latest: %v", err)
				}
				if latest.Counts != snap.Counts {
					t.Fatalf("latest counts %+v differ from exported %+v", latest.Counts, snap.Counts)
				}
			})
		}
	}

	if os.Getenv("OCCUPANCY_BLOB_DRIVER") != "" || os.Getenv("OCCUPANCY_STORAGE_DRIVER") != "" {
		t.Fatalf("expected no test-induced env leakage")
	}
}

func counterValue(t *testing.T, g prometheus.Gatherer, operation, result string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "occupancy_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == operation && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
