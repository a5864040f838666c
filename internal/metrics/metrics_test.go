package metrics

import (
	"math"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestRecorderObserveValidate(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveValidate("users", "read", ValidateMatched, 25*time.Millisecond)

	families := gather(t, rec, "passgate_engine_validate_total", "passgate_engine_validate_duration_seconds")

	counter := findMetric(t, families["passgate_engine_validate_total"], map[string]string{
		"collection": "users",
		"action":     "read",
		"outcome":    string(ValidateMatched),
	})
	if counter.GetCounter() == nil {
		t.Fatalf("expected counter metric for validate calls")
	}
	if got := counter.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected counter value 1, got %v", got)
	}

	histMetric := findMetric(t, families["passgate_engine_validate_duration_seconds"], map[string]string{
		"collection": "users",
		"action":     "read",
	})
	hist := histMetric.GetHistogram()
	if hist == nil {
		t.Fatalf("expected histogram metric for validate latency")
	}
	if hist.GetSampleCount() != 1 {
		t.Fatalf("expected histogram count 1, got %d", hist.GetSampleCount())
	}
	want := 0.025
	if diff := math.Abs(hist.GetSampleSum() - want); diff > 0.001 {
		t.Fatalf("expected histogram sum near %v, got %v", want, hist.GetSampleSum())
	}
}

func TestRecorderObserveCompile(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveCompile("users", nil)
	rec.ObserveCompile("users", errFixture)

	families := gather(t, rec, "passgate_engine_compile_total")

	ok := findMetric(t, families["passgate_engine_compile_total"], map[string]string{"collection": "users", "result": "ok"})
	if got := ok.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected ok counter 1, got %v", got)
	}
	failed := findMetric(t, families["passgate_engine_compile_total"], map[string]string{"collection": "users", "result": "error"})
	if got := failed.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected error counter 1, got %v", got)
	}
}

func TestRecorderObserveAccessor(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveAccessor("users", "add", nil, 5*time.Millisecond)

	families := gather(t, rec, "passgate_accessor_operations_total", "passgate_accessor_operation_duration_seconds")
	counter := findMetric(t, families["passgate_accessor_operations_total"], map[string]string{
		"collection": "users",
		"operation":  "add",
		"result":     "ok",
	})
	if got := counter.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected counter value 1, got %v", got)
	}
}

func TestRecorderObserveCacheOperations(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveCacheLookup(CacheLookupHit, 10*time.Millisecond)
	rec.ObserveCacheStore(CacheStoreStored, 5*time.Millisecond)

	families := gather(t, rec, "passgate_resultcache_operations_total", "passgate_resultcache_operation_duration_seconds")

	lookupMetric := findMetric(t, families["passgate_resultcache_operations_total"], map[string]string{
		"operation": string(CacheOperationLookup),
		"result":    string(CacheLookupHit),
	})
	if got := lookupMetric.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected lookup counter 1, got %v", got)
	}

	storeMetric := findMetric(t, families["passgate_resultcache_operations_total"], map[string]string{
		"operation": string(CacheOperationStore),
		"result":    string(CacheStoreStored),
	})
	if got := storeMetric.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected store counter 1, got %v", got)
	}

	latencyMetric := findMetric(t, families["passgate_resultcache_operation_duration_seconds"], map[string]string{
		"operation": string(CacheOperationStore),
		"result":    string(CacheStoreStored),
	})
	hist := latencyMetric.GetHistogram()
	if hist.GetSampleCount() != 1 {
		t.Fatalf("expected histogram count 1, got %d", hist.GetSampleCount())
	}
	want := 0.005
	if diff := math.Abs(hist.GetSampleSum() - want); diff > 0.001 {
		t.Fatalf("expected histogram sum near %v, got %v", want, hist.GetSampleSum())
	}
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)

	rec.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200 response, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected response body")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ObserveCompile("users", nil)
	rec.ObserveValidate("users", "read", ValidateMatched, time.Millisecond)
	rec.ObserveAccessor("users", "add", nil, time.Millisecond)
	rec.ObserveCacheLookup(CacheLookupMiss, time.Millisecond)
	rec.ObserveCacheStore(CacheStoreStored, time.Millisecond)
	if rec.Handler() == nil {
		t.Fatalf("expected a non-nil fallback handler")
	}
	if rec.Gatherer() == nil {
		t.Fatalf("expected a non-nil fallback gatherer")
	}
}

var errFixture = fixtureErr{}

type fixtureErr struct{}

func (fixtureErr) Error() string { return "fixture error" }

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	collected := make(map[string][]*dto.Metric, len(names))
	for _, mf := range families {
		if !wanted[mf.GetName()] {
			continue
		}
		collected[mf.GetName()] = append(collected[mf.GetName()], mf.GetMetric()...)
	}
	for _, name := range names {
		if len(collected[name]) == 0 {
			t.Fatalf("metric %q not collected", name)
		}
	}
	return collected
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range metrics {
		if matchLabels(metric, labels) {
			return metric
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	for key, expected := range labels {
		found := false
		for _, label := range metric.GetLabel() {
			if label.GetName() == key && label.GetValue() == expected {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
