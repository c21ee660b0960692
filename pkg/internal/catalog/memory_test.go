package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

func newRaw(key string) *model.FileRecord {
	return &model.FileRecord{
		ID:           model.DeriveID(key),
		SourceBucket: "ingestvault-raw",
		SourceKey:    key,
		Size:         42,
		Checksum:     "deadbeef",
		Status:       model.StatusRaw,
		CreatedAt:    time.Now().UTC(),
	}
}

func mustStore(t *testing.T) Store {
	t.Helper()

	s, err := NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	return s
}

func TestPutOutcomes(t *testing.T) {
	ctx := context.Background()
	s := mustStore(t)

	out, err := s.PutIfAbsentOrStale(ctx, newRaw("a/b.txt"))
	if err != nil || out != PutCreated {
		t.Fatalf("first put: outcome=%v err=%v", out, err)
	}

	// RAW 残留允许覆盖
	out, err = s.PutIfAbsentOrStale(ctx, newRaw("a/b.txt"))
	if err != nil || out != PutRefreshed {
		t.Fatalf("second put: outcome=%v err=%v", out, err)
	}

	now := time.Now().UTC()
	patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &now, ProcessedKey: "processed/a/b.txt"}

	if err := s.ConditionalUpdateStatus(ctx, model.DeriveID("a/b.txt"), model.StatusRaw, patch); err != nil {
		t.Fatalf("transition: %v", err)
	}

	// 终态记录不再被覆盖
	out, err = s.PutIfAbsentOrStale(ctx, newRaw("a/b.txt"))
	if err != nil || out != PutSuperseded {
		t.Fatalf("put after terminal: outcome=%v err=%v", out, err)
	}
}

func TestConditionalUpdateGuards(t *testing.T) {
	ctx := context.Background()
	s := mustStore(t)

	now := time.Now().UTC()
	patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &now, ProcessedKey: "processed/x"}

	err := s.ConditionalUpdateStatus(ctx, model.DeriveID("missing"), model.StatusRaw, patch)
	if !model.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	if _, err := s.PutIfAbsentOrStale(ctx, newRaw("x")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := s.ConditionalUpdateStatus(ctx, model.DeriveID("x"), model.StatusRaw, patch); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// 重复推进输掉状态守卫
	err = s.ConditionalUpdateStatus(ctx, model.DeriveID("x"), model.StatusRaw, patch)
	if !model.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	rec, err := s.Get(ctx, model.DeriveID("x"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if rec.Status != model.StatusProcessed || rec.ProcessedKey != "processed/x" {
		t.Fatalf("record not advanced atomically: %+v", rec)
	}
}

func TestConcurrentTransitionSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := mustStore(t)

	if _, err := s.PutIfAbsentOrStale(ctx, newRaw("race")); err != nil {
		t.Fatalf("put: %v", err)
	}

	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for n := 0; n < workers; n++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			now := time.Now().UTC()
			patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &now, ProcessedKey: "processed/race"}

			if err := s.ConditionalUpdateStatus(ctx, model.DeriveID("race"), model.StatusRaw, patch); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestScanFilterSortLimit(t *testing.T) {
	ctx := context.Background()
	s := mustStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, key := range []string{"one", "two", "three"} {
		rec := newRaw(key)
		if _, err := s.PutIfAbsentOrStale(ctx, rec); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}

		at := base.Add(time.Duration(i) * time.Hour)
		patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &at, ProcessedKey: "processed/" + key}

		if err := s.ConditionalUpdateStatus(ctx, rec.ID, model.StatusRaw, patch); err != nil {
			t.Fatalf("transition %s: %v", key, err)
		}
	}

	// 一条保持 RAW，排序时应垫底且被 from/to 过滤排除
	if _, err := s.PutIfAbsentOrStale(ctx, newRaw("pending")); err != nil {
		t.Fatalf("put pending: %v", err)
	}

	all, err := s.Scan(ctx, Filter{}, 100)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(all) != 4 {
		t.Fatalf("scan returned %d records", len(all))
	}

	if all[0].SourceKey != "three" || all[3].SourceKey != "pending" {
		t.Fatalf("unexpected order: first=%s last=%s", all[0].SourceKey, all[3].SourceKey)
	}

	processed, err := s.Scan(ctx, Filter{Status: model.StatusProcessed}, 100)
	if err != nil {
		t.Fatalf("scan processed: %v", err)
	}

	if len(processed) != 3 {
		t.Fatalf("status filter returned %d records", len(processed))
	}

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)

	window, err := s.Scan(ctx, Filter{From: &from, To: &to}, 100)
	if err != nil {
		t.Fatalf("scan window: %v", err)
	}

	if len(window) != 1 || window[0].SourceKey != "two" {
		t.Fatalf("window filter: %+v", window)
	}

	limited, err := s.Scan(ctx, Filter{}, 2)
	if err != nil {
		t.Fatalf("scan limited: %v", err)
	}

	if len(limited) != 2 {
		t.Fatalf("limit not applied, got %d", len(limited))
	}
}

func TestFilterBoundsInclusive(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := newRaw("edge")
	rec.Status = model.StatusProcessed
	rec.ProcessedAt = &at

	f := Filter{From: &at, To: &at}
	if !f.Match(rec) {
		t.Fatal("boundary timestamps must be inclusive")
	}
}
