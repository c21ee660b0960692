package jobs

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// stubStore 以桶/键为索引的内存对象存储.
type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubStore() *stubStore { return &stubStore{objects: make(map[string][]byte)} }

func (f *stubStore) put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = body
}

func (f *stubStore) HeadMetadata(ctx context.Context, bucket, key string) (*model.ObjectMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, model.NotFoundf("stat object %s/%s", bucket, key)
	}

	return &model.ObjectMetadata{Size: int64(len(body))}, nil
}

func (f *stubStore) GetStream(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *stubStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	return nil
}

func (f *stubStore) Delete(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)

	return nil
}

func (f *stubStore) ProcessedBucket() string { return "ingestvault-processed" }

func TestReconcileRepairsStaleRaw(t *testing.T) {
	ctx := context.Background()

	cat, err := catalog.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	store := newStubStore()
	// 对象已搬迁，但目录滞留 RAW（崩溃窗口）
	store.put("ingestvault-processed", "processed/stale.txt", []byte("x"))
	store.put("ingestvault-raw", "stale.txt", []byte("x"))

	rec := &model.FileRecord{
		ID:           model.DeriveID("stale.txt"),
		SourceBucket: "ingestvault-raw",
		SourceKey:    "stale.txt",
		Status:       model.StatusRaw,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	if _, err := cat.PutIfAbsentOrStale(ctx, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := NewReconciler(store, cat, nil, configs.PipelineConfig{ProcessedPrefix: "processed/"})
	r.Run(ctx, 15*time.Minute)

	got, err := cat.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Status != model.StatusProcessed || got.ProcessedKey != "processed/stale.txt" {
		t.Fatalf("record not repaired: %+v", got)
	}

	if _, err := store.HeadMetadata(ctx, "ingestvault-raw", "stale.txt"); !model.IsNotFound(err) {
		t.Fatal("residual source object not cleaned up")
	}
}

func TestReconcileSkipsFreshAndUnrelocated(t *testing.T) {
	ctx := context.Background()

	cat, err := catalog.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	store := newStubStore()

	fresh := &model.FileRecord{
		ID: model.DeriveID("fresh.txt"), SourceBucket: "ingestvault-raw", SourceKey: "fresh.txt",
		Status: model.StatusRaw, CreatedAt: time.Now().UTC(),
	}

	stuck := &model.FileRecord{
		ID: model.DeriveID("stuck.txt"), SourceBucket: "ingestvault-raw", SourceKey: "stuck.txt",
		Status: model.StatusRaw, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}

	for _, rec := range []*model.FileRecord{fresh, stuck} {
		if _, err := cat.PutIfAbsentOrStale(ctx, rec); err != nil {
			t.Fatalf("seed %s: %v", rec.SourceKey, err)
		}
	}

	r := NewReconciler(store, cat, nil, configs.PipelineConfig{ProcessedPrefix: "processed/"})
	r.Run(ctx, 15*time.Minute)

	for _, id := range []string{fresh.ID, stuck.ID} {
		got, err := cat.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}

		if got.Status != model.StatusRaw {
			t.Fatalf("%s must stay RAW, got %s", id, got.Status)
		}
	}
}
