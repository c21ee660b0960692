package service

import (
	"context"
	"testing"
	"time"

	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/types"
)

func seedCatalog(t *testing.T) catalog.Store {
	t.Helper()

	ctx := context.Background()

	cat, err := catalog.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, key := range []string{"a.txt", "b.txt", "c.txt"} {
		rec := &model.FileRecord{
			ID:        model.DeriveID(key),
			SourceKey: key,
			Status:    model.StatusRaw,
			CreatedAt: base,
		}
		if _, err := cat.PutIfAbsentOrStale(ctx, rec); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}

		at := base.Add(time.Duration(i) * time.Hour)
		patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &at, ProcessedKey: "processed/" + key}

		if err := cat.ConditionalUpdateStatus(ctx, rec.ID, model.StatusRaw, patch); err != nil {
			t.Fatalf("advance %s: %v", key, err)
		}
	}

	raw := &model.FileRecord{ID: model.DeriveID("pending.txt"), SourceKey: "pending.txt", Status: model.StatusRaw, CreatedAt: base}
	if _, err := cat.PutIfAbsentOrStale(ctx, raw); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	return cat
}

func TestListFilesSortAndCount(t *testing.T) {
	svc := NewQueryService(seedCatalog(t), 100)

	resp, err := svc.ListFiles(context.Background(), types.ListFilesQuery{})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	if resp.Count != 4 || len(resp.Files) != 4 {
		t.Fatalf("count = %d, files = %d", resp.Count, len(resp.Files))
	}

	if resp.Files[0].SourceKey != "c.txt" {
		t.Fatalf("expected newest first, got %s", resp.Files[0].SourceKey)
	}

	if resp.Files[3].SourceKey != "pending.txt" {
		t.Fatalf("records without processedAt must sort last, got %s", resp.Files[3].SourceKey)
	}
}

func TestListFilesStatusFilter(t *testing.T) {
	svc := NewQueryService(seedCatalog(t), 100)

	resp, err := svc.ListFiles(context.Background(), types.ListFilesQuery{Status: "RAW"})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	if resp.Count != 1 || resp.Files[0].SourceKey != "pending.txt" {
		t.Fatalf("status filter: %+v", resp.Files)
	}
}

func TestListFilesTimeWindow(t *testing.T) {
	svc := NewQueryService(seedCatalog(t), 100)

	q := types.ListFilesQuery{
		From: "2026-04-01T00:30:00Z",
		To:   "2026-04-01T01:30:00Z",
	}

	resp, err := svc.ListFiles(context.Background(), q)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	if resp.Count != 1 || resp.Files[0].SourceKey != "b.txt" {
		t.Fatalf("window filter: %+v", resp.Files)
	}
}

func TestListFilesMalformedParamsIgnored(t *testing.T) {
	svc := NewQueryService(seedCatalog(t), 100)

	// 非法状态与时间戳等价于未设置条件
	resp, err := svc.ListFiles(context.Background(), types.ListFilesQuery{Status: "bogus", From: "not-a-time"})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	if resp.Count != 4 {
		t.Fatalf("malformed params must be ignored, count = %d", resp.Count)
	}
}

func TestListFilesLimit(t *testing.T) {
	svc := NewQueryService(seedCatalog(t), 2)

	resp, err := svc.ListFiles(context.Background(), types.ListFilesQuery{})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	if resp.Count != 2 {
		t.Fatalf("limit not applied, count = %d", resp.Count)
	}
}

func TestGetFileNormalizesID(t *testing.T) {
	svc := NewQueryService(seedCatalog(t), 100)
	ctx := context.Background()

	withPrefix, err := svc.GetFile(ctx, "file#a.txt")
	if err != nil {
		t.Fatalf("GetFile with prefix: %v", err)
	}

	bare, err := svc.GetFile(ctx, "a.txt")
	if err != nil {
		t.Fatalf("GetFile bare: %v", err)
	}

	if withPrefix.ID != bare.ID {
		t.Fatalf("prefix handling diverged: %s vs %s", withPrefix.ID, bare.ID)
	}

	if _, err := svc.GetFile(ctx, "missing.txt"); !model.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
