package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/cache"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/service"
	"github.com/yeisme/ingestvault/pkg/internal/storage/kv"
	"github.com/yeisme/ingestvault/pkg/internal/types"
)

func newTestRouter(t *testing.T, withCache bool) (*gin.Engine, catalog.Store) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cat, err := catalog.NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	var lc *cache.Cache

	if withCache {
		store, err := kv.NewMemoryKV(context.Background(), nil)
		if err != nil {
			t.Fatalf("kv: %v", err)
		}

		lc = cache.NewCache(store)
	}

	h := NewFileHandlers(service.NewQueryService(cat, 100), lc, 30*time.Second)

	r := gin.New()
	r.GET("/files", h.ListFiles)
	r.GET("/files/*id", h.GetFile)
	r.NoRoute(NotFoundHandler)

	return r, cat
}

func seedProcessed(t *testing.T, cat catalog.Store, key string, at time.Time) {
	t.Helper()

	ctx := context.Background()
	rec := &model.FileRecord{ID: model.DeriveID(key), SourceKey: key, Status: model.StatusRaw, CreatedAt: at}

	if _, err := cat.PutIfAbsentOrStale(ctx, rec); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}

	patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &at, ProcessedKey: "processed/" + key}
	if err := cat.ConditionalUpdateStatus(ctx, rec.ID, model.StatusRaw, patch); err != nil {
		t.Fatalf("advance %s: %v", key, err)
	}
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	return w
}

func TestListFilesEndpoint(t *testing.T) {
	r, cat := newTestRouter(t, false)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seedProcessed(t, cat, "a.txt", base)
	seedProcessed(t, cat, "b.txt", base.Add(time.Hour))

	w := doGet(r, "/files")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp types.ListFilesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 2 || resp.Files[0].SourceKey != "b.txt" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListFilesStatusAndWindow(t *testing.T) {
	r, cat := newTestRouter(t, false)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seedProcessed(t, cat, "a.txt", base)
	seedProcessed(t, cat, "b.txt", base.Add(time.Hour))

	w := doGet(r, "/files?status=PROCESSED&from=2026-05-01T08%3A30%3A00Z")

	var resp types.ListFilesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 || resp.Files[0].SourceKey != "b.txt" {
		t.Fatalf("filtered response: %+v", resp)
	}
}

func TestGetFileByIDAndBareKey(t *testing.T) {
	r, cat := newTestRouter(t, false)
	seedProcessed(t, cat, "doc.txt", time.Now().UTC())

	for _, path := range []string{"/files/file%23doc.txt", "/files/doc.txt"} {
		w := doGet(r, path)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, w.Code)
		}

		var rec model.FileRecord
		if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if rec.ID != "file#doc.txt" {
			t.Fatalf("record id = %q", rec.ID)
		}
	}
}

func TestGetFileWithSlashesInKey(t *testing.T) {
	r, cat := newTestRouter(t, false)
	seedProcessed(t, cat, "a/b.txt", time.Now().UTC())

	w := doGet(r, "/files/a/b.txt")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var rec model.FileRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if rec.ID != "file#a/b.txt" {
		t.Fatalf("record id = %q", rec.ID)
	}
}

func TestGetFileNotFound(t *testing.T) {
	r, _ := newTestRouter(t, false)

	w := doGet(r, "/files/nonexistent")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	if w.Body.String() != `{"error":"File not found"}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t, false)

	w := doGet(r, "/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	if w.Body.String() != `{"error":"Not found"}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestListFilesCacheServesSecondRequest(t *testing.T) {
	r, cat := newTestRouter(t, true)
	seedProcessed(t, cat, "cached.txt", time.Now().UTC())

	first := doGet(r, "/files")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	// 目录新增记录，缓存窗口内列表应保持旧视图
	seedProcessed(t, cat, "later.txt", time.Now().UTC())

	second := doGet(r, "/files")

	var resp types.ListFilesResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("expected cached view with 1 file, got %d", resp.Count)
	}
}
