package catalog

import (
	"context"
	"sync"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// MemoryStore 基于互斥锁保护的 map 的目录实现，用于测试与单机运行.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]model.FileRecord
}

// NewMemoryStore 创建内存目录实例.
func NewMemoryStore(ctx context.Context, config any) (Store, error) {
	return &MemoryStore{data: make(map[string]model.FileRecord)}, nil
}

// PutIfAbsentOrStale 插入 RAW 记录，锁内完成检查与写入.
func (m *MemoryStore) PutIfAbsentOrStale(ctx context.Context, rec *model.FileRecord) (PutOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data[rec.ID]
	if !ok {
		m.data[rec.ID] = *rec
		return PutCreated, nil
	}

	if existing.Status.Terminal() {
		return PutSuperseded, nil
	}

	m.data[rec.ID] = *rec

	return PutRefreshed, nil
}

// ConditionalUpdateStatus 仅当当前状态匹配时应用补丁.
func (m *MemoryStore) ConditionalUpdateStatus(ctx context.Context, id string, from model.Status, patch model.StatusPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.data[id]
	if !ok {
		return model.NotFoundf("catalog record %s", id)
	}

	if rec.Status != from {
		return model.ErrConflict
	}

	rec.Status = patch.Status
	rec.ProcessedAt = patch.ProcessedAt
	rec.ProcessedKey = patch.ProcessedKey
	m.data[id] = rec

	return nil
}

// Get 按主键读取记录.
func (m *MemoryStore) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.data[id]
	if !ok {
		return nil, model.NotFoundf("catalog record %s", id)
	}

	return &rec, nil
}

// Scan 过滤、排序并截断记录列表.
func (m *MemoryStore) Scan(ctx context.Context, f Filter, limit int) ([]model.FileRecord, error) {
	m.mu.Lock()

	recs := make([]model.FileRecord, 0, len(m.data))

	for _, rec := range m.data {
		if f.Match(&rec) {
			recs = append(recs, rec)
		}
	}
	m.mu.Unlock()

	sortRecords(recs)

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	return recs, nil
}

// Close 内存实现无需操作.
func (m *MemoryStore) Close() error {
	return nil
}

func init() {
	RegisterFactory(StoreTypeMemory, NewMemoryStore)
}
