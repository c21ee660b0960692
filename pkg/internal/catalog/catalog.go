// Package catalog 提供文件目录存储的接口和实现.
//
// 目录是摄取流水线与查询 API 共享的记录源，所有写入都是条件写：
// 插入只在记录缺失或残留 RAW 时生效，状态推进只在当前状态匹配时生效.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// PutOutcome 记录插入的结果分类.
type PutOutcome int

const (
	// PutCreated 此前无记录，新记录已写入.
	PutCreated PutOutcome = iota
	// PutRefreshed 残留了一条未完成的 RAW 记录，已被本次摄取覆盖.
	PutRefreshed
	// PutSuperseded 记录已处于终态，本次写入被放弃，调用方应跳过后续处理.
	PutSuperseded
)

// String 返回结果名称，用于日志与指标标签.
func (o PutOutcome) String() string {
	switch o {
	case PutCreated:
		return "created"
	case PutRefreshed:
		return "refreshed"
	case PutSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Filter 列表扫描的过滤条件，多个条件取交集.
type Filter struct {
	// Status 非空时按状态精确匹配.
	Status model.Status
	// From/To 按 processedAt 过滤（含边界）；存在任一边界时，
	// 缺失 processedAt 的记录被排除.
	From *time.Time
	To   *time.Time
}

// Empty 判断过滤器是否未设置任何条件.
func (f Filter) Empty() bool {
	return f.Status == "" && f.From == nil && f.To == nil
}

// Match 判断记录是否满足过滤条件.
func (f Filter) Match(rec *model.FileRecord) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}

	if f.From != nil || f.To != nil {
		if rec.ProcessedAt == nil {
			return false
		}

		if f.From != nil && rec.ProcessedAt.Before(*f.From) {
			return false
		}

		if f.To != nil && rec.ProcessedAt.After(*f.To) {
			return false
		}
	}

	return true
}

// Store 定义文件目录存储接口.
type Store interface {
	// PutIfAbsentOrStale 插入一条 RAW 记录.
	// 无记录时插入并返回 PutCreated；存在 RAW 残留时覆盖并返回
	// PutRefreshed；记录已终态时不写入，返回 PutSuperseded.
	// 并发插入同一主键时输掉竞争的一方收到 model.ErrConflict.
	PutIfAbsentOrStale(ctx context.Context, rec *model.FileRecord) (PutOutcome, error)

	// ConditionalUpdateStatus 仅当记录当前状态等于 from 时应用 patch.
	// 状态不匹配或并发写抢先时返回 model.ErrConflict，
	// 记录不存在时返回 model.ErrNotFound.
	ConditionalUpdateStatus(ctx context.Context, id string, from model.Status, patch model.StatusPatch) error

	// Get 按主键读取记录，不存在时返回 model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.FileRecord, error)

	// Scan 按过滤条件返回至多 limit 条记录，按 processedAt 降序，
	// 缺失 processedAt 的记录排在最后.
	Scan(ctx context.Context, f Filter, limit int) ([]model.FileRecord, error)

	// Close 释放底层连接.
	Close() error
}

// StoreType 目录存储类型.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeNATS   StoreType = "nats"
	StoreTypeGorm   StoreType = "gorm"
)

// Factory 定义创建 Store 的工厂函数类型.
type Factory func(ctx context.Context, config any) (Store, error)

var factories = make(map[StoreType]Factory)

// RegisterFactory 注册目录存储工厂函数.
func RegisterFactory(t StoreType, factory Factory) {
	factories[t] = factory
}

// GetRegisteredStoreTypes 返回所有已注册的目录存储类型.
func GetRegisteredStoreTypes() []StoreType {
	types := make([]StoreType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	return types
}

// NewStore 根据类型创建 Store 实例.
func NewStore(ctx context.Context, t StoreType, config any) (Store, error) {
	factory, exists := factories[t]
	if !exists {
		return nil, fmt.Errorf("unsupported catalog type: %s", t)
	}

	return factory(ctx, config)
}

// Open 按配置创建目录存储；gorm 类型复用外部已建立的数据库连接.
func Open(ctx context.Context, cfg *configs.CatalogConfig, gdb *gorm.DB) (Store, error) {
	switch StoreType(cfg.Type) {
	case StoreTypeNATS:
		return NewStore(ctx, StoreTypeNATS, &cfg.NATS)
	case StoreTypeGorm:
		if gdb == nil {
			return nil, fmt.Errorf("gorm catalog requires a database connection")
		}

		return NewStore(ctx, StoreTypeGorm, gdb)
	default:
		return NewStore(ctx, StoreTypeMemory, nil)
	}
}

// sortRecords 对内存后端与 NATS 后端的扫描结果统一排序：
// processedAt 降序，缺失排最后，同值时按主键保证稳定输出.
func sortRecords(recs []model.FileRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		at, bt := recs[i].ProcessedTime(), recs[j].ProcessedTime()
		if !at.Equal(bt) {
			return at.After(bt)
		}

		return recs[i].ID < recs[j].ID
	})
}
