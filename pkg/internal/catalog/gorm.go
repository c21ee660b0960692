package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// GormStore 基于关系数据库的目录实现，条件语义由带 WHERE 守卫的
// UPDATE 与唯一主键约束保证.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 复用外部数据库连接并迁移目录表.
func NewGormStore(ctx context.Context, config any) (Store, error) {
	gdb, ok := config.(*gorm.DB)
	if !ok {
		return nil, fmt.Errorf("invalid gorm catalog config")
	}

	if err := gdb.WithContext(ctx).AutoMigrate(&model.FileRecord{}); err != nil {
		return nil, fmt.Errorf("migrate catalog table: %w", err)
	}

	return &GormStore{db: gdb}, nil
}

// PutIfAbsentOrStale 插入 RAW 记录，事务内完成检查与写入.
func (g *GormStore) PutIfAbsentOrStale(ctx context.Context, rec *model.FileRecord) (PutOutcome, error) {
	var outcome PutOutcome

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.FileRecord

		err := tx.Where("id = ?", rec.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(rec).Error; err != nil {
				return model.Transientf("catalog create %s: %v", rec.ID, err)
			}

			outcome = PutCreated

			return nil
		case err != nil:
			return model.Transientf("catalog lookup %s: %v", rec.ID, err)
		case existing.Status.Terminal():
			outcome = PutSuperseded
			return nil
		default:
			if err := tx.Save(rec).Error; err != nil {
				return model.Transientf("catalog refresh %s: %v", rec.ID, err)
			}

			outcome = PutRefreshed

			return nil
		}
	})
	if err != nil {
		return 0, err
	}

	return outcome, nil
}

// ConditionalUpdateStatus 用状态守卫的 UPDATE 推进状态，
// 影响行数为零时区分记录缺失与状态竞争.
func (g *GormStore) ConditionalUpdateStatus(ctx context.Context, id string, from model.Status, patch model.StatusPatch) error {
	res := g.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":        patch.Status,
			"processed_at":  patch.ProcessedAt,
			"processed_key": patch.ProcessedKey,
		})
	if res.Error != nil {
		return model.Transientf("catalog update %s: %v", id, res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := g.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return model.Transientf("catalog lookup %s: %v", id, err)
	}

	if count == 0 {
		return model.NotFoundf("catalog record %s", id)
	}

	return model.ErrConflict
}

// Get 按主键读取记录.
func (g *GormStore) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	var rec model.FileRecord

	err := g.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NotFoundf("catalog record %s", id)
	}

	if err != nil {
		return nil, model.Transientf("catalog get %s: %v", id, err)
	}

	return &rec, nil
}

// Scan 过滤条件直接下推为 SQL 谓词，排序在数据库端完成.
func (g *GormStore) Scan(ctx context.Context, f Filter, limit int) ([]model.FileRecord, error) {
	q := g.db.WithContext(ctx).Model(&model.FileRecord{})

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if f.From != nil {
		q = q.Where("processed_at >= ?", *f.From)
	}

	if f.To != nil {
		q = q.Where("processed_at <= ?", *f.To)
	}

	// 缺失 processedAt 的记录排在最后
	q = q.Order("processed_at IS NULL").Order("processed_at DESC").Order("id")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []model.FileRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, model.Transientf("catalog scan: %v", err)
	}

	return recs, nil
}

// Close 连接生命周期归外部数据库客户端管理.
func (g *GormStore) Close() error {
	return nil
}

func init() {
	RegisterFactory(StoreTypeGorm, NewGormStore)
}
