package service

import (
	"context"
	"time"

	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// QueryService 提供目录的只读查询.
type QueryService struct {
	catalog catalog.Store
	limit   int
}

// NewQueryService 显式注入目录存储；limit 为列表端点的最大返回条数.
func NewQueryService(cat catalog.Store, limit int) *QueryService {
	return &QueryService{catalog: cat, limit: limit}
}

// ParseListQuery 把查询参数转换为目录过滤器.
// 无法解析的 status/from/to 被忽略，等价于未设置该条件.
func ParseListQuery(q types.ListFilesQuery) catalog.Filter {
	var f catalog.Filter

	if st := model.Status(q.Status); st.Valid() {
		f.Status = st
	}

	if t, err := time.Parse(time.RFC3339, q.From); err == nil {
		f.From = &t
	}

	if t, err := time.Parse(time.RFC3339, q.To); err == nil {
		f.To = &t
	}

	return f
}

// ListFiles 按过滤条件返回记录，processedAt 降序，截断到配置上限.
func (s *QueryService) ListFiles(ctx context.Context, q types.ListFilesQuery) (*types.ListFilesResponse, error) {
	f := ParseListQuery(q)

	recs, err := s.catalog.Scan(ctx, f, s.limit)
	if err != nil {
		nlog.Logger().Error().Err(err).Msg("catalog scan failed")
		return nil, err
	}

	return &types.ListFilesResponse{Files: recs, Count: len(recs)}, nil
}

// GetFile 按记录 ID 查询单条记录，ID 可省略主键前缀.
func (s *QueryService) GetFile(ctx context.Context, id string) (*model.FileRecord, error) {
	return s.catalog.Get(ctx, model.NormalizeID(id))
}
