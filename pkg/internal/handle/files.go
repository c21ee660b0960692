package handle

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/cache"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/service"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// FileHandlers 目录读 API 的处理器集合，依赖在装配时显式注入.
type FileHandlers struct {
	query    *service.QueryService
	cache    *cache.Cache
	cacheTTL time.Duration
}

// NewFileHandlers 创建处理器；c 为 nil 时禁用列表响应缓存.
func NewFileHandlers(query *service.QueryService, c *cache.Cache, cacheTTL time.Duration) *FileHandlers {
	return &FileHandlers{query: query, cache: c, cacheTTL: cacheTTL}
}

// listCacheKey 由全部查询参数派生，参数组合不同则缓存互不命中.
func listCacheKey(q types.ListFilesQuery) string {
	return fmt.Sprintf("files:list:%x", xxhash.Sum64String(q.Status+"|"+q.From+"|"+q.To))
}

// ListFiles GET /files 列出目录记录.
// 支持 status/from/to 过滤，结果按 processedAt 降序.
// 缓存失败不阻塞请求，直接回源目录.
func (h *FileHandlers) ListFiles(c *gin.Context) {
	var q types.ListFilesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		// 绑定失败等价于未设置过滤条件
		q = types.ListFilesQuery{}
	}

	key := listCacheKey(q)

	if h.cache != nil && h.cacheTTL > 0 {
		if resp, err := cache.Get[types.ListFilesResponse](c.Request.Context(), h.cache, key); err == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	resp, err := h.query.ListFiles(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.cache != nil && h.cacheTTL > 0 {
		if err := cache.Set(c.Request.Context(), h.cache, key, *resp, h.cacheTTL); err != nil {
			nlog.Logger().Debug().Err(err).Msg("list cache set failed")
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GetFile GET /files/*id 查询单条记录，ID 可省略 file# 前缀.
// 通配参数带前导 '/'，先剥掉再归一化.
func (h *FileHandlers) GetFile(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")

	rec, err := h.query.GetFile(c.Request.Context(), id)
	if err != nil {
		if model.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, rec)
}
