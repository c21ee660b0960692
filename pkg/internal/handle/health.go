// Package handle 新增健康检查处理器实现.
package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/scheduler"
)

const healthTimeout = 2 * time.Second

// HealthHandlers 各存储组件的健康检查.
type HealthHandlers struct {
	storage *storage.Manager
	sched   *scheduler.Scheduler
}

// NewHealthHandlers 创建健康检查处理器；sched 可为 nil.
func NewHealthHandlers(m *storage.Manager, sched *scheduler.Scheduler) *HealthHandlers {
	return &HealthHandlers{storage: m, sched: sched}
}

// Jobs 返回全部定时任务的调度状态.
func (h *HealthHandlers) Jobs(c *gin.Context) {
	if h.sched == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobInfo{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": h.sched.GetJobInfos()})
}

// Livez 进程存活探针.
func (h *HealthHandlers) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HealthCatalog 目录存储健康检查，用一次最小扫描探测可用性.
func (h *HealthHandlers) HealthCatalog(c *gin.Context) {
	if h.storage == nil || h.storage.Catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "catalog", "status": "unhealthy", "error": "catalog not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if _, err := h.storage.Catalog.Scan(ctx, catalog.Filter{}, 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "catalog", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "catalog", "status": "ok"})
}

// HealthDB 数据库健康检查；目录未启用 gorm 后端时报告 skipped.
func (h *HealthHandlers) HealthDB(c *gin.Context) {
	if h.storage == nil || h.storage.DB == nil {
		c.JSON(http.StatusOK, gin.H{"component": "db", "status": "skipped"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	sqlDB, err := h.storage.DB.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "db", "status": "unhealthy", "error": err.Error()})
		return
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "db", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "db", "status": "ok"})
}

// HealthS3 对象存储健康检查.
func (h *HealthHandlers) HealthS3(c *gin.Context) {
	if h.storage == nil || h.storage.S3 == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "s3", "status": "unhealthy", "error": "s3 client not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.storage.S3.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "s3", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "s3", "status": "ok"})
}

// HealthMQ 消息队列健康检查.
func (h *HealthHandlers) HealthMQ(c *gin.Context) {
	if h.storage == nil || h.storage.MQ == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "mq", "status": "unhealthy", "error": "mq client not initialized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "mq", "status": "ok"})
}

// HealthKV KV 缓存健康检查，写读一次探测键.
func (h *HealthHandlers) HealthKV(c *gin.Context) {
	if h.storage == nil || h.storage.KV == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "kv", "status": "unhealthy", "error": "kv client not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.storage.KV.Set(ctx, "healthz:probe", []byte("ok"), time.Minute); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "kv", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "kv", "status": "ok"})
}

// Healthz 聚合健康检查，任一组件异常即整体 503.
func (h *HealthHandlers) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	components := gin.H{}
	healthy := true

	if h.storage != nil && h.storage.Catalog != nil {
		if _, err := h.storage.Catalog.Scan(ctx, catalog.Filter{}, 1); err != nil {
			components["catalog"] = "unhealthy"
			healthy = false
		} else {
			components["catalog"] = "ok"
		}
	} else {
		components["catalog"] = "unhealthy"
		healthy = false
	}

	if h.storage != nil && h.storage.S3 != nil && h.storage.S3.Ping(ctx) == nil {
		components["s3"] = "ok"
	} else {
		components["s3"] = "unhealthy"
		healthy = false
	}

	if h.storage != nil && h.storage.MQ != nil {
		components["mq"] = "ok"
	} else {
		components["mq"] = "unhealthy"
		healthy = false
	}

	status, overall := http.StatusOK, "ok"
	if !healthy {
		status, overall = http.StatusServiceUnavailable, "degraded"
	}

	c.JSON(status, gin.H{"status": overall, "components": components})
}
