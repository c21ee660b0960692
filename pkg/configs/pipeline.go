package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultProcessedPrefix 已处理对象键的固定前缀.
	DefaultProcessedPrefix = "processed/"
	// DefaultListLimit 列表查询的扫描上限.
	DefaultListLimit = 100
	// DefaultListCacheTTL 列表响应缓存 TTL（秒）.
	DefaultListCacheTTL = 30
	// DefaultReconcileCron 对账任务的 cron 表达式（每 10 分钟）.
	DefaultReconcileCron = "*/10 * * * *"
	// DefaultReconcileMinAgeMinutes 只对账早于该分钟数的 RAW 记录.
	DefaultReconcileMinAgeMinutes = 15
)

// PipelineConfig 摄取流水线与目录查询配置.
type PipelineConfig struct {
	// ProcessedPrefix 搬迁目标键前缀，目的键 = prefix + 源键.
	ProcessedPrefix string `mapstructure:"processed_prefix" rule:"required"`
	// ListLimit 列表查询一次扫描的最大记录数；超出部分被截断.
	ListLimit int `mapstructure:"list_limit" rule:"min=1,max=1000"`
	// ListCacheTTLSeconds 列表响应在 KV 缓存中的生存时间.
	ListCacheTTLSeconds int `mapstructure:"list_cache_ttl_seconds" rule:"min=0,max=3600"`
	// Reconcile 对账任务配置：补齐"已搬迁但状态仍为 RAW"的记录.
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// ReconcileConfig 对账扫描任务配置.
type ReconcileConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Cron          string `mapstructure:"cron"`
	MinAgeMinutes int    `mapstructure:"min_age_minutes" rule:"min=1"`
}

// ListCacheTTL 返回列表缓存 TTL.
func (c *PipelineConfig) ListCacheTTL() time.Duration {
	return time.Duration(c.ListCacheTTLSeconds) * time.Second
}

// MinAge 返回对账任务的最小记录年龄.
func (c *ReconcileConfig) MinAge() time.Duration {
	return time.Duration(c.MinAgeMinutes) * time.Minute
}

func (c *PipelineConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.processed_prefix", DefaultProcessedPrefix)
	v.SetDefault("pipeline.list_limit", DefaultListLimit)
	v.SetDefault("pipeline.list_cache_ttl_seconds", DefaultListCacheTTL)
	v.SetDefault("pipeline.reconcile.enabled", true)
	v.SetDefault("pipeline.reconcile.cron", DefaultReconcileCron)
	v.SetDefault("pipeline.reconcile.min_age_minutes", DefaultReconcileMinAgeMinutes)
}
