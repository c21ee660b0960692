// Package router 管理路由配置，将路径和处理器绑定到 gin 引擎.
// 处理器的实现由 pkg/internal/handle 提供并注入进来.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/internal/handle"
)

// RegisterFiles 绑定目录读 API（假定上层会用 files := r.Group("/files")）：
//
//	GET /        -> ListFiles
//	GET /*id     -> GetFile
//
// 记录标识来自对象键，可能含 '/'，因此用通配路由而非单段参数.
func RegisterFiles(group *gin.RouterGroup, h *handle.FileHandlers) {
	group.GET("", h.ListFiles)
	group.GET("/*id", h.GetFile)
}

// RegisterHealth 绑定健康检查端点：
//
//	GET /livez           -> 进程存活
//	GET /healthz         -> 聚合检查
//	GET /healthz/catalog -> 目录存储
//	GET /healthz/db      -> 数据库
//	GET /healthz/s3      -> 对象存储
//	GET /healthz/mq      -> 消息队列
//	GET /healthz/kv      -> KV 缓存
//	GET /healthz/jobs    -> 定时任务调度状态
func RegisterHealth(r gin.IRouter, h *handle.HealthHandlers) {
	r.GET("/livez", h.Livez)
	r.GET("/healthz", h.Healthz)

	hz := r.Group("/healthz")
	hz.GET("/catalog", h.HealthCatalog)
	hz.GET("/db", h.HealthDB)
	hz.GET("/s3", h.HealthS3)
	hz.GET("/mq", h.HealthMQ)
	hz.GET("/kv", h.HealthKV)
	hz.GET("/jobs", h.Jobs)
}

// RegisterNoRoute 绑定未匹配路由的统一 404 响应.
func RegisterNoRoute(r *gin.Engine) {
	r.NoRoute(handle.NotFoundHandler)
}
