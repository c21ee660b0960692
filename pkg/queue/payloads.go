package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 对象摄取领域 --------------------------

// ObjectRef 标识对象存储中的一个对象.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	// ObjectKey 对象键；上传通知中为 URL 编码形式，空格编码为 '+'.
	ObjectKey   string `json:"object_key"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ObjectUploadedPayload 原始桶收到新对象.
type ObjectUploadedPayload struct {
	Object ObjectRef `json:"object"`
	// Source 触发来源标识，如上传网关或同步任务名.
	Source string `json:"source,omitempty"`
}

// ObjectProcessedPayload 对象完成摄取并搬迁到已处理桶.
type ObjectProcessedPayload struct {
	Object ObjectRef `json:"object"`
	// RecordID 目录记录主键.
	RecordID string `json:"record_id"`
	// ProcessedKey 对象在已处理桶中的键.
	ProcessedKey string `json:"processed_key"`
	// Checksum 对象内容的 SHA-256 摘要.
	Checksum string `json:"checksum,omitempty"`
	// ProcessedAt 搬迁完成时间（UTC，RFC3339）.
	ProcessedAt time.Time `json:"processed_at"`
}

// ObjectProcessFailedPayload 摄取流水线终止失败.
type ObjectProcessFailedPayload struct {
	Object ObjectRef `json:"object"`
	// RecordID 目录记录主键；记录尚未建立时为空.
	RecordID string `json:"record_id,omitempty"`
	// TaskID 本次摄取任务标识，用于日志关联.
	TaskID string `json:"task_id,omitempty"`
	// Stage 失败时所处的流水线阶段.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// -------------------------- 目录领域 --------------------------

// CatalogReconciledPayload 对账任务补齐了一条滞留 RAW 的记录.
type CatalogReconciledPayload struct {
	RecordID     string    `json:"record_id"`
	ProcessedKey string    `json:"processed_key"`
	ProcessedAt  time.Time `json:"processed_at"`
}
