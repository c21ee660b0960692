// Package types 定义 HTTP 层的请求与响应结构.
package types

import "github.com/yeisme/ingestvault/pkg/internal/model"

// ListFilesQuery GET /files 的查询参数.
// 时间参数为 RFC3339；无法解析的参数被忽略.
type ListFilesQuery struct {
	Status string `form:"status"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// ListFilesResponse GET /files 的响应体.
type ListFilesResponse struct {
	Files []model.FileRecord `json:"files"`
	Count int                `json:"count"`
}

// IngestResult 单次摄取的处理结论，用于日志与事件.
type IngestResult struct {
	Message      string `json:"message"`
	RecordID     string `json:"record_id"`
	OriginalKey  string `json:"original_key"`
	ProcessedKey string `json:"processed_key,omitempty"`
	Checksum     string `json:"checksum,omitempty"`
}
