// Package model 定义文件目录的数据模型与共享错误类型.
package model

import (
	"strings"
	"time"
)

// Status 文件记录的生命周期状态.
type Status string

const (
	// StatusRaw 记录已创建，对象尚未搬迁.
	StatusRaw Status = "RAW"
	// StatusProcessed 对象已搬迁到已处理桶，终态.
	StatusProcessed Status = "PROCESSED"
	// StatusFailed 搬迁或状态推进失败，终态.
	StatusFailed Status = "FAILED"
)

// Valid 检查状态是否为已知值.
func (s Status) Valid() bool {
	switch s {
	case StatusRaw, StatusProcessed, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal 终态的记录不再被流水线改写.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// IDPrefix 目录主键前缀，主键 = "file#" + 源对象键.
const IDPrefix = "file#"

// DeriveID 从源对象键推导目录主键.
func DeriveID(key string) string {
	return IDPrefix + key
}

// NormalizeID 规范化外部传入的记录 ID，补齐主键前缀.
func NormalizeID(id string) string {
	if strings.HasPrefix(id, IDPrefix) {
		return id
	}

	return IDPrefix + id
}

// ObjectMetadata 摄取开始时从对象存储捕获的元数据.
type ObjectMetadata struct {
	Size        int64  `json:"size"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
}

// FileRecord 一个对象的目录条目.
//
// checksum、size、etag、contentType 写入后不再变化；
// status 只沿 RAW→PROCESSED 或 RAW→FAILED 推进；
// processedAt/processedKey 当且仅当 status=PROCESSED 时存在.
type FileRecord struct {
	ID           string     `gorm:"primaryKey;size:1024"  json:"id"`
	SourceBucket string     `gorm:"size:255"              json:"sourceBucket"`
	SourceKey    string     `gorm:"size:1024;index"       json:"sourceKey"`
	Size         int64      `gorm:""                      json:"size"`
	ETag         string     `gorm:"size:64"               json:"etag"`
	ContentType  string     `gorm:"size:255"              json:"contentType"`
	Checksum     string     `gorm:"size:64"               json:"checksum"`
	Status       Status     `gorm:"size:16;index"         json:"status"`
	CreatedAt    time.Time  `gorm:""                      json:"createdAt"`
	ProcessedAt  *time.Time `gorm:"index"                 json:"processedAt,omitempty"`
	ProcessedKey string     `gorm:"size:1024"             json:"processedKey,omitempty"`
}

// ProcessedTime 返回排序用的 processedAt；缺失时返回零值，排在最后.
func (r *FileRecord) ProcessedTime() time.Time {
	if r.ProcessedAt == nil {
		return time.Time{}
	}

	return *r.ProcessedAt
}

// StatusPatch 条件状态推进写入的字段组，单次目录操作内整体生效.
type StatusPatch struct {
	Status       Status
	ProcessedAt  *time.Time
	ProcessedKey string
}
