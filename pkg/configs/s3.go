package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// S3Config MinIO S3存储配置.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	// RawBucket 上传通知所指向的原始对象桶.
	RawBucket string `mapstructure:"raw_bucket"       rule:"required"`
	// ProcessedBucket 搬迁后的已处理对象桶.
	ProcessedBucket string `mapstructure:"processed_bucket" rule:"required"`
}

const (
	DefaultS3Endpoint        = "localhost:9000"        // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"            // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"            // 默认秘密访问密钥
	DefaultS3UseSSL          = false                   // 默认是否使用SSL
	DefaultS3Region          = "us-east-1"             // 默认区域
	DefaultS3RawBucket       = "ingestvault-raw"       // 默认原始桶
	DefaultS3ProcessedBucket = "ingestvault-processed" // 默认已处理桶
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// Buckets 返回启动时需要确保存在的桶列表.
func (c *S3Config) Buckets() []string {
	return []string{c.RawBucket, c.ProcessedBucket}
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.raw_bucket", DefaultS3RawBucket)
	v.SetDefault("s3.processed_bucket", DefaultS3ProcessedBucket)
}
