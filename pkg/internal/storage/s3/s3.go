// Package s3 封装 MinIO 客户端，提供流水线需要的对象操作.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// Client 对象存储客户端.
type Client struct {
	mc  *minio.Client
	cfg *configs.S3Config
}

// NewS3Client 创建客户端并确保原始桶与已处理桶存在.
func NewS3Client(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	c := &Client{mc: mc, cfg: cfg}

	for _, bucket := range cfg.Buckets() {
		if err := c.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}

	if exists {
		return nil
	}

	err = c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.cfg.Region})
	if err != nil {
		// 并发启动时另一实例可能已建桶
		if exists, e2 := c.mc.BucketExists(ctx, bucket); e2 == nil && exists {
			return nil
		}

		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	return nil
}

// mapError 将 MinIO 错误折叠进统一错误分类.
func mapError(op, bucket, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return model.NotFoundf("%s %s/%s", op, bucket, key)
	default:
		return model.Transientf("%s %s/%s: %v", op, bucket, key, err)
	}
}

// HeadMetadata 读取对象元数据，不拉取内容.
func (c *Client) HeadMetadata(ctx context.Context, bucket, key string) (*model.ObjectMetadata, error) {
	info, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError("stat object", bucket, key, err)
	}

	return &model.ObjectMetadata{
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
	}, nil
}

// GetStream 打开对象内容流，调用方负责 Close.
func (c *Client) GetStream(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError("get object", bucket, key, err)
	}

	// GetObject 懒连接，Stat 强制校验对象存在
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapError("get object", bucket, key, err)
	}

	return obj, nil
}

// Copy 服务端复制对象，不经过本进程中转内容.
func (c *Client) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := c.mc.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return mapError("copy object", srcBucket, srcKey, err)
	}

	return nil
}

// Delete 删除对象；对已不存在的对象删除视为成功.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		mapped := mapError("remove object", bucket, key, err)
		if model.IsNotFound(mapped) {
			return nil
		}

		return mapped
	}

	return nil
}

// Ping 探测对象存储可用性.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.mc.BucketExists(ctx, c.cfg.RawBucket); err != nil {
		return fmt.Errorf("ping s3: %w", err)
	}

	return nil
}

// RawBucket 返回原始对象桶名.
func (c *Client) RawBucket() string { return c.cfg.RawBucket }

// ProcessedBucket 返回已处理对象桶名.
func (c *Client) ProcessedBucket() string { return c.cfg.ProcessedBucket }
