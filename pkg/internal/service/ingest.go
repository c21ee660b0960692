// Package service 实现摄取流水线与目录查询的业务逻辑，不处理 HTTP 细节.
package service

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/checksum"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/queue"
	"github.com/yeisme/ingestvault/pkg/tracing"
)

// ObjectStore 摄取流水线需要的对象存储操作，由 s3.Client 实现.
type ObjectStore interface {
	HeadMetadata(ctx context.Context, bucket, key string) (*model.ObjectMetadata, error)
	GetStream(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
	ProcessedBucket() string
}

// IngestService 执行上传通知驱动的摄取流水线：
// 捕获元数据、计算摘要、登记目录、搬迁对象、推进状态.
type IngestService struct {
	objects  ObjectStore
	catalog  catalog.Store
	pub      message.Publisher
	pipeline configs.PipelineConfig
	events   configs.ObjectEventsConfig
}

// NewIngestService 显式注入依赖；pub 可为 nil，表示不发布生命周期事件.
func NewIngestService(objects ObjectStore, cat catalog.Store, pub message.Publisher, pipeline configs.PipelineConfig, events configs.ObjectEventsConfig) *IngestService {
	return &IngestService{
		objects:  objects,
		catalog:  cat,
		pub:      pub,
		pipeline: pipeline,
		events:   events,
	}
}

// DecodeObjectKey 还原上传通知中 URL 编码的对象键，'+' 解码为空格.
func DecodeObjectKey(raw string) (string, error) {
	return url.QueryUnescape(raw)
}

// Ingest 处理一条上传通知，幂等：重复投递已完成的对象直接跳过.
//
// 返回 model.ErrTransient 包装的错误表示可重试，调用方应 Nack 重投，
// 目录记录保持 RAW 等待重跑；仅终止性失败把记录推进到 FAILED.
func (s *IngestService) Ingest(ctx context.Context, taskID string, payload queue.ObjectUploadedPayload) (*types.IngestResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.pipeline",
		trace.WithAttributes(
			attribute.String("ingest.task_id", taskID),
			attribute.String("object.bucket", payload.Object.Bucket),
			attribute.String("object.key", payload.Object.ObjectKey),
		),
	)
	defer span.End()

	log := nlog.Logger().With().
		Str("task_id", taskID).
		Str("bucket", payload.Object.Bucket).
		Str("raw_key", payload.Object.ObjectKey).
		Logger()

	key, err := DecodeObjectKey(payload.Object.ObjectKey)
	if err != nil {
		log.Error().Err(err).Msg("malformed object key in upload notification")
		return nil, err
	}

	bucket := payload.Object.Bucket
	recordID := model.DeriveID(key)

	// 阶段一：元数据
	meta, err := s.objects.HeadMetadata(ctx, bucket, key)
	if err != nil {
		log.Error().Err(err).Msg("head object failed")
		return nil, err
	}

	// 阶段二：摘要
	stream, err := s.objects.GetStream(ctx, bucket, key)
	if err != nil {
		log.Error().Err(err).Msg("open object stream failed")
		return nil, err
	}

	digest, err := checksum.SHA256Hex(stream)

	_ = stream.Close()

	if err != nil {
		log.Error().Err(err).Msg("checksum failed")
		// 流中断视为可重试，对象仍在原始桶
		return nil, model.Transientf("checksum %s/%s: %v", bucket, key, err)
	}

	// 阶段三：目录登记 RAW
	rec := &model.FileRecord{
		ID:           recordID,
		SourceBucket: bucket,
		SourceKey:    key,
		Size:         meta.Size,
		ETag:         meta.ETag,
		ContentType:  meta.ContentType,
		Checksum:     digest,
		Status:       model.StatusRaw,
		CreatedAt:    time.Now().UTC(),
	}

	outcome, err := s.catalog.PutIfAbsentOrStale(ctx, rec)
	if err != nil {
		if model.IsConflict(err) {
			// 并发摄取同一对象，另一方已接手
			log.Info().Msg("catalog insert lost race, skipping")
			return &types.IngestResult{Message: "superseded by concurrent ingest", RecordID: recordID, OriginalKey: key}, nil
		}

		log.Error().Err(err).Msg("catalog insert failed")

		return nil, err
	}

	if outcome == catalog.PutSuperseded {
		// 重复投递已完成的对象
		log.Info().Msg("object already processed, skipping")
		return &types.IngestResult{Message: "already processed", RecordID: recordID, OriginalKey: key}, nil
	}

	log.Info().Str("outcome", outcome.String()).Str("checksum", digest).Msg("catalog record registered")

	// 阶段四：搬迁（先复制后删除，复制失败时原对象保持不动）
	processedKey := s.pipeline.ProcessedPrefix + key

	if err := s.objects.Copy(ctx, bucket, key, s.objects.ProcessedBucket(), processedKey); err != nil {
		switch {
		case model.IsNotFound(err):
			// 源对象已被并发摄取搬走，状态推进由胜者的条件更新或对账完成
			log.Info().Msg("source object gone before copy, relocated by concurrent ingest")
		case model.IsTransient(err):
			// 记录保持 RAW，重投后流水线整体重跑
			log.Warn().Err(err).Msg("copy to processed bucket failed, awaiting redelivery")
		default:
			log.Error().Err(err).Msg("copy to processed bucket failed")
			s.markFailed(ctx, log, recordID, taskID, payload.Object, "copy", err)
		}

		return nil, err
	}

	if err := s.objects.Delete(ctx, bucket, key); err != nil {
		// 复制已完成，删除失败不回滚也不终止，留给对账清理
		log.Warn().Err(err).Msg("delete source object failed, continuing")
	}

	// 阶段五：状态推进 RAW→PROCESSED
	now := time.Now().UTC()
	patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &now, ProcessedKey: processedKey}

	if err := s.catalog.ConditionalUpdateStatus(ctx, recordID, model.StatusRaw, patch); err != nil {
		if model.IsConflict(err) {
			// 另一方已推进，工作已完成
			log.Info().Msg("status transition lost race, record already advanced")
		} else {
			log.Error().Err(err).Msg("status transition failed")
			return nil, err
		}
	}

	s.publishProcessed(log, payload.Object, recordID, processedKey, digest, now)

	log.Info().Str("processed_key", processedKey).Msg("object ingested")

	return &types.IngestResult{
		Message:      "processed",
		RecordID:     recordID,
		OriginalKey:  key,
		ProcessedKey: processedKey,
		Checksum:     digest,
	}, nil
}

// markFailed 尽力把记录推进到 FAILED 并发布失败事件，失败仅记日志.
func (s *IngestService) markFailed(ctx context.Context, log zerolog.Logger, recordID, taskID string, obj queue.ObjectRef, stage string, cause error) {
	patch := model.StatusPatch{Status: model.StatusFailed}

	if err := s.catalog.ConditionalUpdateStatus(ctx, recordID, model.StatusRaw, patch); err != nil {
		log.Warn().Err(err).Msg("mark record failed did not apply")
	}

	if s.pub == nil || !s.events.ProcessFailed {
		return
	}

	err := queue.PublishObjectProcessFailed(s.pub, queue.ObjectProcessFailedPayload{
		Object:   obj,
		RecordID: recordID,
		TaskID:   taskID,
		Stage:    stage,
		Error:    cause.Error(),
	}, queue.WithProducer("ingestvault"))
	if err != nil {
		log.Warn().Err(err).Msg("publish process failed event")
	}
}

// publishProcessed 发布搬迁完成事件，失败仅记日志.
func (s *IngestService) publishProcessed(log zerolog.Logger, obj queue.ObjectRef, recordID, processedKey, digest string, at time.Time) {
	if s.pub == nil || !s.events.Processed {
		return
	}

	err := queue.PublishObjectProcessed(s.pub, queue.ObjectProcessedPayload{
		Object:       obj,
		RecordID:     recordID,
		ProcessedKey: processedKey,
		Checksum:     digest,
		ProcessedAt:  at,
	}, queue.WithProducer("ingestvault"))
	if err != nil {
		log.Warn().Err(err).Msg("publish processed event")
	}
}
