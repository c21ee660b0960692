// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/service"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/queue"
	"github.com/yeisme/ingestvault/pkg/scheduler"
)

// Reconciler 对账任务：摄取流程在"已复制、未推进状态"窗口内崩溃时，
// 目录会滞留 RAW 记录而对象已在已处理桶。定期扫描这类记录并补齐推进.
type Reconciler struct {
	objects  service.ObjectStore
	catalog  catalog.Store
	pub      message.Publisher
	pipeline configs.PipelineConfig
}

// NewReconciler 创建对账任务；pub 可为 nil.
func NewReconciler(objects service.ObjectStore, cat catalog.Store, pub message.Publisher, pipeline configs.PipelineConfig) *Reconciler {
	return &Reconciler{objects: objects, catalog: cat, pub: pub, pipeline: pipeline}
}

// RegisterCronJobs 按配置注册对账定时任务.
func RegisterCronJobs(sched *scheduler.Scheduler, r *Reconciler, cfg configs.ReconcileConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if !cfg.Enabled {
		return nil
	}

	return sched.AddCron(JobCatalogReconcile, cfg.Cron, func(ctx context.Context) {
		r.Run(ctx, cfg.MinAge())
	}, context.Background())
}

// Run 执行一轮对账：扫描滞留超过 minAge 的 RAW 记录，
// 已处理桶中存在对应对象的补齐状态推进.
func (r *Reconciler) Run(ctx context.Context, minAge time.Duration) {
	log := nlog.Logger().With().Str("job", JobCatalogReconcile).Logger()

	recs, err := r.catalog.Scan(ctx, catalog.Filter{Status: model.StatusRaw}, 0)
	if err != nil {
		log.Error().Err(err).Msg("scan raw records failed")
		return
	}

	cutoff := time.Now().UTC().Add(-minAge)
	repaired := 0

	for i := range recs {
		rec := &recs[i]
		if rec.CreatedAt.After(cutoff) {
			// 太新，可能仍在正常流水线中
			continue
		}

		if r.reconcileOne(ctx, log, rec) {
			repaired++
		}
	}

	if repaired > 0 {
		log.Info().Int("repaired", repaired).Int("scanned", len(recs)).Msg("reconcile pass completed")
	} else {
		log.Debug().Int("scanned", len(recs)).Msg("reconcile pass completed, nothing to repair")
	}
}

// reconcileOne 检查单条滞留记录，对象已搬迁的补齐状态.
func (r *Reconciler) reconcileOne(ctx context.Context, log zerolog.Logger, rec *model.FileRecord) bool {
	processedKey := r.pipeline.ProcessedPrefix + rec.SourceKey

	if _, err := r.objects.HeadMetadata(ctx, r.objects.ProcessedBucket(), processedKey); err != nil {
		if !model.IsNotFound(err) {
			log.Warn().Err(err).Str("record_id", rec.ID).Msg("probe processed object failed")
		}
		// 对象不在已处理桶：流水线尚未走到复制，留给消息重投处理
		return false
	}

	// 清理可能残留的源对象
	if err := r.objects.Delete(ctx, rec.SourceBucket, rec.SourceKey); err != nil {
		log.Warn().Err(err).Str("record_id", rec.ID).Msg("cleanup source object failed")
	}

	now := time.Now().UTC()
	patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &now, ProcessedKey: processedKey}

	if err := r.catalog.ConditionalUpdateStatus(ctx, rec.ID, model.StatusRaw, patch); err != nil {
		if !model.IsConflict(err) {
			log.Warn().Err(err).Str("record_id", rec.ID).Msg("reconcile transition failed")
		}

		return false
	}

	log.Info().Str("record_id", rec.ID).Str("processed_key", processedKey).Msg("stale record reconciled")

	if r.pub != nil {
		err := queue.PublishCatalogReconciled(r.pub, queue.CatalogReconciledPayload{
			RecordID:     rec.ID,
			ProcessedKey: processedKey,
			ProcessedAt:  now,
		}, queue.WithProducer("ingestvault"))
		if err != nil {
			log.Warn().Err(err).Str("record_id", rec.ID).Msg("publish reconciled event failed")
		}
	}

	return true
}
