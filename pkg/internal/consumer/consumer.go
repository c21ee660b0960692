// Package consumer 订阅上传通知主题，驱动摄取流水线.
//
// 投递语义为至少一次：处理成功或判定为终止性失败时 Ack，
// 可重试失败时 Nack 交由中间件重投.
package consumer

import (
	"context"
	crand "crypto/rand"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/oklog/ulid"

	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/service"
	nlog "github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/queue"
)

var ulidEntropy = ulid.Monotonic(crand.Reader, 0)

// newTaskID 生成按时间有序的摄取任务标识.
func newTaskID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// Subscriber 消费端需要的订阅操作，由 mq.Client 实现.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Consumer 上传通知消费循环.
type Consumer struct {
	sub    Subscriber
	ingest *service.IngestService
}

// New 创建消费者.
func New(sub Subscriber, ingest *service.IngestService) *Consumer {
	return &Consumer{sub: sub, ingest: ingest}
}

// Run 订阅上传主题并阻塞消费，直到 ctx 取消或订阅通道关闭.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.sub.Subscribe(ctx, queue.TopicObjectUploaded)
	if err != nil {
		return err
	}

	nlog.Logger().Info().Str("topic", queue.TopicObjectUploaded).Msg("upload consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			c.handle(ctx, msg)
		}
	}
}

// handle 处理一条通知并决定 Ack/Nack.
func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	taskID := newTaskID()

	env, err := queue.ParseObjectUploaded(msg)
	if err != nil {
		// 无法解析的消息重投也不会成功
		nlog.Logger().Error().Err(err).Str("message_id", msg.UUID).Msg("malformed upload notification, dropping")
		metrics.RecordIngest("malformed")
		msg.Ack()

		return
	}

	start := time.Now()

	res, err := c.ingest.Ingest(ctx, taskID, env.Payload)

	switch {
	case err == nil:
		metrics.RecordIngest(res.Message)
		metrics.ObserveIngestDuration(time.Since(start))
		msg.Ack()
	case errors.Is(err, model.ErrTransient):
		nlog.Logger().Warn().Err(err).Str("task_id", taskID).Msg("transient ingest failure, requeueing")
		metrics.RecordIngest("transient")
		msg.Nack()
	default:
		// 终止性失败：记录已按需标记 FAILED，重投无意义
		nlog.Logger().Error().Err(err).Str("task_id", taskID).Msg("terminal ingest failure")
		metrics.RecordIngest("failed")
		msg.Ack()
	}
}
