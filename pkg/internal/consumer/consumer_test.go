package consumer

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/service"
	"github.com/yeisme/ingestvault/pkg/queue"
)

// chanSubscriber 测试用订阅器，直接回放预置消息.
type chanSubscriber struct {
	ch chan *message.Message
}

func (s *chanSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.ch, nil
}

// noopStore 任意键都命中同一份内容的对象存储桩.
type noopStore struct{}

func (noopStore) HeadMetadata(ctx context.Context, bucket, key string) (*model.ObjectMetadata, error) {
	return &model.ObjectMetadata{Size: 4, ETag: "e", ContentType: "text/plain"}, nil
}

func (noopStore) GetStream(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("body")), nil
}

func (noopStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	return nil
}

func (noopStore) Delete(ctx context.Context, bucket, key string) error { return nil }

func (noopStore) ProcessedBucket() string { return "ingestvault-processed" }

type failingCatalog struct {
	catalog.Store
}

func (f *failingCatalog) PutIfAbsentOrStale(ctx context.Context, rec *model.FileRecord) (catalog.PutOutcome, error) {
	return 0, model.Transientf("catalog unavailable")
}

func waitAck(t *testing.T, msg *message.Message) bool {
	t.Helper()

	select {
	case <-msg.Acked():
		return true
	case <-msg.Nacked():
		return false
	case <-time.After(5 * time.Second):
		t.Fatal("message neither acked nor nacked")
		return false
	}
}

func runConsumer(t *testing.T, c *Consumer, ch chan *message.Message) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		_ = c.Run(ctx)
	}()

	return cancel
}

func TestConsumerAcksMalformedMessage(t *testing.T) {
	sub := &chanSubscriber{ch: make(chan *message.Message, 1)}

	cat, err := catalog.NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	ingest := service.NewIngestService(&noopStore{}, cat, nil, configs.PipelineConfig{ProcessedPrefix: "processed/"}, configs.ObjectEventsConfig{})

	cancel := runConsumer(t, New(sub, ingest), sub.ch)
	defer cancel()

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	sub.ch <- msg

	if !waitAck(t, msg) {
		t.Fatal("malformed message must be acked, not requeued")
	}
}

func TestConsumerNacksTransientFailure(t *testing.T) {
	sub := &chanSubscriber{ch: make(chan *message.Message, 1)}

	base, err := catalog.NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	store := &noopStore{}
	ingest := service.NewIngestService(store, &failingCatalog{Store: base}, nil, configs.PipelineConfig{ProcessedPrefix: "processed/"}, configs.ObjectEventsConfig{})

	cancel := runConsumer(t, New(sub, ingest), sub.ch)
	defer cancel()

	wm, err := queue.NewWatermillMessage(queue.TopicObjectUploaded, queue.ObjectUploadedPayload{
		Object: queue.ObjectRef{Bucket: "ingestvault-raw", ObjectKey: "k.txt"},
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}

	sub.ch <- wm

	if waitAck(t, wm) {
		t.Fatal("transient failure must nack for redelivery")
	}
}
