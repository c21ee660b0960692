package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/queue"
)

// fakeObjectStore 内存对象存储，可注入单点故障.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	copyErr   error
	deleteErr error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = body
}

func (f *fakeObjectStore) has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.objects[bucket+"/"+key]

	return ok
}

func (f *fakeObjectStore) HeadMetadata(ctx context.Context, bucket, key string) (*model.ObjectMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, model.NotFoundf("stat object %s/%s", bucket, key)
	}

	return &model.ObjectMetadata{Size: int64(len(body)), ETag: "etag-1", ContentType: "text/plain"}, nil
}

func (f *fakeObjectStore) GetStream(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, model.NotFoundf("get object %s/%s", bucket, key)
	}

	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeObjectStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	if f.copyErr != nil {
		return f.copyErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[srcBucket+"/"+srcKey]
	if !ok {
		return model.NotFoundf("copy object %s/%s", srcBucket, srcKey)
	}

	f.objects[dstBucket+"/"+dstKey] = body

	return nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, bucket, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)

	return nil
}

func (f *fakeObjectStore) ProcessedBucket() string { return "ingestvault-processed" }

// capturingPublisher 记录发布的消息.
type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []*message.Message
}

func (p *capturingPublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}

	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) published(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0

	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}

	return n
}

func newTestIngest(t *testing.T, store *fakeObjectStore, pub message.Publisher) (*IngestService, catalog.Store) {
	t.Helper()

	cat, err := catalog.NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	pipeline := configs.PipelineConfig{ProcessedPrefix: "processed/", ListLimit: 100}
	events := configs.ObjectEventsConfig{Processed: true, ProcessFailed: true}

	return NewIngestService(store, cat, pub, pipeline, events), cat
}

func uploaded(bucket, rawKey string) queue.ObjectUploadedPayload {
	return queue.ObjectUploadedPayload{Object: queue.ObjectRef{Bucket: bucket, ObjectKey: rawKey}}
}

func TestIngestFullPipeline(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "reports/a b.txt", []byte("hello world"))

	pub := &capturingPublisher{}
	svc, cat := newTestIngest(t, store, pub)

	// 上传通知中空格按网关惯例编码为 '+'
	res, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "reports/a+b.txt"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.ProcessedKey != "processed/reports/a b.txt" {
		t.Fatalf("processed key = %q", res.ProcessedKey)
	}

	if res.Checksum != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("checksum = %q", res.Checksum)
	}

	if !store.has("ingestvault-processed", "processed/reports/a b.txt") {
		t.Fatal("object not copied to processed bucket")
	}

	if store.has("ingestvault-raw", "reports/a b.txt") {
		t.Fatal("source object not deleted")
	}

	rec, err := cat.Get(ctx, model.DeriveID("reports/a b.txt"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	if rec.Status != model.StatusProcessed {
		t.Fatalf("status = %s", rec.Status)
	}

	if rec.ProcessedAt == nil || rec.ProcessedKey != "processed/reports/a b.txt" {
		t.Fatalf("processed fields missing: %+v", rec)
	}

	if rec.Size != int64(len("hello world")) || rec.ETag != "etag-1" {
		t.Fatalf("metadata not captured: %+v", rec)
	}

	if pub.published(queue.TopicObjectProcessed) != 1 {
		t.Fatal("processed event not published")
	}
}

func TestIngestIdempotentRedelivery(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "doc.txt", []byte("payload"))

	pub := &capturingPublisher{}
	svc, _ := newTestIngest(t, store, pub)

	if _, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "doc.txt")); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	// 源对象已搬走，head 返回 not found，属于终止性跳过
	_, err := svc.Ingest(ctx, "task-2", uploaded("ingestvault-raw", "doc.txt"))
	if err == nil || !model.IsNotFound(err) {
		t.Fatalf("expected not-found on redelivery after relocation, got %v", err)
	}

	// 源对象仍在（删除失败的重投场景）：目录已终态，直接跳过
	store.put("ingestvault-raw", "doc.txt", []byte("payload"))

	res, err := svc.Ingest(ctx, "task-3", uploaded("ingestvault-raw", "doc.txt"))
	if err != nil {
		t.Fatalf("redelivery ingest: %v", err)
	}

	if res.Message != "already processed" {
		t.Fatalf("message = %q", res.Message)
	}

	if pub.published(queue.TopicObjectProcessed) != 1 {
		t.Fatal("redelivery must not publish a second processed event")
	}
}

func TestIngestTransientCopyFailureStaysRetryable(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "x.bin", []byte{1, 2, 3})
	store.copyErr = model.Transientf("copy object ingestvault-raw/x.bin: connection refused")

	pub := &capturingPublisher{}
	svc, cat := newTestIngest(t, store, pub)

	_, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "x.bin"))
	if !model.IsTransient(err) {
		t.Fatalf("expected transient copy failure, got %v", err)
	}

	rec, err := cat.Get(ctx, model.DeriveID("x.bin"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	// 可重试失败不得封死记录，否则重投命中终态直接跳过
	if rec.Status != model.StatusRaw {
		t.Fatalf("status = %s, want RAW", rec.Status)
	}

	if !store.has("ingestvault-raw", "x.bin") {
		t.Fatal("source object must remain after copy failure")
	}

	if pub.published(queue.TopicObjectProcessFailed) != 0 {
		t.Fatal("transient failure must not publish a failed event")
	}

	// 故障恢复后的重投应完整走完流水线
	store.copyErr = nil

	res, err := svc.Ingest(ctx, "task-2", uploaded("ingestvault-raw", "x.bin"))
	if err != nil {
		t.Fatalf("redelivery ingest: %v", err)
	}

	if res.Message != "processed" {
		t.Fatalf("redelivery message = %q", res.Message)
	}

	if !store.has("ingestvault-processed", "processed/x.bin") {
		t.Fatal("object not relocated on redelivery")
	}

	rec, err = cat.Get(ctx, model.DeriveID("x.bin"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	if rec.Status != model.StatusProcessed {
		t.Fatalf("status after redelivery = %s", rec.Status)
	}
}

func TestIngestTerminalCopyFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "x.bin", []byte{1, 2, 3})
	store.copyErr = errors.New("access denied")

	pub := &capturingPublisher{}
	svc, cat := newTestIngest(t, store, pub)

	_, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "x.bin"))
	if err == nil {
		t.Fatal("expected copy failure")
	}

	rec, err := cat.Get(ctx, model.DeriveID("x.bin"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	if rec.Status != model.StatusFailed {
		t.Fatalf("status = %s, want FAILED", rec.Status)
	}

	if !store.has("ingestvault-raw", "x.bin") {
		t.Fatal("source object must remain after copy failure")
	}

	if pub.published(queue.TopicObjectProcessFailed) != 1 {
		t.Fatal("failed event not published")
	}
}

func TestIngestCopyNotFoundLeavesRecordRaw(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "dup.txt", []byte("contended"))
	// 并发摄取的胜者在本方 Copy 之前完成了搬迁和删除
	store.copyErr = model.NotFoundf("copy object ingestvault-raw/dup.txt")

	pub := &capturingPublisher{}
	svc, cat := newTestIngest(t, store, pub)

	_, err := svc.Ingest(ctx, "task-b", uploaded("ingestvault-raw", "dup.txt"))
	if !model.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	rec, err := cat.Get(ctx, model.DeriveID("dup.txt"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	if rec.Status != model.StatusRaw {
		t.Fatalf("status = %s, want RAW", rec.Status)
	}

	if pub.published(queue.TopicObjectProcessFailed) != 0 {
		t.Fatal("losing a relocation race must not publish a failed event")
	}

	// 胜者的条件推进不受败者影响
	now := rec.CreatedAt
	patch := model.StatusPatch{Status: model.StatusProcessed, ProcessedAt: &now, ProcessedKey: "processed/dup.txt"}

	if err := cat.ConditionalUpdateStatus(ctx, rec.ID, model.StatusRaw, patch); err != nil {
		t.Fatalf("winner transition blocked: %v", err)
	}
}

func TestIngestDeleteFailureStillProcessed(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "y.txt", []byte("abc"))
	store.deleteErr = model.Transientf("remove object ingestvault-raw/y.txt: timeout")

	svc, cat := newTestIngest(t, store, &capturingPublisher{})

	res, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "y.txt"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.Message != "processed" {
		t.Fatalf("message = %q", res.Message)
	}

	rec, err := cat.Get(ctx, model.DeriveID("y.txt"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	if rec.Status != model.StatusProcessed {
		t.Fatalf("delete failure must not block the transition, status = %s", rec.Status)
	}
}

func TestIngestMissingObject(t *testing.T) {
	ctx := context.Background()
	svc, cat := newTestIngest(t, newFakeObjectStore(), &capturingPublisher{})

	_, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "ghost.txt"))
	if !model.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	// 未走到目录登记阶段
	if _, err := cat.Get(ctx, model.DeriveID("ghost.txt")); !model.IsNotFound(err) {
		t.Fatal("no record should exist for a missing object")
	}
}

func TestIngestConcurrentSameObject(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "c.txt", []byte("contended"))

	pub := &capturingPublisher{}
	svc, cat := newTestIngest(t, store, pub)

	const workers = 4

	var wg sync.WaitGroup

	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		i := i

		go func() {
			defer wg.Done()

			_, errs[i] = svc.Ingest(ctx, "task", uploaded("ingestvault-raw", "c.txt"))
		}()
	}

	wg.Wait()

	// 所有并发调用都不得返回可重试之外的失败
	for _, err := range errs {
		if err != nil && !model.IsNotFound(err) && !errors.Is(err, model.ErrTransient) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	rec, err := cat.Get(ctx, model.DeriveID("c.txt"))
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}

	if rec.Status != model.StatusProcessed {
		t.Fatalf("status = %s", rec.Status)
	}
}

func TestDecodeObjectKey(t *testing.T) {
	got, err := DecodeObjectKey("a/b+c%2Bd.txt")
	if err != nil {
		t.Fatalf("DecodeObjectKey: %v", err)
	}

	if got != "a/b c+d.txt" {
		t.Fatalf("decoded = %q", got)
	}

	if _, err := DecodeObjectKey("bad%zz"); err == nil {
		t.Fatal("expected error for malformed encoding")
	}
}

func TestIngestEventsDisabled(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	store.put("ingestvault-raw", "quiet.txt", []byte("shh"))

	cat, err := catalog.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	pub := &capturingPublisher{}
	svc := NewIngestService(store, cat, pub,
		configs.PipelineConfig{ProcessedPrefix: "processed/"},
		configs.ObjectEventsConfig{})

	if _, err := svc.Ingest(ctx, "task-1", uploaded("ingestvault-raw", "quiet.txt")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(pub.msgs) != 0 {
		t.Fatalf("events disabled but %d messages published", len(pub.msgs))
	}
}
