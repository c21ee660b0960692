package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// NATSStore 基于 NATS JetStream KV 的目录实现.
//
// 条件语义映射到 KV 的版本机制：插入用 Create（键已存在即失败），
// 覆盖与状态推进用携带 revision 的 Update 做 CAS，版本不符即有并发
// 写抢先，统一上报 model.ErrConflict.
type NATSStore struct {
	kv   nats.KeyValue
	conn *nats.Conn
}

// NewNATSStore 连接 NATS 并创建（或复用）目录 bucket.
func NewNATSStore(ctx context.Context, config any) (Store, error) {
	cfg, ok := config.(*configs.NATSCatalogConfig)
	if !ok {
		return nil, fmt.Errorf("invalid NATS catalog config")
	}

	opts := []nats.Option{}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  cfg.Bucket,
		History: 1,
	})
	if err != nil {
		kv, err = js.KeyValue(cfg.Bucket)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create/get catalog bucket: %w", err)
		}
	}

	return &NATSStore{kv: kv, conn: nc}, nil
}

// kvKey 将目录主键编码为 KV 合法键.
// 主键形如 "file#a/b.txt"，而 KV 键不允许 '#' 和 '/'，
// 这里做可逆替换，读写两侧对称.
func kvKey(id string) string {
	r := strings.NewReplacer("#", ".H.", "/", ".S.")
	return r.Replace(id)
}

func (n *NATSStore) decode(data []byte) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode catalog record: %w", err)
	}

	return &rec, nil
}

// PutIfAbsentOrStale 插入 RAW 记录.
func (n *NATSStore) PutIfAbsentOrStale(ctx context.Context, rec *model.FileRecord) (PutOutcome, error) {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode catalog record: %w", err)
	}

	key := kvKey(rec.ID)

	_, err = n.kv.Create(key, data)
	if err == nil {
		return PutCreated, nil
	}

	if !errors.Is(err, nats.ErrKeyExists) {
		return 0, model.Transientf("catalog create %s: %v", rec.ID, err)
	}

	entry, err := n.kv.Get(key)
	if err != nil {
		return 0, model.Transientf("catalog read-back %s: %v", rec.ID, err)
	}

	existing, err := n.decode(entry.Value())
	if err != nil {
		return 0, err
	}

	if existing.Status.Terminal() {
		return PutSuperseded, nil
	}

	// 残留 RAW：按读到的版本覆盖，版本不符说明另一次摄取抢先
	if _, err := n.kv.Update(key, data, entry.Revision()); err != nil {
		return 0, fmt.Errorf("catalog refresh %s: %w", rec.ID, model.ErrConflict)
	}

	return PutRefreshed, nil
}

// ConditionalUpdateStatus 按版本 CAS 推进状态.
func (n *NATSStore) ConditionalUpdateStatus(ctx context.Context, id string, from model.Status, patch model.StatusPatch) error {
	key := kvKey(id)

	entry, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return model.NotFoundf("catalog record %s", id)
	}

	if err != nil {
		return model.Transientf("catalog get %s: %v", id, err)
	}

	rec, err := n.decode(entry.Value())
	if err != nil {
		return err
	}

	if rec.Status != from {
		return model.ErrConflict
	}

	rec.Status = patch.Status
	rec.ProcessedAt = patch.ProcessedAt
	rec.ProcessedKey = patch.ProcessedKey

	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode catalog record: %w", err)
	}

	if _, err := n.kv.Update(key, data, entry.Revision()); err != nil {
		return fmt.Errorf("catalog update %s: %w", id, model.ErrConflict)
	}

	return nil
}

// Get 按主键读取记录.
func (n *NATSStore) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	entry, err := n.kv.Get(kvKey(id))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, model.NotFoundf("catalog record %s", id)
	}

	if err != nil {
		return nil, model.Transientf("catalog get %s: %v", id, err)
	}

	return n.decode(entry.Value())
}

// Scan 全量遍历 bucket 后在内存中过滤排序.
// 目录规模与对象数量同阶，列表端点本身只返回有限条目.
func (n *NATSStore) Scan(ctx context.Context, f Filter, limit int) ([]model.FileRecord, error) {
	keys, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []model.FileRecord{}, nil
	}

	if err != nil {
		return nil, model.Transientf("catalog keys: %v", err)
	}

	recs := make([]model.FileRecord, 0, len(keys))

	for _, key := range keys {
		entry, err := n.kv.Get(key)
		if err != nil {
			if errors.Is(err, nats.ErrKeyNotFound) {
				continue
			}

			return nil, model.Transientf("catalog get %s: %v", key, err)
		}

		rec, err := n.decode(entry.Value())
		if err != nil {
			return nil, err
		}

		if f.Match(rec) {
			recs = append(recs, *rec)
		}
	}

	sortRecords(recs)

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	return recs, nil
}

// Close 关闭 NATS 连接.
func (n *NATSStore) Close() error {
	n.conn.Close()
	return nil
}

func init() {
	RegisterFactory(StoreTypeNATS, NewNATSStore)
}
