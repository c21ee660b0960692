// Package storage 聚合对象存储、目录、KV 缓存、数据库与消息队列客户端，
// 按配置统一建立与释放连接.
package storage

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/catalog"
	"github.com/yeisme/ingestvault/pkg/internal/storage/db"
	"github.com/yeisme/ingestvault/pkg/internal/storage/kv"
	"github.com/yeisme/ingestvault/pkg/internal/storage/mq"
	"github.com/yeisme/ingestvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// Manager 持有全部存储客户端，由应用装配时显式传递给各组件.
type Manager struct {
	S3      *s3.Client
	Catalog catalog.Store
	KV      *kv.Client
	MQ      *mq.Client
	DB      *db.Client
}

// NewManager 按配置建立所有存储连接.
// 目录选用 gorm 后端时才建立数据库连接；registry 供 MQ 指标装饰使用.
func NewManager(ctx context.Context, cfg *configs.AppConfig, registry *prometheus.Registry) (*Manager, error) {
	m := &Manager{}

	s3c, err := s3.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("init s3: %w", err)
	}

	m.S3 = s3c

	if catalog.StoreType(cfg.Catalog.Type) == catalog.StoreTypeGorm {
		dbc, err := db.New(ctx, &cfg.DB, cfg.Metrics.Enabled)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}

		m.DB = dbc
	}

	var gormDB *gorm.DB
	if m.DB != nil {
		gormDB = m.DB.DB
	}

	cat, err := catalog.Open(ctx, &cfg.Catalog, gormDB)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	m.Catalog = cat

	kvc, err := kv.NewKVClient(ctx, &cfg.KV)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("init kv: %w", err)
	}

	m.KV = kvc

	mqc, err := mq.New(ctx, &cfg.MQ, registry)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("init mq: %w", err)
	}

	m.MQ = mqc

	nlog.Logger().Info().
		Str("catalog", string(cfg.Catalog.Type)).
		Str("kv", cfg.KV.Type).
		Str("mq", string(cfg.MQ.Type)).
		Msg("storage manager ready")

	return m, nil
}

// Close 释放全部连接，逆序关闭.
func (m *Manager) Close() {
	if m.MQ != nil {
		if err := m.MQ.Close(); err != nil {
			nlog.Logger().Warn().Err(err).Msg("close mq")
		}
	}

	if m.KV != nil {
		if err := m.KV.Close(); err != nil {
			nlog.Logger().Warn().Err(err).Msg("close kv")
		}
	}

	if m.Catalog != nil {
		if err := m.Catalog.Close(); err != nil {
			nlog.Logger().Warn().Err(err).Msg("close catalog")
		}
	}

	if m.DB != nil {
		if sqlDB, err := m.DB.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
