package configs

import (
	"github.com/spf13/viper"
)

// CatalogType 目录存储后端类型.
type CatalogType string

const (
	CatalogTypeMemory CatalogType = "memory"
	CatalogTypeNATS   CatalogType = "nats"
	CatalogTypeGorm   CatalogType = "gorm"
)

// CatalogConfig 文件目录存储配置.
// memory 仅用于测试与本地开发；nats 使用 JetStream KeyValue；
// gorm 使用 DBConfig 指向的关系型数据库.
type CatalogConfig struct {
	Type CatalogType       `mapstructure:"type" rule:"oneof=memory nats gorm"`
	NATS NATSCatalogConfig `mapstructure:"nats"`
}

// NATSCatalogConfig NATS KV 目录后端配置.
type NATSCatalogConfig struct {
	URL      string `mapstructure:"url"      rule:"hostname_port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"   rule:"required"`
}

// GetCatalogType 返回当前配置的目录后端类型.
func (c *CatalogConfig) GetCatalogType() CatalogType {
	return c.Type
}

// setDefaults 设置目录存储配置的默认值.
func (c *CatalogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.type", string(CatalogTypeNATS))

	v.SetDefault("catalog.nats.url", "localhost:4222")
	v.SetDefault("catalog.nats.user", "")
	v.SetDefault("catalog.nats.password", "")
	v.SetDefault("catalog.nats.bucket", "ingestvault-catalog")
}
