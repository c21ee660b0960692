package configs

import "github.com/spf13/viper"

// EventsConfig 控制生命周期事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	Object  ObjectEventsConfig `mapstructure:"object"`
}

// ObjectEventsConfig 针对对象摄取领域的事件开关。
type ObjectEventsConfig struct {
	Processed     bool `mapstructure:"processed"`
	ProcessFailed bool `mapstructure:"process_failed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.object.processed", true)
	v.SetDefault("events.object.process_failed", true)
}
