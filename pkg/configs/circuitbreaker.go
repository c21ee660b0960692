package configs

import "github.com/spf13/viper"

const (
	DefaultCBEnabled           = false
	DefaultCBMaxRequestsInHalf = 5
	DefaultCBIntervalSeconds   = 60
	DefaultCBTimeoutSeconds    = 30
	DefaultCBMinRequests       = 10
	DefaultCBFailureRate       = 0.5
)

// CircuitBreakerConfig HTTP 层熔断配置.
type CircuitBreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MaxRequestsInHalf 半开状态下允许通过的最大请求数.
	MaxRequestsInHalf uint32 `mapstructure:"max_requests_in_half"`
	// IntervalSeconds 闭合状态下计数器重置周期.
	IntervalSeconds int `mapstructure:"interval_seconds"    rule:"min=1"`
	// TimeoutSeconds 打开状态持续时间，超时后进入半开.
	TimeoutSeconds int `mapstructure:"timeout_seconds"     rule:"min=1"`
	// MinRequests 触发熔断评估的最小请求数.
	MinRequests uint32 `mapstructure:"min_requests"`
	// FailureRate 触发熔断的失败比例阈值 (0,1].
	FailureRate float64 `mapstructure:"failure_rate"        rule:"gt=0,lte=1"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", DefaultCBEnabled)
	v.SetDefault("circuit_breaker.max_requests_in_half", DefaultCBMaxRequestsInHalf)
	v.SetDefault("circuit_breaker.interval_seconds", DefaultCBIntervalSeconds)
	v.SetDefault("circuit_breaker.timeout_seconds", DefaultCBTimeoutSeconds)
	v.SetDefault("circuit_breaker.min_requests", DefaultCBMinRequests)
	v.SetDefault("circuit_breaker.failure_rate", DefaultCBFailureRate)
}
