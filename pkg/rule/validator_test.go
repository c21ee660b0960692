package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/ingestvault/pkg/rule"
)

// listenConfig 模拟配置结构上的 rule 标签（参见 pkg/configs）.
type listenConfig struct {
	Host string `rule:"ip"`
	Port int    `rule:"min=1,max=65535"`
}

// TestEngine 测试 Engine 函数返回非 nil 实例.
func TestEngine(t *testing.T) {
	engine := rule.Engine()
	if engine == nil {
		t.Error("Engine() returned nil")
	}
}

// TestValidateStruct 测试 ValidateStruct 对配置结构体的校验.
func TestValidateStruct(t *testing.T) {
	// 合法监听配置
	valid := listenConfig{Host: "0.0.0.0", Port: 8080}

	err := rule.ValidateStruct(valid)
	if err != nil {
		t.Errorf("Expected no error for valid config, got %v", err)
	}

	// 非法地址
	badHost := listenConfig{Host: "not-an-ip", Port: 8080}

	err = rule.ValidateStruct(badHost)
	if err == nil {
		t.Error("Expected error for invalid host, got nil")
	}

	// 端口越界
	badPort := listenConfig{Host: "127.0.0.1", Port: 70000}

	err = rule.ValidateStruct(badPort)
	if err == nil {
		t.Error("Expected error for out-of-range port, got nil")
	}
}

// TestValidateVar 测试 ValidateVar 对单个变量的校验.
func TestValidateVar(t *testing.T) {
	// 失败比例阈值 (0,1]
	err := rule.ValidateVar(0.5, "gt=0,lte=1")
	if err != nil {
		t.Errorf("Expected no error for valid failure rate, got %v", err)
	}

	err = rule.ValidateVar(1.5, "gt=0,lte=1")
	if err == nil {
		t.Error("Expected error for failure rate above 1, got nil")
	}

	// 超时秒数下限
	err = rule.ValidateVar(30, "min=1")
	if err != nil {
		t.Errorf("Expected no error for valid timeout, got %v", err)
	}

	err = rule.ValidateVar(0, "min=1")
	if err == nil {
		t.Error("Expected error for zero timeout, got nil")
	}
}

// TestRegisterValidation 测试注册自定义验证.
func TestRegisterValidation(t *testing.T) {
	// 注册自定义验证：目录记录状态枚举
	err := rule.RegisterValidation("file_status", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}

		return s == "RAW" || s == "PROCESSED" || s == "FAILED"
	})
	if err != nil {
		t.Fatalf("Failed to register validation: %v", err)
	}

	err = rule.ValidateVar("PROCESSED", "file_status")
	if err != nil {
		t.Errorf("Expected no error for known status, got %v", err)
	}

	err = rule.ValidateVar("DONE", "file_status")
	if err == nil {
		t.Error("Expected error for unknown status, got nil")
	}
}

// TestRegisterAlias 测试注册别名.
func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("bucket_name", "required,min=3")

	err := rule.ValidateVar("ingestvault-raw", "bucket_name")
	if err != nil {
		t.Errorf("Expected no error for valid bucket name, got %v", err)
	}

	err = rule.ValidateVar("ab", "bucket_name")
	if err == nil {
		t.Error("Expected error for too-short bucket name, got nil")
	}
}
