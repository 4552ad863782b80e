package logger

import (
	"fmt"
	"time"
)

type Config struct {
	// OUTPUT 输出方式：stdout、file、discard
	OUTPUT string `yaml:"output" json:"output" mapstructure:"output"`
	// Dir 日志目录
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
	// Name 日志文件名
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Level 日志等级
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	// 是否添加调用者信息
	AddCaller bool `yaml:"add_caller" json:"add_caller" mapstructure:"add_caller"`
	// 单文件最大长度(单位: mb)
	MaxSize int `yaml:"max_size" json:"max_size" mapstructure:"max_size"`
	// 日志文件最大保留时间(单位: 天)
	MaxAge int `yaml:"max_age" json:"max_age" mapstructure:"max_age"`
	// 日志副本数
	MaxBackup int `yaml:"max_backup" json:"max_backup" mapstructure:"max_backup"`
	// 日志调用者层级
	CallerSkip int `yaml:"caller_skip" json:"caller_skip" mapstructure:"caller_skip"`
	// 异步日志输出
	Async bool `yaml:"async" json:"async" mapstructure:"async"`
	//FlushBufferSize
	FlushBufferSize int `yaml:"flush_buffer_size" json:"flush_buffer_size" mapstructure:"flush_buffer_size"`
	//FlushInterval
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" mapstructure:"flush_interval"`
	// 是否是调试状态
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`
	// 日志是否丢弃
	Discard bool `yaml:"discard" json:"discard" mapstructure:"discard"`
	// 禁用Sentry
	DisableSentry bool `yaml:"disable_sentry" json:"disable_sentry" mapstructure:"disable_sentry"`
	// 发送sentry的等级
	SentryLevel string `yaml:"sentry_level" json:"sentry_level" mapstructure:"sentry_level"`
}

func (c *Config) Filename() string {
	return fmt.Sprintf("%s/%s", c.Dir, c.Name)
}

func (c *Config) Build() *Logger {
	logger := newLogger(c)

	return logger
}

func DefaultConfig() *Config {
	return &Config{
		Name:            "log",
		OUTPUT:          "stdout",
		Dir:             "./logs/",
		Level:           "info",
		MaxSize:         1000, // 1000M
		MaxAge:          7,    // 7 days
		MaxBackup:       10,   // 10 backup
		CallerSkip:      0,
		AddCaller:       true,
		Async:           false,
		FlushBufferSize: 256 * 1024,
		FlushInterval:   5 * time.Second,
		DisableSentry:   true,
		SentryLevel:     "error",
	}
}
