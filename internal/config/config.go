package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Capture    CaptureConfig    `yaml:"capture"`
	Actuator   ActuatorConfig   `yaml:"actuator"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

type ControllerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeepAlive    time.Duration `yaml:"keep_alive"`
	ReadBuffer   int           `yaml:"read_buffer"`
}

type SamplerConfig struct {
	MinInterval    time.Duration `yaml:"min_interval"`
	ReadyTimeout   time.Duration `yaml:"ready_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

type CaptureConfig struct {
	Source string   `yaml:"source"`
	Path   string   `yaml:"path"`
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
	RGB    [3]uint8 `yaml:"rgb"`
}

type ActuatorConfig struct {
	Kind   string `yaml:"kind"`
	Device string `yaml:"device"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	History  int64  `yaml:"history"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// LoadConfig 加载配置文件，未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Host:         "localhost",
			DialTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			KeepAlive:    30 * time.Second,
			ReadBuffer:   512,
		},
		Sampler: SamplerConfig{
			MinInterval:    10 * time.Millisecond,
			PublishTimeout: 200 * time.Millisecond,
		},
		Capture: CaptureConfig{
			Source: "synthetic",
			Width:  640,
			Height: 360,
			RGB:    [3]uint8{128, 128, 128},
		},
		Actuator: ActuatorConfig{
			Kind: "log",
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 4,
			Channel:  "brightness_samples",
			History:  1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Controller.Host == "" {
		return fmt.Errorf("controller.host 不能为空")
	}
	// 最长负载255字节，缓冲区必须能容纳
	if c.Controller.ReadBuffer < 255 {
		return fmt.Errorf("controller.read_buffer 至少255字节: %d", c.Controller.ReadBuffer)
	}
	if c.Controller.WriteTimeout < 0 || c.Controller.DialTimeout < 0 {
		return fmt.Errorf("controller 超时不能为负数")
	}
	if c.Sampler.MinInterval <= 0 {
		return fmt.Errorf("sampler.min_interval 必须大于0")
	}
	if c.Sampler.ReadyTimeout < 0 {
		return fmt.Errorf("sampler.ready_timeout 不能为负数")
	}

	switch c.Capture.Source {
	case "synthetic":
		if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
			return fmt.Errorf("capture 尺寸无效: %dx%d", c.Capture.Width, c.Capture.Height)
		}
	case "image":
		if c.Capture.Path == "" {
			return fmt.Errorf("capture.path 不能为空")
		}
	default:
		return fmt.Errorf("未知的capture.source: %q", c.Capture.Source)
	}

	switch c.Actuator.Kind {
	case "log":
	case "backlight":
		if c.Actuator.Device == "" {
			return fmt.Errorf("actuator.device 不能为空")
		}
	default:
		return fmt.Errorf("未知的actuator.kind: %q", c.Actuator.Kind)
	}

	if c.Redis.Enabled && (c.Redis.Addr == "" || c.Redis.Channel == "") {
		return fmt.Errorf("redis.addr 与 redis.channel 不能为空")
	}
	if c.Monitor.Enabled && (c.Monitor.MetricsPort <= 0 || c.Monitor.MetricsPort > 65535) {
		return fmt.Errorf("monitor.metrics_port 无效: %d", c.Monitor.MetricsPort)
	}
	return nil
}

// ControllerAddr 控制端地址，端口可以是数字或服务名
func (c *Config) ControllerAddr() string {
	return net.JoinHostPort(c.Controller.Host, c.Controller.Port)
}
