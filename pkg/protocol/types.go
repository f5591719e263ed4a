package protocol

import (
	"fmt"
	"time"
)

// 协议常量
const (
	// 标签字节
	TagConfig     byte = 'I' // 0x49 配置帧头，第二字节为后续负载长度
	TagSampleRate byte = 'S' // 0x53 采样间隔（毫秒，大端序）
	TagBrightness byte = 'B' // 0x42 目标亮度（0~100%）

	// 帧头固定2字节：标签 + 负载长度
	HeaderSize = 2

	// 各类负载的最小长度（含负载内重复的标签字节）
	SampleRatePayloadSize = 3
	BrightnessPayloadSize = 2

	// 亮度百分比上限
	MaxBrightnessPercent = 100
)

// Message 解码后的协议消息
type Message interface {
	Tag() byte
	String() string
}

// Config 帧头：告知解码器下一段负载的字节数
type Config struct {
	PayloadSize uint8
}

func (Config) Tag() byte { return TagConfig }

func (c Config) String() string {
	return fmt.Sprintf("Config{payload=%d}", c.PayloadSize)
}

// SampleRate 采样间隔
type SampleRate struct {
	IntervalMs uint16
}

func (SampleRate) Tag() byte { return TagSampleRate }

func (s SampleRate) String() string {
	return fmt.Sprintf("SampleRate{%dms}", s.IntervalMs)
}

// Interval 返回对应的时长
func (s SampleRate) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// Brightness 目标亮度
type Brightness struct {
	Percent uint8
}

func (Brightness) Tag() byte { return TagBrightness }

func (b Brightness) String() string {
	return fmt.Sprintf("Brightness{%d%%}", b.Percent)
}

// DecodeResult 解码结果
type DecodeResult struct {
	// Consumed 本次消费的字节数，调用方据此丢弃缓冲区前缀
	Consumed int
	// Message 完整的负载解码后才非空，帧头阶段为nil
	Message Message
	Error   error
}

// Sample 每个采样周期上报的遥测记录
type Sample struct {
	SessionID         string    `json:"session_id"`
	Seq               uint64    `json:"seq"`
	Timestamp         time.Time `json:"timestamp"`
	Score             uint8     `json:"score"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	IntervalMs        uint16    `json:"interval_ms"`
	AppliedBrightness *uint8    `json:"applied_brightness,omitempty"`
}

// TagName 返回标签字节的可读名称
func TagName(tag byte) string {
	switch tag {
	case TagConfig:
		return "config"
	case TagSampleRate:
		return "sample_rate"
	case TagBrightness:
		return "brightness"
	default:
		return "unknown"
	}
}
