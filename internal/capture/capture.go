package capture

import (
	"context"
	"fmt"
	"time"

	"brightness-agent/internal/config"
)

// Frame 一次截屏结果：Width*Height个RGB三元组。
// 调用方拥有Frame，用完必须调用Release。
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Timestamp time.Time

	release func()
}

// Release 归还缓冲区，可重复调用
func (f *Frame) Release() {
	if f == nil || f.release == nil {
		return
	}
	f.release()
	f.release = nil
	f.Pix = nil
}

// NewFrame 构造Frame，release在Release时调用一次，可为nil
func NewFrame(pix []byte, width, height int, release func()) *Frame {
	return &Frame{
		Pix:       pix,
		Width:     width,
		Height:    height,
		Timestamp: time.Now(),
		release:   release,
	}
}

// Capturer 截屏接口
type Capturer interface {
	Capture(ctx context.Context) (*Frame, error)
}

// New 根据配置创建截屏源
func New(cfg config.CaptureConfig) (Capturer, error) {
	switch cfg.Source {
	case "synthetic":
		return NewSynthetic(cfg.Width, cfg.Height, cfg.RGB), nil
	case "image":
		return NewImageFile(cfg.Path), nil
	default:
		return nil, fmt.Errorf("未知的截屏源: %q", cfg.Source)
	}
}
