package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Synthetic 纯色画面，用于没有截屏接口的环境。颜色可在运行时调整。
type Synthetic struct {
	width  int
	height int
	rgb    atomic.Uint32
	pool   sync.Pool
}

func NewSynthetic(width, height int, rgb [3]uint8) *Synthetic {
	s := &Synthetic{width: width, height: height}
	s.pool.New = func() any {
		buf := make([]byte, width*height*3)
		return &buf
	}
	s.SetColor(rgb)
	return s
}

// SetColor 设置画面颜色
func (s *Synthetic) SetColor(rgb [3]uint8) {
	s.rgb.Store(uint32(rgb[0])<<16 | uint32(rgb[1])<<8 | uint32(rgb[2]))
}

func (s *Synthetic) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packed := s.rgb.Load()
	r, g, b := byte(packed>>16), byte(packed>>8), byte(packed)

	bufp := s.pool.Get().(*[]byte)
	pix := *bufp
	for i := 0; i+2 < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}

	return &Frame{
		Pix:       pix,
		Width:     s.width,
		Height:    s.height,
		Timestamp: time.Now(),
		release:   func() { s.pool.Put(bufp) },
	}, nil
}
