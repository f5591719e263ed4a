package agent

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"brightness-agent/internal/capture"
	"brightness-agent/pkg/protocol"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeCapturer 按脚本返回帧或错误，并统计释放次数
type fakeCapturer struct {
	mu       sync.Mutex
	script   []func() (*capture.Frame, error)
	calls    int
	released int
}

func (c *fakeCapturer) Capture(ctx context.Context) (*capture.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next func() (*capture.Frame, error)
	if c.calls < len(c.script) {
		next = c.script[c.calls]
	} else if len(c.script) > 0 {
		next = c.script[len(c.script)-1]
	}
	c.calls++
	if next == nil {
		return nil, errors.New("no frame scripted")
	}
	frame, err := next()
	if err != nil {
		return nil, err
	}
	return capture.NewFrame(frame.Pix, frame.Width, frame.Height, func() {
		c.mu.Lock()
		c.released++
		c.mu.Unlock()
	}), nil
}

func (c *fakeCapturer) counts() (calls, released int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.released
}

func uniformFrame(width, height int, v byte) func() (*capture.Frame, error) {
	return func() (*capture.Frame, error) {
		pix := make([]byte, width*height*3)
		for i := range pix {
			pix[i] = v
		}
		return &capture.Frame{Pix: pix, Width: width, Height: height}, nil
	}
}

func failingFrame(err error) func() (*capture.Frame, error) {
	return func() (*capture.Frame, error) { return nil, err }
}

type fakeActuator struct {
	mu      sync.Mutex
	applied []uint8
	err     error
}

func (a *fakeActuator) SetBrightness(percent uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, percent)
	return a.err
}

func (a *fakeActuator) values() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint8(nil), a.applied...)
}

type fakeSender struct {
	mu     sync.Mutex
	scores []uint8
	failAt int
	sent   chan uint8
}

func newFakeSender() *fakeSender {
	return &fakeSender{failAt: -1, sent: make(chan uint8, 64)}
}

func (s *fakeSender) SendScore(score uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt >= 0 && len(s.scores) >= s.failAt {
		return protocol.NewError(protocol.KindTransport, "write", io.ErrClosedPipe)
	}
	s.scores = append(s.scores, score)
	select {
	case s.sent <- score:
	default:
	}
	return nil
}

func (s *fakeSender) values() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint8(nil), s.scores...)
}

type fakeSink struct {
	mu      sync.Mutex
	samples []protocol.Sample
	err     error
}

func (s *fakeSink) Publish(ctx context.Context, sample *protocol.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, *sample)
	return s.err
}
