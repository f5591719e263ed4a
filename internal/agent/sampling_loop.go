package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"brightness-agent/internal/actuator"
	"brightness-agent/internal/capture"
	"brightness-agent/internal/config"
	"brightness-agent/internal/control"
	"brightness-agent/internal/luminance"
	"brightness-agent/internal/monitor"
	"brightness-agent/internal/storage"
	"brightness-agent/pkg/protocol"
)

// ScoreSender 上行发送亮度分数
type ScoreSender interface {
	SendScore(score uint8) error
}

// SamplingLoop 采样循环：应用目标亮度 -> 截屏评分 -> 上报 -> 休眠
type SamplingLoop struct {
	state    *control.State
	capturer capture.Capturer
	actuator actuator.Actuator
	sender   ScoreSender
	sink     storage.SampleSink
	log      *logrus.Entry

	sessionID      string
	minInterval    time.Duration
	readyTimeout   time.Duration
	publishTimeout time.Duration

	seq uint64
	now func() time.Time
}

type LoopOption func(*SamplingLoop)

// WithSessionID 遥测记录中的会话ID
func WithSessionID(id string) LoopOption {
	return func(l *SamplingLoop) {
		l.sessionID = id
	}
}

// WithSink 每次上报后发布遥测
func WithSink(sink storage.SampleSink) LoopOption {
	return func(l *SamplingLoop) {
		l.sink = sink
	}
}

func NewSamplingLoop(
	state *control.State,
	capturer capture.Capturer,
	act actuator.Actuator,
	sender ScoreSender,
	log *logrus.Entry,
	cfg config.SamplerConfig,
	opts ...LoopOption,
) *SamplingLoop {
	l := &SamplingLoop{
		state:          state,
		capturer:       capturer,
		actuator:       act,
		sender:         sender,
		log:            log,
		minInterval:    cfg.MinInterval,
		readyTimeout:   cfg.ReadyTimeout,
		publishTimeout: cfg.PublishTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run 等待首个采样间隔后循环采样，直到ctx结束或发生传输错误
func (l *SamplingLoop) Run(ctx context.Context) error {
	if err := l.waitReady(ctx); err != nil {
		return err
	}
	l.log.Infof("初始化完成，采样间隔: %v", l.state.SampleInterval())

	for {
		if err := l.RunCycle(ctx); err != nil {
			return err
		}
		if err := l.sleep(ctx); err != nil {
			return err
		}
	}
}

func (l *SamplingLoop) waitReady(ctx context.Context) error {
	if l.readyTimeout <= 0 {
		return l.state.WaitReady(ctx)
	}

	wctx, cancel := context.WithTimeout(ctx, l.readyTimeout)
	defer cancel()
	if err := l.state.WaitReady(wctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("等待采样间隔超时(%v): %w", l.readyTimeout, err)
	}
	return nil
}

// RunCycle 执行一个采样周期。只有传输错误和ctx结束会返回错误。
func (l *SamplingLoop) RunCycle(ctx context.Context) error {
	start := l.now()
	applied := l.applyPendingTarget()

	score, width, height, err := l.captureScore(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// 跳过本周期，不上报分数
		l.reportError(err)
		return nil
	}

	if err := l.sender.SendScore(score); err != nil {
		l.reportError(err)
		return err
	}
	monitor.ScoresSent.Inc()
	monitor.LastScore.Set(float64(score))
	l.seq++

	l.log.WithField("score", score).Debugf("画面亮度: %d", score)

	l.publish(ctx, &protocol.Sample{
		SessionID:         l.sessionID,
		Seq:               l.seq,
		Timestamp:         start,
		Score:             score,
		Width:             width,
		Height:            height,
		IntervalMs:        uint16(l.state.SampleInterval() / time.Millisecond),
		AppliedBrightness: applied,
	})

	monitor.CycleDuration.Observe(l.now().Sub(start).Seconds())
	return nil
}

// applyPendingTarget 应用未处理的目标亮度，失败只记录
func (l *SamplingLoop) applyPendingTarget() *uint8 {
	target, ok := l.state.TakeTarget()
	if !ok {
		return nil
	}

	elapsed := l.now().Sub(target.ReceivedAt)
	monitor.ApplyLatency.Observe(elapsed.Seconds())

	if err := l.actuator.SetBrightness(target.Percent); err != nil {
		l.reportError(protocol.NewError(protocol.KindActuator, "set_brightness", err))
		return nil
	}
	monitor.TargetBrightness.Set(float64(target.Percent))

	l.log.WithFields(logrus.Fields{
		"percent":    target.Percent,
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
	}).Infof("亮度设置完成: %d%%", target.Percent)

	percent := target.Percent
	return &percent
}

// captureScore 截屏并评分，缓冲区在任何返回路径上都被释放
func (l *SamplingLoop) captureScore(ctx context.Context) (uint8, int, int, error) {
	frame, err := l.capturer.Capture(ctx)
	if err != nil {
		return 0, 0, 0, protocol.NewError(protocol.KindCapture, "capture", err)
	}
	defer frame.Release()

	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pix) < frame.Width*frame.Height*luminance.BytesPerPixel {
		return 0, 0, 0, protocol.NewError(protocol.KindCapture, "capture",
			fmt.Errorf("%w: %dx%d, %d bytes", protocol.ErrDegenerateFrame, frame.Width, frame.Height, len(frame.Pix)))
	}

	return luminance.Estimate(frame.Pix, frame.Width, frame.Height), frame.Width, frame.Height, nil
}

func (l *SamplingLoop) publish(ctx context.Context, sample *protocol.Sample) {
	if l.sink == nil {
		return
	}

	pctx := ctx
	if l.publishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, l.publishTimeout)
		defer cancel()
	}
	if err := l.sink.Publish(pctx, sample); err != nil {
		l.log.Warnf("发布遥测失败: %v", err)
	}
}

func (l *SamplingLoop) sleep(ctx context.Context) error {
	interval := l.state.SampleInterval()
	if interval < l.minInterval {
		interval = l.minInterval
	}
	monitor.SampleInterval.Set(interval.Seconds())

	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *SamplingLoop) reportError(err error) {
	kind := protocol.KindOf(err)
	monitor.Errors.WithLabelValues(kind.String()).Inc()

	entry := l.log.WithField("kind", kind.String())
	if kind == protocol.KindTransport {
		entry.Errorf("传输错误，停止采样: %v", err)
		return
	}
	entry.Warnf("采样周期错误: %v", err)
}
