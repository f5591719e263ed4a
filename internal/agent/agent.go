package agent

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"brightness-agent/internal/actuator"
	"brightness-agent/internal/capture"
	"brightness-agent/internal/config"
	"brightness-agent/internal/control"
	"brightness-agent/internal/handler"
	"brightness-agent/internal/monitor"
	"brightness-agent/internal/parser"
	"brightness-agent/internal/storage"
	"brightness-agent/pkg/protocol"
)

// Agent 亮度代理，持有一次连接生命周期内的全部状态
type Agent struct {
	config    *config.Config
	log       *logrus.Logger
	sessionID string
	state     *control.State
	capturer  capture.Capturer
	actuator  actuator.Actuator
	sink      storage.SampleSink
}

type Option func(*Agent)

// WithSampleSink 每次上报后同时发布遥测
func WithSampleSink(sink storage.SampleSink) Option {
	return func(a *Agent) {
		a.sink = sink
	}
}

func NewAgent(cfg *config.Config, log *logrus.Logger, capturer capture.Capturer, act actuator.Actuator, opts ...Option) *Agent {
	a := &Agent{
		config:    cfg,
		log:       log,
		sessionID: uuid.NewString(),
		state:     control.NewState(),
		capturer:  capturer,
		actuator:  act,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SessionID 本次运行的会话ID
func (a *Agent) SessionID() string {
	return a.sessionID
}

// State 共享控制状态
func (a *Agent) State() *control.State {
	return a.state
}

// Run 连接控制端并运行到ctx结束或连接失效
func (a *Agent) Run(ctx context.Context) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	return a.Serve(ctx, conn)
}

func (a *Agent) dial(ctx context.Context) (net.Conn, error) {
	addr := a.config.ControllerAddr()
	a.log.Infof("连接控制端: %s", addr)

	dialer := net.Dialer{
		Timeout:   a.config.Controller.DialTimeout,
		KeepAlive: a.config.Controller.KeepAlive,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, protocol.NewError(protocol.KindTransport, "dial", fmt.Errorf("连接失败 %s: %w", addr, err))
	}
	return conn, nil
}

// Serve 在已建立的连接上运行读协程与采样循环。
// ctx正常结束时返回nil；连接失效时返回传输错误。
func (a *Agent) Serve(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	log := a.log.WithField("session", a.sessionID)
	log.Infof("已连接到控制端: %s", conn.RemoteAddr())
	monitor.Connected.Set(1)
	defer monitor.Connected.Set(0)

	h := handler.NewConnectionHandler(
		conn,
		parser.NewDecoder(),
		a.state.Apply,
		log,
		a.config.Controller.ReadBuffer,
		a.config.Controller.WriteTimeout,
	)

	loop := NewSamplingLoop(a.state, a.capturer, a.actuator, h, log, a.config.Sampler,
		WithSessionID(a.sessionID),
		WithSink(a.sink),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Handle(gctx) })
	g.Go(func() error { return loop.Run(gctx) })

	err := g.Wait()
	if ctx.Err() != nil {
		log.Info("代理已停止")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	log.WithField("kind", protocol.KindOf(err).String()).Errorf("连接终止: %v", err)
	return err
}
