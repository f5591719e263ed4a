package control

import (
	"context"
	"sync"
	"time"

	"brightness-agent/pkg/protocol"
)

// State 解码器与采样循环之间共享的控制状态。
// 写入方只有消息分发（Apply），读取并清除方只有采样循环。
type State struct {
	mu           sync.Mutex
	target       uint8
	hasTarget    bool
	hasNewTarget bool
	receivedAt   time.Time
	interval     time.Duration
	ready        bool

	readyCh chan struct{}
	now     func() time.Time
}

// Target 一次待应用的目标亮度
type Target struct {
	Percent uint8
	// ReceivedAt 自上次应用以来首个未应用目标的到达时间
	ReceivedAt time.Time
}

// Snapshot 控制状态快照
type Snapshot struct {
	TargetBrightness *uint8
	HasNewTarget     bool
	SampleInterval   time.Duration
	Ready            bool
}

func NewState() *State {
	return &State{
		readyCh: make(chan struct{}),
		now:     time.Now,
	}
}

// Apply 分发已解码的消息
func (s *State) Apply(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.SampleRate:
		s.SetSampleInterval(m.Interval())
	case protocol.Brightness:
		s.SetTarget(m.Percent)
	}
}

// SetSampleInterval 更新采样间隔并标记就绪
func (s *State) SetSampleInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = d
	if !s.ready {
		s.ready = true
		close(s.readyCh)
	}
}

// SetTarget 写入新的目标亮度。未被应用前连续写入时后值覆盖前值，到达时间保留首个。
func (s *State) SetTarget(percent uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasNewTarget {
		s.receivedAt = s.now()
	}
	s.target = percent
	s.hasTarget = true
	s.hasNewTarget = true
}

// TakeTarget 读取并清除待应用的目标亮度
func (s *State) TakeTarget() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasNewTarget {
		return Target{}, false
	}
	s.hasNewTarget = false
	return Target{Percent: s.target, ReceivedAt: s.receivedAt}, true
}

// SampleInterval 当前采样间隔
func (s *State) SampleInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Ready 收到首个SampleRate消息后关闭
func (s *State) Ready() <-chan struct{} {
	return s.readyCh
}

// WaitReady 阻塞直到就绪或ctx结束
func (s *State) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot 返回一致的状态快照
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		HasNewTarget:   s.hasNewTarget,
		SampleInterval: s.interval,
		Ready:          s.ready,
	}
	if s.hasTarget {
		target := s.target
		snap.TargetBrightness = &target
	}
	return snap
}
