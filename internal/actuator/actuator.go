package actuator

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"brightness-agent/internal/config"
)

// Actuator 将0~100的亮度百分比应用到显示器
type Actuator interface {
	SetBrightness(percent uint8) error
}

// New 根据配置创建亮度执行器
func New(cfg config.ActuatorConfig, log *logrus.Logger) (Actuator, error) {
	switch cfg.Kind {
	case "log":
		return NewLogActuator(log), nil
	case "backlight":
		return NewBacklight(cfg.Device)
	default:
		return nil, fmt.Errorf("未知的亮度执行器: %q", cfg.Kind)
	}
}

// LogActuator 只记录目标亮度
type LogActuator struct {
	log  *logrus.Logger
	last atomic.Int32
}

func NewLogActuator(log *logrus.Logger) *LogActuator {
	a := &LogActuator{log: log}
	a.last.Store(-1)
	return a
}

func (a *LogActuator) SetBrightness(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("亮度超出范围: %d", percent)
	}
	a.last.Store(int32(percent))
	a.log.Infof("设置亮度: %d%%", percent)
	return nil
}

// Last 最近一次设置的亮度，未设置时返回-1
func (a *LogActuator) Last() int {
	return int(a.last.Load())
}
