package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation 未知标签或负载长度不足
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrDegenerateFrame 截屏尺寸为0或像素缓冲区不完整
	ErrDegenerateFrame = errors.New("degenerate frame")
)

// ErrorKind 错误分类，用于日志与指标
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindProtocol 协议错误：解码器记录后重新同步
	KindProtocol
	// KindTransport 传输错误：连接生命周期终止
	KindTransport
	// KindActuator 亮度设置失败：记录后继续采样
	KindActuator
	// KindCapture 截屏失败：跳过本周期
	KindCapture
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	case KindActuator:
		return "actuator"
	case KindCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// Error 带分类的错误
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError 构造分类错误
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Violation 构造协议错误，包装ErrProtocolViolation
func Violation(format string, args ...any) *Error {
	return &Error{
		Kind: KindProtocol,
		Op:   "decode",
		Err:  fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...)),
	}
}

// KindOf 返回err链上第一个分类错误的类别
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
