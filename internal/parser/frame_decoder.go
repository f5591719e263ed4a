package parser

import (
	"bytes"
	"encoding/binary"
	"io"

	"brightness-agent/pkg/protocol"
)

// State 解码器状态
type State int

const (
	AwaitingHeader State = iota
	AwaitingPayload
)

func (s State) String() string {
	if s == AwaitingPayload {
		return "awaiting_payload"
	}
	return "awaiting_header"
}

// Decoder 两阶段帧解码器：先读2字节帧头，再读帧头声明长度的负载。
// 非并发安全，每个连接一个实例，仅由读协程驱动。
type Decoder struct {
	state  State
	header protocol.Config
	// resyncing 正在跳过非帧头字节，同一段只报告一次
	resyncing bool
}

func NewDecoder() *Decoder {
	return &Decoder{state: AwaitingHeader}
}

// State 当前状态
func (d *Decoder) State() State {
	return d.state
}

// Header 返回等待中的帧头，仅在AwaitingPayload状态有效
func (d *Decoder) Header() (protocol.Config, bool) {
	return d.header, d.state == AwaitingPayload
}

// Need 下一次回调前传输层需要至少缓冲的字节数
func (d *Decoder) Need() int {
	if d.state == AwaitingPayload {
		return int(d.header.PayloadSize)
	}
	return protocol.HeaderSize
}

// Decode 从buf头部解码一步，buf长度必须不少于Need()。
// 帧头阶段出错时丢弃到下一个帧头标签为止以便重新同步；负载阶段出错时丢弃整个负载。
func (d *Decoder) Decode(buf []byte) *protocol.DecodeResult {
	need := d.Need()
	if len(buf) < need {
		return &protocol.DecodeResult{Error: io.ErrShortBuffer}
	}

	if d.state == AwaitingHeader {
		return d.decodeHeader(buf)
	}

	payload := buf[:need]
	d.reset()
	msg, err := decodePayload(payload)
	return &protocol.DecodeResult{Consumed: need, Message: msg, Error: err}
}

func (d *Decoder) decodeHeader(buf []byte) *protocol.DecodeResult {
	tag, length := buf[0], buf[1]
	if tag != protocol.TagConfig {
		skip := bytes.IndexByte(buf[1:], protocol.TagConfig) + 1
		if skip == 0 {
			skip = len(buf)
		}
		result := &protocol.DecodeResult{Consumed: skip}
		if !d.resyncing {
			result.Error = protocol.Violation("unexpected header tag 0x%02x, discarded %d bytes", tag, skip)
		}
		d.resyncing = true
		return result
	}
	d.resyncing = false
	if length == 0 {
		return &protocol.DecodeResult{
			Consumed: protocol.HeaderSize,
			Error:    protocol.Violation("header declares empty payload"),
		}
	}

	d.state = AwaitingPayload
	d.header = protocol.Config{PayloadSize: length}
	return &protocol.DecodeResult{Consumed: protocol.HeaderSize}
}

func (d *Decoder) reset() {
	d.state = AwaitingHeader
	d.header = protocol.Config{}
}

// decodePayload 解析负载，负载首字节重复声明消息类型
func decodePayload(payload []byte) (protocol.Message, error) {
	switch payload[0] {
	case protocol.TagSampleRate:
		if len(payload) < protocol.SampleRatePayloadSize {
			return nil, protocol.Violation("sample rate payload too short: %d bytes", len(payload))
		}
		return protocol.SampleRate{IntervalMs: binary.BigEndian.Uint16(payload[1:3])}, nil

	case protocol.TagBrightness:
		if len(payload) < protocol.BrightnessPayloadSize {
			return nil, protocol.Violation("brightness payload too short: %d bytes", len(payload))
		}
		percent := payload[1]
		if percent > protocol.MaxBrightnessPercent {
			return nil, protocol.Violation("brightness %d out of range", percent)
		}
		return protocol.Brightness{Percent: percent}, nil

	default:
		return nil, protocol.Violation("unexpected payload tag 0x%02x", payload[0])
	}
}

// Drain 在buf上反复解码直到剩余字节不足Need()，返回已消费的字节数。
// 解出的消息交给dispatch，协议错误交给onError，均可为nil。
func (d *Decoder) Drain(buf []byte, dispatch func(protocol.Message), onError func(error)) int {
	off := 0
	for len(buf)-off >= d.Need() {
		result := d.Decode(buf[off:])
		off += result.Consumed
		if result.Error != nil && onError != nil {
			onError(result.Error)
		}
		if result.Message != nil && dispatch != nil {
			dispatch(result.Message)
		}
	}
	return off
}
