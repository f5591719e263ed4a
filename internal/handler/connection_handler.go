package handler

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"brightness-agent/internal/monitor"
	"brightness-agent/internal/parser"
	"brightness-agent/pkg/protocol"
)

type ConnectionHandler struct {
	conn         net.Conn
	peer         string
	decoder      *parser.Decoder
	dispatch     func(protocol.Message)
	log          *logrus.Entry
	bufferSize   int
	writeTimeout time.Duration

	writeMu sync.Mutex
}

func NewConnectionHandler(
	conn net.Conn,
	decoder *parser.Decoder,
	dispatch func(protocol.Message),
	log *logrus.Entry,
	bufferSize int,
	writeTimeout time.Duration,
) *ConnectionHandler {
	if bufferSize < 255 {
		bufferSize = 255
	}
	return &ConnectionHandler{
		conn:         conn,
		peer:         conn.RemoteAddr().String(),
		decoder:      decoder,
		dispatch:     dispatch,
		log:          log,
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
	}
}

// Handle 读取控制端数据直到连接断开或ctx结束。
// 每次至少读取解码器要求的字节数，多读的字节保留到下一轮。
func (h *ConnectionHandler) Handle(ctx context.Context) error {
	// ctx结束时关闭连接以解除阻塞的Read
	stop := context.AfterFunc(ctx, func() { h.conn.Close() })
	defer stop()

	buf := make([]byte, 0, h.bufferSize)
	for {
		need := h.decoder.Need()
		if len(buf) < need {
			n, err := io.ReadAtLeast(h.conn, buf[len(buf):cap(buf)], need-len(buf))
			buf = buf[:len(buf)+n]
			if n > 0 {
				monitor.BytesReceived.Add(float64(n))
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					h.log.Infof("控制端关闭连接: %s", h.peer)
				}
				monitor.Errors.WithLabelValues(protocol.KindTransport.String()).Inc()
				return protocol.NewError(protocol.KindTransport, "read", err)
			}
		}

		consumed := h.decoder.Drain(buf, h.handleMessage, h.handleViolation)
		buf = append(buf[:0], buf[consumed:]...)
	}
}

// handleMessage 分发消息
func (h *ConnectionHandler) handleMessage(msg protocol.Message) {
	monitor.MessagesDecoded.WithLabelValues(protocol.TagName(msg.Tag())).Inc()
	h.log.WithField("tag", protocol.TagName(msg.Tag())).Debugf("收到消息: %s", msg)
	h.dispatch(msg)
}

// handleViolation 记录协议错误，解码器自行重新同步
func (h *ConnectionHandler) handleViolation(err error) {
	monitor.Errors.WithLabelValues(protocol.KindProtocol.String()).Inc()
	h.log.WithField("kind", protocol.KindProtocol.String()).Warnf("协议错误 [%s]: %v", h.peer, err)
}

// SendScore 发送亮度分数
func (h *ConnectionHandler) SendScore(score uint8) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.writeTimeout > 0 {
		h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}

	data := protocol.EncodeScore(score)
	n, err := h.conn.Write(data)
	monitor.BytesSent.Add(float64(n))
	if err != nil {
		return protocol.NewError(protocol.KindTransport, "write", err)
	}

	h.log.Debugf("发送亮度分数 [%s]: %d", h.peer, score)
	return nil
}
