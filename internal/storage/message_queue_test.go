package storage

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"brightness-agent/internal/config"
	"brightness-agent/pkg/protocol"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestHistoryKey(t *testing.T) {
	if got := HistoryKey("abc"); got != "brightness:abc:samples" {
		t.Fatalf("key = %s", got)
	}
}

func TestSampleJSON(t *testing.T) {
	applied := uint8(40)
	s := protocol.Sample{
		SessionID:         "s1",
		Seq:               7,
		Timestamp:         time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
		Score:             128,
		Width:             640,
		Height:            360,
		IntervalMs:        300,
		AppliedBrightness: &applied,
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["score"].(float64) != 128 || fields["applied_brightness"].(float64) != 40 || fields["session_id"] != "s1" {
		t.Fatalf("unexpected json: %s", data)
	}

	s.AppliedBrightness = nil
	data, _ = json.Marshal(s)
	var bare map[string]any
	if err := json.Unmarshal(data, &bare); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := bare["applied_brightness"]; ok {
		t.Fatalf("applied_brightness should be omitted: %s", data)
	}
}

func TestNewMessageQueueUnreachable(t *testing.T) {
	// 监听后立即关闭，得到一个无人监听的地址
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.GetDefaultConfig().Redis
	cfg.Addr = addr
	if _, err := NewMessageQueue(cfg, quietLogger()); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestPublishFailsWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	mq := newMessageQueue(client, config.GetDefaultConfig().Redis, quietLogger())
	defer mq.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mq.Publish(ctx, &protocol.Sample{SessionID: "s"}); err == nil {
		t.Fatalf("expected publish error")
	}
	if mq.GetStats()["channel"] != "brightness_samples" {
		t.Fatalf("unexpected stats: %v", mq.GetStats())
	}
}

func newTestQueue(t *testing.T, history int64) (*MessageQueue, *miniredis.Miniredis, config.RedisConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.GetDefaultConfig().Redis
	cfg.Addr = mr.Addr()
	cfg.History = history

	mq, err := NewMessageQueue(cfg, quietLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { mq.Close() })
	return mq, mr, cfg
}

func TestPublishChannelAndHistory(t *testing.T) {
	mq, mr, cfg := newTestQueue(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	subClient := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	defer subClient.Close()
	sub := subClient.Subscribe(ctx, cfg.Channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	messages := sub.Channel()

	for seq := uint64(1); seq <= 5; seq++ {
		if err := mq.Publish(ctx, &protocol.Sample{SessionID: "s1", Seq: seq, Score: uint8(seq * 10)}); err != nil {
			t.Fatalf("publish %d: %v", seq, err)
		}
	}

	// 订阅方按发布顺序收到全部记录
	for want := uint64(1); want <= 5; want++ {
		select {
		case msg := <-messages:
			if msg.Channel != cfg.Channel {
				t.Fatalf("channel = %s", msg.Channel)
			}
			var s protocol.Sample
			if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if s.Seq != want || s.SessionID != "s1" {
				t.Fatalf("message %d = %+v", want, s)
			}
		case <-ctx.Done():
			t.Fatalf("message %d not received", want)
		}
	}

	// 历史列表裁剪到 history 条，最新的在前
	items, err := mr.List(HistoryKey("s1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("history length = %d, want 3", len(items))
	}

	recent, err := mq.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 || recent[0].Seq != 5 || recent[1].Seq != 4 || recent[2].Seq != 3 {
		t.Fatalf("recent = %+v", recent)
	}
	if recent[0].Score != 50 {
		t.Fatalf("score = %d", recent[0].Score)
	}

	recent, err = mq.Recent(ctx, "s1", 2)
	if err != nil || len(recent) != 2 || recent[1].Seq != 4 {
		t.Fatalf("recent(2) = %+v, %v", recent, err)
	}
}

func TestPublishWithoutHistory(t *testing.T) {
	mq, mr, _ := newTestQueue(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := mq.Publish(ctx, &protocol.Sample{SessionID: "s2", Seq: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if mr.Exists(HistoryKey("s2")) {
		t.Fatalf("history written with history=0")
	}
}

func TestRecentSkipsMalformedEntries(t *testing.T) {
	mq, mr, _ := newTestQueue(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := mq.Publish(ctx, &protocol.Sample{SessionID: "s3", Seq: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := mr.Lpush(HistoryKey("s3"), "not json"); err != nil {
		t.Fatalf("lpush: %v", err)
	}

	recent, err := mq.Recent(ctx, "s3", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Seq != 1 {
		t.Fatalf("recent = %+v", recent)
	}
}
