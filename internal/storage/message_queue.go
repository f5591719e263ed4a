package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"brightness-agent/internal/config"
	"brightness-agent/pkg/protocol"
)

// SampleSink 采样遥测的接收方
type SampleSink interface {
	Publish(ctx context.Context, sample *protocol.Sample) error
}

type MessageQueue struct {
	client  *redis.Client
	channel string
	history int64
	log     *logrus.Logger
}

func NewMessageQueue(cfg config.RedisConfig, log *logrus.Logger) (*MessageQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	log.Infof("Redis连接成功: %s", cfg.Addr)

	return newMessageQueue(client, cfg, log), nil
}

func newMessageQueue(client *redis.Client, cfg config.RedisConfig, log *logrus.Logger) *MessageQueue {
	return &MessageQueue{
		client:  client,
		channel: cfg.Channel,
		history: cfg.History,
		log:     log,
	}
}

// HistoryKey 每个会话的采样历史列表
func HistoryKey(sessionID string) string {
	return fmt.Sprintf("brightness:%s:samples", sessionID)
}

// Publish 发布采样记录到Redis
func (mq *MessageQueue) Publish(ctx context.Context, sample *protocol.Sample) error {
	jsonData, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	// Pub/Sub 与 List 历史在同一个pipeline中提交
	pipe := mq.client.Pipeline()
	pipe.Publish(ctx, mq.channel, jsonData)
	if mq.history > 0 {
		listKey := HistoryKey(sample.SessionID)
		pipe.LPush(ctx, listKey, jsonData)
		pipe.LTrim(ctx, listKey, 0, mq.history-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Recent 读取会话最近n条采样
func (mq *MessageQueue) Recent(ctx context.Context, sessionID string, n int64) ([]protocol.Sample, error) {
	raw, err := mq.client.LRange(ctx, HistoryKey(sessionID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取历史失败: %w", err)
	}

	samples := make([]protocol.Sample, 0, len(raw))
	for _, item := range raw {
		var s protocol.Sample
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			mq.log.Warnf("历史记录格式错误: %v", err)
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Close 关闭连接
func (mq *MessageQueue) Close() error {
	return mq.client.Close()
}

// GetStats 获取统计信息
func (mq *MessageQueue) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"channel":    mq.channel,
		"pool_stats": mq.client.PoolStats(),
	}
}
