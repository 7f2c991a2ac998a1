// pkg/messaging/nats.go
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// JobsStream 后台任务流，工作队列语义，确认后删除
	JobsStream  = "AGENTFEED_JOBS"
	JobsSubject = "jobs.>"
)

// NATSClient NATS JetStream客户端
type NATSClient struct {
	conn      *nats.Conn
	jetStream jetstream.JetStream
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	consumers map[string]jetstream.Consumer
	mu        sync.RWMutex
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, data []byte) error

// NewNATSClient 连接 NATS 并确保任务流存在
func NewNATSClient(natsURL string, logger *slog.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("agentfeed"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS连接断开", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS重新连接成功")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("创建JetStream失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &NATSClient{
		conn:      nc,
		jetStream: js,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		consumers: make(map[string]jetstream.Consumer),
	}

	if err := client.setupStreams(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *NATSClient) setupStreams() error {
	cfg := jetstream.StreamConfig{
		Name:        JobsStream,
		Subjects:    []string{JobsSubject},
		Description: "笔记封面与评论生成任务",
		Retention:   jetstream.WorkQueuePolicy,
		MaxMsgs:     10000,
		MaxBytes:    16 * 1024 * 1024,
		MaxAge:      24 * time.Hour,
	}
	if _, err := c.jetStream.CreateOrUpdateStream(c.ctx, cfg); err != nil {
		return fmt.Errorf("创建/更新Stream %s 失败: %w", cfg.Name, err)
	}
	c.logger.Info("Stream 设置成功", "stream", cfg.Name)
	return nil
}

// Publish 发布消息到指定主题
func (c *NATSClient) Publish(ctx context.Context, subject string, payload []byte) error {
	if _, err := c.jetStream.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("发布消息到 %s 失败: %w", subject, err)
	}
	c.logger.Debug("发布消息", "subject", subject, "bytes", len(payload))
	return nil
}

// Subscribe 创建持久消费者并在后台消费
func (c *NATSClient) Subscribe(streamName, consumerName, filterSubject string, handler MessageHandler) error {
	consumer, err := c.jetStream.CreateOrUpdateConsumer(c.ctx, streamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		Description:   fmt.Sprintf("%s 消费者", consumerName),
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("创建消费者 %s 失败: %w", consumerName, err)
	}

	c.mu.Lock()
	c.consumers[consumerName] = consumer
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consumeMessages(consumer, consumerName, handler)

	c.logger.Info("已订阅", "subject", filterSubject, "stream", streamName, "consumer", consumerName)
	return nil
}

func (c *NATSClient) consumeMessages(consumer jetstream.Consumer, consumerName string, handler MessageHandler) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("消费者异常退出", "consumer", consumerName, "panic", r)
		}
	}()

	it, err := consumer.Messages(jetstream.PullMaxMessages(10))
	if err != nil {
		c.logger.Error("获取消息迭代器失败", "consumer", consumerName, "error", err)
		return
	}
	go func() {
		<-c.ctx.Done()
		it.Stop()
	}()

	for {
		msg, err := it.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				c.logger.Info("消费者收到停止信号", "consumer", consumerName)
				return
			}
			c.logger.Warn("获取消息失败", "consumer", consumerName, "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := handler(c.ctx, msg.Data()); err != nil {
			c.logger.Warn("处理消息失败", "consumer", consumerName, "error", err)
			msg.Nak()
		} else {
			msg.Ack()
		}
	}
}

// Close 停止消费者并关闭连接
func (c *NATSClient) Close() error {
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	c.consumers = make(map[string]jetstream.Consumer)
	c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}
	c.logger.Info("NATS连接已关闭")
	return nil
}

// IsConnected 检查连接状态
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
