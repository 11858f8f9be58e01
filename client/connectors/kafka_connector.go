/*
 * @module KafkaConnector
 * @description Kafka连接器，将扫描完成事件发布到Kafka主题，供下游数据管道消费
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的事件发布接口
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 连接建立 -> 事件序列化 -> 消息发送 -> 连接断开
 * @rules 发布失败向上返回错误，由扫描服务记录并继续主流程
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/scan/scan_service.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"datascan-service/service/models"
)

// KafkaConfig Kafka连接配置
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaConfigFromEnv 从环境变量读取Kafka配置，未配置时返回nil
func KafkaConfigFromEnv() *KafkaConfig {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}
	topic := os.Getenv("KAFKA_SCAN_TOPIC")
	if topic == "" {
		topic = "datascan.scan-events"
	}
	return &KafkaConfig{
		Brokers: strings.Split(brokers, ","),
		Topic:   topic,
	}
}

// KafkaConnector Kafka连接器结构体
type KafkaConnector struct {
	config      *KafkaConfig
	writer      *kafka.Writer
	mutex       sync.RWMutex
	isConnected bool
}

// NewKafkaConnector 创建新的Kafka连接器
func NewKafkaConnector(config *KafkaConfig) *KafkaConnector {
	return &KafkaConnector{
		config:      config,
		isConnected: false,
	}
}

// Connect 建立Kafka连接
func (kc *KafkaConnector) Connect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if kc.isConnected {
		return nil
	}

	kc.writer = &kafka.Writer{
		Addr:         kafka.TCP(kc.config.Brokers...),
		Topic:        kc.config.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	kc.isConnected = true
	slog.Info("Kafka连接器已连接", "brokers", kc.config.Brokers, "topic", kc.config.Topic)
	return nil
}

// Disconnect 断开Kafka连接
func (kc *KafkaConnector) Disconnect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if !kc.isConnected {
		return nil
	}

	if err := kc.writer.Close(); err != nil {
		slog.Error("关闭Kafka生产者失败", "error", err)
	}

	kc.isConnected = false
	slog.Info("Kafka连接器已断开连接")
	return nil
}

// PublishScanEvent 发布扫描事件，实现scan.EventPublisher接口
func (kc *KafkaConnector) PublishScanEvent(ctx context.Context, event *models.ScanEvent) error {
	kc.mutex.RLock()
	connected := kc.isConnected
	writer := kc.writer
	kc.mutex.RUnlock()

	if !connected {
		return fmt.Errorf("kafka连接器未连接")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化扫描事件失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ScanID),
		Value: value,
		Time:  event.Timestamp,
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送Kafka消息失败: %w", err)
	}
	return nil
}
