/*
 * @module MQTTConnector
 * @description MQTT连接器，将高危扫描告警推送到MQTT主题，供监控端订阅
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的告警通知接口
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 连接建立 -> 告警序列化 -> 消息发布 -> 连接断开
 * @rules 仅在扫描产生High级别异常时发布告警；发布失败向上返回错误
 * @dependencies github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/scan/scan_service.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"datascan-service/service/models"
)

// MQTTConfig MQTT连接配置
type MQTTConfig struct {
	Broker   string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// MQTTConfigFromEnv 从环境变量读取MQTT配置，未配置时返回nil
func MQTTConfigFromEnv() *MQTTConfig {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil
	}
	topic := os.Getenv("MQTT_ALERT_TOPIC")
	if topic == "" {
		topic = "datascan/alerts/high"
	}
	return &MQTTConfig{
		Broker:   broker,
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
		Topic:    topic,
		QoS:      1,
	}
}

// MQTTConnector MQTT连接器结构体
type MQTTConnector struct {
	config      *MQTTConfig
	client      mqtt.Client
	mutex       sync.RWMutex
	isConnected bool
}

// NewMQTTConnector 创建新的MQTT连接器
func NewMQTTConnector(config *MQTTConfig) *MQTTConnector {
	return &MQTTConnector{
		config:      config,
		isConnected: false,
	}
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if mc.isConnected {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(mc.config.Broker)
	opts.SetClientID(fmt.Sprintf("datascan-service-%s", uuid.New().String()[:8]))
	if mc.config.Username != "" {
		opts.SetUsername(mc.config.Username)
		opts.SetPassword(mc.config.Password)
	}
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT连接丢失", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt连接超时")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt连接失败: %w", err)
	}

	mc.client = client
	mc.isConnected = true
	slog.Info("MQTT连接器已连接", "broker", mc.config.Broker, "topic", mc.config.Topic)
	return nil
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.isConnected {
		return nil
	}

	mc.client.Disconnect(250)
	mc.isConnected = false
	slog.Info("MQTT连接器已断开连接")
	return nil
}

// highSeverityAlert 高危告警载荷
type highSeverityAlert struct {
	ScanID    string                  `json:"scan_id"`
	FileName  string                  `json:"file_name"`
	FileHash  string                  `json:"file_hash"`
	HighCount int                     `json:"high_count"`
	Findings  []models.AnomalyFinding `json:"findings"`
	Timestamp time.Time               `json:"timestamp"`
}

// NotifyHighSeverity 发布高危告警，实现scan.AlertNotifier接口
func (mc *MQTTConnector) NotifyHighSeverity(ctx context.Context, event *models.ScanEvent, findings []models.AnomalyFinding) error {
	mc.mutex.RLock()
	connected := mc.isConnected
	client := mc.client
	mc.mutex.RUnlock()

	if !connected {
		return fmt.Errorf("mqtt连接器未连接")
	}

	alert := highSeverityAlert{
		ScanID:    event.ScanID,
		FileName:  event.FileName,
		FileHash:  event.FileHash,
		HighCount: event.HighCount,
		Findings:  findings,
		Timestamp: event.Timestamp,
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警消息失败: %w", err)
	}

	token := client.Publish(mc.config.Topic, mc.config.QoS, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt发布超时")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt发布失败: %w", err)
	}
	return nil
}
