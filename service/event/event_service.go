/*
 * @module service/event_service
 * @description 事件管理服务，提供扫描事件的SSE推送与跨实例PostgreSQL通知
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 扫描完成 -> 事件发布 -> 本地SSE分发 + pg_notify广播 -> 其他实例监听转发
 * @rules 事件队列已满时跳过该连接，不阻塞发布方
 * @dependencies gorm.io/gorm, github.com/lib/pq
 * @refs service/scan/scan_service.go, api/controllers/event_controller.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"datascan-service/service/models"
)

// pg_notify通知通道名
const notifyChannel = "datascan_scan_events"

// EventService 事件管理服务
type EventService struct {
	db          *gorm.DB
	connections map[string]map[string]*SSEClient // userName -> connectionID -> client
	mu          sync.RWMutex
	dbListener  *pq.Listener
	ctx         context.Context
	cancel      context.CancelFunc
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID       string
	UserName string
	Channel  chan *models.ScanEvent
	Done     chan bool
	ClientIP string
}

// NewEventService 创建事件服务实例
// DATABASE_URL存在时启动PostgreSQL监听器，接收其他实例广播的扫描事件
func NewEventService(db *gorm.DB) *EventService {
	ctx, cancel := context.WithCancel(context.Background())

	service := &EventService{
		db:          db,
		connections: make(map[string]map[string]*SSEClient),
		ctx:         ctx,
		cancel:      cancel,
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		go service.startDBListener(dsn)
	}

	return service
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(userName, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[userName] == nil {
		s.connections[userName] = make(map[string]*SSEClient)
	}

	client := &SSEClient{
		ID:       uuid.New().String(),
		UserName: userName,
		Channel:  make(chan *models.ScanEvent, 100), // 缓冲100个事件
		Done:     make(chan bool),
		ClientIP: clientIP,
	}
	s.connections[userName][client.ID] = client

	slog.Info("SSE连接已建立", "user", userName, "connection_id", client.ID, "client_ip", clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(userName, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userConnections, exists := s.connections[userName]
	if !exists {
		return
	}
	client, exists := userConnections[connectionID]
	if !exists {
		return
	}

	close(client.Done)
	delete(userConnections, connectionID)
	if len(userConnections) == 0 {
		delete(s.connections, userName)
	}

	slog.Info("SSE连接已断开", "user", userName, "connection_id", connectionID)
}

// ConnectionCount 当前活跃SSE连接数
func (s *EventService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, userConnections := range s.connections {
		count += len(userConnections)
	}
	return count
}

// === 事件发布 ===

// PublishScanEvent 发布扫描事件：本地SSE广播并通过pg_notify通知其他实例
func (s *EventService) PublishScanEvent(ctx context.Context, event *models.ScanEvent) error {
	s.broadcast(event)

	if s.dbListener != nil && s.db != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("序列化扫描事件失败: %w", err)
		}
		if err := s.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", notifyChannel, string(payload)).Error; err != nil {
			return fmt.Errorf("发送pg_notify失败: %w", err)
		}
	}
	return nil
}

// broadcast 向所有SSE连接分发事件，队列满时跳过该连接
func (s *EventService) broadcast(event *models.ScanEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userName, userConnections := range s.connections {
		for _, client := range userConnections {
			select {
			case client.Channel <- event:
			default:
				slog.Warn("SSE事件队列已满，跳过发送", "user", userName, "connection_id", client.ID)
			}
		}
	}
}

// === 数据库监听 ===

// startDBListener 启动PostgreSQL LISTEN/NOTIFY监听器
func (s *EventService) startDBListener(dsn string) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("数据库监听器状态变化", "event", ev, "error", err)
		}
	})

	if err := listener.Listen(notifyChannel); err != nil {
		slog.Error("订阅通知通道失败", "channel", notifyChannel, "error", err)
		listener.Close()
		return
	}

	s.dbListener = listener
	slog.Info("数据库事件监听器已启动", "channel", notifyChannel)

	for {
		select {
		case <-s.ctx.Done():
			listener.Close()
			return
		case notification := <-listener.Notify:
			if notification == nil {
				continue
			}
			var event models.ScanEvent
			if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
				slog.Error("解析通知事件失败", "error", err)
				continue
			}
			s.broadcast(&event)
		case <-time.After(90 * time.Second):
			// 定期探活，保持连接
			go func() {
				if err := listener.Ping(); err != nil {
					slog.Error("数据库监听器探活失败", "error", err)
				}
			}()
		}
	}
}

// Stop 停止事件服务
func (s *EventService) Stop() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for userName, userConnections := range s.connections {
		for id, client := range userConnections {
			close(client.Done)
			delete(userConnections, id)
		}
		delete(s.connections, userName)
	}
}
