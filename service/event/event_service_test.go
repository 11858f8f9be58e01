/*
 * @module service/event/event_service_test
 * @description 事件服务单元测试，覆盖SSE连接管理与本地事件广播
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 连接建立 -> 事件发布 -> 推送断言 -> 连接清理
 * @rules 测试不依赖PostgreSQL监听器，仅覆盖本地广播路径
 * @dependencies github.com/stretchr/testify
 * @refs service/event/event_service.go
 */

package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

func TestSSEConnectionLifecycle(t *testing.T) {
	svc := NewEventService(nil)
	t.Cleanup(svc.Stop)

	client := svc.AddSSEConnection("admin", "127.0.0.1")
	assert.NotEmpty(t, client.ID)
	assert.Equal(t, "admin", client.UserName)
	assert.Equal(t, 1, svc.ConnectionCount())

	other := svc.AddSSEConnection("admin", "127.0.0.2")
	assert.NotEqual(t, client.ID, other.ID)
	assert.Equal(t, 2, svc.ConnectionCount())

	svc.RemoveSSEConnection("admin", client.ID)
	assert.Equal(t, 1, svc.ConnectionCount())

	// 重复移除是幂等的
	svc.RemoveSSEConnection("admin", client.ID)
	assert.Equal(t, 1, svc.ConnectionCount())
}

func TestPublishScanEvent_Broadcast(t *testing.T) {
	svc := NewEventService(nil)
	t.Cleanup(svc.Stop)

	alice := svc.AddSSEConnection("alice", "127.0.0.1")
	bob := svc.AddSSEConnection("bob", "127.0.0.2")

	event := &models.ScanEvent{
		Type:      "scan_completed",
		ScanID:    "scan-1",
		FileName:  "data.csv",
		HighCount: 1,
		Timestamp: time.Now(),
	}
	require.NoError(t, svc.PublishScanEvent(context.Background(), event))

	// 所有连接都收到广播
	for _, client := range []*SSEClient{alice, bob} {
		select {
		case got := <-client.Channel:
			assert.Equal(t, "scan-1", got.ScanID)
		case <-time.After(time.Second):
			t.Fatalf("connection %s did not receive event", client.ID)
		}
	}
}

func TestPublishScanEvent_FullQueueSkipped(t *testing.T) {
	svc := NewEventService(nil)
	t.Cleanup(svc.Stop)

	client := svc.AddSSEConnection("admin", "127.0.0.1")

	// 填满缓冲队列后继续发布不得阻塞
	for i := 0; i < 150; i++ {
		require.NoError(t, svc.PublishScanEvent(context.Background(), &models.ScanEvent{ScanID: "s"}))
	}

	assert.Equal(t, 100, len(client.Channel))
}
