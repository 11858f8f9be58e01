/*
 * @module service/audit/audit_service_test
 * @description 审计日志服务单元测试，覆盖记录、分页查询、CSV导出与清理
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 测试数据准备 -> 服务调用 -> 结果断言
 * @rules 使用内存SQLite，测试之间相互独立
 * @dependencies github.com/stretchr/testify
 * @refs service/audit/audit_service.go
 */

package audit

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
	"datascan-service/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewService(tdb.DB), tdb
}

func TestRecordAndList(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Record("scan_completed", "abc123", "10.0.0.1", models.JSONB{"file_name": "a.csv"})
	svc.Record("scan_rejected", "", "10.0.0.2", nil)
	svc.Record("scan_completed", "def456", "10.0.0.1", nil)

	logs, total, err := svc.List(1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, logs, 3)

	// 按事件类型过滤
	logs, total, err = svc.List(1, 20, "scan_completed")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, entry := range logs {
		assert.Equal(t, "scan_completed", entry.Event)
	}
}

func TestList_Pagination(t *testing.T) {
	svc, _ := newTestService(t)

	for i := 0; i < 25; i++ {
		svc.Record("scan_completed", "", "127.0.0.1", nil)
	}

	logs, total, err := svc.List(2, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, logs, 10)

	// 非法分页参数回落到默认值
	logs, _, err = svc.List(0, 0, "")
	require.NoError(t, err)
	assert.Len(t, logs, 20)
}

func TestExportCSV(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Record("scan_completed", "abc123", "10.0.0.1", nil)
	svc.Record("audit_exported", "", "10.0.0.2", nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // 表头 + 2条记录
	assert.Equal(t, []string{"id", "event", "file_hash", "client_ip", "timestamp"}, records[0])

	// 时间戳可按RFC3339解析
	_, err = time.Parse(time.RFC3339, records[1][4])
	assert.NoError(t, err)
}

func TestCleanupBefore(t *testing.T) {
	svc, tdb := newTestService(t)

	old := &models.AuditLog{Event: "scan_completed", CreatedAt: time.Now().AddDate(0, 0, -100)}
	require.NoError(t, tdb.DB.Create(old).Error)
	svc.Record("scan_completed", "", "127.0.0.1", nil)

	deleted, err := svc.CleanupBefore(time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, total, err := svc.List(1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
