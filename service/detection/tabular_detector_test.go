/*
 * @module service/detection/tabular_detector_test
 * @description 表格异常检测器集成测试，覆盖端到端检测、幂等性与失败契约
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 构造CSV/数据集 -> 检测执行 -> 结果列表断言
 * @rules 检测入口永不抛错；同一输入重复检测结果逐字节一致
 * @dependencies testing, testify
 * @refs tabular_detector.go
 */

package detection

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

// TestDetectTabularAnomalies_CleanData 测试常量数据不产生任何结果
func TestDetectTabularAnomalies_CleanData(t *testing.T) {
	rows := make([][]string, 20)
	for i := range rows {
		rows[i] = []string{"10", "cat"}
	}
	ds := NewDataset([]string{"value", "label"}, rows)

	findings := DetectTabularAnomalies(ds, 0)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

// TestDetectTabularAnomalies_SingleOutlier 测试100行数据中单个极端值的端到端检测
func TestDetectTabularAnomalies_SingleOutlier(t *testing.T) {
	rows := make([][]string, 100)
	for i := range rows {
		rows[i] = []string{"10"}
	}
	rows[49] = []string{"1000"}
	ds := NewDataset([]string{"value"}, rows)

	findings := DetectTabularAnomalies(ds, DefaultMaxFindings)
	// 1条行级结果 + 1条回填列级结果
	require.Len(t, findings, 2)

	assert.Equal(t, models.KindDataOutlier, findings[0].Kind)
	assert.Equal(t, "Row 50 (Columns: value)", findings[0].Location)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	// min(0.95, 0.5 + 0.05*1 + 0.02*9.9) = 0.748 -> 0.75
	assert.Equal(t, 0.75, findings[0].Confidence)

	assert.Equal(t, models.KindColumnOutlier, findings[1].Kind)
	assert.Equal(t, `Row 50, Column "value"`, findings[1].Location)
}

// TestDetectTabularAnomalies_Deterministic 测试同一输入重复检测结果完全一致
func TestDetectTabularAnomalies_Deterministic(t *testing.T) {
	rows := make([][]string, 60)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("%d", i%7), fmt.Sprintf("%d", i%5)}
	}
	rows[10] = []string{"900", "2"}
	rows[30] = []string{"3", "-800"}
	ds := NewDataset([]string{"a", "b"}, rows)

	first := DetectTabularAnomalies(ds, DefaultMaxFindings)
	second := DetectTabularAnomalies(ds, DefaultMaxFindings)
	assert.True(t, reflect.DeepEqual(first, second))
}

// TestDetectTabularAnomalies_ConfidenceRange 测试所有结果置信度落在(0,1]区间
func TestDetectTabularAnomalies_ConfidenceRange(t *testing.T) {
	rows := make([][]string, 50)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("%d", i), fmt.Sprintf("%d", 100-i)}
	}
	rows[5] = []string{"99999", "-99999"}
	ds := NewDataset([]string{"x", "y"}, rows)

	for _, f := range DetectTabularAnomalies(ds, DefaultMaxFindings) {
		assert.Greater(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
	}
}

// TestDetectTabularAnomalies_EmptyDataset 测试空数据集与nil数据集返回空列表
func TestDetectTabularAnomalies_EmptyDataset(t *testing.T) {
	assert.Empty(t, DetectTabularAnomalies(nil, 10))
	assert.Empty(t, DetectTabularAnomalies(&Dataset{}, 10))
}

// TestDetectCSVAnomalies_EndToEnd 测试CSV字节流端到端检测
func TestDetectCSVAnomalies_EndToEnd(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,amount\n")
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&sb, "%d,10\n", i)
	}
	sb.WriteString("31,5000\n")

	findings := DetectCSVAnomalies([]byte(sb.String()), DefaultMaxFindings)
	require.NotEmpty(t, findings)
	assert.Equal(t, models.KindDataOutlier, findings[0].Kind)
	assert.Contains(t, findings[0].Location, "Row 31")
	assert.Contains(t, findings[0].Location, "amount")
}

// TestDetectCSVAnomalies_MalformedCSV 测试解析失败转换为单条File Error结果
func TestDetectCSVAnomalies_MalformedCSV(t *testing.T) {
	findings := DetectCSVAnomalies([]byte("a,b\n\"broken,1\n"), DefaultMaxFindings)
	require.Len(t, findings, 1)
	assert.Equal(t, models.KindFileError, findings[0].Kind)
	assert.Equal(t, "File processing", findings[0].Location)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 1.0, findings[0].Confidence)
	assert.True(t, strings.HasPrefix(findings[0].Description, "Error reading CSV file:"))
}
