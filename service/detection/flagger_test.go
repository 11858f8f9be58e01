/*
 * @module service/detection/flagger_test
 * @description 列级离群值标记器单元测试，验证双重判据、严重程度分档与置信度映射
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 构造列与统计量 -> 标记执行 -> 明细断言
 * @rules 缺失单元格永不标记；z分数与IQR围栏任一命中即标记
 * @dependencies testing, testify
 * @refs flagger.go
 */

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

func numericColumn(name string, values ...float64) *Column {
	return &Column{
		Name:  name,
		Type:  ColumnNumeric,
		Cells: cellsOf(values...),
	}
}

// TestFlagColumnOutliers_ZScoreCriterion 测试鲁棒z分数判据
func TestFlagColumnOutliers_ZScoreCriterion(t *testing.T) {
	col := numericColumn("amount", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 1000)
	stats := ComputeColumnStatistics(col.Cells)

	flags := FlagColumnOutliers(col, stats)
	require.Len(t, flags, 1)
	assert.Equal(t, 10, flags[0].Row)
	assert.Equal(t, "amount", flags[0].Column)
	assert.Equal(t, 1000.0, flags[0].Value)
	assert.Equal(t, models.SeverityHigh, flags[0].Severity)
	// |z|/4 超过1后置信度饱和: 0.6 + 0.4 = 1.0
	assert.Equal(t, 1.0, flags[0].Confidence)
}

// TestFlagColumnOutliers_FenceCriterion 测试MAD为0时IQR围栏仍可标记
func TestFlagColumnOutliers_FenceCriterion(t *testing.T) {
	col := numericColumn("score", 1, 1, 1, 1, 100)
	stats := ComputeColumnStatistics(col.Cells)
	require.True(t, stats.UseMeanFallback)

	flags := FlagColumnOutliers(col, stats)
	require.Len(t, flags, 1)
	assert.Equal(t, 4, flags[0].Row)
	// |z|≈1.789 低于z分数阈值，由围栏判据触发，严重程度Low
	assert.Equal(t, models.SeverityLow, flags[0].Severity)
	assert.Equal(t, 0.78, flags[0].Confidence)
}

// TestFlagColumnOutliers_ConstantColumn 测试常量列不产生任何标记
func TestFlagColumnOutliers_ConstantColumn(t *testing.T) {
	col := numericColumn("flat", 5, 5, 5, 5, 5, 5)
	stats := ComputeColumnStatistics(col.Cells)

	assert.Empty(t, FlagColumnOutliers(col, stats))
}

// TestFlagColumnOutliers_MissingNeverFlagged 测试缺失单元格永不标记
func TestFlagColumnOutliers_MissingNeverFlagged(t *testing.T) {
	col := numericColumn("v", 1, 2, 3, 4, 5)
	col.Cells = append(col.Cells, Cell{Value: 1e9, Valid: false})
	stats := ComputeColumnStatistics(col.Cells)

	for _, f := range FlagColumnOutliers(col, stats) {
		assert.NotEqual(t, 5, f.Row, "无效单元格不应被标记")
	}
}

// TestSeverityForZ 测试严重程度按|z|分档
func TestSeverityForZ(t *testing.T) {
	tests := []struct {
		z        float64
		expected models.Severity
	}{
		{3.6, models.SeverityLow},
		{4.0, models.SeverityLow},
		{4.1, models.SeverityMedium},
		{5.0, models.SeverityMedium},
		{5.1, models.SeverityHigh},
		{-6.0, models.SeverityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, severityForZ(tt.z), "z=%v", tt.z)
	}
}

// TestConfidenceForZ 测试置信度映射单调且封顶
func TestConfidenceForZ(t *testing.T) {
	assert.Equal(t, 0.95, confidenceForZ(3.5))
	assert.Equal(t, 1.0, confidenceForZ(4))
	assert.Equal(t, 1.0, confidenceForZ(40))

	// 单调不减
	prev := 0.0
	for z := 0.0; z <= 12; z += 0.25 {
		c := confidenceForZ(z)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}
