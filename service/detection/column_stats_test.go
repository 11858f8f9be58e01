/*
 * @module service/detection/column_stats_test
 * @description 鲁棒列统计单元测试，验证分位数、MAD计算与退化场景回退
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 构造列数据 -> 统计计算 -> 数值断言
 * @rules 覆盖空列、常量列、MAD为0回退等边界场景
 * @dependencies testing, testify
 * @refs column_stats.go
 */

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellsOf(values ...float64) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = Cell{Value: v, Valid: true}
	}
	return cells
}

// TestComputeColumnStatistics_Basic 测试基础统计量计算
func TestComputeColumnStatistics_Basic(t *testing.T) {
	stats := ComputeColumnStatistics(cellsOf(1, 2, 3, 4, 5))

	require.True(t, stats.Defined)
	assert.Equal(t, 5, stats.Count)
	assert.InDelta(t, 3.0, stats.Median, 1e-9)
	assert.InDelta(t, 1.0, stats.MAD, 1e-9)
	assert.InDelta(t, 2.0, stats.Q1, 1e-9)
	assert.InDelta(t, 4.0, stats.Q3, 1e-9)
	assert.InDelta(t, 2.0, stats.IQR, 1e-9)
	assert.InDelta(t, -1.0, stats.LowerFence, 1e-9)
	assert.InDelta(t, 7.0, stats.UpperFence, 1e-9)
	assert.False(t, stats.UseMeanFallback)
	assert.False(t, stats.Degenerate)

	// 鲁棒z分数: 0.6745 * (10 - 3) / 1
	assert.InDelta(t, 4.7215, stats.RobustZ(10), 1e-9)
}

// TestComputeColumnStatistics_LinearInterpolation 测试线性插值分位数
func TestComputeColumnStatistics_LinearInterpolation(t *testing.T) {
	stats := ComputeColumnStatistics(cellsOf(1, 2, 3, 4))

	assert.InDelta(t, 1.75, stats.Q1, 1e-9)
	assert.InDelta(t, 2.5, stats.Median, 1e-9)
	assert.InDelta(t, 3.25, stats.Q3, 1e-9)
}

// TestComputeColumnStatistics_Empty 测试空列：统计量未定义
func TestComputeColumnStatistics_Empty(t *testing.T) {
	stats := ComputeColumnStatistics(nil)
	assert.False(t, stats.Defined)
	assert.Equal(t, 0.0, stats.RobustZ(100))

	// 全部无效单元格等同于空列
	stats = ComputeColumnStatistics(make([]Cell, 10))
	assert.False(t, stats.Defined)
}

// TestComputeColumnStatistics_Degenerate 测试常量列：MAD与标准差均为0，z分数恒为0
func TestComputeColumnStatistics_Degenerate(t *testing.T) {
	stats := ComputeColumnStatistics(cellsOf(5, 5, 5, 5, 5))

	require.True(t, stats.Defined)
	assert.True(t, stats.Degenerate)
	assert.Equal(t, 0.0, stats.RobustZ(5))
	assert.Equal(t, 0.0, stats.RobustZ(1e9))
}

// TestComputeColumnStatistics_MeanFallback 测试MAD为0但标准差非0时回退到均值/标准差z分数
func TestComputeColumnStatistics_MeanFallback(t *testing.T) {
	stats := ComputeColumnStatistics(cellsOf(1, 1, 1, 1, 100))

	require.True(t, stats.Defined)
	assert.Equal(t, 0.0, stats.MAD)
	assert.True(t, stats.UseMeanFallback)
	assert.False(t, stats.Degenerate)
	assert.InDelta(t, 20.8, stats.Mean, 1e-9)
	assert.InDelta(t, 1.78886, stats.RobustZ(100), 1e-4)
}

// TestComputeColumnStatistics_IgnoresInvalidCells 测试无效单元格不参与统计
func TestComputeColumnStatistics_IgnoresInvalidCells(t *testing.T) {
	cells := cellsOf(1, 2, 3, 4, 5)
	cells = append(cells, Cell{Value: 99999, Valid: false})

	stats := ComputeColumnStatistics(cells)
	assert.Equal(t, 5, stats.Count)
	assert.InDelta(t, 3.0, stats.Median, 1e-9)
}
