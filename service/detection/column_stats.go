/*
 * @module service/detection/column_stats
 * @description 鲁棒列统计，计算中位数、MAD、四分位数及IQR围栏，并提供鲁棒z分数
 * @architecture 分层架构 - 检测引擎统计层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 有效值收集 -> 排序 -> 分位数/MAD计算 -> 退化场景标记
 * @rules MAD为0时回退到均值/标准差z分数；标准差也为0时所有z分数恒为0
 * @dependencies math, sort
 * @refs service/detection/flagger.go
 */

package detection

import (
	"math"
	"sort"
)

// MAD到标准差的一致性常数，使鲁棒z分数与正态分布z分数可比
const madScaleFactor = 0.6745

// ColumnStatistics 单个数值列的统计量
type ColumnStatistics struct {
	Count      int
	Median     float64
	MAD        float64
	Q1         float64
	Q3         float64
	IQR        float64
	LowerFence float64
	UpperFence float64
	Mean       float64
	StdDev     float64

	Defined         bool // 列中存在有效值
	UseMeanFallback bool // MAD为0，z分数回退到均值/标准差
	Degenerate      bool // MAD与标准差均为0，z分数恒为0
}

// ComputeColumnStatistics 计算一列的鲁棒统计量，忽略无效单元格
func ComputeColumnStatistics(cells []Cell) ColumnStatistics {
	values := make([]float64, 0, len(cells))
	for _, c := range cells {
		if c.Valid {
			values = append(values, c.Value)
		}
	}

	stats := ColumnStatistics{Count: len(values)}
	if len(values) == 0 {
		return stats
	}
	stats.Defined = true

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	stats.Median = percentile(sorted, 0.5)
	stats.Q1 = percentile(sorted, 0.25)
	stats.Q3 = percentile(sorted, 0.75)
	stats.IQR = stats.Q3 - stats.Q1
	stats.LowerFence = stats.Q1 - 1.5*stats.IQR
	stats.UpperFence = stats.Q3 + 1.5*stats.IQR

	deviations := make([]float64, len(sorted))
	for i, v := range sorted {
		deviations[i] = math.Abs(v - stats.Median)
	}
	sort.Float64s(deviations)
	stats.MAD = percentile(deviations, 0.5)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	stats.Mean = sum / float64(len(values))
	if len(values) > 1 {
		sq := 0.0
		for _, v := range values {
			d := v - stats.Mean
			sq += d * d
		}
		stats.StdDev = math.Sqrt(sq / float64(len(values)-1))
	}

	if stats.MAD == 0 {
		if stats.StdDev > 0 {
			stats.UseMeanFallback = true
		} else {
			stats.Degenerate = true
		}
	}
	return stats
}

// RobustZ 计算单个值的鲁棒z分数
// 退化列（MAD与标准差均为0）所有z分数定义为0
func (s ColumnStatistics) RobustZ(value float64) float64 {
	switch {
	case !s.Defined || s.Degenerate:
		return 0
	case s.UseMeanFallback:
		return (value - s.Mean) / s.StdDev
	default:
		return madScaleFactor * (value - s.Median) / s.MAD
	}
}

// percentile 线性插值分位数，输入必须已升序排序
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// round2 保留2位小数，置信度输出统一使用
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
