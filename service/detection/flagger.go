/*
 * @module service/detection/flagger
 * @description 列级离群值标记器，对单元格应用鲁棒z分数与IQR围栏双重判据
 * @architecture 分层架构 - 检测引擎规则层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 列统计输入 -> 逐单元格判定 -> 明细记录输出
 * @rules |z|>3.5 或值越过IQR围栏即标记；缺失单元格永不标记；严重程度按|z|分档
 * @dependencies math
 * @refs service/detection/column_stats.go, service/detection/row_aggregator.go
 */

package detection

import (
	"math"

	"datascan-service/service/models"
)

const (
	// 鲁棒z分数标记阈值
	zFlagThreshold = 3.5
	// 严重程度分档阈值
	zHighThreshold   = 5.0
	zMediumThreshold = 4.0
)

// CellFlag 单元格级标记明细记录
type CellFlag struct {
	Row        int // 0起始的内部行号
	Column     string
	Value      float64
	RobustZ    float64
	Severity   models.Severity
	Confidence float64
}

// FlagColumnOutliers 对一列应用双重离群判据，返回标记明细
func FlagColumnOutliers(col *Column, stats ColumnStatistics) []CellFlag {
	if !stats.Defined {
		return nil
	}

	var flags []CellFlag
	for row, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		z := stats.RobustZ(cell.Value)
		outsideFence := cell.Value < stats.LowerFence || cell.Value > stats.UpperFence
		if math.Abs(z) <= zFlagThreshold && !outsideFence {
			continue
		}
		flags = append(flags, CellFlag{
			Row:        row,
			Column:     col.Name,
			Value:      cell.Value,
			RobustZ:    z,
			Severity:   severityForZ(z),
			Confidence: confidenceForZ(z),
		})
	}
	return flags
}

// severityForZ 按|z|分档严重程度
func severityForZ(z float64) models.Severity {
	abs := math.Abs(z)
	switch {
	case abs > zHighThreshold:
		return models.SeverityHigh
	case abs > zMediumThreshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// confidenceForZ 置信度随偏差幅度单调不减，|z|=4时饱和到1.0的线性刻度
func confidenceForZ(z float64) float64 {
	magnitude := math.Min(math.Abs(z)/4, 1)
	return round2(0.6 + 0.4*magnitude)
}
