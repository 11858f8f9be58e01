/*
 * @module service/detection/tabular_detector
 * @description 表格异常检测器，编排列统计、离群标记与行聚合，对外保证总是返回结果列表
 * @architecture 分层架构 - 检测引擎编排层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 数值列筛选 -> 列统计 -> 离群标记 -> 行聚合排名 -> 结果输出
 * @rules 检测入口永不向调用方抛错；解析失败转换为单条File Error结果；空数据集返回空列表
 * @dependencies datascan-service/service/models
 * @refs service/detection/row_aggregator.go, service/scan/
 */

package detection

import (
	"fmt"

	"datascan-service/service/models"
)

// DefaultMaxFindings 行级结果数量默认上限
const DefaultMaxFindings = 50

const (
	locationFileProcessing  = "File processing"
	locationImageProcessing = "Image processing"
)

// DetectTabularAnomalies 对已解析数据集执行表格异常检测
// 返回排名后的结果列表，可能为空；无数值列或空数据集不是错误
func DetectTabularAnomalies(ds *Dataset, maxFindings int) (findings []models.AnomalyFinding) {
	defer func() {
		if r := recover(); r != nil {
			findings = []models.AnomalyFinding{
				fileErrorFinding(fmt.Sprintf("Error reading CSV file: %v", r), locationFileProcessing),
			}
		}
	}()

	if maxFindings <= 0 {
		maxFindings = DefaultMaxFindings
	}
	if ds == nil || ds.RowCount == 0 {
		return []models.AnomalyFinding{}
	}

	var flags []CellFlag
	for _, i := range ds.NumericColumns() {
		col := &ds.Columns[i]
		stats := ComputeColumnStatistics(col.Cells)
		if !stats.Defined {
			continue
		}
		flags = append(flags, FlagColumnOutliers(col, stats)...)
	}
	return AggregateFindings(flags, maxFindings)
}

// DetectCSVAnomalies 从CSV字节流执行表格异常检测
// 解析失败不抛错，转换为单条File Error结果，保证调用方总能拿到结构化列表
func DetectCSVAnomalies(data []byte, maxFindings int) []models.AnomalyFinding {
	ds, err := ParseCSV(data)
	if err != nil {
		return []models.AnomalyFinding{
			fileErrorFinding(fmt.Sprintf("Error reading CSV file: %v", err), locationFileProcessing),
		}
	}
	return DetectTabularAnomalies(ds, maxFindings)
}

// fileErrorFinding 构造文件错误结果，严重程度与置信度固定
func fileErrorFinding(description, location string) models.AnomalyFinding {
	return models.AnomalyFinding{
		Kind:        models.KindFileError,
		Location:    location,
		Severity:    models.SeverityHigh,
		Description: description,
		Confidence:  1.0,
	}
}
