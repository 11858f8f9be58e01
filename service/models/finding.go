/*
 * @module service/models/finding
 * @description 异常检测结果数据契约，定义检测引擎输出的统一结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 检测器生成 -> 排序输出 -> 展示/持久化消费
 * @rules 检测结果一经生成不可变更；输出字符串为固定协议常量，不做本地化
 * @dependencies encoding/json
 * @refs service/detection/, service/scan/
 */

package models

// Severity 异常严重程度，有序枚举
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// rank 严重程度排序值，用于"最差列优先"聚合
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// WorseThan 判断当前严重程度是否高于另一个
func (s Severity) WorseThan(other Severity) bool {
	return s.rank() > other.rank()
}

// FindingKind 异常类别，封闭集合
type FindingKind string

const (
	KindDataOutlier        FindingKind = "Data Outlier"
	KindColumnOutlier      FindingKind = "Column Outlier"
	KindVisualManipulation FindingKind = "Visual Manipulation"
	KindImageQuality       FindingKind = "Image Quality"
	KindFileError          FindingKind = "File Error"
)

// AnomalyFinding 单条异常检测结果
// 检测引擎的唯一输出结构，下游展示、持久化、解释模块直接消费
type AnomalyFinding struct {
	Kind        FindingKind `json:"type" example:"Data Outlier"`
	Location    string      `json:"location" example:"Row 50 (Columns: amount)"`
	Severity    Severity    `json:"severity" example:"High"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence" example:"0.95"` // [0,1]，固定保留2位小数
}
