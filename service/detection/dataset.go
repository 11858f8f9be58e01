/*
 * @module service/detection/dataset
 * @description 表格数据集模型与CSV解析，负责列语义类型分类和单元格数值强制转换
 * @architecture 分层架构 - 检测引擎数据层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow CSV读取 -> 编码转换 -> 列类型分类 -> 单元格数值化
 * @rules 缺失/不可解析单元格显式标记为无效，统计计算一律忽略无效单元格；列类型仅在装载时分类一次
 * @dependencies encoding/csv, github.com/spf13/cast, golang.org/x/text
 * @refs service/detection/tabular_detector.go, service/profile/
 */

package detection

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ColumnType 列语义类型，装载时分类一次
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnOther       ColumnType = "other"
)

// 数值列判定阈值：非空单元格中可解析为数值的比例
const numericRatioThreshold = 0.6

// Cell 显式可缺失的数值单元格
// Valid为false表示缺失或不可解析，统计计算时忽略但保留行对齐
type Cell struct {
	Value float64
	Valid bool
}

// Column 数据集中的一列
type Column struct {
	Name  string
	Type  ColumnType
	Raw   []string // 原始文本，按行对齐
	Cells []Cell   // 数值化结果，仅数值列有意义
}

// Dataset 已解析的表格数据集，检测调用期间只读
type Dataset struct {
	Columns  []Column
	RowCount int
}

// NumericColumns 返回所有数值列的索引
func (d *Dataset) NumericColumns() []int {
	var idx []int
	for i := range d.Columns {
		if d.Columns[i].Type == ColumnNumeric {
			idx = append(idx, i)
		}
	}
	return idx
}

// ParseCSV 解析CSV字节流为数据集
// 首行视为表头；非UTF-8输入回退按GBK转码；行宽不齐时按空单元格补齐
func ParseCSV(data []byte) (*Dataset, error) {
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("编码转换失败: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		columns[i] = Column{Name: name}
	}

	rowCount := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取数据行失败: %w", err)
		}
		for i := range columns {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			columns[i].Raw = append(columns[i].Raw, value)
		}
		rowCount++
	}

	ds := &Dataset{Columns: columns, RowCount: rowCount}
	for i := range ds.Columns {
		classifyColumn(&ds.Columns[i])
	}
	return ds, nil
}

// NewDataset 从内存列构建数据集，测试和脚本规则场景使用
func NewDataset(names []string, rows [][]string) *Dataset {
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name}
	}
	for _, row := range rows {
		for i := range columns {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			columns[i].Raw = append(columns[i].Raw, value)
		}
	}
	ds := &Dataset{Columns: columns, RowCount: len(rows)}
	for i := range ds.Columns {
		classifyColumn(&ds.Columns[i])
	}
	return ds
}

// classifyColumn 分类列语义类型并数值化单元格
func classifyColumn(col *Column) {
	cells := make([]Cell, len(col.Raw))
	nonEmpty := 0
	parsed := 0

	for i, raw := range col.Raw {
		if isMissing(raw) {
			continue
		}
		nonEmpty++
		value, err := coerceFloat(raw)
		if err != nil {
			continue
		}
		cells[i] = Cell{Value: value, Valid: true}
		parsed++
	}

	switch {
	case nonEmpty == 0:
		col.Type = ColumnOther
	case float64(parsed) >= numericRatioThreshold*float64(nonEmpty):
		col.Type = ColumnNumeric
		col.Cells = cells
	default:
		col.Type = ColumnCategorical
	}
	if col.Type != ColumnNumeric {
		col.Cells = make([]Cell, len(col.Raw))
	}
}

// isMissing 判断单元格是否为缺失值
func isMissing(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "null", "none", "nan", "n/a", "na":
		return true
	}
	return false
}

// coerceFloat 将原始文本强制转换为有限浮点数
func coerceFloat(raw string) (float64, error) {
	value, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("非有限数值: %s", raw)
	}
	return value, nil
}
