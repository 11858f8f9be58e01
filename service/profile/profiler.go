/*
 * @module service/profile/profiler
 * @description 数据集画像服务，生成训练就绪度报告：列画像、目标变量分析、质量检查与建议
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow CSV解析 -> 列画像 -> 目标变量分析 -> 质量检查 -> 就绪度评分与建议
 * @rules 就绪度满分5分，≥4分视为就绪；画像只读不修改数据集
 * @dependencies datascan-service/service/detection
 * @refs api/controllers/profile_controller.go
 */

package profile

import (
	"fmt"
	"sort"
	"strings"

	"datascan-service/service/detection"
)

// 目标变量候选列名，按优先级匹配
var targetCandidates = []string{"is_anomaly", "label", "target", "class", "anomaly"}

const (
	minSampleRows        = 100
	missingRateThreshold = 0.1
	imbalanceWarnRatio   = 3.0
	imbalanceFailRatio   = 5.0
	highCardinality      = 100
	readyScoreThreshold  = 4
	maxReadinessScore    = 5
)

// ColumnProfile 单列画像
type ColumnProfile struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"` // numeric/categorical/other
	NullCount   int     `json:"null_count"`
	NullPercent float64 `json:"null_percent"`
	UniqueCount int     `json:"unique_count"`
	Min         float64 `json:"min,omitempty"`
	Max         float64 `json:"max,omitempty"`
	Mean        float64 `json:"mean,omitempty"`
	StdDev      float64 `json:"std_dev,omitempty"`
}

// TargetAnalysis 目标变量分析
type TargetAnalysis struct {
	Found          bool           `json:"found"`
	Column         string         `json:"column,omitempty"`
	Distribution   map[string]int `json:"distribution,omitempty"`
	ImbalanceRatio float64        `json:"imbalance_ratio,omitempty"`
	Imbalanced     bool           `json:"imbalanced,omitempty"`
}

// Report 数据集就绪度报告
type Report struct {
	RowCount        int             `json:"row_count"`
	ColumnCount     int             `json:"column_count"`
	Columns         []ColumnProfile `json:"columns"`
	Target          TargetAnalysis  `json:"target"`
	MissingCells    int             `json:"missing_cells"`
	MissingRate     float64         `json:"missing_rate"`
	DuplicateRows   int             `json:"duplicate_rows"`
	ConstantColumns []string        `json:"constant_columns"`
	HighCardinality []string        `json:"high_cardinality_columns"`
	ReadinessScore  int             `json:"readiness_score"`
	MaxScore        int             `json:"max_score"`
	Ready           bool            `json:"ready"`
	Recommendations []string        `json:"recommendations"`
}

// Profiler 数据集画像器
type Profiler struct{}

// NewProfiler 创建画像器实例
func NewProfiler() *Profiler {
	return &Profiler{}
}

// ProfileCSV 从CSV字节流生成就绪度报告
func (p *Profiler) ProfileCSV(data []byte) (*Report, error) {
	ds, err := detection.ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	return p.Profile(ds), nil
}

// Profile 对已解析数据集生成就绪度报告
func (p *Profiler) Profile(ds *detection.Dataset) *Report {
	report := &Report{
		RowCount:    ds.RowCount,
		ColumnCount: len(ds.Columns),
		MaxScore:    maxReadinessScore,
	}

	numericCount := 0
	for i := range ds.Columns {
		col := &ds.Columns[i]
		profile := p.profileColumn(col, ds.RowCount)
		report.Columns = append(report.Columns, profile)
		report.MissingCells += profile.NullCount

		if col.Type == detection.ColumnNumeric {
			numericCount++
		}
		if profile.UniqueCount == 1 && ds.RowCount > 0 {
			report.ConstantColumns = append(report.ConstantColumns, col.Name)
		}
		if col.Type == detection.ColumnCategorical && profile.UniqueCount > highCardinality {
			report.HighCardinality = append(report.HighCardinality, col.Name)
		}
	}

	totalCells := ds.RowCount * len(ds.Columns)
	if totalCells > 0 {
		report.MissingRate = float64(report.MissingCells) / float64(totalCells)
	}
	report.DuplicateRows = countDuplicateRows(ds)
	report.Target = analyzeTarget(ds)

	p.score(report, numericCount)
	p.recommend(report, numericCount)
	return report
}

// profileColumn 生成单列画像
func (p *Profiler) profileColumn(col *detection.Column, rowCount int) ColumnProfile {
	profile := ColumnProfile{
		Name: col.Name,
		Type: string(col.Type),
	}

	unique := make(map[string]struct{})
	for _, raw := range col.Raw {
		if strings.TrimSpace(raw) == "" {
			profile.NullCount++
			continue
		}
		unique[raw] = struct{}{}
	}
	profile.UniqueCount = len(unique)
	if rowCount > 0 {
		profile.NullPercent = float64(profile.NullCount) / float64(rowCount) * 100
	}

	if col.Type == detection.ColumnNumeric {
		stats := detection.ComputeColumnStatistics(col.Cells)
		if stats.Defined {
			profile.Mean = stats.Mean
			profile.StdDev = stats.StdDev
			profile.Min, profile.Max = minMax(col.Cells)
		}
	}
	return profile
}

// analyzeTarget 按候选列名查找目标变量并分析类别分布
func analyzeTarget(ds *detection.Dataset) TargetAnalysis {
	byName := make(map[string]*detection.Column, len(ds.Columns))
	for i := range ds.Columns {
		byName[strings.ToLower(ds.Columns[i].Name)] = &ds.Columns[i]
	}

	for _, candidate := range targetCandidates {
		col, ok := byName[candidate]
		if !ok {
			continue
		}

		dist := make(map[string]int)
		for _, raw := range col.Raw {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			dist[value]++
		}

		analysis := TargetAnalysis{
			Found:        true,
			Column:       col.Name,
			Distribution: dist,
		}

		// 二分类时计算类别失衡比
		if len(dist) == 2 {
			counts := make([]int, 0, 2)
			for _, c := range dist {
				counts = append(counts, c)
			}
			sort.Ints(counts)
			if counts[0] > 0 {
				analysis.ImbalanceRatio = float64(counts[1]) / float64(counts[0])
				analysis.Imbalanced = analysis.ImbalanceRatio > imbalanceWarnRatio
			}
		}
		return analysis
	}
	return TargetAnalysis{Found: false}
}

// score 计算就绪度得分：目标变量、数值特征、样本量、缺失率、类别均衡
func (p *Profiler) score(report *Report, numericCount int) {
	score := 0
	if report.Target.Found {
		score++
	}
	if numericCount > 0 {
		score++
	}
	if report.RowCount >= minSampleRows {
		score++
	}
	if report.MissingRate < missingRateThreshold {
		score++
	}
	if !report.Target.Found || report.Target.ImbalanceRatio == 0 || report.Target.ImbalanceRatio < imbalanceFailRatio {
		score++
	}

	report.ReadinessScore = score
	report.Ready = score >= readyScoreThreshold
}

// recommend 根据检查结果生成建议列表
func (p *Profiler) recommend(report *Report, numericCount int) {
	var recs []string
	if !report.Target.Found {
		recs = append(recs, fmt.Sprintf("缺少目标变量列，建议添加 %s 之一", strings.Join(targetCandidates, "/")))
	}
	if report.MissingCells > 0 {
		recs = append(recs, fmt.Sprintf("存在%d个缺失单元格，建议填充或剔除", report.MissingCells))
	}
	if report.DuplicateRows > 0 {
		recs = append(recs, fmt.Sprintf("存在%d条重复行，建议去重", report.DuplicateRows))
	}
	if len(report.HighCardinality) > 0 {
		recs = append(recs, "高基数类别列建议编码或哈希处理")
	}
	if report.Target.Imbalanced {
		recs = append(recs, fmt.Sprintf("类别失衡(比例%.1f:1)，建议重采样或使用类别权重", report.Target.ImbalanceRatio))
	}
	if numericCount < 3 {
		recs = append(recs, "数值特征不足3个，建议特征工程补充")
	}
	if len(recs) == 0 {
		recs = append(recs, "数据集状态良好，可直接用于训练")
	}
	report.Recommendations = recs
}

// countDuplicateRows 统计完全重复的数据行数
func countDuplicateRows(ds *detection.Dataset) int {
	if ds.RowCount == 0 {
		return 0
	}

	seen := make(map[string]struct{}, ds.RowCount)
	duplicates := 0
	var sb strings.Builder
	for row := 0; row < ds.RowCount; row++ {
		sb.Reset()
		for i := range ds.Columns {
			if row < len(ds.Columns[i].Raw) {
				sb.WriteString(ds.Columns[i].Raw[row])
			}
			sb.WriteByte('\x1f')
		}
		key := sb.String()
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}
	return duplicates
}

// minMax 计算有效单元格的最小/最大值
func minMax(cells []detection.Cell) (minV, maxV float64) {
	first := true
	for _, c := range cells {
		if !c.Valid {
			continue
		}
		if first {
			minV, maxV = c.Value, c.Value
			first = false
			continue
		}
		if c.Value < minV {
			minV = c.Value
		}
		if c.Value > maxV {
			maxV = c.Value
		}
	}
	return minV, maxV
}
