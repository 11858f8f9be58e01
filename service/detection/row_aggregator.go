/*
 * @module service/detection/row_aggregator
 * @description 行级聚合器，将列级标记合并为行级异常得分并排名，必要时回填列级结果
 * @architecture 分层架构 - 检测引擎聚合层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 明细记录 -> 行得分累计 -> 降序排名截断 -> 不足5条时按|z|回填
 * @rules 行得分为各列min(|z|,10)之和；行严重程度取最差列；置信度0.95封顶
 * @dependencies fmt, sort, strings
 * @refs service/detection/flagger.go, service/detection/tabular_detector.go
 */

package detection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"datascan-service/service/models"
)

const (
	// 单列对行得分的贡献上限
	rowScoreCap = 10.0
	// 回填保证的最少结果条数
	minFindings = 5
	// 行级置信度上限
	rowConfidenceCeiling = 0.95
)

const (
	descRowOutlier    = "Robust statistical detection flagged outlier values (MAD/IQR)."
	descColumnOutlier = "Robust z-score or IQR fence flagged a single suspicious value."
)

// rowScore 单行的聚合状态，检测调用内部使用，排名后即丢弃
type rowScore struct {
	row     int
	total   float64
	flags   []CellFlag
	columns map[string]bool
}

// AggregateFindings 将列级标记聚合为排名后的行级结果
// 行级结果不足minFindings条时，按|z|降序回填列级结果
func AggregateFindings(flags []CellFlag, maxFindings int) []models.AnomalyFinding {
	findings := make([]models.AnomalyFinding, 0)
	if maxFindings <= 0 {
		maxFindings = DefaultMaxFindings
	}

	scores := make(map[int]*rowScore)
	var rowOrder []int
	for _, f := range flags {
		rs, ok := scores[f.Row]
		if !ok {
			rs = &rowScore{row: f.Row, columns: make(map[string]bool)}
			scores[f.Row] = rs
			rowOrder = append(rowOrder, f.Row)
		}
		rs.total += math.Min(math.Abs(f.RobustZ), rowScoreCap)
		rs.flags = append(rs.flags, f)
		rs.columns[f.Column] = true
	}

	// 行号升序预排，稳定排序后同分行保持行号顺序，保证输出确定性
	sort.Ints(rowOrder)
	ranked := make([]*rowScore, 0, len(rowOrder))
	for _, row := range rowOrder {
		if scores[row].total > 0 {
			ranked = append(ranked, scores[row])
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].total > ranked[j].total
	})
	if len(ranked) > maxFindings {
		ranked = ranked[:maxFindings]
	}

	for _, rs := range ranked {
		findings = append(findings, rowFinding(rs))
	}

	// 回填规则：结果不足时补充单列明细，保证稀疏数据集也有最小信号量
	if len(findings) < minFindings {
		backfill := append([]CellFlag(nil), flags...)
		sort.SliceStable(backfill, func(i, j int) bool {
			zi, zj := math.Abs(backfill[i].RobustZ), math.Abs(backfill[j].RobustZ)
			if zi != zj {
				return zi > zj
			}
			if backfill[i].Row != backfill[j].Row {
				return backfill[i].Row < backfill[j].Row
			}
			return backfill[i].Column < backfill[j].Column
		})
		for _, f := range backfill {
			if len(findings) >= minFindings {
				break
			}
			findings = append(findings, columnFinding(f))
		}
	}
	return findings
}

// rowFinding 构造行级结果：最差列严重程度，列数与总分驱动的置信度
func rowFinding(rs *rowScore) models.AnomalyFinding {
	severity := models.SeverityLow
	for _, f := range rs.flags {
		if f.Severity.WorseThan(severity) {
			severity = f.Severity
		}
	}

	names := make([]string, 0, len(rs.columns))
	for name := range rs.columns {
		names = append(names, name)
	}
	sort.Strings(names)

	confidence := round2(math.Min(rowConfidenceCeiling,
		0.5+0.05*float64(len(names))+0.02*rs.total))

	return models.AnomalyFinding{
		Kind:        models.KindDataOutlier,
		Location:    fmt.Sprintf("Row %d (Columns: %s)", rs.row+1, strings.Join(names, ", ")),
		Severity:    severity,
		Description: descRowOutlier,
		Confidence:  confidence,
	}
}

// columnFinding 构造回填用的列级结果，直接沿用明细记录的严重程度与置信度
func columnFinding(f CellFlag) models.AnomalyFinding {
	return models.AnomalyFinding{
		Kind:        models.KindColumnOutlier,
		Location:    fmt.Sprintf("Row %d, Column %q", f.Row+1, f.Column),
		Severity:    f.Severity,
		Description: descColumnOutlier,
		Confidence:  f.Confidence,
	}
}
