/*
 * @module service/detection/row_aggregator_test
 * @description 行级聚合器单元测试，验证排名、截断、最差列严重程度与回填规则
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 构造明细记录 -> 聚合执行 -> 排名与回填断言
 * @rules 行得分为0的行不进入排名；结果不足5条时按|z|降序回填
 * @dependencies testing, testify
 * @refs row_aggregator.go
 */

package detection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

func flag(row int, column string, z float64) CellFlag {
	return CellFlag{
		Row:        row,
		Column:     column,
		Value:      z,
		RobustZ:    z,
		Severity:   severityForZ(z),
		Confidence: confidenceForZ(z),
	}
}

// TestAggregateFindings_RankingAndLocation 测试按总分降序排名与位置格式
func TestAggregateFindings_RankingAndLocation(t *testing.T) {
	flags := []CellFlag{
		flag(2, "b_col", 4.0),
		flag(2, "a_col", 6.0),
		flag(7, "a_col", 20.0), // min(|z|,10)封顶后总分10
	}

	findings := AggregateFindings(flags, DefaultMaxFindings)
	require.GreaterOrEqual(t, len(findings), 2)

	// 行7总分10，行2总分4+6=10，同分时行号小的在前
	assert.Equal(t, models.KindDataOutlier, findings[0].Kind)
	assert.Equal(t, "Row 3 (Columns: a_col, b_col)", findings[0].Location)
	assert.Equal(t, "Row 8 (Columns: a_col)", findings[1].Location)

	// 最差列优先: 行2含|z|=6的High列
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	// 置信度: min(0.95, 0.5 + 0.05*2 + 0.02*10) = 0.8
	assert.Equal(t, 0.8, findings[0].Confidence)
	// 行7: min(0.95, 0.5 + 0.05*1 + 0.02*10) = 0.75
	assert.Equal(t, 0.75, findings[1].Confidence)
}

// TestAggregateFindings_ConfidenceCeiling 测试行级置信度0.95封顶
func TestAggregateFindings_ConfidenceCeiling(t *testing.T) {
	var flags []CellFlag
	for i := 0; i < 20; i++ {
		flags = append(flags, flag(0, "col_"+string(rune('a'+i)), 9.0))
	}

	findings := AggregateFindings(flags, DefaultMaxFindings)
	require.NotEmpty(t, findings)
	assert.Equal(t, 0.95, findings[0].Confidence)
}

// TestAggregateFindings_MaxFindingsCap 测试行级结果数量截断
func TestAggregateFindings_MaxFindingsCap(t *testing.T) {
	var flags []CellFlag
	for row := 0; row < 80; row++ {
		flags = append(flags, flag(row, "v", 6.0))
	}

	findings := AggregateFindings(flags, 50)

	rowLevel := 0
	for _, f := range findings {
		if f.Kind == models.KindDataOutlier {
			rowLevel++
		}
	}
	assert.Equal(t, 50, rowLevel)
}

// TestAggregateFindings_BackfillToFive 测试回填规则：行级结果不足5条时补齐到5条
func TestAggregateFindings_BackfillToFive(t *testing.T) {
	// 单行6个离群列 -> 1条行级结果 + 4条回填列级结果
	flags := []CellFlag{
		flag(0, "a", 4.0),
		flag(0, "b", 5.0),
		flag(0, "c", 6.0),
		flag(0, "d", 7.0),
		flag(0, "e", 8.0),
		flag(0, "f", 9.0),
	}

	findings := AggregateFindings(flags, DefaultMaxFindings)
	require.Len(t, findings, 5)
	assert.Equal(t, models.KindDataOutlier, findings[0].Kind)

	// 回填按|z|降序
	assert.Equal(t, models.KindColumnOutlier, findings[1].Kind)
	assert.Equal(t, `Row 1, Column "f"`, findings[1].Location)
	assert.Equal(t, `Row 1, Column "e"`, findings[2].Location)
	assert.Equal(t, `Row 1, Column "d"`, findings[3].Location)
	assert.Equal(t, `Row 1, Column "c"`, findings[4].Location)
}

// TestAggregateFindings_BackfillExhausted 测试明细记录不足5条时回填到耗尽为止
func TestAggregateFindings_BackfillExhausted(t *testing.T) {
	flags := []CellFlag{flag(4, "v", 6.0)}

	findings := AggregateFindings(flags, DefaultMaxFindings)
	require.Len(t, findings, 2)
	assert.Equal(t, models.KindDataOutlier, findings[0].Kind)
	assert.True(t, strings.Contains(findings[0].Location, "Row 5"))
	assert.Equal(t, models.KindColumnOutlier, findings[1].Kind)
}

// TestAggregateFindings_Empty 测试无明细记录时返回空列表
func TestAggregateFindings_Empty(t *testing.T) {
	findings := AggregateFindings(nil, DefaultMaxFindings)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}
