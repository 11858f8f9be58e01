/*
 * @module service/detection/script_rule_test
 * @description 脚本规则引擎单元测试，验证脚本编译缓存、参数注入与结果转换
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 构造规则脚本 -> 逐行应用 -> 结果断言
 * @rules 编译失败的规则跳过不报错；flag为true才产生结果
 * @dependencies testing, testify
 * @refs script_rule.go
 */

package detection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

const amountRuleScript = `
	if v, ok := row["amount"].(float64); ok && v > 100 {
		return map[string]interface{}{
			"flag":        true,
			"severity":    "High",
			"confidence":  0.9,
			"column":      "amount",
			"description": "Amount exceeds business limit.",
		}, nil
	}
	return nil, nil
`

// TestApplyRules_FlagsMatchingRows 测试规则命中行产生结果
func TestApplyRules_FlagsMatchingRows(t *testing.T) {
	engine := NewScriptRuleEngine()
	ds := NewDataset([]string{"amount"}, [][]string{{"10"}, {"500"}, {"50"}})

	rules := []ScriptRule{{Name: "amount_limit", Script: amountRuleScript}}
	findings := engine.ApplyRules(context.Background(), rules, ds)

	require.Len(t, findings, 1)
	assert.Equal(t, models.KindDataOutlier, findings[0].Kind)
	assert.Equal(t, `Row 2, Column "amount"`, findings[0].Location)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 0.9, findings[0].Confidence)
	assert.Equal(t, "Amount exceeds business limit.", findings[0].Description)
}

// TestApplyRules_Defaults 测试脚本只返回flag时使用默认严重程度与置信度
func TestApplyRules_Defaults(t *testing.T) {
	engine := NewScriptRuleEngine()
	ds := NewDataset([]string{"v"}, [][]string{{"1"}})

	rules := []ScriptRule{{Name: "always", Script: `
		return map[string]interface{}{"flag": true}, nil
	`}}
	findings := engine.ApplyRules(context.Background(), rules, ds)

	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityLow, findings[0].Severity)
	assert.Equal(t, 0.5, findings[0].Confidence)
	assert.Equal(t, "Row 1", findings[0].Location)
}

// TestApplyRules_InvalidScriptSkipped 测试编译失败的规则被跳过，不影响其余规则
func TestApplyRules_InvalidScriptSkipped(t *testing.T) {
	engine := NewScriptRuleEngine()
	ds := NewDataset([]string{"amount"}, [][]string{{"200"}})

	rules := []ScriptRule{
		{Name: "broken", Script: `this is not go code`},
		{Name: "amount_limit", Script: amountRuleScript},
	}
	findings := engine.ApplyRules(context.Background(), rules, ds)
	assert.Len(t, findings, 1)
}

// TestApplyRules_CacheReuse 测试同一脚本重复应用命中编译缓存
func TestApplyRules_CacheReuse(t *testing.T) {
	engine := NewScriptRuleEngine()
	ds := NewDataset([]string{"amount"}, [][]string{{"500"}})
	rules := []ScriptRule{{Name: "amount_limit", Script: amountRuleScript}}

	first := engine.ApplyRules(context.Background(), rules, ds)
	second := engine.ApplyRules(context.Background(), rules, ds)
	assert.Equal(t, first, second)
	assert.Len(t, engine.cache, 1)
}

// TestApplyRules_ContextCancelled 测试取消后立即返回已产生的结果
func TestApplyRules_ContextCancelled(t *testing.T) {
	engine := NewScriptRuleEngine()
	ds := NewDataset([]string{"amount"}, [][]string{{"500"}, {"600"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	findings := engine.ApplyRules(ctx, []ScriptRule{{Name: "amount_limit", Script: amountRuleScript}}, ds)
	assert.Empty(t, findings)
}
