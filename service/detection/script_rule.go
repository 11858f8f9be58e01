/*
 * @module service/detection/script_rule
 * @description 自定义脚本规则引擎，基于Yaegi解释器对数据行执行用户定义的检测脚本
 * @architecture 解释器模式 - 脚本编译缓存与参数注入
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 脚本哈希查缓存 -> 未命中则编译 -> 逐行注入参数执行 -> 结果转换
 * @rules 脚本必须实现Run函数；脚本结果追加在确定性检测结果之后，不参与核心排名
 * @dependencies github.com/traefik/yaegi, crypto/sha1
 * @refs service/detection/tabular_detector.go
 */

package detection

import (
	"context"
	"crypto/sha1"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"datascan-service/service/models"
)

// ScriptRule 用户自定义检测规则
type ScriptRule struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

// CompiledScript 编译后的脚本，保存可执行函数
type CompiledScript struct {
	fn       func(map[string]interface{}) (interface{}, error)
	compiled time.Time // 编译时间
	hash     string    // 脚本哈希
}

// ScriptRuleEngine 脚本规则引擎，带编译缓存
type ScriptRuleEngine struct {
	mu    sync.RWMutex
	cache map[string]*CompiledScript
}

// NewScriptRuleEngine 创建脚本规则引擎
func NewScriptRuleEngine() *ScriptRuleEngine {
	return &ScriptRuleEngine{
		cache: make(map[string]*CompiledScript),
	}
}

// ApplyRules 对数据集逐行应用脚本规则，返回脚本产生的结果
// 任一规则编译或执行失败只记录跳过，不影响其余规则
func (e *ScriptRuleEngine) ApplyRules(ctx context.Context, rules []ScriptRule, ds *Dataset) []models.AnomalyFinding {
	findings := make([]models.AnomalyFinding, 0)
	if ds == nil || ds.RowCount == 0 {
		return findings
	}

	for _, rule := range rules {
		compiled, err := e.compileCached(rule.Script)
		if err != nil {
			continue
		}
		for row := 0; row < ds.RowCount; row++ {
			select {
			case <-ctx.Done():
				return findings
			default:
			}

			params := map[string]interface{}{
				"row":      rowValues(ds, row),
				"rowIndex": row + 1,
				"ruleName": rule.Name,
			}
			result, err := compiled.fn(params)
			if err != nil {
				continue
			}
			if finding, ok := findingFromScriptResult(result, row); ok {
				findings = append(findings, finding)
			}
		}
	}
	return findings
}

// compileCached 按脚本内容哈希缓存编译结果
func (e *ScriptRuleEngine) compileCached(script string) (*CompiledScript, error) {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	e.mu.RLock()
	compiled, ok := e.cache[hash]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := compileScript(script, hash)
	if err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	e.mu.Lock()
	e.cache[hash] = compiled
	e.mu.Unlock()
	return compiled, nil
}

// compileScript 编译脚本为可执行函数
func compileScript(script, hash string) (*CompiledScript, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本：要求脚本必须实现一个 Run 函数
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"math"
	"strings"
)

// 必须提供一个 Run 函数作为入口
func Run(params map[string]interface{}) (interface{}, error) {
	row, _ := params["row"].(map[string]interface{})
	rowIndex, _ := params["rowIndex"].(int)
	_ = row
	_ = rowIndex
	_ = fmt.Sprintf
	_ = math.Abs
	_ = strings.TrimSpace

	// 脚本内容
%s
}
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, err
	}

	v, err := i.Eval("main.Run")
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(map[string]interface{}) (interface{}, error))
	if !ok {
		return nil, fmt.Errorf("Run函数签名不正确")
	}

	return &CompiledScript{
		fn:       fn,
		compiled: time.Now(),
		hash:     hash,
	}, nil
}

// rowValues 构造注入脚本的行视图：数值列给float64，其余给原始文本
func rowValues(ds *Dataset, row int) map[string]interface{} {
	values := make(map[string]interface{}, len(ds.Columns))
	for i := range ds.Columns {
		col := &ds.Columns[i]
		if col.Type == ColumnNumeric && row < len(col.Cells) && col.Cells[row].Valid {
			values[col.Name] = col.Cells[row].Value
			continue
		}
		if row < len(col.Raw) {
			values[col.Name] = col.Raw[row]
		}
	}
	return values
}

// findingFromScriptResult 将脚本返回值转换为检测结果
// 约定：返回nil表示无结果；返回map时flag为true才产生结果
func findingFromScriptResult(result interface{}, row int) (models.AnomalyFinding, bool) {
	m, ok := result.(map[string]interface{})
	if !ok {
		return models.AnomalyFinding{}, false
	}
	flagged, _ := m["flag"].(bool)
	if !flagged {
		return models.AnomalyFinding{}, false
	}

	severity := models.SeverityLow
	if s, ok := m["severity"].(string); ok {
		switch models.Severity(s) {
		case models.SeverityMedium, models.SeverityHigh:
			severity = models.Severity(s)
		}
	}

	confidence := 0.5
	if c, ok := m["confidence"].(float64); ok {
		confidence = math.Max(0, math.Min(1, c))
	}

	description := "Custom rule flagged this row."
	if d, ok := m["description"].(string); ok && d != "" {
		description = d
	}

	location := fmt.Sprintf("Row %d", row+1)
	if col, ok := m["column"].(string); ok && col != "" {
		location = fmt.Sprintf("Row %d, Column %q", row+1, col)
	}

	return models.AnomalyFinding{
		Kind:        models.KindDataOutlier,
		Location:    location,
		Severity:    severity,
		Description: description,
		Confidence:  round2(confidence),
	}, true
}
