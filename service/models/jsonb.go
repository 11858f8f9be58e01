/*
 * @module service/models/jsonb
 * @description JSONB字段类型，封装GORM模型中JSON列的序列化与反序列化
 * @architecture 数据访问层 - 模型字段类型
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 数据库读取 -> Scan反序列化；模型写入 -> Value序列化
 * @rules nil值写入数据库NULL，非法列值返回类型断言错误
 * @dependencies database/sql/driver, encoding/json
 * @refs service/models/scan.go, service/models/finding.go
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// 通用 JSON 类型
type JSONB map[string]interface{}

// JSONBArray 用于存储对象数组的 JSONB 类型
type JSONBArray []JSONB

// FindingArray 用于存储检测结果数组的 JSONB 类型
type FindingArray []AnomalyFinding

func scanJSONBBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("类型断言失败: 不是 []byte 或 string")
	}
}

// 实现 Scanner 接口
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanJSONBBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// 实现 Valuer 接口
func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONBArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanJSONBBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONBArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (f *FindingArray) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	bytes, err := scanJSONBBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, f)
}

func (f FindingArray) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}
