package domain

import (
	"fmt"
	"strings"
)

// Algorithm 选择 EMBOSS 的比对程序。两者参数完全一致，只有可执行文件名与输出扩展名不同。
type Algorithm string

const (
	// AlgorithmNeedle 是 Needleman-Wunsch 全局比对（相近长度序列的同源性比较）。
	AlgorithmNeedle Algorithm = "needle"
	// AlgorithmWater 是 Smith-Waterman 局部比对（保守结构域/motif）。
	AlgorithmWater Algorithm = "water"
)

// 固定的比对参数。
const (
	GapOpen   = "10.0"
	GapExtend = "0.5"
)

// ParseAlgorithm 解析 needle|water（大小写不敏感）。
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case AlgorithmNeedle:
		return AlgorithmNeedle, nil
	case AlgorithmWater:
		return AlgorithmWater, nil
	case "":
		return "", fmt.Errorf("algorithm 不能为空")
	default:
		return "", fmt.Errorf("algorithm 只能是 needle 或 water，实际是 %q", s)
	}
}

// Tool 返回默认可执行文件名。
func (a Algorithm) Tool() string { return string(a) }

// Ext 返回结果文件扩展名（不含点）。
func (a Algorithm) Ext() string { return string(a) }
