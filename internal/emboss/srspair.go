// Package emboss 解析 needle/water 默认 srspair 输出的头部统计。
package emboss

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PairStat 是一个比对结果文件的头部摘要。
type PairStat struct {
	File       string  `parquet:"file"`
	Seq1       string  `parquet:"seq1"`
	Seq2       string  `parquet:"seq2"`
	Length     int64   `parquet:"length"`
	Identity   int64   `parquet:"identity"`
	Similarity int64   `parquet:"similarity"`
	Gaps       int64   `parquet:"gaps"`
	Score      float64 `parquet:"score"`
	PIdent     float64 `parquet:"pident"`
	PSimil     float64 `parquet:"psimil"`
}

// ParseError 表示结果文件不完整或格式不符（例如外部工具中途被杀留下的半截输出）。
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("解析 %s 第 %d 行失败：%s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("解析 %s 失败：%s", e.Path, e.Msg)
}

// required 是头部必须出现的键。
var required = []string{"1", "2", "Length", "Identity", "Similarity", "Gaps", "Score"}

// ParseFile 打开并解析一个 srspair 文件。
func ParseFile(path string) (PairStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return PairStat{}, err
	}
	defer f.Close()

	st, err := Parse(path, f)
	if err != nil {
		return PairStat{}, err
	}
	st.File = path
	return st, nil
}

// Parse 读取第一个比对块的头部（"# Key: value" 行），按键取值而不是按固定行号。
// 多对比对只取第一块：pairrun 每个文件只有一对序列。
func Parse(name string, r io.Reader) (PairStat, error) {
	var (
		st     PairStat
		seen   = make(map[string]bool, len(required))
		inHead bool
		lineNo int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if !strings.HasPrefix(line, "#") {
			if inHead {
				break
			}
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if strings.HasPrefix(body, "Aligned_sequences:") {
			inHead = true
			continue
		}
		if !inHead {
			continue
		}
		if strings.HasPrefix(body, "=====") && seen["Score"] {
			break
		}

		key, val, ok := strings.Cut(body, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		var err error
		switch key {
		case "1":
			st.Seq1 = firstField(val)
		case "2":
			st.Seq2 = firstField(val)
		case "Length":
			st.Length, err = strconv.ParseInt(val, 10, 64)
		case "Identity":
			st.Identity, err = numerator(val)
		case "Similarity":
			st.Similarity, err = numerator(val)
		case "Gaps":
			st.Gaps, err = numerator(val)
		case "Score":
			st.Score, err = strconv.ParseFloat(val, 64)
		default:
			continue
		}
		if err != nil {
			return PairStat{}, &ParseError{Path: name, Line: lineNo, Msg: fmt.Sprintf("%s 的值 %q 无效", key, val)}
		}
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return PairStat{}, err
	}

	if !inHead {
		return PairStat{}, &ParseError{Path: name, Msg: "没有找到 Aligned_sequences 头部"}
	}
	for _, k := range required {
		if !seen[k] {
			return PairStat{}, &ParseError{Path: name, Msg: fmt.Sprintf("头部缺少 %s", k)}
		}
	}
	if st.Length <= 0 {
		return PairStat{}, &ParseError{Path: name, Msg: "Length 必须为正数"}
	}

	st.PIdent = ratio(st.Identity, st.Length)
	st.PSimil = ratio(st.Similarity, st.Length)
	return st, nil
}

// numerator 从 "16/564 ( 2.8%)" 中取出 16。
func numerator(v string) (int64, error) {
	n, _, ok := strings.Cut(firstField(v), "/")
	if !ok {
		return 0, fmt.Errorf("缺少 '/'")
	}
	return strconv.ParseInt(n, 10, 64)
}

func firstField(v string) string {
	fs := strings.Fields(v)
	if len(fs) == 0 {
		return ""
	}
	return fs[0]
}

// ratio 保留三位小数。
func ratio(n, d int64) float64 {
	v := float64(n) / float64(d)
	return float64(int64(v*1000+0.5)) / 1000
}
