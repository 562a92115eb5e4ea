// Package hmmer 读取 phmmer --tblout 的逐序列命中表。
package hmmer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Hit 是一行命中：query 序列（cafaid）对 UniProt 条目的搜索结果。
type Hit struct {
	File      string  `parquet:"file"`
	CafaID    string  `parquet:"cafaid"`
	DB        string  `parquet:"db"`
	ProteinID string  `parquet:"proteinid"`
	Protein   string  `parquet:"protein"`
	Species   string  `parquet:"species"`
	EValue    float64 `parquet:"evalue"`
	Score     float64 `parquet:"score"`
	Bias      float64 `parquet:"bias"`
}

// ParseError 指出 tblout 中无法解析的行。
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析 %s 第 %d 行失败：%s", e.Path, e.Line, e.Msg)
}

// 列：target t-acc query q-acc evalue score bias ...
const minFields = 7

// ParseFile 打开并解析一个 tblout 文件。
func ParseFile(path string, log zerolog.Logger) ([]Hit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f, log)
}

// Parse 跳过空行与 '#' 注释行，逐行按空白切分。
func Parse(name string, r io.Reader, log zerolog.Logger) ([]Hit, error) {
	var hits []Hit

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		h, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{Path: name, Line: lineNo, Msg: err.Error()}
		}
		h.File = name
		hits = append(hits, h)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	log.Debug().Str("file", name).Int("hits", len(hits)).Msg("tblout 解析完成")
	return hits, nil
}

func parseLine(line string) (Hit, error) {
	fs := strings.Fields(line)
	if len(fs) < minFields {
		return Hit{}, fmt.Errorf("只有 %d 列，至少需要 %d 列", len(fs), minFields)
	}

	var h Hit
	var err error
	if h.DB, h.ProteinID, h.Protein, h.Species, err = splitTarget(fs[0]); err != nil {
		return Hit{}, err
	}
	h.CafaID = fs[2]

	if h.EValue, err = strconv.ParseFloat(fs[4], 64); err != nil {
		return Hit{}, fmt.Errorf("E-value %q 无效", fs[4])
	}
	if h.Score, err = strconv.ParseFloat(fs[5], 64); err != nil {
		return Hit{}, fmt.Errorf("score %q 无效", fs[5])
	}
	if h.Bias, err = strconv.ParseFloat(fs[6], 64); err != nil {
		return Hit{}, fmt.Errorf("bias %q 无效", fs[6])
	}
	return h, nil
}

// splitTarget 拆分 "sp|P12345|ABC1_HUMAN"。
func splitTarget(t string) (db, id, protein, species string, err error) {
	parts := strings.Split(t, "|")
	if len(parts) != 3 {
		return "", "", "", "", fmt.Errorf("target %q 不是 db|proteinid|protein_species 形式", t)
	}
	protein, species, ok := strings.Cut(parts[2], "_")
	if !ok {
		return "", "", "", "", fmt.Errorf("target %q 缺少物种后缀", t)
	}
	return parts[0], parts[1], protein, species, nil
}
