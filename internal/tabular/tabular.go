// Package tabular 把结构体切片写成 TSV 或 Parquet 表。
//
// 列名取自字段的 `parquet` tag，两种格式共用一套列定义。
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/John-Robertt/pairrun/internal/infra/fsx"
)

type Format string

const (
	FormatTSV     Format = "tsv"
	FormatParquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTSV:
		return FormatTSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("未知的输出格式 %q（可选 tsv、parquet）", s)
	}
}

// Write 把 rows 以 format 写入 w。
func Write[T any](w io.Writer, format Format, rows []T) error {
	switch format {
	case FormatParquet:
		return writeParquet(w, rows)
	default:
		return writeTSV(w, rows)
	}
}

// WriteFile 原子写入 path（先写临时文件再 rename）。
func WriteFile[T any](path string, format Format, rows []T) error {
	var buf bytes.Buffer
	if err := Write(&buf, format, rows); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), buf.Bytes())
}

func writeParquet[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("写 parquet 失败：%w", err)
	}
	return pw.Close()
}

type column struct {
	name  string
	index int
}

func columnsOf(t reflect.Type) []column {
	cols := make([]column, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("parquet"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func writeTSV[T any](w io.Writer, rows []T) error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("tsv 只支持结构体行，得到 %s", t)
	}
	cols := columnsOf(t)

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(cols))
	for _, row := range rows {
		v := reflect.ValueOf(row)
		for i, c := range cols {
			rec[i] = formatValue(v.Field(c.index))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprint(v.Interface())
	}
}
