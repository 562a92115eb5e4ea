package scan

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/pairrun/internal/domain"
)

// MissingInputError 表示输入文件不存在（或不是普通文件）。
// 只影响该文件本身：它不会产生任何 WorkUnit，其余输入照常处理。
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("输入文件不存在：%q：%v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// DuplicateBaseError 表示两个不同文件的 base name 相同。
// 输出文件名由 base name 拼出，放任它们会让不同的对写到同一路径，所以整体拒绝。
type DuplicateBaseError struct {
	Base  string
	Paths []string
}

func (e *DuplicateBaseError) Error() string {
	return fmt.Sprintf("%s：多个输入文件的 base name 都是 %q：%s", domain.ErrCodeDuplicateBaseName, e.Base, strings.Join(e.Paths, ", "))
}

// Options 控制输入解析。
type Options struct {
	// Sniff 为 true 时用 FASTA 解析器读一遍文件，记录首条序列 ID 与序列数；
	// 0 条序列的文件视为不可用。
	Sniff bool
}

// Resolved 是输入解析的结果：可用文件（保持输入顺序）+ 被剔除的问题输入。
type Resolved struct {
	Files    []domain.InputFile
	Problems []domain.InputResult
}

// ReadFileList 读取 -L 指定的列表文件：每行一个路径，忽略空行与 # 注释行。
func ReadFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveInputs 把原始路径列表规范化为 []domain.InputFile。
//
// 规则：
// - 相对路径相对 cwd；同一绝对路径重复出现只保留第一次
// - 不存在/不是普通文件：记为 missing，继续处理其余输入
// - 不同文件 base name 相同：返回 *DuplicateBaseError（整体失败）
// - 输出顺序与输入顺序一致（这决定了后续配对的规范顺序）
func ResolveInputs(cwd string, paths []string, opt Options, log zerolog.Logger) (Resolved, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	bases := make(map[string][]string, len(paths))

	res := Resolved{
		Files:    make([]domain.InputFile, 0, len(paths)),
		Problems: make([]domain.InputResult, 0),
	}

	for _, raw := range paths {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		abs := raw
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, abs)
		}
		abs = filepath.Clean(abs)

		if !seen.Add(abs) {
			log.Debug().Str("path", abs).Msg("重复输入，忽略")
			continue
		}

		if err := checkRegular(abs); err != nil {
			log.Warn().Err(err).Msg("输入被跳过")
			res.Problems = append(res.Problems, domain.InputResult{
				Path:      abs,
				Status:    domain.StatusMissing,
				ErrorCode: domain.ErrCodeInputMissing,
				ErrorMsg:  err.Error(),
			})
			continue
		}

		in := domain.InputFile{
			AbsPath: abs,
			Base:    baseName(abs),
		}

		if opt.Sniff {
			id, n, err := sniffFASTA(abs)
			if err == nil && n == 0 {
				err = errors.New("文件中没有任何 FASTA 记录")
			}
			if err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("输入不是可用的 FASTA，跳过")
				res.Problems = append(res.Problems, domain.InputResult{
					Path:      abs,
					Status:    domain.StatusMissing,
					ErrorCode: domain.ErrCodeInputEmpty,
					ErrorMsg:  err.Error(),
				})
				continue
			}
			in.FirstID = id
			in.Sequences = n
		}

		bases[in.Base] = append(bases[in.Base], abs)
		res.Files = append(res.Files, in)
	}

	// 报告第一个（按 base 排序）冲突，保证错误信息稳定。
	var dupBases []string
	for b, ps := range bases {
		if len(ps) > 1 {
			dupBases = append(dupBases, b)
		}
	}
	if len(dupBases) > 0 {
		sort.Strings(dupBases)
		return Resolved{}, &DuplicateBaseError{Base: dupBases[0], Paths: bases[dupBases[0]]}
	}

	log.Debug().Int("files", len(res.Files)).Int("problems", len(res.Problems)).Msg("输入解析完成")
	return res, nil
}

func checkRegular(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return &MissingInputError{Path: path, Err: err}
	}
	if !fi.Mode().IsRegular() {
		return &MissingInputError{Path: path, Err: fmt.Errorf("不是普通文件（%s）", fi.Mode().Type())}
	}
	return nil
}

// baseName 去掉目录与最后一个扩展名："/x/001R_FRG3G.fasta" -> "001R_FRG3G"。
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func sniffFASTA(path string) (firstID string, n int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	sc := seqio.NewScanner(fasta.NewReader(f, linear.NewSeq("", nil, alphabet.Protein)))
	for sc.Next() {
		if n == 0 {
			firstID = sc.Seq().Name()
		}
		n++
	}
	if err := sc.Error(); err != nil {
		return "", 0, err
	}
	return firstID, n, nil
}
