package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/John-Robertt/pairrun/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// FileName 是在 cwd 下自动发现的配置文件名。
	FileName = "pairrun.toml"

	DefaultWorkDir   = "~/work/cafa4-play/seqout"
	DefaultWorkers   = 2
	DefaultAlgorithm = domain.AlgorithmNeedle
	DefaultCPUs      = 1

	// MaxWorkers 是 worker 数的上限；超出截断。
	MaxWorkers = 256
)

// CLIArgs 是命令行给出的覆盖项，XxxSet 记录“是否显式指定”。
// 这能保证覆盖优先级可实现：例如 --overwrite=false 必须能覆盖 overwrite = true。
type CLIArgs struct {
	ConfigPath string

	WorkDir    string
	WorkDirSet bool

	Workers    int
	WorkersSet bool

	Algorithm    string
	AlgorithmSet bool

	Overwrite    bool
	OverwriteSet bool

	DryRun bool

	OutDir    string
	OutDirSet bool

	Database    string
	DatabaseSet bool

	CPUs    int
	CPUsSet bool

	ScoreThreshold    float64
	ScoreThresholdSet bool
}

// FileConfig 对应 pairrun.toml 的解析结构。
type FileConfig struct {
	Run    RunSection    `toml:"run"`
	Tools  ToolsSection  `toml:"tools"`
	Phmmer PhmmerSection `toml:"phmmer"`
}

type RunSection struct {
	WorkDir   string `toml:"workdir"`
	Workers   int    `toml:"workers"`
	Algorithm string `toml:"algorithm"`
	Overwrite *bool  `toml:"overwrite"`
}

type ToolsSection struct {
	Needle string `toml:"needle"`
	Water  string `toml:"water"`
	Phmmer string `toml:"phmmer"`
}

type PhmmerSection struct {
	Database       string   `toml:"database"`
	CPUs           int      `toml:"cpus"`
	ScoreThreshold *float64 `toml:"score_threshold"`
	OutDir         string   `toml:"outdir"`
}

// Tools 是外部可执行文件的路径（或 PATH 中的名字）。
type Tools struct {
	Needle string
	Water  string
	Phmmer string
}

// For 返回比对算法对应的可执行文件。
func (t Tools) For(a domain.Algorithm) string {
	switch a {
	case domain.AlgorithmWater:
		return t.Water
	default:
		return t.Needle
	}
}

type Phmmer struct {
	Database       string
	CPUs           int
	ScoreThreshold *float64
	OutDir         string
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（下游直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；未读取则为空
	Cwd        string // 相对输入路径的解析基准

	WorkDir   string
	Workers   int
	Algorithm domain.Algorithm
	Overwrite bool
	DryRun    bool

	Tools  Tools
	Phmmer Phmmer
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) --config 给出：必须存在
// 2) 否则尝试 <cwd>/pairrun.toml（可选）
//
// 覆盖优先级：CLI 显式指定 > 配置文件 > 内置默认。
// 相对路径一律相对 cwd 解析；"~" 展开为用户目录。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if !exists {
		cfgPath = ""
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	var errs *multierror.Error

	workdir := DefaultWorkDir
	if cli.WorkDirSet {
		workdir = cli.WorkDir
	} else if strings.TrimSpace(fc.Run.WorkDir) != "" {
		workdir = fc.Run.WorkDir
	}
	workdirAbs, err := resolvePath(cwdAbs, workdir)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("workdir 无效：%w", err))
	}

	workers := fc.Run.Workers
	if cli.WorkersSet {
		workers = cli.Workers
	}
	if workers == 0 {
		workers = DefaultWorkers
	}
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	algName := string(DefaultAlgorithm)
	if cli.AlgorithmSet {
		algName = cli.Algorithm
	} else if strings.TrimSpace(fc.Run.Algorithm) != "" {
		algName = fc.Run.Algorithm
	}
	alg, err := domain.ParseAlgorithm(algName)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	overwrite := false
	if cli.OverwriteSet {
		overwrite = cli.Overwrite
	} else if fc.Run.Overwrite != nil {
		overwrite = *fc.Run.Overwrite
	}

	tools := Tools{
		Needle: orDefault(fc.Tools.Needle, domain.AlgorithmNeedle.Tool()),
		Water:  orDefault(fc.Tools.Water, domain.AlgorithmWater.Tool()),
		Phmmer: orDefault(fc.Tools.Phmmer, "phmmer"),
	}

	ph := Phmmer{
		Database:       strings.TrimSpace(fc.Phmmer.Database),
		CPUs:           fc.Phmmer.CPUs,
		ScoreThreshold: fc.Phmmer.ScoreThreshold,
		OutDir:         strings.TrimSpace(fc.Phmmer.OutDir),
	}
	if cli.DatabaseSet {
		ph.Database = strings.TrimSpace(cli.Database)
	}
	if cli.CPUsSet {
		ph.CPUs = cli.CPUs
	}
	if cli.ScoreThresholdSet {
		v := cli.ScoreThreshold
		ph.ScoreThreshold = &v
	}
	if cli.OutDirSet {
		ph.OutDir = cli.OutDir
	}
	if ph.CPUs == 0 {
		ph.CPUs = DefaultCPUs
	}
	if ph.CPUs < 0 {
		errs = multierror.Append(errs, fmt.Errorf("phmmer.cpus 不能为负数：%d", ph.CPUs))
	}
	if ph.Database != "" {
		if p, err := resolvePath(cwdAbs, ph.Database); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("phmmer.database 无效：%w", err))
		} else {
			ph.Database = p
		}
	}
	if ph.OutDir == "" {
		ph.OutDir = workdirAbs
	} else if p, err := resolvePath(cwdAbs, ph.OutDir); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("phmmer.outdir 无效：%w", err))
	} else {
		ph.OutDir = p
	}

	if errs != nil {
		errs.ErrorFormat = joinErrors
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errs}
	}

	return EffectiveConfig{
		ConfigPath: cfgPath,
		Cwd:        cwdAbs,
		WorkDir:    workdirAbs,
		Workers:    workers,
		Algorithm:  alg,
		Overwrite:  overwrite,
		DryRun:     cli.DryRun,
		Tools:      tools,
		Phmmer:     ph,
	}, nil
}

// RequirePhmmerDatabase 校验 phmmer 子命令必需的 database。
func (c EffectiveConfig) RequirePhmmerDatabase() error {
	if c.Phmmer.Database == "" {
		return &Error{Code: ErrCodeInvalid, Path: c.ConfigPath, Err: fmt.Errorf("phmmer.database 未配置（--database 或 [phmmer] database）")}
	}
	return nil
}

func joinErrors(es []error) string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "；")
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// resolvePath 展开 "~" 并转为 clean + absolute。
func resolvePath(cwdAbs, p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("路径不能为空")
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return absCleanFrom(cwdAbs, p), nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）；未知字段视为错误。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return FileConfig{}, true, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return FileConfig{}, true, fmt.Errorf("未知字段：%s", strings.Join(keys, ", "))
	}
	return fc, true, nil
}
