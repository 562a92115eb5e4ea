package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusSucceeded = "succeeded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusPlanned   = "planned"
	StatusMissing   = "missing"
)

const (
	ErrCodeExecFailed        = "exec_failed"
	ErrCodeStartFailed       = "start_failed"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeInputMissing      = "input_missing"
	ErrCodeInputEmpty        = "input_empty"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeDuplicateBaseName = "duplicate_base_name"
)

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	RunID     string `json:"run_id"`
	Command   string `json:"command"`
	Algorithm string `json:"algorithm,omitempty"`
	WorkDir   string `json:"workdir"`
	DryRun    bool   `json:"dry_run"`
	Overwrite bool   `json:"overwrite"`
	Workers   int    `json:"workers"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// 整体无法开始时（配置错误、base name 冲突）填写；此时 units 为空。
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Summary ReportSummary `json:"summary"`
	Inputs  []InputResult `json:"inputs"`
	Units   []UnitResult  `json:"units"`
}

type ReportSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Planned   int `json:"planned"`
	Missing   int `json:"missing"`
}

// UnitResult 是单个 WorkUnit 的执行结果。
type UnitResult struct {
	Index  int      `json:"index"`
	Worker int      `json:"worker"`
	Label  string   `json:"label"`
	Output string   `json:"output"`
	Args   []string `json:"args"`

	Status    string `json:"status"`
	ExitCode  int    `json:"exit_code"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	DurationMS int64 `json:"duration_ms"`
}

// HasProblems 报告本次运行是否有失败的 unit 或缺失的输入。
func (s ReportSummary) HasProblems() bool { return s.Failed > 0 || s.Missing > 0 }

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) units 按 Index 稳定排序；inputs 按 path 排序
// 3) summary 由 units/inputs 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Inputs == nil {
		r.Inputs = []InputResult{}
	}
	if r.Units == nil {
		r.Units = []UnitResult{}
	}

	sort.SliceStable(r.Units, func(i, j int) bool { return r.Units[i].Index < r.Units[j].Index })
	sort.SliceStable(r.Inputs, func(i, j int) bool { return r.Inputs[i].Path < r.Inputs[j].Path })

	s := ReportSummary{Total: len(r.Units)}
	for _, u := range r.Units {
		switch u.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusPlanned:
			s.Planned++
		}
	}
	for _, in := range r.Inputs {
		if in.Status == StatusMissing {
			s.Missing++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性；当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
