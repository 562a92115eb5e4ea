package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"

	"github.com/John-Robertt/pairrun/internal/domain"
	"github.com/John-Robertt/pairrun/internal/infra/fsx"
)

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：total=%d succeeded=%d skipped=%d failed=%d planned=%d missing=%d",
		s.Total, s.Succeeded, s.Skipped, s.Failed, s.Planned, s.Missing,
	)
}

// emitReport 遵守输出契约：stdout 非 TTY 时只输出一个 RunReport JSON；摘要与问题明细总是写 stderr。
func (a *app) emitReport(rr domain.RunReport) {
	if !isTTY(a.stdout) {
		enc := json.NewEncoder(a.stdout)
		_ = enc.Encode(rr)
	}

	line := summaryLine(rr)
	switch {
	case rr.ErrorCode != "":
		fmt.Fprintln(a.stderr, color.Red.Sprintf("%s: %s", rr.ErrorCode, rr.ErrorMsg))
	case rr.Summary.HasProblems():
		fmt.Fprintln(a.stderr, color.Yellow.Sprint(line))
	default:
		fmt.Fprintln(a.stderr, color.Green.Sprint(line))
	}

	for _, in := range rr.Inputs {
		if in.Status != domain.StatusMissing {
			continue
		}
		fmt.Fprintf(a.stderr, "%s %s: %s\n", in.Path, in.ErrorCode, in.ErrorMsg)
	}
	for _, u := range rr.Units {
		if u.Status != domain.StatusFailed {
			continue
		}
		fmt.Fprintf(a.stderr, "%s %s: %s\n", u.Label, u.ErrorCode, truncate(u.ErrorMsg, 200))
	}
}

// failedReport 为整体无法开始的运行构造一个只含错误的报告。
func failedReport(command, workDir string, dryRun bool, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Command:    command,
		WorkDir:    workDir,
		DryRun:     dryRun,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  errorCode(err),
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func (a *app) pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(a.stderr) {
		return a.stderr, true
	}
	if isTTY(a.stdout) {
		return a.stdout, true
	}
	return nil, false
}

func (a *app) emitLocations(w io.Writer, rr domain.RunReport, report string) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "out: %s\n", rr.WorkDir)
	if report != "" && !rr.DryRun {
		if abs, err := filepath.Abs(report); err == nil {
			report = abs
		}
		fmt.Fprintf(w, "report: %s\n", report)
	}
}
