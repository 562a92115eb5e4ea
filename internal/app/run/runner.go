package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Outcome 是一次外部命令的结果。
type Outcome struct {
	ExitCode int
	Stderr   string // 末尾一段 stderr，仅用于报告/日志
}

// Runner 抽象外部命令执行，便于测试替换。
//
// Run 返回 err != nil 表示命令没能启动（找不到可执行文件、权限不足等）；
// 命令启动后的非 0 退出码通过 Outcome.ExitCode 表达，不算 err。
type Runner interface {
	Run(ctx context.Context, args []string) (Outcome, error)
}

// maxStderr 是保留的 stderr 尾部长度。
const maxStderr = 2048

// ExecRunner 通过 os/exec 直接执行参数向量（不经过 shell）。
// stdout 被丢弃：needle/water 写 -outfile，phmmer 写 --tblout。
type ExecRunner struct {
	Log zerolog.Logger
}

func (r ExecRunner) Run(ctx context.Context, args []string) (Outcome, error) {
	if len(args) == 0 {
		return Outcome{}, errors.New("空命令")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Outcome{Stderr: tail(stderr.String(), maxStderr)}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			out.ExitCode = ee.ExitCode()
			r.Log.Debug().Strs("args", args).Int("exit_code", out.ExitCode).Msg("命令返回非 0")
			return out, nil
		}
		return out, err
	}
	r.Log.Debug().Strs("args", args).Int("exit_code", 0).Msg("命令完成")
	return out, nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
