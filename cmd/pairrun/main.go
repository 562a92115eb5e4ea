package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/pairrun/internal/app/run"
)

// exitError 让子命令决定进程退出码；err 为空表示结果已经输出过，不再重复打印。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

// app 持有一次 CLI 调用的状态。logger 在 PersistentPreRunE 中构造后显式传给下游。
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    zerolog.Logger

	// runner 为空时使用真实的 os/exec。
	runner run.Runner

	logLevel string
	debug    bool
	verbose  bool
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.main(os.Args[1:]))
}

func (a *app) main(args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(a.stderr, "错误：%v\n", ee.err)
		}
		return ee.code
	}
	// cobra 自身的错误（未知命令、参数个数、flag 解析）都是用法错误。
	fmt.Fprintf(a.stderr, "参数错误：%v\n", err)
	return 2
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pairrun",
		Short: "批量运行 EMBOSS needle/water 全配对比对与 phmmer 搜索",
		Long: `pairrun 为输入的序列文件生成全部无序对，按 round-robin 分给固定数量的 worker，
调用 needle 或 water 计算比对；已存在的输出默认跳过，因此中断后可直接重跑。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogger()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "warn", "日志级别（trace, debug, info, warn, error）")
	pf.BoolVarP(&a.debug, "debug", "d", false, "debug 日志（等价于 --log-level debug）")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "info 日志（等价于 --log-level info）")

	root.AddCommand(
		a.runCmd(),
		a.phmmerCmd(),
		a.statsCmd(),
		a.hitsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) setupLogger() error {
	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil || level == zerolog.NoLevel {
		return usageError("无效的日志级别 %q", a.logLevel)
	}
	if a.verbose && level > zerolog.InfoLevel {
		level = zerolog.InfoLevel
	}
	if a.debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	w := zerolog.ConsoleWriter{
		Out:        a.stderr,
		TimeFormat: "15:04:05",
		NoColor:    !isTTY(a.stderr),
	}
	a.log = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
