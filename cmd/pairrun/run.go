package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/pairrun/internal/app/run"
	"github.com/John-Robertt/pairrun/internal/config"
	"github.com/John-Robertt/pairrun/internal/domain"
	"github.com/John-Robertt/pairrun/internal/scan"
)

// execFlags 是 run 与 phmmer 共用的参数。
type execFlags struct {
	fileList    string
	overwrite   bool
	threads     int
	dryRun      bool
	report      string
	configPath  string
	failOnError bool
	noSniff     bool
}

func bindExecFlags(cmd *cobra.Command, f *execFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.fileList, "filelist", "L", "", "从文件读取输入路径（每行一个，# 开头为注释）")
	fs.BoolVarP(&f.overwrite, "overwrite", "o", false, "输出已存在时也重新计算")
	fs.IntVarP(&f.threads, "threads", "t", config.DefaultWorkers, "worker 数量")
	fs.BoolVar(&f.dryRun, "dry-run", false, "只规划，不执行也不写任何文件")
	fs.StringVar(&f.report, "report", "", "把 RunReport JSON 原子写入该路径")
	fs.StringVar(&f.configPath, "config", "", "配置文件路径（默认尝试 ./"+config.FileName+"）")
	fs.BoolVar(&f.failOnError, "fail-on-error", false, "有失败的 unit 或缺失的输入时以 1 退出")
	fs.BoolVar(&f.noSniff, "no-sniff", false, "不读取输入内容检查 FASTA 格式")
}

func (f *execFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	fs := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:   f.configPath,
		Workers:      f.threads,
		WorkersSet:   fs.Changed("threads"),
		Overwrite:    f.overwrite,
		OverwriteSet: fs.Changed("overwrite"),
		DryRun:       f.dryRun,
	}
}

func (a *app) runCmd() *cobra.Command {
	var (
		f         execFlags
		workDir   string
		algorithm string
	)
	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "对输入文件的全部无序对运行 needle/water",
		Example: `  pairrun run a.fasta b.fasta c.fasta -w out -t 4
  pairrun run -L inputs.txt -a water --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := f.cliArgs(cmd)
			cli.WorkDir, cli.WorkDirSet = workDir, cmd.Flags().Changed("workdir")
			cli.Algorithm, cli.AlgorithmSet = algorithm, cmd.Flags().Changed("algorithm")
			return a.execute(cmd.Context(), run.CommandPairwise, &f, cli, args)
		},
	}
	bindExecFlags(cmd, &f)
	cmd.Flags().StringVarP(&workDir, "workdir", "w", config.DefaultWorkDir, "输出目录")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(config.DefaultAlgorithm), "比对算法（needle 或 water）")
	return cmd
}

func (a *app) phmmerCmd() *cobra.Command {
	var (
		f         execFlags
		outDir    string
		database  string
		cpus      int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "phmmer [files...]",
		Short: "对每个输入文件运行一次 phmmer --tblout 搜索",
		Example: `  pairrun phmmer sp_species.7955.tfa --database uniprot_sprot.fasta --cpu 16 --outdir tbl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			cli := f.cliArgs(cmd)
			cli.OutDir, cli.OutDirSet = outDir, fs.Changed("outdir")
			cli.Database, cli.DatabaseSet = database, fs.Changed("database")
			cli.CPUs, cli.CPUsSet = cpus, fs.Changed("cpu")
			cli.ScoreThreshold, cli.ScoreThresholdSet = threshold, fs.Changed("score-threshold")
			return a.execute(cmd.Context(), run.CommandPhmmer, &f, cli, args)
		},
	}
	bindExecFlags(cmd, &f)
	cmd.Flags().StringVar(&outDir, "outdir", "", "tblout 输出目录（默认与 workdir 相同）")
	cmd.Flags().StringVar(&database, "database", "", "phmmer 目标数据库（FASTA）")
	cmd.Flags().IntVar(&cpus, "cpu", config.DefaultCPUs, "每个 phmmer 进程的线程数")
	cmd.Flags().Float64VarP(&threshold, "score-threshold", "T", 0, "只报告 score 不低于该值的命中")
	return cmd
}

func (a *app) execute(ctx context.Context, command string, f *execFlags, cli config.CLIArgs, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	cwdAbs, _ := filepath.Abs(cwd)

	paths := append([]string(nil), args...)
	if f.fileList != "" {
		listed, err := scan.ReadFileList(absFrom(cwdAbs, f.fileList))
		if err != nil {
			return usageError("读取输入列表失败：%v", err)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return usageError("没有输入文件（给出路径参数或 -L 列表文件）")
	}

	eff, err := config.LoadEffective(cwdAbs, cli)
	if err != nil {
		a.emitReport(failedReport(command, cwdAbs, f.dryRun, err))
		return &exitError{code: 1}
	}

	progressW, interactive := a.pickProgressWriter()
	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		obs = ui
	}

	deps := run.Deps{Runner: a.runner, Log: a.log, Observer: obs}
	opt := scan.Options{Sniff: !f.noSniff}

	var rr domain.RunReport
	switch command {
	case run.CommandPhmmer:
		rr, err = run.ExecutePhmmer(ctx, eff, paths, opt, deps)
	default:
		rr, err = run.ExecutePairwise(ctx, eff, paths, opt, deps)
	}
	if ui != nil {
		ui.Stop()
	}
	if err != nil {
		outDir := eff.WorkDir
		if command == run.CommandPhmmer {
			outDir = eff.Phmmer.OutDir
		}
		a.emitReport(failedReport(command, outDir, eff.DryRun, err))
		return &exitError{code: 1}
	}

	// dry-run 禁止落盘，--report 也不例外。
	if f.report != "" {
		if eff.DryRun {
			a.log.Warn().Str("report", f.report).Msg("dry-run 不写入 report 文件")
		} else if err := writeReportFile(absFrom(cwdAbs, f.report), rr); err != nil {
			a.emitReport(rr)
			return &exitError{code: 1, err: err}
		}
	}

	a.emitReport(rr)
	if interactive {
		a.emitLocations(progressW, rr, f.report)
	}
	if f.failOnError && rr.Summary.HasProblems() {
		return &exitError{code: 1}
	}
	return nil
}

// errorCode 把整体失败映射为报告里的 error_code。
func errorCode(err error) string {
	if c := config.Code(err); c != "" {
		return c
	}
	var dup *scan.DuplicateBaseError
	if errors.As(err, &dup) {
		return domain.ErrCodeDuplicateBaseName
	}
	var miss *scan.MissingInputError
	if errors.As(err, &miss) {
		return domain.ErrCodeInputMissing
	}
	return domain.ErrCodeIOFailed
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
