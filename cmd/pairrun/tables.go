package main

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/pairrun/internal/config"
	"github.com/John-Robertt/pairrun/internal/domain"
	"github.com/John-Robertt/pairrun/internal/emboss"
	"github.com/John-Robertt/pairrun/internal/hmmer"
	"github.com/John-Robertt/pairrun/internal/tabular"
)

type tableFlags struct {
	format string
	out    string
}

func bindTableFlags(cmd *cobra.Command, f *tableFlags) {
	cmd.Flags().StringVar(&f.format, "format", string(tabular.FormatTSV), "输出格式（tsv 或 parquet）")
	cmd.Flags().StringVar(&f.out, "out", "", "输出文件（默认 stdout）")
}

func (a *app) statsCmd() *cobra.Command {
	var (
		tf         tableFlags
		ext        string
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "stats [workdir]",
		Short: "汇总 workdir 中比对结果的头部统计（identity、similarity、gaps、score）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := tabular.ParseFormat(tf.format)
			if err != nil {
				return usageError("%v", err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			cli := config.CLIArgs{ConfigPath: configPath}
			if len(args) == 1 {
				cli.WorkDir, cli.WorkDirSet = args[0], true
			}
			if cmd.Flags().Changed("ext") {
				cli.Algorithm, cli.AlgorithmSet = ext, true
			}
			eff, err := config.LoadEffective(cwd, cli)
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			files, err := filepath.Glob(filepath.Join(eff.WorkDir, "*."+eff.Algorithm.Ext()))
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			sort.Strings(files)
			if len(files) == 0 {
				a.log.Warn().Str("workdir", eff.WorkDir).Str("ext", eff.Algorithm.Ext()).Msg("没有找到结果文件")
			}

			rows := make([]emboss.PairStat, 0, len(files))
			bad := 0
			for _, p := range files {
				st, err := emboss.ParseFile(p)
				if err != nil {
					// 半截输出（工具被中断）在这里暴露；用 -o 重跑对应的对即可修复。
					a.log.Warn().Err(err).Str("file", p).Msg("跳过无法解析的结果文件")
					bad++
					continue
				}
				rows = append(rows, st)
			}
			a.log.Info().Int("files", len(files)).Int("rows", len(rows)).Int("bad", bad).Msg("stats 完成")

			return writeTableTo(a, format, tf.out, cwd, rows)
		},
	}
	bindTableFlags(cmd, &tf)
	cmd.Flags().StringVar(&ext, "ext", string(domain.AlgorithmNeedle), "结果文件扩展名（needle 或 water）")
	cmd.Flags().StringVar(&configPath, "config", "", "配置文件路径（默认尝试 ./"+config.FileName+"）")
	return cmd
}

func (a *app) hitsCmd() *cobra.Command {
	var tf tableFlags
	cmd := &cobra.Command{
		Use:   "hits <tblout...>",
		Short: "把 phmmer --tblout 文件合并为一张命中表",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := tabular.ParseFormat(tf.format)
			if err != nil {
				return usageError("%v", err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			var rows []hmmer.Hit
			for _, p := range args {
				hits, err := hmmer.ParseFile(absFrom(cwd, p), a.log)
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				rows = append(rows, hits...)
			}
			a.log.Info().Int("files", len(args)).Int("hits", len(rows)).Msg("hits 完成")

			return writeTableTo(a, format, tf.out, cwd, rows)
		},
	}
	bindTableFlags(cmd, &tf)
	return cmd
}

func writeTableTo[T any](a *app, format tabular.Format, out, cwd string, rows []T) error {
	if out == "" || out == "-" {
		if format == tabular.FormatParquet && isTTY(a.stdout) {
			return usageError("parquet 不能直接写到终端，请使用 --out")
		}
		if err := tabular.Write(a.stdout, format, rows); err != nil {
			return &exitError{code: 1, err: err}
		}
		return nil
	}
	if err := tabular.WriteFile(absFrom(cwd, out), format, rows); err != nil {
		return &exitError{code: 1, err: err}
	}
	return nil
}
