package run

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/pairrun/internal/domain"
	"github.com/John-Robertt/pairrun/internal/infra/fsx"
)

// Worker 持有一段固定的 WorkUnit 队列，并严格按分配顺序串行执行。
//
// 生命周期：创建 → 填充（Partition）→ 启动 → join → 丢弃。
// Worker 之间没有共享的可变状态：每个 Worker 只写自己的结果切片。
type Worker struct {
	ID        int
	Name      string
	Units     []domain.WorkUnit
	Overwrite bool
}

// Partition 按 round-robin 把 units 分给 n 个 worker：下标 i 的 unit 归 worker i mod n。
// 任意两个 worker 的队列长度最多相差 1。n < 1 按 1 处理。
func Partition(units []domain.WorkUnit, n int, overwrite bool) []*Worker {
	if n < 1 {
		n = 1
	}
	ws := make([]*Worker, n)
	for i := range ws {
		ws[i] = &Worker{
			ID:        i,
			Name:      strconv.Itoa(i),
			Units:     make([]domain.WorkUnit, 0, len(units)/n+1),
			Overwrite: overwrite,
		}
	}
	for i, u := range units {
		w := ws[i%n]
		w.Units = append(w.Units, u)
	}
	return ws
}

// Run 串行执行本 worker 的全部 unit。
//
// 单个 unit 失败只记录（日志 + 结果），不会中断后续 unit；也不会自动重试：
// 失败留下的缺失输出会在下一次 overwrite=false 的运行中被重新执行。
func (w *Worker) Run(ctx context.Context, r Runner, log zerolog.Logger, dryRun bool, obs Observer) []domain.UnitResult {
	wlog := log.With().Int("worker", w.ID).Logger()
	results := make([]domain.UnitResult, 0, len(w.Units))

	for _, u := range w.Units {
		started := time.Now()
		res := w.runOne(ctx, r, wlog, dryRun, u)
		dur := time.Since(started)
		res.DurationMS = dur.Milliseconds()

		results = append(results, res)
		if obs != nil {
			obs.OnUnitDone(res, dur)
		}
	}
	wlog.Debug().Int("units", len(w.Units)).Msg("worker 完成")
	return results
}

func (w *Worker) runOne(ctx context.Context, r Runner, log zerolog.Logger, dryRun bool, u domain.WorkUnit) domain.UnitResult {
	res := domain.UnitResult{
		Index:  u.Index,
		Worker: w.ID,
		Label:  u.Label,
		Output: u.OutputPath,
		Args:   append([]string(nil), u.Args...),
	}

	exists, err := fsx.Exists(u.OutputPath)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			res.ErrorCode = domain.ErrCodeTargetConflict
		}
		res.ErrorMsg = err.Error()
		log.Warn().Err(err).Str("unit", u.Label).Msg("无法检查输出文件")
		return res
	}
	if exists && !w.Overwrite {
		res.Status = domain.StatusSkipped
		log.Debug().Str("out", u.OutputPath).Msg("输出已存在，跳过")
		return res
	}
	if dryRun {
		res.Status = domain.StatusPlanned
		return res
	}

	log.Info().Str("unit", u.Label).Str("out", u.OutputPath).Msg("运行")
	out, err := r.Run(ctx, u.Args)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ExitCode = -1
		res.ErrorCode = domain.ErrCodeStartFailed
		res.ErrorMsg = err.Error()
		log.Warn().Err(err).Str("unit", u.Label).Msg("命令无法启动")
		return res
	}
	res.ExitCode = out.ExitCode
	if out.ExitCode != 0 {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeExecFailed
		res.ErrorMsg = fmt.Sprintf("exit status %d", out.ExitCode)
		if out.Stderr != "" {
			res.ErrorMsg += ": " + out.Stderr
		}
		log.Warn().Str("unit", u.Label).Int("exit_code", out.ExitCode).Msg("命令失败，继续下一个")
		return res
	}

	res.Status = domain.StatusSucceeded
	return res
}

// Executor 把 WorkUnit 分区到固定数量的 worker 并发执行，然后等待全部结束。
type Executor struct {
	Runner    Runner
	Log       zerolog.Logger
	Observer  Observer
	Workers   int
	Overwrite bool
	DryRun    bool
}

// Execute 启动全部 worker 并等待它们结束（join barrier）。
// 返回值按 unit Index 排序；任何单个 unit 的失败都不会让 Execute 报错。
func (e *Executor) Execute(ctx context.Context, units []domain.WorkUnit) []domain.UnitResult {
	workers := Partition(units, e.Workers, e.Overwrite)
	for _, w := range workers {
		e.Log.Debug().Int("worker", w.ID).Int("units", len(w.Units)).Msg("worker 就绪")
	}

	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{Log: e.Log}
	}

	perWorker := make([][]domain.UnitResult, len(workers))
	var g errgroup.Group
	for i, w := range workers {
		i, w := i, w
		g.Go(func() error {
			perWorker[i] = w.Run(ctx, runner, e.Log, e.DryRun, e.Observer)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.UnitResult, 0, len(units))
	for _, rs := range perWorker {
		out = append(out, rs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
