package run

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/pairrun/internal/app/planner"
	"github.com/John-Robertt/pairrun/internal/config"
	"github.com/John-Robertt/pairrun/internal/domain"
	"github.com/John-Robertt/pairrun/internal/infra/fsx"
	"github.com/John-Robertt/pairrun/internal/scan"
)

const (
	CommandPairwise = "pairwise"
	CommandPhmmer   = "phmmer"
)

// Deps 是一次运行需要注入的协作者。Runner 为空时使用 ExecRunner。
type Deps struct {
	Runner   Runner
	Log      zerolog.Logger
	Observer Observer
}

// ExecutePairwise 对 paths 的全部无序对执行 needle/water，返回 RunReport。
//
// 只有“整体无法开始”的问题才返回 error（base name 冲突、workdir 不可用）；
// 缺失的输入与失败的 unit 都体现在 report 里。
func ExecutePairwise(ctx context.Context, eff config.EffectiveConfig, paths []string, opt scan.Options, deps Deps) (domain.RunReport, error) {
	gen := planner.NewGenerator(eff.Algorithm, eff.WorkDir, eff.Tools.For(eff.Algorithm), deps.Log)

	rr := newReport(CommandPairwise, eff, eff.WorkDir)
	rr.Algorithm = string(eff.Algorithm)

	return execute(ctx, CommandPairwise, eff, eff.WorkDir, paths, opt, deps, rr, gen.Units)
}

// ExecutePhmmer 对每个输入文件执行一次 phmmer 搜索。
func ExecutePhmmer(ctx context.Context, eff config.EffectiveConfig, paths []string, opt scan.Options, deps Deps) (domain.RunReport, error) {
	if err := eff.RequirePhmmerDatabase(); err != nil {
		return domain.RunReport{}, err
	}
	if ok, err := fsx.Exists(eff.Phmmer.Database); err != nil || !ok {
		return domain.RunReport{}, &scan.MissingInputError{Path: eff.Phmmer.Database, Err: errOrNotExist(err)}
	}

	plan := planner.PhmmerPlan{
		ToolPath:       eff.Tools.Phmmer,
		Database:       eff.Phmmer.Database,
		OutDir:         eff.Phmmer.OutDir,
		CPUs:           eff.Phmmer.CPUs,
		ScoreThreshold: eff.Phmmer.ScoreThreshold,
		Log:            deps.Log,
	}

	rr := newReport(CommandPhmmer, eff, eff.Phmmer.OutDir)
	return execute(ctx, CommandPhmmer, eff, eff.Phmmer.OutDir, paths, opt, deps, rr, plan.Units)
}

func newReport(command string, eff config.EffectiveConfig, outDir string) domain.RunReport {
	return domain.RunReport{
		RunID:     uuid.NewString(),
		Command:   command,
		WorkDir:   outDir,
		DryRun:    eff.DryRun,
		Overwrite: eff.Overwrite,
		Workers:   eff.Workers,
		StartedAt: time.Now().UTC(),
	}
}

func execute(
	ctx context.Context,
	command string,
	eff config.EffectiveConfig,
	outDir string,
	paths []string,
	opt scan.Options,
	deps Deps,
	rr domain.RunReport,
	plan func([]domain.InputFile) []domain.WorkUnit,
) (domain.RunReport, error) {
	log := deps.Log.With().Str("run_id", rr.RunID).Logger()
	obs := deps.Observer
	if obs != nil {
		obs.OnStart(command, eff)
	}

	resolveStarted := time.Now()
	resolved, err := scan.ResolveInputs(eff.Cwd, paths, opt, log)
	if err != nil {
		return domain.RunReport{}, err
	}
	rr.Inputs = resolved.Problems
	if obs != nil {
		obs.OnPhaseDone("resolve", map[string]any{
			"files":   len(resolved.Files),
			"missing": len(resolved.Problems),
		}, time.Since(resolveStarted))
	}

	// dry-run 禁止落盘：连 workdir 都不创建。
	if !eff.DryRun {
		if err := fsx.EnsureDir(outDir); err != nil {
			return domain.RunReport{}, err
		}
	}

	planStarted := time.Now()
	units := plan(resolved.Files)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{"units": len(units)}, time.Since(planStarted))
	}

	workers := eff.Workers
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_units": len(units),
		}, 0)
	}

	ex := &Executor{
		Runner:    deps.Runner,
		Log:       log,
		Observer:  obs,
		Workers:   workers,
		Overwrite: eff.Overwrite,
		DryRun:    eff.DryRun,
	}
	rr.Units = ex.Execute(ctx, units)

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	log.Info().
		Int("succeeded", rr.Summary.Succeeded).
		Int("skipped", rr.Summary.Skipped).
		Int("failed", rr.Summary.Failed).
		Int("missing", rr.Summary.Missing).
		Msg("运行结束")
	return rr, nil
}

func errOrNotExist(err error) error {
	if err != nil {
		return err
	}
	return os.ErrNotExist
}
