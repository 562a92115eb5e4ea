package planner

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/pairrun/internal/domain"
)

// progressEvery 控制生成过程中进度日志的间隔（N 很大时 C(N,2) 可达数十万）。
const progressEvery = 10000

// Generator 把有序输入列表展开为全部无序对的 WorkUnit。
//
// Generator 没有任何副作用：不访问文件系统，不执行命令。
type Generator struct {
	Algorithm domain.Algorithm
	WorkDir   string // 必须是 absolute
	ToolPath  string // 为空时使用 Algorithm.Tool()
	Log       zerolog.Logger
}

// NewGenerator 构造 Generator；日志句柄由调用方注入。
func NewGenerator(alg domain.Algorithm, workdir, toolPath string, log zerolog.Logger) Generator {
	return Generator{
		Algorithm: alg,
		WorkDir:   filepath.Clean(workdir),
		ToolPath:  toolPath,
		Log:       log,
	}
}

// Pairs 返回 inputs 的全部无序对，恰好 N*(N-1)/2 个。
//
// 顺序固定：外层 i 递增，内层 j 从 i+1 递增。N < 2 时返回空切片。
func Pairs(inputs []domain.InputFile) []domain.WorkItem {
	n := len(inputs)
	if n < 2 {
		return []domain.WorkItem{}
	}
	out := make([]domain.WorkItem, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, domain.WorkItem{I: i, J: j, A: inputs[i], B: inputs[j]})
		}
	}
	return out
}

// OutputPath 返回 <workdir>/<baseA>x<baseB>.<ext>。
func (g Generator) OutputPath(item domain.WorkItem) string {
	name := item.A.Base + "x" + item.B.Base + "." + g.Algorithm.Ext()
	return filepath.Join(g.WorkDir, name)
}

// UnitFor 由一个对确定性地推导出参数向量与输出路径。
func (g Generator) UnitFor(item domain.WorkItem) domain.WorkUnit {
	tool := g.ToolPath
	if tool == "" {
		tool = g.Algorithm.Tool()
	}
	out := g.OutputPath(item)
	return domain.WorkUnit{
		Label: item.A.Base + "x" + item.B.Base,
		Args: []string{
			tool,
			"-gapopen", domain.GapOpen,
			"-gapextend", domain.GapExtend,
			"-asequence", item.A.AbsPath,
			"-bsequence", item.B.AbsPath,
			"-outfile", out,
		},
		OutputPath: out,
	}
}

// Units 生成全部 WorkUnit；Index 即其在结果中的位置（round-robin 分配依赖它）。
func (g Generator) Units(inputs []domain.InputFile) []domain.WorkUnit {
	g.Log.Info().Int("inputs", len(inputs)).Str("algorithm", string(g.Algorithm)).Msg("开始生成全配对命令")

	items := Pairs(inputs)
	units := make([]domain.WorkUnit, 0, len(items))
	for idx, it := range items {
		u := g.UnitFor(it)
		u.Index = idx
		units = append(units, u)
		if idx > 0 && idx%progressEvery == 0 {
			g.Log.Info().Int("made", idx).Msg("已生成命令")
		}
	}

	g.Log.Info().Int("units", len(units)).Msg("全配对命令生成完成")
	return units
}
