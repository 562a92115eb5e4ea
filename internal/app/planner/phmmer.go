package planner

import (
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/pairrun/internal/domain"
)

// PhmmerPlan 为每个输入文件生成一次 phmmer 搜索：
//
//	phmmer --tblout <outdir>/<base>.phmmer.tbl.txt --noali --cpu N [-T score] <query> <database>
//
// 与全配对不同，这里是一对一（N 个输入 → N 个 unit），但执行器完全复用。
type PhmmerPlan struct {
	ToolPath       string
	Database       string
	OutDir         string
	CPUs           int
	ScoreThreshold *float64
	Log            zerolog.Logger
}

// TbloutPath 返回某个输入的 --tblout 路径。
func (p PhmmerPlan) TbloutPath(in domain.InputFile) string {
	return filepath.Join(p.OutDir, in.Base+".phmmer.tbl.txt")
}

func (p PhmmerPlan) UnitFor(in domain.InputFile) domain.WorkUnit {
	tool := p.ToolPath
	if tool == "" {
		tool = "phmmer"
	}
	cpus := p.CPUs
	if cpus < 1 {
		cpus = 1
	}
	out := p.TbloutPath(in)

	args := []string{tool, "--tblout", out, "--noali", "--cpu", strconv.Itoa(cpus)}
	if p.ScoreThreshold != nil {
		args = append(args, "-T", strconv.FormatFloat(*p.ScoreThreshold, 'f', -1, 64))
	}
	args = append(args, in.AbsPath, p.Database)

	return domain.WorkUnit{
		Label:      in.Base,
		Args:       args,
		OutputPath: out,
	}
}

func (p PhmmerPlan) Units(inputs []domain.InputFile) []domain.WorkUnit {
	units := make([]domain.WorkUnit, 0, len(inputs))
	for i, in := range inputs {
		u := p.UnitFor(in)
		u.Index = i
		units = append(units, u)
	}
	p.Log.Info().Int("units", len(units)).Str("database", p.Database).Msg("phmmer 命令生成完成")
	return units
}
