package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/pairrun/internal/config"
	"github.com/John-Robertt/pairrun/internal/domain"
	"github.com/John-Robertt/pairrun/internal/scan"
)

type recordingObserver struct {
	mu      sync.Mutex
	started []string
	phases  []string
	units   int
}

func (o *recordingObserver) OnStart(command string, eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, command)
}

func (o *recordingObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordingObserver) OnUnitDone(res domain.UnitResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.units++
}

func writeFASTA(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(">"+name+"\nMKVLAAGIVALLLA\n"), 0o644))
	return p
}

func baseEff(t *testing.T) config.EffectiveConfig {
	t.Helper()
	root := t.TempDir()
	return config.EffectiveConfig{
		Cwd:       root,
		WorkDir:   filepath.Join(root, "seqout"),
		Workers:   2,
		Algorithm: domain.AlgorithmNeedle,
		Tools:     config.Tools{Needle: "needle", Water: "water", Phmmer: "phmmer"},
		Phmmer:    config.Phmmer{CPUs: 1, OutDir: filepath.Join(root, "tbl")},
	}
}

func TestExecutePairwise_EndToEnd(t *testing.T) {
	eff := baseEff(t)
	a := writeFASTA(t, eff.Cwd, "a.fasta")
	b := writeFASTA(t, eff.Cwd, "b.fasta")
	c := writeFASTA(t, eff.Cwd, "c.fasta")

	fr := &fakeRunner{}
	obs := &recordingObserver{}
	deps := Deps{Runner: fr, Log: zerolog.Nop(), Observer: obs}

	rr, err := ExecutePairwise(context.Background(), eff, []string{a, "b.fasta", c, "gone.fasta"}, scan.Options{Sniff: true}, deps)
	require.NoError(t, err)

	assert.NotEmpty(t, rr.RunID)
	assert.Equal(t, CommandPairwise, rr.Command)
	assert.Equal(t, "needle", rr.Algorithm)
	assert.Equal(t, domain.ReportSummary{Total: 3, Succeeded: 3, Missing: 1}, rr.Summary)
	require.Len(t, rr.Inputs, 1)
	assert.Equal(t, domain.ErrCodeInputMissing, rr.Inputs[0].ErrorCode)

	require.Len(t, rr.Units, 3)
	assert.Equal(t, "axb", rr.Units[0].Label)
	assert.Equal(t, "axc", rr.Units[1].Label)
	assert.Equal(t, "bxc", rr.Units[2].Label)
	assert.Equal(t, 0, rr.Units[0].Worker)
	assert.Equal(t, 1, rr.Units[1].Worker)
	assert.Equal(t, 0, rr.Units[2].Worker)

	for _, u := range rr.Units {
		assert.FileExists(t, filepath.Join(eff.WorkDir, u.Label+".needle"))
	}

	assert.Equal(t, []string{CommandPairwise}, obs.started)
	assert.Equal(t, []string{"resolve", "plan", "exec"}, obs.phases)
	assert.Equal(t, 3, obs.units)

	// 第二次运行：全部跳过，不执行任何命令。
	again := &fakeRunner{}
	rr, err = ExecutePairwise(context.Background(), eff, []string{a, b, c}, scan.Options{}, Deps{Runner: again, Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.Empty(t, again.Calls())
	assert.Equal(t, 3, rr.Summary.Skipped)
	assert.False(t, rr.Summary.HasProblems())
}

func TestExecutePairwise_DryRunCreatesNothing(t *testing.T) {
	eff := baseEff(t)
	eff.DryRun = true
	a := writeFASTA(t, eff.Cwd, "a.fa")
	b := writeFASTA(t, eff.Cwd, "b.fa")

	fr := &fakeRunner{}
	rr, err := ExecutePairwise(context.Background(), eff, []string{a, b}, scan.Options{}, Deps{Runner: fr, Log: zerolog.Nop()})
	require.NoError(t, err)

	assert.Empty(t, fr.Calls())
	assert.True(t, rr.DryRun)
	assert.Equal(t, 1, rr.Summary.Planned)
	assert.NoDirExists(t, eff.WorkDir)
}

func TestExecutePairwise_DuplicateBaseIsFatal(t *testing.T) {
	eff := baseEff(t)
	require.NoError(t, os.Mkdir(filepath.Join(eff.Cwd, "x"), 0o755))
	a := writeFASTA(t, eff.Cwd, "a.fasta")
	a2 := writeFASTA(t, filepath.Join(eff.Cwd, "x"), "a.fasta")

	fr := &fakeRunner{}
	_, err := ExecutePairwise(context.Background(), eff, []string{a, a2}, scan.Options{}, Deps{Runner: fr, Log: zerolog.Nop()})

	var dup *scan.DuplicateBaseError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Base)
	assert.Empty(t, fr.Calls())
	assert.NoDirExists(t, eff.WorkDir)
}

func TestExecutePairwise_WaterUsesWaterTool(t *testing.T) {
	eff := baseEff(t)
	eff.Algorithm = domain.AlgorithmWater
	eff.Tools.Water = "/opt/emboss/bin/water"
	a := writeFASTA(t, eff.Cwd, "a.fasta")
	b := writeFASTA(t, eff.Cwd, "b.fasta")

	fr := &fakeRunner{}
	rr, err := ExecutePairwise(context.Background(), eff, []string{a, b}, scan.Options{}, Deps{Runner: fr, Log: zerolog.Nop()})
	require.NoError(t, err)
	require.Len(t, rr.Units, 1)
	assert.Equal(t, "/opt/emboss/bin/water", rr.Units[0].Args[0])
	assert.Equal(t, filepath.Join(eff.WorkDir, "axb.water"), rr.Units[0].Output)
}

func TestExecutePhmmer_MissingDatabase(t *testing.T) {
	eff := baseEff(t)
	a := writeFASTA(t, eff.Cwd, "a.fasta")

	_, err := ExecutePhmmer(context.Background(), eff, []string{a}, scan.Options{}, Deps{Runner: &fakeRunner{}, Log: zerolog.Nop()})
	require.Error(t, err)

	eff.Phmmer.Database = filepath.Join(eff.Cwd, "nope.fasta")
	_, err = ExecutePhmmer(context.Background(), eff, []string{a}, scan.Options{}, Deps{Runner: &fakeRunner{}, Log: zerolog.Nop()})
	var miss *scan.MissingInputError
	require.ErrorAs(t, err, &miss)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExecutePhmmer_OneUnitPerInput(t *testing.T) {
	eff := baseEff(t)
	eff.Phmmer.Database = writeFASTA(t, eff.Cwd, "uniprot.fasta")
	a := writeFASTA(t, eff.Cwd, "q1.fasta")
	b := writeFASTA(t, eff.Cwd, "q2.fasta")

	fr := &fakeRunner{exitCodes: map[string]int{filepath.Join(eff.Phmmer.OutDir, "q2.phmmer.tbl.txt"): 2}}
	rr, err := ExecutePhmmer(context.Background(), eff, []string{a, b}, scan.Options{}, Deps{Runner: fr, Log: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, CommandPhmmer, rr.Command)
	assert.Equal(t, eff.Phmmer.OutDir, rr.WorkDir)
	assert.Equal(t, domain.ReportSummary{Total: 2, Succeeded: 1, Failed: 1}, rr.Summary)
	assert.True(t, rr.Summary.HasProblems())
	assert.FileExists(t, filepath.Join(eff.Phmmer.OutDir, "q1.phmmer.tbl.txt"))
}
