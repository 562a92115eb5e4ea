package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/pairrun/internal/domain"
)

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("未放置配置文件时 ConfigPath 应为空，实际=%q", eff.ConfigPath)
	}
	wantWork := filepath.Join(home, "work", "cafa4-play", "seqout")
	if eff.WorkDir != wantWork {
		t.Fatalf("期望 workdir=%q，实际=%q", wantWork, eff.WorkDir)
	}
	if eff.Workers != DefaultWorkers || eff.Algorithm != domain.AlgorithmNeedle || eff.Overwrite {
		t.Fatalf("默认值不正确：%+v", eff)
	}
	if eff.Tools.For(domain.AlgorithmWater) != "water" || eff.Tools.Phmmer != "phmmer" {
		t.Fatalf("默认工具不正确：%+v", eff.Tools)
	}
	if eff.Phmmer.OutDir != eff.WorkDir || eff.Phmmer.CPUs != DefaultCPUs {
		t.Fatalf("phmmer 默认值不正确：%+v", eff.Phmmer)
	}
}

func TestLoadEffective_FileThenCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
[run]
workdir = "seqout"
workers = 8
algorithm = "water"
overwrite = true

[tools]
water = "/opt/emboss/bin/water"
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.WorkDir != filepath.Join(cwd, "seqout") {
		t.Fatalf("相对 workdir 应相对 cwd 解析，实际=%q", eff.WorkDir)
	}
	if eff.Workers != 8 || eff.Algorithm != domain.AlgorithmWater || !eff.Overwrite {
		t.Fatalf("配置文件未生效：%+v", eff)
	}
	if eff.Tools.For(eff.Algorithm) != "/opt/emboss/bin/water" {
		t.Fatalf("tools.water 未生效：%+v", eff.Tools)
	}

	// --overwrite=false 必须能覆盖 overwrite = true。
	eff2, err := LoadEffective(cwd, CLIArgs{
		Overwrite:    false,
		OverwriteSet: true,
		Algorithm:    "needle",
		AlgorithmSet: true,
		Workers:      3,
		WorkersSet:   true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Overwrite || eff2.Algorithm != domain.AlgorithmNeedle || eff2.Workers != 3 {
		t.Fatalf("CLI 覆盖未生效：%+v", eff2)
	}
}

func TestLoadEffective_WorkersClamped(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{WorkDir: "w", WorkDirSet: true, Workers: -4, WorkersSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Workers != 1 {
		t.Fatalf("期望 workers 截断为 1，实际=%d", eff.Workers)
	}

	eff, err = LoadEffective(cwd, CLIArgs{WorkDir: "w", WorkDirSet: true, Workers: 100000, WorkersSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Workers != MaxWorkers {
		t.Fatalf("期望 workers 截断为 %d，实际=%d", MaxWorkers, eff.Workers)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "nope.toml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_InvalidTOML(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`[run`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_UnknownKey(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("[run]\nthreads = 4\n"))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
	if !strings.Contains(err.Error(), "run.threads") {
		t.Fatalf("错误信息应包含未知字段名：%v", err)
	}
}

func TestLoadEffective_CollectsAllProblems(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
[run]
algorithm = "blast"

[phmmer]
cpus = -2
`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
	msg := err.Error()
	if !strings.Contains(msg, "algorithm") || !strings.Contains(msg, "cpus") {
		t.Fatalf("应同时报告两个问题：%v", msg)
	}
}

func TestLoadEffective_PhmmerSettings(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
[phmmer]
database = "db/uniprot_sprot.fasta"
cpus = 16
score_threshold = 50.0
`))

	eff, err := LoadEffective(cwd, CLIArgs{WorkDir: "out", WorkDirSet: true, CPUs: 4, CPUsSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Phmmer.Database != filepath.Join(cwd, "db", "uniprot_sprot.fasta") {
		t.Fatalf("database 未解析为绝对路径：%q", eff.Phmmer.Database)
	}
	if eff.Phmmer.CPUs != 4 {
		t.Fatalf("--cpu 应覆盖配置：%d", eff.Phmmer.CPUs)
	}
	if eff.Phmmer.ScoreThreshold == nil || *eff.Phmmer.ScoreThreshold != 50.0 {
		t.Fatalf("score_threshold 未生效：%v", eff.Phmmer.ScoreThreshold)
	}
	if eff.Phmmer.OutDir != filepath.Join(cwd, "out") {
		t.Fatalf("outdir 默认应等于 workdir：%q", eff.Phmmer.OutDir)
	}
	if err := eff.RequirePhmmerDatabase(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}

func TestRequirePhmmerDatabase_Missing(t *testing.T) {
	eff, err := LoadEffective(t.TempDir(), CLIArgs{WorkDir: "w", WorkDirSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if Code(eff.RequirePhmmerDatabase()) != ErrCodeInvalid {
		t.Fatalf("缺少 database 时应返回 %q", ErrCodeInvalid)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败 %q：%v", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
