package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"

	"github.com/John-Robertt/pairrun/internal/app/run"
	"github.com/John-Robertt/pairrun/internal/config"
	"github.com/John-Robertt/pairrun/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - OnUnitDone 由各 worker goroutine 并发调用，全部状态由 mu 保护
// - keepalive：长时间没有 unit 完成时定期输出一行进度
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	skip    int
	planned int

	// quietSkips 为 true 时不逐条打印 SKIP（重跑大批量时 skip 会刷屏）。
	quietSkips bool

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		quietSkips:         true,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(command string, eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "exec"
	if eff.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(p.w, "[%s] pairrun %s (%s)\n", now.Format("15:04:05"), command, mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	switch command {
	case run.CommandPhmmer:
		fmt.Fprintf(p.w, "  tool: %s\n", eff.Tools.Phmmer)
		fmt.Fprintf(p.w, "  database: %s\n", eff.Phmmer.Database)
		fmt.Fprintf(p.w, "  cpu: %d\n", eff.Phmmer.CPUs)
		if eff.Phmmer.ScoreThreshold != nil {
			fmt.Fprintf(p.w, "  score_threshold: %g\n", *eff.Phmmer.ScoreThreshold)
		}
		fmt.Fprintf(p.w, "  outdir: %s\n", eff.Phmmer.OutDir)
	default:
		fmt.Fprintf(p.w, "  algorithm: %s (%s)\n", eff.Algorithm, eff.Tools.For(eff.Algorithm))
		fmt.Fprintf(p.w, "  gap: open=%s extend=%s\n", domain.GapOpen, domain.GapExtend)
		fmt.Fprintf(p.w, "  workdir: %s\n", eff.WorkDir)
	}
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	fmt.Fprintf(p.w, "  overwrite: %s\n", onOff(eff.Overwrite))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "resolve":
		fmt.Fprintf(p.w, "输入: files=%d missing=%d (%s)\n",
			intField(fields, "files"), intField(fields, "missing"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: units=%d (%s)\n", intField(fields, "units"), formatShortDuration(dur))
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_units")
		fmt.Fprintf(p.w, "执行: workers=%d total_units=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnUnitDone(res domain.UnitResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	switch res.Status {
	case domain.StatusSucceeded:
		p.ok++
	case domain.StatusFailed:
		p.fail++
	case domain.StatusSkipped:
		p.skip++
	case domain.StatusPlanned:
		p.planned++
	}

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] w%d %s %s %s: %s (%s)\n",
			p.done, p.total, res.Worker, res.Label, color.Red.Sprint("FAIL"),
			res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		if !p.quietSkips {
			fmt.Fprintf(p.w, "[%d/%d] w%d %s %s (输出已存在)\n",
				p.done, p.total, res.Worker, res.Label, color.Gray.Sprint("SKIP"),
			)
		}
	case domain.StatusPlanned:
		fmt.Fprintf(p.w, "[%d/%d] w%d %s %s -> %s\n",
			p.done, p.total, res.Worker, res.Label, color.Cyan.Sprint("PLAN"), res.Output,
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] w%d %s %s (%s)\n",
			p.done, p.total, res.Worker, res.Label, color.Green.Sprint("OK"), formatShortDuration(dur),
		)
	}
	if res.Status != domain.StatusSkipped || !p.quietSkips {
		p.lastPrinted = time.Now()
	}

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

// Stop 停止 keepalive（例如运行在所有 unit 完成前就返回了）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) progressLineLocked() string {
	active := p.workers
	if remain := p.total - p.done; remain < active {
		active = remain
	}
	return fmt.Sprintf("进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s",
		p.done, p.total, p.ok, p.fail, p.skip, active, formatElapsed(time.Since(p.startedAt)),
	)
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.progressLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
