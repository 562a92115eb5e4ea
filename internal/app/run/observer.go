package run

import (
	"time"

	"github.com/John-Robertt/pairrun/internal/config"
	"github.com/John-Robertt/pairrun/internal/domain"
)

// Observer 用于把“运行进度/阶段/单元结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnUnitDone 由各个 worker goroutine 直接调用。
type Observer interface {
	// OnStart 在执行开始时调用。
	OnStart(command string, eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（resolve/plan/exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnUnitDone 在某个 unit 处理完成（含 skip）时调用。
	OnUnitDone(res domain.UnitResult, dur time.Duration)
}
