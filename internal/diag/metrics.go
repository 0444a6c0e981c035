package diag

import (
	"fmt"
	"sort"
	"sync"
)

// 进程内指标：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}
// 仅做计数与累计，不对外暴露端点；CLI 在 debug 级别输出快照。

// DurationStat 为某阶段的耗时累计。
type DurationStat struct {
	Count int64 `json:"count"`
	SumMS int64 `json:"sum_ms"`
	MaxMS int64 `json:"max_ms"`
}

// Snapshot 为指标的只读拷贝；键形如 `op_total{comp="reader",stage="finish",result="success"}`。
type Snapshot struct {
	Counters  map[string]int64        `json:"counters"`
	Durations map[string]DurationStat `json:"durations"`
}

// Keys 按字典序返回全部计数器键。
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Counters))
	for k := range s.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type metrics struct {
	mu        sync.Mutex
	counters  map[string]int64
	durations map[string]DurationStat
}

var reg = &metrics{counters: map[string]int64{}, durations: map[string]DurationStat{}}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	reg.inc(fmt.Sprintf("op_total{comp=%q,stage=%q,result=%q}", comp, stage, result))
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	reg.inc(fmt.Sprintf("error_total{comp=%q,code=%q}", comp, code))
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	key := fmt.Sprintf("op_duration_ms{comp=%q,stage=%q}", comp, stage)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	d := reg.durations[key]
	d.Count++
	d.SumMS += durMS
	if durMS > d.MaxMS {
		d.MaxMS = durMS
	}
	reg.durations[key] = d
}

func (m *metrics) inc(key string) {
	m.mu.Lock()
	m.counters[key]++
	m.mu.Unlock()
}

// MetricsSnapshot 返回当前指标拷贝。
func MetricsSnapshot() Snapshot {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s := Snapshot{
		Counters:  make(map[string]int64, len(reg.counters)),
		Durations: make(map[string]DurationStat, len(reg.durations)),
	}
	for k, v := range reg.counters {
		s.Counters[k] = v
	}
	for k, v := range reg.durations {
		s.Durations[k] = v
	}
	return s
}

// ResetMetrics 清空全部指标。
func ResetMetrics() {
	reg.mu.Lock()
	reg.counters = map[string]int64{}
	reg.durations = map[string]DurationStat{}
	reg.mu.Unlock()
}
