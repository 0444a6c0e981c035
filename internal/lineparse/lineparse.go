// Package lineparse 将单行原文解析为 contract.Entry，并提供数值的规范化格式。
package lineparse

import (
	"math"
	"strconv"
	"strings"

	"segcheck/pkg/contract"
)

// ParseLine 解析一行原文：
// - 去掉行尾 '\n' / "\r\n" 后保存为 OriginalText；
// - 按空白切分，前四个记号均可解析为有限 float64 时填充 Numbers，其余记号丢弃；
// - 否则 Numbers 为 nil（不是错误，下游原样透传）。
// CanonicalText 在此一次性派生。
func ParseLine(raw string) contract.Entry {
	text := strings.TrimSuffix(raw, "\n")
	text = strings.TrimSuffix(text, "\r")
	entry := contract.Entry{OriginalText: text}

	nums, ok := parseNumbers(strings.Fields(text))
	if !ok {
		return entry
	}
	entry.Numbers = &nums
	entry.CanonicalText = Canonical(nums)
	return entry
}

func parseNumbers(tokens []string) (contract.Numbers, bool) {
	var nums contract.Numbers
	if len(tokens) < len(nums) {
		return nums, false
	}
	for i := range nums {
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return nums, false
		}
		// NaN/Inf 不进入几何判定：整行按“非段行”处理
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nums, false
		}
		nums[i] = v
	}
	return nums, true
}

// Canonical 返回四个数值的规范文本（单空格分隔）。
func Canonical(nums contract.Numbers) string {
	var b strings.Builder
	for i, v := range nums {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(FormatNumber(v))
	}
	return b.String()
}

// FormatNumber 以最短表示格式化数值：整数值不带小数点与指数，其余使用 %g 的最短形式。
// 结果可无损回解析为同一 float64，因此重复规范化是不动点。
func FormatNumber(v float64) string {
	if v == 0 {
		// 同时吸收 -0
		return "0"
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
