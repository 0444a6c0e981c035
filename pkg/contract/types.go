package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Numbers: 段行前四个数值 (x1, y1, x2, y2)。
type Numbers [4]float64

// Classification: 供绘图方使用的分类标记；零值为未分类。
type Classification int

const (
	Unclassified Classification = iota
	Intersecting
	NonIntersecting
)

func (c Classification) String() string {
	switch c {
	case Intersecting:
		return "intersecting"
	case NonIntersecting:
		return "non_intersecting"
	default:
		return "unclassified"
	}
}

// 结果标签（写回文件的原样文本）。
const (
	LabelIntersecting    = "Пересекается"
	LabelNotIntersecting = "Не пересекается"
)

// Entry: 输入文件中的一行。
// 约束：
// - OriginalText 为去掉行尾换行后的原文，创建后不可变；
// - Numbers 为 nil 表示“非段行”，此时 CanonicalText 为空、Classification 为 Unclassified；
// - CanonicalText 在构造时由 Numbers 一次性派生，之后不再重算；
// - Label/OutputText/Classification 仅由配对引擎写入，OutputText 恰好写一次。
type Entry struct {
	OriginalText   string
	Numbers        *Numbers
	CanonicalText  string
	Label          string
	OutputText     string
	Classification Classification
}

// Parsed 报告该行是否解析出四个数值。
func (e *Entry) Parsed() bool { return e.Numbers != nil }

// Summary: 单文件（或整次运行累加）的处理汇总。
type Summary struct {
	FileID FileID
	// Lines: 输入行数；Parsed: 其中解析成功的行数。
	Lines  int
	Parsed int
	// Pairs: 配对循环遍历的槽位数（len/2）；Compared: 两侧均解析成功并执行几何判定的对数。
	Pairs        int
	Compared     int
	Intersecting int
	// PlotPath: 成功生成的图像路径；跳过或失败时为空。
	PlotPath string
}

// Add 累加另一份汇总（FileID/PlotPath 不参与累加）。
func (s *Summary) Add(o Summary) {
	s.Lines += o.Lines
	s.Parsed += o.Parsed
	s.Pairs += o.Pairs
	s.Compared += o.Compared
	s.Intersecting += o.Intersecting
}
