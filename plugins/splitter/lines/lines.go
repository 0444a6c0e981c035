package lines

import (
	"bufio"
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"segcheck/internal/lineparse"
	"segcheck/pkg/contract"
)

// Options 为行拆分器的可选配置（最小必要）。
type Options struct {
	// MaxLineBytes: 单行最大字节数（不含换行）。0 表示不限制。
	MaxLineBytes int `json:"max_line_bytes"`
	// BufSize: 读缓冲区大小；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size"`
}

// Splitter 按 '\n' 拆分行并逐行解析。
// 行尾 "\r\n" 归一为 '\n'；末行无换行时同样视作一行；空输入得到零行。
type Splitter struct {
	maxBytes int
	bufSize  int
}

// New 创建行拆分器。
func New(opts *Options) *Splitter {
	s := &Splitter{bufSize: 64 * 1024}
	if opts != nil {
		if opts.MaxLineBytes > 0 {
			s.maxBytes = opts.MaxLineBytes
		}
		if opts.BufSize > 0 {
			s.bufSize = opts.BufSize
		}
	}
	return s
}

var _ contract.Splitter = (*Splitter)(nil)

// Split 将单个文件拆分为 []Entry，顺序与原文件一致。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) ([]contract.Entry, error) {
	br := bufio.NewReaderSize(r, s.bufSize)
	var entries []contract.Entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "read %s line %d", fileID, len(entries)+1)
		}
		if line == "" && err == io.EOF {
			break
		}
		if s.maxBytes > 0 && contentLen(line) > s.maxBytes {
			return nil, errors.Wrapf(contract.ErrInvalidInput,
				"%s line %d: %d bytes exceeds max_line_bytes=%d", fileID, len(entries)+1, contentLen(line), s.maxBytes)
		}
		entries = append(entries, lineparse.ParseLine(line))
		if err == io.EOF {
			break
		}
	}
	return entries, nil
}

// contentLen 返回去掉行尾换行后的字节数。
func contentLen(line string) int {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return n
}
