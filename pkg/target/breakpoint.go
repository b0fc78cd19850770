package target

import (
	"go.uber.org/atomic"
)

var (
	bpSeqNo = atomic.NewUint64(0)
)

// Breakpoint is one requested breakpoint, owned by the debug session and
// kept across restarts of the tracee. Whether the trap opcode is currently
// written into a live tracee is tracked separately, in
// TracedProcess.Breakpoints.
type Breakpoint struct {
	ID   uint64  // 断点编号
	Addr uintptr // 断点地址
	Pos  string  // 源文件位置
}

// NewBreakpoint 在指令地址addr处创建一个断点，源码位置为pos
func NewBreakpoint(addr uintptr, pos string) *Breakpoint {
	return &Breakpoint{
		ID:   bpSeqNo.Add(1),
		Addr: addr,
		Pos:  pos,
	}
}

// Breakpoints 所有的断点信息
type Breakpoints []*Breakpoint

// Len 返回长度
func (b Breakpoints) Len() int {
	return len(b)
}

// Less 检查b[i]是否小于b[j]
func (b Breakpoints) Less(i, j int) bool {
	return b[i].ID <= b[j].ID
}

// Swap 交换b[i]和b[j]
func (b Breakpoints) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
}
