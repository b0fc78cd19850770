package target

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hitzhangjie/minidbg/pkg/logflags"
)

// Kind describes how the debug session got its tracee.
type Kind int

const (
	DEBUG  Kind = iota // built from source by the debugger
	EXEC               // launched an existing executable
	ATTACH             // attached to a running process
)

const (
	trapInstruction byte = 0xCC
	wordSize             = 8
)

var (
	// ErrBreakpointNotExisted no trap is currently installed at the address
	ErrBreakpointNotExisted = errors.New("breakpoint not existed")
)

// ErrProcessExited indicates that the tracee is gone and can no longer be
// controlled. The session must discard the TracedProcess after seeing it.
type ErrProcessExited struct {
	Pid int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("process %d has exited", pe.Pid)
}

// TracedProcess owns the lifecycle of one child process running under
// ptrace control: launch or attach, wait for trace-stops, patch single
// bytes of its text, read and write its register set, terminate.
type TracedProcess struct {
	Process *os.Process // 进程信息
	Command string      // 进程启动命令，方便重启调试
	Args    []string    // 进程启动参数，方便重启调试
	Kind    Kind        // 发起调试的类型

	// Breakpoints maps a patched address to the original byte overwritten
	// by the trap instruction. An entry exists iff 0xCC is currently
	// written at that address in the tracee image.
	Breakpoints map[uintptr]byte

	log *logrus.Entry

	once       *sync.Once
	stopOnce   *sync.Once
	ptraceCh   chan func() // ptrace请求统一发送到这里，由专门协程处理
	ptraceDone chan int    // ptrace请求完成
	stopCh     chan int    // 通知需要停止调试
}

func newTracedProcess(kind Kind) *TracedProcess {
	return &TracedProcess{
		Kind:        kind,
		Breakpoints: map[uintptr]byte{},
		log:         logflags.PtraceLogger(),
		once:        &sync.Once{},
		stopOnce:    &sync.Once{},
		ptraceCh:    make(chan func()),
		ptraceDone:  make(chan int),
		stopCh:      make(chan int),
	}
}

// NewTracedProcess launches `cmd` with ptrace enabled and waits for the
// initial trace-stop. Loading the new image raises SIGTRAP in the tracee;
// any other first event means the launch failed and no process is returned.
func NewTracedProcess(cmd string, args ...string) (*TracedProcess, error) {
	t := newTracedProcess(EXEC)
	t.Command = cmd
	t.Args = args

	var err error
	defer func() {
		if err != nil {
			t.Close()
		}
	}()

	t.ExecPtrace(func() {
		err = t.launchCommand(cmd, args...)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// AttachTracedProcess attaches to a running process. The command and
// arguments are recovered from procfs so the session can restart the target
// later. Only single-threaded targets are supported.
func AttachTracedProcess(pid int) (*TracedProcess, error) {
	t := newTracedProcess(ATTACH)

	var err error
	defer func() {
		if err != nil {
			t.Close()
		}
	}()

	if t.Process, err = os.FindProcess(pid); err != nil {
		return nil, err
	}

	t.ExecPtrace(func() {
		err = t.attach(pid)
	})
	if err != nil {
		return nil, err
	}

	// initialize the command and arguments,
	// after then, we could support restart command.
	if t.Command, err = readProcComm(pid); err != nil {
		return nil, err
	}
	if t.Args, err = readProcCommArgs(pid); err != nil {
		return nil, err
	}
	return t, nil
}

// launchCommand execute `execName` with `args`, must run on the ptrace
// dispatch goroutine.
func (t *TracedProcess) launchCommand(execName string, args ...string) error {
	progCmd := exec.Command(execName, args...)
	progCmd.Stdin = os.Stdin
	progCmd.Stdout = os.Stdout
	progCmd.Stderr = os.Stderr

	progCmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:     true, // implies PTRACE_TRACEME
		Setpgid:    true,
		Foreground: false,
	}
	progCmd.Env = os.Environ()
	// keep go tracees from interrupting single-steps with preemption signals
	progCmd.Env = append(progCmd.Env, "GODEBUG=asyncpreemptoff=1")

	// start the process
	if err := progCmd.Start(); err != nil {
		return err
	}
	t.Process = progCmd.Process

	// wait for the initial trace-stop
	var status syscall.WaitStatus
	_, err := syscall.Wait4(t.Process.Pid, &status, syscall.WALL, nil)
	if err != nil {
		return err
	}
	if !status.Stopped() || status.StopSignal() != syscall.SIGTRAP {
		_ = progCmd.Process.Kill()
		return fmt.Errorf("process %d not stopped by SIGTRAP: %v", t.Process.Pid, status)
	}
	t.log.Debugf("process %d launched and stopped", t.Process.Pid)
	return nil
}

// attach attach to process pid, must run on the ptrace dispatch goroutine.
func (t *TracedProcess) attach(pid int) error {
	if !checkPid(pid) {
		return fmt.Errorf("process %d not existed", pid)
	}

	if err := syscall.PtraceAttach(pid); err != nil {
		return fmt.Errorf("process %d attached error: %v", pid, err)
	}

	var status syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &status, syscall.WALL, nil); err != nil {
		return fmt.Errorf("process %d waited error: %v", pid, err)
	}
	if !status.Stopped() {
		return fmt.Errorf("process %d not stopped after attach: %v", pid, status)
	}
	t.log.Debugf("process %d attached and stopped", pid)
	return nil
}

// ExecPtrace runs fn on the dispatch goroutine. All ptrace requests against
// one tracee must be issued from the same thread, so a dedicated goroutine
// locked to its OS thread serves them one by one.
//
// issue: https://github.com/golang/go/issues/7699
func (t *TracedProcess) ExecPtrace(fn func()) {
	t.once.Do(func() {
		go func() {
			// ensure all ptrace requests goes via the same tracer (thread)
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			for {
				select {
				case reqFn := <-t.ptraceCh:
					reqFn()
					t.ptraceDone <- 1
				case <-t.stopCh:
					return
				}
			}
		}()
	})
	t.ptraceCh <- fn
	<-t.ptraceDone
}

// Close stops the ptrace dispatch goroutine. The tracee itself is not
// touched; callers kill or detach first as appropriate.
func (t *TracedProcess) Close() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

// Pid returns the pid of the tracee.
func (t *TracedProcess) Pid() int {
	return t.Process.Pid
}

// --------------------------------------------------------------------

// PatchByte writes val at addr and returns the byte previously stored
// there. Ptrace text transfers operate on whole machine words, so the
// aligned word containing addr is read, the one byte swapped, and the word
// written back. Installing a trap and restoring the original instruction
// are both just calls of this primitive.
func (t *TracedProcess) PatchByte(addr uintptr, val byte) (byte, error) {
	var (
		orig byte
		err  error
	)
	t.ExecPtrace(func() {
		aligned := addr &^ uintptr(wordSize-1)
		word := make([]byte, wordSize)

		n, e := syscall.PtracePeekText(t.Process.Pid, aligned, word)
		if e != nil || n != wordSize {
			err = fmt.Errorf("peek text at %#x: %v, bytes: %d", aligned, e, n)
			return
		}

		off := addr - aligned
		orig = word[off]
		word[off] = val

		n, e = syscall.PtracePokeText(t.Process.Pid, aligned, word)
		if e != nil || n != wordSize {
			err = fmt.Errorf("poke text at %#x: %v, bytes: %d", aligned, e, n)
			return
		}
	})
	if err != nil {
		return 0, err
	}
	t.log.Debugf("patched byte %#02x at %#x, orig %#02x", val, addr, orig)
	return orig, nil
}

// InstallBreakpoints patches the trap opcode at every address not already
// recorded, remembering the overwritten byte. Already-recorded addresses
// are reported and skipped. The first failed patch aborts the batch;
// addresses patched before the failure stay armed.
func (t *TracedProcess) InstallBreakpoints(addrs []uintptr) error {
	for _, addr := range addrs {
		if _, ok := t.Breakpoints[addr]; ok {
			fmt.Printf("Breakpoint already set at %#x.\n", addr)
			continue
		}
		orig, err := t.PatchByte(addr, trapInstruction)
		if err != nil {
			return fmt.Errorf("unable to set breakpoint at %#x: %v", addr, err)
		}
		t.Breakpoints[addr] = orig
	}
	return nil
}

// ClearBreakpoint restores the original byte at addr and drops the record.
// Restore and drop happen in one step from the session's point of view, so
// the mapping never disagrees with the tracee image.
func (t *TracedProcess) ClearBreakpoint(addr uintptr) (byte, error) {
	orig, ok := t.Breakpoints[addr]
	if !ok {
		return 0, ErrBreakpointNotExisted
	}
	if _, err := t.PatchByte(addr, orig); err != nil {
		return 0, err
	}
	delete(t.Breakpoints, addr)
	return orig, nil
}

// --------------------------------------------------------------------

// Wait blocks for the tracee's next state change (polls once with WNOHANG
// when blocking is false, returning nil if nothing changed yet) and
// translates the wait4 result. On a trace-stop the current PC is read from
// the register set so callers need no separate register read for the
// common case.
func (t *TracedProcess) Wait(blocking bool) (*StopEvent, error) {
	options := syscall.WALL
	if !blocking {
		options |= syscall.WNOHANG
	}

	var status syscall.WaitStatus
	wpid, err := syscall.Wait4(t.Process.Pid, &status, options, nil)
	if err != nil {
		return nil, fmt.Errorf("wait error: %v", err)
	}
	if wpid == 0 {
		return nil, nil
	}

	var pc uint64
	if status.Stopped() {
		regs, err := t.ReadRegister()
		if err != nil {
			return nil, err
		}
		pc = regs.PC()
	}

	ev, err := eventFromStatus(status, pc)
	if err != nil {
		return nil, err
	}
	t.log.Debugf("process %d: %v", wpid, ev)
	return ev, nil
}

// Resume requests PTRACE_CONT. It reports nothing about the tracee's new
// state; the caller must Wait to observe it.
func (t *TracedProcess) Resume() error {
	var err error
	t.ExecPtrace(func() {
		err = syscall.PtraceCont(t.Process.Pid, 0)
	})
	if err == syscall.ESRCH {
		return ErrProcessExited{Pid: t.Process.Pid}
	}
	return err
}

// SingleStep requests PTRACE_SINGLESTEP, executing exactly one instruction.
// Like Resume it must be followed by a Wait.
func (t *TracedProcess) SingleStep() error {
	var err error
	t.ExecPtrace(func() {
		err = syscall.PtraceSingleStep(t.Process.Pid)
	})
	if err == syscall.ESRCH {
		return ErrProcessExited{Pid: t.Process.Pid}
	}
	return err
}

// Kill terminates and reaps the tracee unconditionally.
func (t *TracedProcess) Kill() error {
	if err := syscall.Kill(t.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill tracee: %d, err: %v", t.Process.Pid, err)
	}
	// reap, so no zombie is left behind
	var status syscall.WaitStatus
	if _, err := syscall.Wait4(t.Process.Pid, &status, syscall.WALL, nil); err != nil {
		return fmt.Errorf("reap tracee: %d, err: %v", t.Process.Pid, err)
	}
	t.log.Debugf("process %d killed", t.Process.Pid)
	return nil
}

// Detach releases an attached tracee, restoring any bytes still patched so
// the process keeps running its own code.
func (t *TracedProcess) Detach() error {
	for addr := range t.Breakpoints {
		if _, err := t.ClearBreakpoint(addr); err != nil {
			return err
		}
	}

	var err error
	t.ExecPtrace(func() {
		err = syscall.PtraceDetach(t.Process.Pid)
	})
	if err != nil {
		return fmt.Errorf("process %d detached error: %v", t.Process.Pid, err)
	}
	t.log.Debugf("process %d detached", t.Process.Pid)
	return nil
}

// --------------------------------------------------------------------

// ReadMemory reads len(buf) bytes at addr into buf, returning the number of
// bytes transferred.
func (t *TracedProcess) ReadMemory(addr uintptr, buf []byte) (int, error) {
	var (
		n   int
		err error
	)
	t.ExecPtrace(func() {
		// PtracePeekText and PtracePeekData behave identically on Linux
		n, err = syscall.PtracePeekText(t.Process.Pid, addr, buf)
	})
	return n, err
}

// ReadRegister returns the tracee's current register set.
func (t *TracedProcess) ReadRegister() (*syscall.PtraceRegs, error) {
	var (
		regs syscall.PtraceRegs
		err  error
	)
	t.ExecPtrace(func() {
		if e := syscall.PtraceGetRegs(t.Process.Pid, &regs); e != nil {
			err = fmt.Errorf("get regs error: %v", e)
		}
	})
	if err != nil {
		return nil, err
	}
	return &regs, nil
}

// WriteRegister overwrites the tracee's register set.
func (t *TracedProcess) WriteRegister(regs *syscall.PtraceRegs) error {
	var err error
	t.ExecPtrace(func() {
		err = syscall.PtraceSetRegs(t.Process.Pid, regs)
	})
	return err
}
