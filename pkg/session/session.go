package session

import (
	"errors"
	"fmt"
	"sort"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hitzhangjie/minidbg/pkg/logflags"
	"github.com/hitzhangjie/minidbg/pkg/target"
)

// Tracee is the process-control surface the session drives, implemented by
// *target.TracedProcess. The session is the only holder of an active
// tracee; trace requests are issued strictly one at a time, each followed
// by the wait that observes its outcome.
type Tracee interface {
	Pid() int
	Wait(blocking bool) (*target.StopEvent, error)
	Resume() error
	SingleStep() error
	Kill() error
	Detach() error
	Close()
	PatchByte(addr uintptr, val byte) (byte, error)
	InstallBreakpoints(addrs []uintptr) error
	ClearBreakpoint(addr uintptr) (byte, error)
	ReadMemory(addr uintptr, buf []byte) (int, error)
	ReadRegister() (*syscall.PtraceRegs, error)
	WriteRegister(regs *syscall.PtraceRegs) error
}

// Resolver maps between addresses and source-level names, backed by
// statically loaded debug metadata. A failed lookup is ok=false, not an
// error.
type Resolver interface {
	FunctionAt(pc uint64) (name string, ok bool)
	LineAt(pc uint64) (file string, line int, ok bool)
	AddressForLine(line int) (addr uint64, ok bool)
	AddressForFunction(name string) (addr uint64, ok bool)
}

// Session orchestrates debugging commands against one tracee: breakpoint
// table, resume protocol, stop classification, stack unwinding. All mutable
// session state lives here and is passed explicitly to every command
// handler.
type Session struct {
	path string      // target executable
	kind target.Kind // how the tracee is obtained

	tracee      Tracee
	resolver    Resolver
	breakpoints target.Breakpoints // requested breakpoints, in request order

	launch func(cmd string, args ...string) (Tracee, error)
	log    *logrus.Entry
}

// New creates a session for the executable at path, resolving symbols
// through resolver. No process is started until Run.
func New(path string, resolver Resolver) *Session {
	return &Session{
		path:     path,
		kind:     target.EXEC,
		resolver: resolver,
		launch: func(cmd string, args ...string) (Tracee, error) {
			return target.NewTracedProcess(cmd, args...)
		},
		log: logflags.SessionLogger(),
	}
}

// Adopt hands an already-traced process to the session, used by attach.
func (s *Session) Adopt(t Tracee, kind target.Kind) {
	s.tracee = t
	s.kind = kind
}

// SetKind records how tracees of this session are obtained, which decides
// whether Quit kills or detaches.
func (s *Session) SetKind(kind target.Kind) {
	s.kind = kind
}

// Active reports whether a tracee is currently under control.
func (s *Session) Active() bool {
	return s.tracee != nil
}

// Pid returns the tracee's pid; only meaningful while Active.
func (s *Session) Pid() int {
	return s.tracee.Pid()
}

// Run starts the target with the given arguments. A tracee that is already
// active is killed first so no orphaned process is left behind, then every
// requested breakpoint is installed against the fresh process before it is
// resumed.
func (s *Session) Run(args []string) error {
	if s.tracee != nil {
		if err := s.killTracee(); err != nil {
			return fmt.Errorf("error terminating previous program: %v", err)
		}
	}

	fmt.Printf("Starting program: %s\n", s.path)
	t, err := s.launch(s.path, args...)
	if err != nil {
		return fmt.Errorf("error starting subprocess: %v", err)
	}
	s.tracee = t

	if err := s.tracee.InstallBreakpoints(s.requestedAddrs()); err != nil {
		// the process still runs; the user can clear the bad breakpoint
		fmt.Printf("unable to install breakpoints: %v\n", err)
	}
	return s.resume()
}

// Continue resumes the stopped tracee.
func (s *Session) Continue() error {
	if s.tracee == nil {
		return errors.New("no stopped program to resume")
	}
	return s.resume()
}

// Break resolves spec and registers a breakpoint there. Supported forms:
// *0xADDR (verbatim address), a decimal line number, a function name. A
// duplicate address is reported and ignored. With a live tracee the trap is
// installed immediately; if that fails the breakpoint stays recorded for
// future runs.
func (s *Session) Break(spec string) error {
	addr, err := s.resolveLocation(spec)
	if err != nil {
		return err
	}

	if bp := s.breakpointAt(addr); bp != nil {
		fmt.Printf("Breakpoint already set here (%#x).\n", addr)
		return nil
	}

	bp := target.NewBreakpoint(addr, s.locationString(uint64(addr)))
	fmt.Printf("Setting breakpoint %d at %#x\n", bp.ID, addr)
	s.breakpoints = append(s.breakpoints, bp)

	if s.tracee != nil {
		if err := s.tracee.InstallBreakpoints([]uintptr{addr}); err != nil {
			fmt.Printf("unable to set breakpoint now, recorded for the next run: %v\n", err)
		}
	}
	return nil
}

// RemoveBreakpoint drops the breakpoint with the given id, restoring the
// patched byte when a tracee is live.
func (s *Session) RemoveBreakpoint(id uint64) error {
	for i, bp := range s.breakpoints {
		if bp.ID != id {
			continue
		}
		if s.tracee != nil {
			if _, err := s.tracee.ClearBreakpoint(bp.Addr); err != nil && err != target.ErrBreakpointNotExisted {
				return fmt.Errorf("clear breakpoint err: %v", err)
			}
		}
		s.breakpoints = append(s.breakpoints[:i], s.breakpoints[i+1:]...)
		fmt.Printf("Cleared breakpoint %d at %#x\n", bp.ID, bp.Addr)
		return nil
	}
	return target.ErrBreakpointNotExisted
}

// ListBreakpoints prints the requested breakpoint table.
func (s *Session) ListBreakpoints() {
	sort.Sort(s.breakpoints)
	for _, b := range s.breakpoints {
		fmt.Printf("breakpoint[%d] addr:%#x, loc:%s\n", b.ID, b.Addr, b.Pos)
	}
}

// Quit ends the session. With a live tracee the confirm callback decides
// whether to proceed; launched tracees are killed, attached ones detached.
// Returns false when the user declined.
func (s *Session) Quit(confirm func() bool) bool {
	if s.tracee == nil {
		return true
	}

	fmt.Println("A debugging session is active.")
	if s.kind == target.ATTACH {
		fmt.Printf("Process %d will be detached.\n", s.tracee.Pid())
	} else {
		fmt.Printf("Process %d will be killed.\n", s.tracee.Pid())
	}
	if !confirm() {
		return false
	}

	if err := s.killTracee(); err != nil {
		fmt.Printf("error terminating child: %v\n", err)
	}
	return true
}

// Kill disposes of the tracee without asking, used on fatal signals.
func (s *Session) Kill() {
	if s.tracee == nil {
		return
	}
	if err := s.killTracee(); err != nil {
		fmt.Printf("error terminating child: %v\n", err)
	}
}

// killTracee kills (or detaches) and discards the current tracee.
func (s *Session) killTracee() error {
	var err error
	if s.kind == target.ATTACH {
		err = s.tracee.Detach()
	} else {
		err = s.tracee.Kill()
	}
	s.tracee.Close()
	s.tracee = nil
	return err
}

// discard drops a tracee that already terminated on its own.
func (s *Session) discard() {
	s.tracee.Close()
	s.tracee = nil
}

func (s *Session) requestedAddrs() []uintptr {
	addrs := make([]uintptr, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		addrs = append(addrs, bp.Addr)
	}
	return addrs
}

func (s *Session) breakpointAt(addr uintptr) *target.Breakpoint {
	for _, bp := range s.breakpoints {
		if bp.Addr == addr {
			return bp
		}
	}
	return nil
}

// locationString renders "file:line (fn)" for the breakpoint table, best
// effort.
func (s *Session) locationString(pc uint64) string {
	fn, fok := s.resolver.FunctionAt(pc)
	file, line, lok := s.resolver.LineAt(pc)
	switch {
	case fok && lok:
		return fmt.Sprintf("%s:%d (%s)", file, line, fn)
	case lok:
		return fmt.Sprintf("%s:%d", file, line)
	case fok:
		return fn
	default:
		return ""
	}
}
