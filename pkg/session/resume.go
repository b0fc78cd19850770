package session

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/hitzhangjie/minidbg/pkg/target"
)

// resume continues the tracee. When it sits exactly on a requested
// breakpoint address the trap byte was already restored by handleStopped,
// so the original instruction is single-stepped first and the trap patched
// back before the full continue. The step must stop with SIGTRAP; any other
// stop signal means the instruction being stepped over raised one itself,
// which is escalated instead of swallowed.
func (s *Session) resume() error {
	regs, err := s.tracee.ReadRegister()
	if err != nil {
		return fmt.Errorf("get regs error: %v", err)
	}

	if pc := uintptr(regs.PC()); s.breakpointAt(pc) != nil {
		s.log.Debugf("stepping over breakpoint at %#x", pc)

		if err := s.tracee.SingleStep(); err != nil {
			return fmt.Errorf("single step error: %v", err)
		}
		ev, err := s.tracee.Wait(true)
		if err != nil {
			return err
		}

		switch {
		case ev.Kind == target.EventStopped && ev.Signal == syscall.SIGTRAP:
			// the original instruction has executed, safe to re-arm
			if err := s.tracee.InstallBreakpoints([]uintptr{pc}); err != nil {
				return fmt.Errorf("rearm breakpoint at %#x: %v", pc, err)
			}
		case ev.Kind == target.EventStopped:
			return fmt.Errorf("stopped by signal %v while stepping over breakpoint at %#x", ev.Signal, pc)
		default:
			// the stepped instruction ended the process
			return s.handleStop(ev)
		}
	}

	if err := s.tracee.Resume(); err != nil {
		return fmt.Errorf("continue error: %v", err)
	}
	ev, err := s.tracee.Wait(true)
	if err != nil {
		return fmt.Errorf("error resuming process: %v", err)
	}
	return s.handleStop(ev)
}

// handleStop reacts to the tracee's next state change after a continue or
// step. Terminal events invalidate the tracee; a fresh Run is needed before
// any further process-directed command.
func (s *Session) handleStop(ev *target.StopEvent) error {
	switch ev.Kind {
	case target.EventExited:
		fmt.Printf("\nProgram exited with status %d\n", ev.Status)
		s.discard()
		return nil
	case target.EventSignaled:
		fmt.Printf("\nProgram terminated with signal %v\n", ev.Signal)
		s.discard()
		return nil
	case target.EventStopped:
		return s.handleStopped(ev)
	}
	return fmt.Errorf("unexpected stop event: %v", ev)
}

// handleStopped classifies a trace-stop. The trap instruction is one byte
// and has already executed, so the reported PC is one past the breakpoint
// address. For a hit on our own trap the original byte is restored and the
// PC rewound before anything is reported, so the user observes the tracee
// stopped exactly at the breakpoint with its real instruction in place.
func (s *Session) handleStopped(ev *target.StopEvent) error {
	candidate := uintptr(ev.PC - 1)

	reportPC := ev.PC

	bp := s.breakpointAt(candidate)
	if bp != nil {
		if _, err := s.tracee.ClearBreakpoint(candidate); err != nil {
			if err != target.ErrBreakpointNotExisted {
				return fmt.Errorf("restore original byte at %#x: %v", candidate, err)
			}
			// a trap we did not plant; report a plain stop
			bp = nil
		}
	}

	if bp != nil {
		regs, err := s.tracee.ReadRegister()
		if err != nil {
			return fmt.Errorf("get regs error: %v", err)
		}
		regs.SetPC(uint64(candidate))
		if err := s.tracee.WriteRegister(regs); err != nil {
			return fmt.Errorf("rewind pc to %#x: %v", candidate, err)
		}
		fmt.Printf("Program stopped at breakpoint %#x (%v)\n", candidate, ev.Signal)
		reportPC = uint64(candidate)
	} else {
		fmt.Printf("\nProgram stopped (signal %v)\n", ev.Signal)
	}

	s.reportPosition(reportPC)
	return nil
}

// StepInstruction executes exactly one instruction. When the tracee sits on
// one of our traps the same step-over/re-arm dance as resume is performed,
// without the trailing continue.
func (s *Session) StepInstruction() error {
	if s.tracee == nil {
		return errors.New("no stopped program to step")
	}

	regs, err := s.tracee.ReadRegister()
	if err != nil {
		return fmt.Errorf("get regs error: %v", err)
	}
	pc := uintptr(regs.PC())
	onBreakpoint := s.breakpointAt(pc) != nil

	if err := s.tracee.SingleStep(); err != nil {
		return fmt.Errorf("single step error: %v", err)
	}
	ev, err := s.tracee.Wait(true)
	if err != nil {
		return err
	}
	if ev.Kind != target.EventStopped {
		return s.handleStop(ev)
	}
	if ev.Signal != syscall.SIGTRAP {
		return fmt.Errorf("stopped by signal %v while stepping", ev.Signal)
	}

	if onBreakpoint {
		if err := s.tracee.InstallBreakpoints([]uintptr{pc}); err != nil {
			return fmt.Errorf("rearm breakpoint at %#x: %v", pc, err)
		}
	}

	fmt.Printf("single step ok, current PC: %#x\n", ev.PC)
	s.reportPosition(ev.PC)
	return nil
}

// reportPosition prints the function and source position for pc, echoing
// the source line text when the position is known.
func (s *Session) reportPosition(pc uint64) {
	fn, ok := s.resolver.FunctionAt(pc)
	if !ok {
		fn = "[unknown function]"
	}

	file, line, ok := s.resolver.LineAt(pc)
	if !ok {
		fmt.Printf("Stopped in %s at [unknown location]\n", fn)
		return
	}
	fmt.Printf("Stopped in %s at %s:%d\n", fn, file, line)

	if txt, err := sourceLine(file, line); err == nil {
		fmt.Printf("%d\t%s\n", line, txt)
	}
}
