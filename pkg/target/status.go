package target

import (
	"fmt"
	"syscall"
)

// StopKind classifies the state change reported by wait4 on the tracee.
type StopKind uint8

const (
	// EventStopped the tracee received a signal and entered trace-stop
	EventStopped StopKind = iota
	// EventExited the tracee exited normally
	EventExited
	// EventSignaled the tracee was terminated by a signal
	EventSignaled
)

// StopEvent is the translated result of one wait on the tracee. Exactly one
// of the kinds above applies; EventExited and EventSignaled are terminal and
// the TracedProcess must be discarded after receiving them.
type StopEvent struct {
	Kind StopKind

	Signal syscall.Signal // stop or termination signal, EventStopped/EventSignaled
	Status int            // exit code, EventExited
	PC     uint64         // instruction pointer at trace-stop, EventStopped
}

// Terminal reports whether the tracee is gone after this event.
func (ev *StopEvent) Terminal() bool {
	return ev.Kind == EventExited || ev.Kind == EventSignaled
}

func (ev *StopEvent) String() string {
	switch ev.Kind {
	case EventStopped:
		return fmt.Sprintf("stopped: %v at %#x", ev.Signal, ev.PC)
	case EventExited:
		return fmt.Sprintf("exited: %d", ev.Status)
	case EventSignaled:
		return fmt.Sprintf("signaled: %v", ev.Signal)
	default:
		return fmt.Sprintf("unknown stop kind %d", ev.Kind)
	}
}

// eventFromStatus translates a raw wait status. The caller supplies the PC
// it read from the register set when the status is a trace-stop. Any wait
// status outside the three known shapes is an error, never a guess.
func eventFromStatus(status syscall.WaitStatus, pc uint64) (*StopEvent, error) {
	switch {
	case status.Exited():
		return &StopEvent{Kind: EventExited, Status: status.ExitStatus()}, nil
	case status.Signaled():
		return &StopEvent{Kind: EventSignaled, Signal: status.Signal()}, nil
	case status.Stopped():
		return &StopEvent{Kind: EventStopped, Signal: status.StopSignal(), PC: pc}, nil
	default:
		return nil, fmt.Errorf("unexpected wait status: %#x", uint32(status))
	}
}
