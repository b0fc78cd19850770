package target

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// raw linux wait status encodings: exit code<<8, terminating signal,
// 0x7f | stop signal<<8
func exitedStatus(code int) syscall.WaitStatus {
	return syscall.WaitStatus(code << 8)
}

func signaledStatus(sig syscall.Signal) syscall.WaitStatus {
	return syscall.WaitStatus(sig)
}

func stoppedStatus(sig syscall.Signal) syscall.WaitStatus {
	return syscall.WaitStatus(0x7f | int(sig)<<8)
}

func TestEventFromStatusExited(t *testing.T) {
	ev, err := eventFromStatus(exitedStatus(3), 0)
	require.NoError(t, err)
	require.Equal(t, EventExited, ev.Kind)
	require.Equal(t, 3, ev.Status)
	require.True(t, ev.Terminal())
}

func TestEventFromStatusSignaled(t *testing.T) {
	ev, err := eventFromStatus(signaledStatus(syscall.SIGKILL), 0)
	require.NoError(t, err)
	require.Equal(t, EventSignaled, ev.Kind)
	require.Equal(t, syscall.SIGKILL, ev.Signal)
	require.True(t, ev.Terminal())
}

func TestEventFromStatusStopped(t *testing.T) {
	ev, err := eventFromStatus(stoppedStatus(syscall.SIGTRAP), 0x401136)
	require.NoError(t, err)
	require.Equal(t, EventStopped, ev.Kind)
	require.Equal(t, syscall.SIGTRAP, ev.Signal)
	require.Equal(t, uint64(0x401136), ev.PC)
	require.False(t, ev.Terminal())
}

func TestEventFromStatusUnknown(t *testing.T) {
	// continued status (0xffff) matches none of the three shapes
	_, err := eventFromStatus(syscall.WaitStatus(0xffff), 0)
	require.Error(t, err)
}

func TestStopEventString(t *testing.T) {
	tests := []struct {
		ev   StopEvent
		want string
	}{
		{StopEvent{Kind: EventStopped, Signal: syscall.SIGTRAP, PC: 0x10}, "stopped: trace/breakpoint trap at 0x10"},
		{StopEvent{Kind: EventExited, Status: 2}, "exited: 2"},
		{StopEvent{Kind: EventSignaled, Signal: syscall.SIGKILL}, "signaled: killed"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.ev.String())
	}
}
