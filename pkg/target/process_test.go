package target

import (
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "loop")
	cmd := exec.Command("go", "build", "-gcflags=all=-N -l", "-o", bin, "./testdata/loop")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return bin
}

func launchFixture(t *testing.T) *TracedProcess {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("ptrace tests only run on linux")
	}

	dbp, err := NewTracedProcess(buildFixture(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = dbp.Kill()
		dbp.Close()
	})
	return dbp
}

func TestLaunchStopsAtEntry(t *testing.T) {
	dbp := launchFixture(t)

	require.True(t, dbp.Pid() > 0)
	require.Equal(t, EXEC, dbp.Kind)

	// the tracee sits in trace-stop, registers are readable
	regs, err := dbp.ReadRegister()
	require.NoError(t, err)
	require.True(t, regs.PC() > 0)
}

func TestPatchByteRoundTrip(t *testing.T) {
	dbp := launchFixture(t)

	regs, err := dbp.ReadRegister()
	require.NoError(t, err)
	addr := uintptr(regs.PC())

	orig, err := dbp.PatchByte(addr, trapInstruction)
	require.NoError(t, err)

	buf := make([]byte, 1)
	n, err := dbp.ReadMemory(addr, buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, trapInstruction, buf[0])

	// restoring must surface the trap opcode as the overwritten byte
	prev, err := dbp.PatchByte(addr, orig)
	require.NoError(t, err)
	require.Equal(t, trapInstruction, prev)

	_, err = dbp.ReadMemory(addr, buf)
	require.NoError(t, err)
	require.Equal(t, orig, buf[0])
}

func TestInstallBreakpointsSkipsRecorded(t *testing.T) {
	dbp := launchFixture(t)

	regs, err := dbp.ReadRegister()
	require.NoError(t, err)
	addr := uintptr(regs.PC())

	require.NoError(t, dbp.InstallBreakpoints([]uintptr{addr}))
	require.Equal(t, 1, len(dbp.Breakpoints))
	orig := dbp.Breakpoints[addr]

	// a second install must not re-read the now-patched byte
	require.NoError(t, dbp.InstallBreakpoints([]uintptr{addr}))
	require.Equal(t, 1, len(dbp.Breakpoints))
	require.Equal(t, orig, dbp.Breakpoints[addr])

	restored, err := dbp.ClearBreakpoint(addr)
	require.NoError(t, err)
	require.Equal(t, orig, restored)
	require.Equal(t, 0, len(dbp.Breakpoints))
}

func TestClearBreakpointUnknownAddr(t *testing.T) {
	dbp := launchFixture(t)

	_, err := dbp.ClearBreakpoint(0xdeadbeef)
	require.Equal(t, ErrBreakpointNotExisted, err)
}

func TestSingleStepAdvancesPC(t *testing.T) {
	dbp := launchFixture(t)

	regs, err := dbp.ReadRegister()
	require.NoError(t, err)
	before := regs.PC()

	require.NoError(t, dbp.SingleStep())
	ev, err := dbp.Wait(true)
	require.NoError(t, err)
	require.Equal(t, EventStopped, ev.Kind)
	require.Equal(t, syscall.SIGTRAP, ev.Signal)
	require.True(t, ev.PC != before)
}

func TestNonBlockingWaitReturnsNothing(t *testing.T) {
	dbp := launchFixture(t)

	// the tracee is stopped; nothing new to report
	ev, err := dbp.Wait(false)
	require.NoError(t, err)
	require.True(t, ev == nil)
}

func TestKillThenResumeReportsExited(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ptrace tests only run on linux")
	}

	dbp, err := NewTracedProcess(buildFixture(t))
	require.NoError(t, err)
	defer dbp.Close()

	pid := dbp.Pid()
	require.NoError(t, dbp.Kill())

	err = dbp.Resume()
	require.Equal(t, ErrProcessExited{Pid: pid}, err)
}

func TestAttachAndDetach(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ptrace tests only run on linux")
	}

	victim := exec.Command(buildFixture(t))
	require.NoError(t, victim.Start())
	defer func() {
		_ = victim.Process.Kill()
		_, _ = victim.Process.Wait()
	}()

	// give the child a moment to exec
	time.Sleep(100 * time.Millisecond)

	dbp, err := AttachTracedProcess(victim.Process.Pid)
	require.NoError(t, err)
	defer dbp.Close()

	require.Equal(t, ATTACH, dbp.Kind)
	require.Equal(t, "loop", dbp.Command)
	require.True(t, len(dbp.Args) > 0)

	require.NoError(t, dbp.Detach())
}

func TestLaunchNonexistentExecutable(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ptrace tests only run on linux")
	}

	_, err := NewTracedProcess(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
