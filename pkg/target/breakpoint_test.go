package target

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBreakpointAssignsIncreasingIDs(t *testing.T) {
	a := NewBreakpoint(0x401000, "main.go:10")
	b := NewBreakpoint(0x401020, "main.go:12")
	require.True(t, b.ID > a.ID)
	require.Equal(t, uintptr(0x401000), a.Addr)
	require.Equal(t, "main.go:10", a.Pos)
}

func TestBreakpointsSortByID(t *testing.T) {
	c := NewBreakpoint(0x3, "c")
	a := NewBreakpoint(0x1, "a")
	b := NewBreakpoint(0x2, "b")

	bps := Breakpoints{b, c, a}
	sort.Sort(bps)
	require.Equal(t, c.ID, bps[0].ID)
	require.Equal(t, a.ID, bps[1].ID)
	require.Equal(t, b.ID, bps[2].ID)
}
