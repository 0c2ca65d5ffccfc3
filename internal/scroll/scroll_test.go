package scroll

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func loopedController(t *testing.T, n, extent int) (*Controller, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(epoch)
	c := New(WithClock(clock))
	require.True(t, c.MarkExhausted(n))
	_, ok := c.Measure(extent)
	require.True(t, ok)
	return c, clock
}

func TestStateMachine(t *testing.T) {
	c := New()
	assert.Equal(t, Paging, c.State())

	_, ok := c.Measure(800)
	assert.False(t, ok, "measuring while paging only records the extent")
	assert.Equal(t, 800, c.Extent())

	require.True(t, c.MarkExhausted(23))
	assert.Equal(t, ExhaustedNotLooped, c.State())
	assert.False(t, c.MarkExhausted(30), "exhaustion is recorded once")
	assert.Equal(t, 23, c.Length())

	pos, ok := c.Measure(800)
	require.True(t, ok)
	assert.Equal(t, Looped, c.State())
	assert.Equal(t, 23*800, pos)

	_, ok = c.Measure(400)
	assert.False(t, ok, "looped is terminal")
	assert.Equal(t, 800, c.Extent())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "PAGING", Paging.String())
	assert.Equal(t, "EXHAUSTED_NOT_LOOPED", ExhaustedNotLooped.String())
	assert.Equal(t, "LOOPED", Looped.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestEmptyColumnNeverLoops(t *testing.T) {
	c := New()
	require.True(t, c.MarkExhausted(0))

	_, ok := c.Measure(800)
	assert.False(t, ok)
	assert.Equal(t, ExhaustedNotLooped, c.State())

	_, jumped := c.OnScroll(-100)
	assert.False(t, jumped)
	assert.Empty(t, c.Sequence(nil))
}

func TestMeasureRejectsNonPositiveExtent(t *testing.T) {
	c := New()
	c.MarkExhausted(3)
	_, ok := c.Measure(0)
	assert.False(t, ok)
	assert.Equal(t, ExhaustedNotLooped, c.State())
}

func TestLoopArithmetic(t *testing.T) {
	c, clock := loopedController(t, 7, 800)
	assert.Equal(t, 5600, c.Position())

	top, bottom, ok := c.Sentinels()
	require.True(t, ok)
	assert.Equal(t, 5600, top)
	assert.Equal(t, 11200, bottom)

	jump, ok := c.OnScroll(5599)
	require.True(t, ok)
	assert.Equal(t, 5600, jump.Delta)
	assert.Equal(t, 11199, jump.To)

	clock.Advance(DefaultSettleWindow)
	jump, ok = c.OnScroll(11200)
	require.True(t, ok)
	assert.Equal(t, -5600, jump.Delta)
	assert.Equal(t, 5600, c.Position())
}

func TestNoJumpInsideMiddleCopy(t *testing.T) {
	c, _ := loopedController(t, 7, 800)
	for _, pos := range []int{5600, 8000, 11199} {
		_, ok := c.OnScroll(pos)
		assert.False(t, ok, "position %d", pos)
	}
}

func TestSettleWindowSuppressesSecondJump(t *testing.T) {
	c, clock := loopedController(t, 7, 800)

	_, ok := c.OnScroll(100)
	require.True(t, ok)
	assert.True(t, c.Settling())

	// The jump's own scroll event lands past the bottom sentinel.
	clock.Advance(99 * time.Millisecond)
	_, ok = c.OnScroll(11300)
	assert.False(t, ok)
	assert.Equal(t, 11300, c.Position())

	clock.Advance(time.Millisecond)
	assert.False(t, c.Settling())
	jump, ok := c.OnScroll(11300)
	require.True(t, ok)
	assert.Equal(t, -5600, jump.Delta)
}

func TestCustomSettleWindow(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	c := New(WithClock(clock), WithSettleWindow(0))
	c.MarkExhausted(2)
	c.Measure(100)

	_, ok := c.OnScroll(50)
	require.True(t, ok)
	_, ok = c.OnScroll(50)
	assert.True(t, ok, "zero window honours back-to-back crossings")
}

func TestScrollBeforeLoopOnlyTracksPosition(t *testing.T) {
	c := New()
	_, ok := c.OnScroll(-5)
	assert.False(t, ok)
	assert.Equal(t, -5, c.Position())
}

func TestSequence(t *testing.T) {
	items := []model.GridItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	c := New()
	assert.Len(t, c.Sequence(items), 3)

	c.MarkExhausted(3)
	c.Measure(10)
	seq := c.Sequence(items)
	require.Len(t, seq, 9)
	assert.Equal(t, "a", seq[0].ID)
	assert.Equal(t, "a", seq[3].ID)
	assert.Equal(t, "c", seq[8].ID)

	grown := append(items, model.GridItem{ID: "d"})
	assert.Len(t, c.Sequence(grown), 9, "rows appended after looping are deferred")
}

func TestJumpTraceGolden(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	c := New(WithClock(clock))
	var b strings.Builder
	elapsed := func() int64 { return clock.Now().Sub(epoch).Milliseconds() }

	c.MarkExhausted(7)
	pos, _ := c.Measure(800)
	fmt.Fprintf(&b, "t=%dms measure extent=800 state=%s position=%d\n", elapsed(), c.State(), pos)

	steps := []struct {
		advance  time.Duration
		position int
	}{
		{0, 5500},
		{20 * time.Millisecond, 11250},
		{100 * time.Millisecond, 11250},
		{10 * time.Millisecond, 8000},
	}
	for _, s := range steps {
		clock.Advance(s.advance)
		jump, ok := c.OnScroll(s.position)
		if ok {
			fmt.Fprintf(&b, "t=%dms scroll=%d jump=%+d position=%d\n", elapsed(), s.position, jump.Delta, c.Position())
			continue
		}
		fmt.Fprintf(&b, "t=%dms scroll=%d jump=none settling=%t position=%d\n", elapsed(), s.position, c.Settling(), c.Position())
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "jump_trace", []byte(b.String()))
}
