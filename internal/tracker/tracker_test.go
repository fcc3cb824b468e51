package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

type harness struct {
	tracker *Tracker
	bus     *Bus
	clock   *VirtualClock
	rec     *recorder
}

// immediate registers sections on Mount and runs the deep-link check at once.
func immediate() Config {
	cfg := DefaultConfig()
	cfg.MountDelay = 0
	cfg.InitialCheckDelay = 0
	return cfg
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{bus: NewBus(), clock: NewVirtualClock(), rec: &recorder{}}
	opts = append([]Option{
		WithConfig(cfg),
		WithScheduler(h.clock),
		WithOnChange(h.rec.record),
	}, opts...)
	h.tracker = New(h.bus, opts...)
	t.Cleanup(h.tracker.Close)
	return h
}

func (h *harness) see(id string, ratio float64) {
	h.bus.Deliver(Entry{Target: id, Ratio: ratio, Intersecting: ratio > 0})
}

func (h *harness) leave(id string) {
	h.bus.Deliver(Entry{Target: id})
}

func (h *harness) settle() {
	h.clock.Advance(200 * time.Millisecond)
}

func TestTracker_TransitionTiming(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b", "c"})

	h.see("a", 0.5)
	assert.Equal(t, State{Transitioning: true, HeroVisible: true}, h.tracker.State())

	h.clock.Advance(149 * time.Millisecond)
	assert.False(t, h.tracker.State().HasActive)

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, State{Active: "a", HasActive: true, Transitioning: true, HeroVisible: true}, h.tracker.State())

	h.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, State{Active: "a", HasActive: true, HeroVisible: true}, h.tracker.State())

	assert.Equal(t, []State{
		{Transitioning: true, HeroVisible: true},
		{Active: "a", HasActive: true, Transitioning: true, HeroVisible: true},
		{Active: "a", HasActive: true, HeroVisible: true},
	}, h.rec.all())
}

func TestTracker_StickySelection(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b"})

	h.see("a", 0.6)
	h.settle()
	require.Equal(t, "a", h.tracker.State().Active)

	h.see("a", 0.05)
	h.see("b", 0.08)
	h.settle()
	assert.Equal(t, "a", h.tracker.State().Active)

	h.leave("a")
	h.leave("b")
	h.settle()
	st := h.tracker.State()
	assert.True(t, st.HasActive)
	assert.Equal(t, "a", st.Active)
	assert.False(t, st.Transitioning)
}

func TestTracker_Threshold(t *testing.T) {
	t.Run("ratio equal to threshold does not qualify", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Mount("", []string{"a"})

		h.see("a", 0.1)
		h.settle()

		assert.Equal(t, State{HeroVisible: true}, h.tracker.State())
		assert.Empty(t, h.rec.all())
	})

	t.Run("custom threshold", func(t *testing.T) {
		cfg := immediate()
		cfg.Threshold = 0.5
		h := newHarness(t, cfg)
		h.tracker.Mount("", []string{"a"})

		h.see("a", 0.4)
		h.settle()
		assert.False(t, h.tracker.State().HasActive)

		h.see("a", 0.51)
		h.settle()
		assert.Equal(t, "a", h.tracker.State().Active)
	})
}

func TestTracker_TieBreak(t *testing.T) {
	t.Run("strictly higher ratio wins", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Mount("", []string{"a", "b"})
		h.see("a", 0.5)
		h.settle()

		h.see("b", 0.6)
		h.settle()

		assert.Equal(t, "b", h.tracker.State().Active)
	})

	t.Run("equal ratio keeps the active section", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Mount("", []string{"a", "b"})
		h.see("b", 0.5)
		h.settle()
		require.Equal(t, "b", h.tracker.State().Active)
		before := len(h.rec.all())

		h.see("a", 0.5)
		h.settle()

		assert.Equal(t, "b", h.tracker.State().Active)
		assert.False(t, h.tracker.State().Transitioning)
		assert.Len(t, h.rec.all(), before)
	})

	t.Run("equal ratio keeps the pending section", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Mount("", []string{"a", "b"})
		h.see("b", 0.5)
		h.see("a", 0.5)
		h.settle()

		assert.Equal(t, "b", h.tracker.State().Active)
	})

	t.Run("registration order breaks ties with no selection", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Mount("", []string{"b", "a"})
		h.tracker.Apply(
			Entry{Target: "a", Ratio: 0.7, Intersecting: true},
			Entry{Target: "b", Ratio: 0.7, Intersecting: true},
		)
		h.settle()

		assert.Equal(t, "b", h.tracker.State().Active)
	})
}

func TestTracker_PendingSuperseded(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b"})

	h.see("a", 0.5)
	h.clock.Advance(100 * time.Millisecond)
	h.see("b", 0.9)

	h.clock.Advance(100 * time.Millisecond)
	assert.False(t, h.tracker.State().HasActive, "restarted debounce has not elapsed")
	assert.True(t, h.tracker.State().Transitioning)

	h.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, "b", h.tracker.State().Active)
}

func TestTracker_PendingCancelledOnRevert(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b"})
	h.see("a", 0.5)
	h.settle()

	h.see("b", 0.9)
	require.True(t, h.tracker.State().Transitioning)
	h.leave("b")

	assert.Equal(t, State{Active: "a", HasActive: true, HeroVisible: true}, h.tracker.State())
	h.settle()
	assert.Equal(t, "a", h.tracker.State().Active)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestTracker_BatchRecomputesOnce(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b", "c"})

	h.tracker.Apply(
		Entry{Target: "a", Ratio: 0.3, Intersecting: true},
		Entry{Target: "b", Ratio: 0.6, Intersecting: true},
		Entry{Target: "c", Ratio: 0.2, Intersecting: true},
	)

	assert.Len(t, h.rec.all(), 1)
	h.settle()
	assert.Equal(t, "b", h.tracker.State().Active)

	r, ok := h.tracker.Ratio("c")
	assert.True(t, ok)
	assert.Equal(t, 0.2, r)
}

func TestTracker_HeroSentinel(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("hero", []string{"a"})

	opts, ok := h.bus.Options("hero")
	require.True(t, ok)
	assert.Equal(t, Margin{Bottom: -0.6}, opts.Margin)
	assert.Equal(t, []float64{0}, opts.Thresholds)

	h.bus.Deliver(Entry{Target: "hero", Intersecting: false})
	assert.False(t, h.tracker.State().HeroVisible)
	assert.False(t, h.tracker.State().HasActive)

	h.see("a", 0.4)
	h.settle()
	h.bus.Deliver(Entry{Target: "hero", Ratio: 0.2, Intersecting: true})

	st := h.tracker.State()
	assert.True(t, st.HeroVisible)
	assert.Equal(t, "a", st.Active)
	_, tracked := h.tracker.Ratio("hero")
	assert.False(t, tracked)
}

func TestTracker_SectionObserveOptions(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a"})

	opts, ok := h.bus.Options("a")
	require.True(t, ok)
	assert.Len(t, opts.Thresholds, 11)
	assert.Equal(t, Margin{Top: -0.4, Bottom: -0.4}, opts.Margin)
}

func TestTracker_MountDelay(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.tracker.Mount("hero", []string{"a", "b"})

	assert.True(t, h.bus.Observing("hero"))
	assert.False(t, h.bus.Observing("a"))
	h.see("a", 0.9)
	h.settle()
	assert.False(t, h.tracker.State().HasActive)

	h.clock.Advance(time.Millisecond)
	assert.True(t, h.bus.Observing("a"))
	assert.True(t, h.bus.Observing("b"))
}

func TestTracker_InitialDeepLink(t *testing.T) {
	tests := []struct {
		name        string
		heroVisible bool
		top         float64
		want        State
	}{
		{"landed below intro", false, 120, State{Active: "a", HasActive: true}},
		{"first section too low", false, 500, State{}},
		{"intro still visible", true, 120, State{HeroVisible: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := StaticLayout{Tops: map[string]float64{"a": tt.top, "b": tt.top + 900}, Viewport: 800}
			h := newHarness(t, DefaultConfig(), WithLayout(layout))
			h.tracker.Mount("hero", []string{"a", "b"})
			h.bus.Deliver(Entry{Target: "hero", Intersecting: tt.heroVisible})

			h.clock.Advance(200 * time.Millisecond)
			assert.False(t, h.tracker.State().HasActive, "check waits for its delay")

			h.clock.Advance(300 * time.Millisecond)
			assert.Equal(t, tt.want, h.tracker.State())
		})
	}
}

func TestTracker_InitialCheckKeepsScrollSelection(t *testing.T) {
	layout := StaticLayout{Tops: map[string]float64{"a": 0}, Viewport: 800}
	h := newHarness(t, DefaultConfig(), WithLayout(layout))
	h.tracker.Mount("hero", []string{"a", "b"})
	h.bus.Deliver(Entry{Target: "hero"})
	h.clock.Advance(200 * time.Millisecond)

	h.see("b", 0.8)
	h.clock.Advance(300 * time.Millisecond)

	assert.Equal(t, "b", h.tracker.State().Active)
}

func TestTracker_InitialActive(t *testing.T) {
	h := newHarness(t, immediate(), WithInitialActive("a"))
	h.tracker.Mount("", []string{"a", "b"})

	assert.Equal(t, "a", h.tracker.State().Active)
	h.see("a", 0.3)
	h.settle()
	assert.Empty(t, h.rec.all())
}

func TestTracker_Select(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b"})

	h.see("a", 0.5)
	require.True(t, h.tracker.State().Transitioning)

	assert.True(t, h.tracker.Select("b"))
	assert.Equal(t, State{Active: "b", HasActive: true, HeroVisible: true}, h.tracker.State())

	h.settle()
	assert.Equal(t, "b", h.tracker.State().Active, "cancelled debounce must not fire")

	assert.False(t, h.tracker.Select("zzz"))
}

func TestTracker_SelectHoldsUntilScrollMovesOn(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("", []string{"a", "b", "c"})
	h.see("a", 0.5)
	h.settle()

	require.True(t, h.tracker.Select("b"))

	h.see("a", 0.6)
	h.settle()
	assert.Equal(t, State{Active: "b", HasActive: true, HeroVisible: true}, h.tracker.State())
	assert.Equal(t, 0, h.clock.Pending())

	h.see("c", 0.9)
	h.settle()
	assert.Equal(t, "c", h.tracker.State().Active)
}

func TestTracker_IgnoresUnknownTargets(t *testing.T) {
	h := newHarness(t, immediate())
	h.tracker.Mount("hero", []string{"a"})

	h.tracker.Apply(
		Entry{Target: "stray", Ratio: 0.9, Intersecting: true},
		Entry{Target: "a", Ratio: 0.4, Intersecting: true},
	)

	_, tracked := h.tracker.Ratio("stray")
	assert.False(t, tracked)
	_, tracked = h.tracker.Ratio("a")
	assert.True(t, tracked)
	assert.Len(t, h.tracker.ratios, 1)
}

func TestTracker_Close(t *testing.T) {
	t.Run("releases observers and timers", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Mount("hero", []string{"a", "b"})
		h.see("a", 0.5)
		require.Equal(t, 3, h.bus.Len())
		require.Equal(t, 1, h.clock.Pending())

		h.tracker.Close()

		assert.Equal(t, 0, h.bus.Len())
		assert.Equal(t, 0, h.clock.Pending())

		h.tracker.Apply(Entry{Target: "b", Ratio: 1, Intersecting: true})
		assert.False(t, h.tracker.State().HasActive)
		assert.False(t, h.tracker.Select("a"))

		h.tracker.Close()
	})

	t.Run("before sections register", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		h.tracker.Mount("hero", []string{"a"})
		h.tracker.Close()

		h.clock.Advance(time.Second)

		assert.Equal(t, 0, h.bus.Len())
	})

	t.Run("mount after close is ignored", func(t *testing.T) {
		h := newHarness(t, immediate())
		h.tracker.Close()
		h.tracker.Mount("hero", []string{"a"})
		assert.Equal(t, 0, h.bus.Len())
	})
}

func TestTracker_WallClock(t *testing.T) {
	cfg := immediate()
	cfg.Debounce = 5 * time.Millisecond
	cfg.Settle = 5 * time.Millisecond

	settled := make(chan State, 4)
	bus := NewBus()
	tr := New(bus, WithConfig(cfg), WithOnChange(func(s State) {
		if s.HasActive && !s.Transitioning {
			settled <- s
		}
	}))
	tr.Mount("", []string{"a"})
	bus.Deliver(Entry{Target: "a", Ratio: 0.9, Intersecting: true})

	select {
	case s := <-settled:
		assert.Equal(t, "a", s.Active)
	case <-time.After(2 * time.Second):
		t.Fatal("transition never settled")
	}
	tr.Close()
}
