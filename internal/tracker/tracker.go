// Package tracker decides which content section of a page is in focus from
// the viewport intersection ratios the host reports while the user scrolls.
//
// A Tracker owns all of its state. Visibility entries reach it through an
// injected Observer; time-based steps go through a Scheduler so the whole
// machine can be driven synthetically.
package tracker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds the visibility and timing parameters.
type Config struct {
	// Threshold is the ratio a section must exceed to become active.
	Threshold float64
	// Debounce delays committing a newly chosen section.
	Debounce time.Duration
	// Settle keeps Transitioning set for a moment after a commit.
	Settle time.Duration
	// MountDelay postpones section registration after Mount. Zero registers
	// immediately, which is what a host with a layout-ready signal should use.
	MountDelay time.Duration
	// InitialCheckDelay postpones the deep-link check after registration.
	InitialCheckDelay time.Duration
	// UpperFraction of the viewport the first section's top must be above
	// for the deep-link check to select it.
	UpperFraction float64

	SectionThresholds []float64
	SectionMargin     Margin
	HeroMargin        Margin
}

// DefaultConfig counts a section as in focus when it shows in the central
// fifth of the viewport.
func DefaultConfig() Config {
	return Config{
		Threshold:         0.1,
		Debounce:          150 * time.Millisecond,
		Settle:            50 * time.Millisecond,
		MountDelay:        200 * time.Millisecond,
		InitialCheckDelay: 300 * time.Millisecond,
		UpperFraction:     0.5,
		SectionThresholds: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		SectionMargin:     Margin{Top: -0.4, Bottom: -0.4},
		HeroMargin:        Margin{Bottom: -0.6},
	}
}

// State is what the view renders from.
type State struct {
	Active        string `json:"active" yaml:"active"`
	HasActive     bool   `json:"has_active" yaml:"has_active"`
	Transitioning bool   `json:"transitioning" yaml:"transitioning"`
	HeroVisible   bool   `json:"hero_visible" yaml:"hero_visible"`
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithConfig(cfg Config) Option {
	return func(t *Tracker) { t.cfg = cfg }
}

func WithScheduler(s Scheduler) Option {
	return func(t *Tracker) { t.sched = s }
}

func WithLayout(l Layout) Option {
	return func(t *Tracker) { t.layout = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithOnChange registers fn to receive every new State. fn runs without the
// tracker lock held and may call back into the tracker.
func WithOnChange(fn func(State)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// WithInitialActive starts the tracker with id already active.
func WithInitialActive(id string) Option {
	return func(t *Tracker) {
		t.active = id
		t.hasActive = true
		t.scrolled = id
		t.hasScrolled = true
	}
}

// Tracker derives the active section. Create one per page view and Close it
// when the view goes away.
type Tracker struct {
	cfg      Config
	observer Observer
	sched    Scheduler
	layout   Layout
	logger   *zap.Logger
	onChange func(State)

	mu          sync.Mutex
	hero        string
	sections    []string
	ratios      map[string]float64
	active      string
	hasActive   bool
	pending     string
	hasPending  bool
	transit     bool
	heroVisible bool
	mounted     bool
	registered  bool
	closed      bool

	// scrolled is the last section chosen by scrolling. Select moves active
	// without touching it.
	scrolled    string
	hasScrolled bool

	// gen invalidates debounce and settle callbacks that were superseded.
	gen           uint64
	debounceTimer Timer
	settleTimer   Timer
	mountTimer    Timer
	initTimer     Timer
}

// New returns an unmounted tracker reading entries from observer.
func New(observer Observer, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:         DefaultConfig(),
		observer:    observer,
		sched:       WallClock,
		ratios:      make(map[string]float64),
		heroVisible: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	return t
}

// Mount starts observing. hero may be empty when the page has no intro
// sentinel. Sections are registered after MountDelay in the given order,
// which also breaks ties between equal ratios. Only the first call counts.
func (t *Tracker) Mount(hero string, sections []string) {
	t.mu.Lock()
	if t.mounted || t.closed {
		t.mu.Unlock()
		return
	}
	t.mounted = true
	t.hero = hero
	t.sections = append([]string(nil), sections...)
	t.mu.Unlock()

	if hero != "" {
		t.observer.Observe(hero, ObserveOptions{Thresholds: []float64{0}, Margin: t.cfg.HeroMargin}, t.handle)
	}

	if t.cfg.MountDelay <= 0 {
		t.registerSections()
		return
	}

	t.mu.Lock()
	if !t.closed {
		t.mountTimer = t.sched.AfterFunc(t.cfg.MountDelay, t.registerSections)
	}
	t.mu.Unlock()
}

func (t *Tracker) registerSections() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	sections := t.sections
	t.mu.Unlock()

	opts := ObserveOptions{Thresholds: t.cfg.SectionThresholds, Margin: t.cfg.SectionMargin}
	for _, id := range sections {
		t.observer.Observe(id, opts, t.handle)
	}

	t.mu.Lock()
	closed := t.closed
	checkNow := false
	if !closed {
		t.registered = true
		if t.cfg.InitialCheckDelay <= 0 {
			checkNow = true
		} else {
			t.initTimer = t.sched.AfterFunc(t.cfg.InitialCheckDelay, t.initialCheck)
		}
	}
	t.mu.Unlock()

	if closed {
		for _, id := range sections {
			t.observer.Unobserve(id)
		}
		return
	}
	if checkNow {
		t.initialCheck()
	}
}

// initialCheck covers deep links: the user landed below the intro, so no
// scroll event will arrive to pick the first section.
func (t *Tracker) initialCheck() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	before := t.stateLocked()
	if !t.heroVisible && !t.hasActive && !t.hasPending && len(t.sections) > 0 && t.layout != nil {
		first := t.sections[0]
		if top, ok := t.layout.Top(first); ok && top < t.layout.ViewportHeight()*t.cfg.UpperFraction {
			t.active = first
			t.hasActive = true
			t.scrolled = first
			t.hasScrolled = true
			t.logger.Debug("Initial section selected", zap.String("section", first))
		}
	}
	after := t.stateLocked()
	t.mu.Unlock()

	t.notify(before, after)
}

func (t *Tracker) handle(e Entry) {
	t.Apply(e)
}

// Apply records a batch of visibility entries and recomputes the active
// section once. Entries for the hero sentinel only toggle HeroVisible.
func (t *Tracker) Apply(entries ...Entry) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	before := t.stateLocked()
	for _, e := range entries {
		switch {
		case t.hero != "" && e.Target == t.hero:
			t.heroVisible = e.Intersecting
		case !t.known(e.Target):
			continue
		case e.Intersecting:
			t.ratios[e.Target] = e.Ratio
		default:
			delete(t.ratios, e.Target)
		}
	}
	t.recomputeLocked()
	after := t.stateLocked()
	t.mu.Unlock()

	t.notify(before, after)
}

func (t *Tracker) recomputeLocked() {
	best, top, found := "", 0.0, false
	for _, id := range t.sections {
		r, ok := t.ratios[id]
		if ok && r > top {
			best, top, found = id, r, true
		}
	}
	// Nothing in the band: keep whatever was selected.
	if !found || top <= t.cfg.Threshold {
		return
	}

	// Equal ratios never move the selection away from the current target.
	for _, cand := range t.targetsLocked() {
		if r, ok := t.ratios[cand]; ok && r == top {
			best = cand
			break
		}
	}

	if t.hasScrolled && best == t.scrolled {
		if t.hasPending {
			t.cancelTransitionLocked()
			t.logger.Debug("Pending section dropped", zap.String("section", t.scrolled))
		}
		return
	}
	if t.hasPending && best == t.pending {
		return
	}
	t.beginTransitionLocked(best)
}

// targetsLocked lists the ids the selection is heading to, most recent first.
func (t *Tracker) targetsLocked() []string {
	var out []string
	if t.hasPending {
		out = append(out, t.pending)
	}
	if t.hasScrolled {
		out = append(out, t.scrolled)
	}
	return out
}

func (t *Tracker) beginTransitionLocked(id string) {
	t.stopTimersLocked()
	t.gen++
	gen := t.gen
	t.pending = id
	t.hasPending = true
	t.transit = true
	t.debounceTimer = t.sched.AfterFunc(t.cfg.Debounce, func() { t.commit(gen) })
	t.logger.Debug("Section transition started", zap.String("section", id))
}

func (t *Tracker) cancelTransitionLocked() {
	t.stopTimersLocked()
	t.gen++
	t.pending = ""
	t.hasPending = false
	t.transit = false
}

func (t *Tracker) commit(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen || !t.hasPending {
		t.mu.Unlock()
		return
	}
	before := t.stateLocked()
	t.active = t.pending
	t.hasActive = true
	t.scrolled = t.pending
	t.hasScrolled = true
	t.pending = ""
	t.hasPending = false
	t.debounceTimer = nil
	t.settleTimer = t.sched.AfterFunc(t.cfg.Settle, func() { t.settle(gen) })
	after := t.stateLocked()
	t.logger.Debug("Section committed", zap.String("section", t.active))
	t.mu.Unlock()

	t.notify(before, after)
}

func (t *Tracker) settle(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	before := t.stateLocked()
	t.transit = false
	t.settleTimer = nil
	after := t.stateLocked()
	t.mu.Unlock()

	t.notify(before, after)
}

// Select makes id active at once, as when the user points at its entry in
// the side index. It stays active until scrolling settles on a section other
// than the last one scrolling chose. It reports false for ids that were not
// mounted.
func (t *Tracker) Select(id string) bool {
	t.mu.Lock()
	if t.closed || !t.known(id) {
		t.mu.Unlock()
		return false
	}
	before := t.stateLocked()
	t.cancelTransitionLocked()
	t.active = id
	t.hasActive = true
	after := t.stateLocked()
	t.mu.Unlock()

	t.notify(before, after)
	return true
}

func (t *Tracker) known(id string) bool {
	for _, s := range t.sections {
		if s == id {
			return true
		}
	}
	return false
}

// State returns a snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Ratio returns the last ratio recorded for a section still in view.
func (t *Tracker) Ratio(id string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.ratios[id]
	return r, ok
}

// Close stops every timer and unobserves every target. It is safe to call
// more than once.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.stopTimersLocked()
	if t.mountTimer != nil {
		t.mountTimer.Stop()
	}
	if t.initTimer != nil {
		t.initTimer.Stop()
	}
	var targets []string
	if t.hero != "" {
		targets = append(targets, t.hero)
	}
	if t.registered {
		targets = append(targets, t.sections...)
	}
	t.mu.Unlock()

	for _, id := range targets {
		t.observer.Unobserve(id)
	}
}

func (t *Tracker) stopTimersLocked() {
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
		t.debounceTimer = nil
	}
	if t.settleTimer != nil {
		t.settleTimer.Stop()
		t.settleTimer = nil
	}
}

func (t *Tracker) stateLocked() State {
	return State{
		Active:        t.active,
		HasActive:     t.hasActive,
		Transitioning: t.transit,
		HeroVisible:   t.heroVisible,
	}
}

func (t *Tracker) notify(before, after State) {
	if t.onChange != nil && before != after {
		t.onChange(after)
	}
}
