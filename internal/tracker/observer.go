package tracker

import "sync"

// Entry is one visibility notification for an observed target.
type Entry struct {
	Target       string
	Ratio        float64
	Intersecting bool
}

// Margin shrinks (negative) or grows the visibility window on each side,
// as a fraction of the viewport.
type Margin struct {
	Top    float64 `json:"top" yaml:"top"`
	Right  float64 `json:"right" yaml:"right"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Left   float64 `json:"left" yaml:"left"`
}

// ObserveOptions configure when the host reports a target.
type ObserveOptions struct {
	Thresholds []float64
	Margin     Margin
}

// Observer is the host's viewport intersection capability.
type Observer interface {
	Observe(target string, opts ObserveOptions, cb func(Entry))
	Unobserve(target string)
}

// Layout answers geometry questions about observed targets.
type Layout interface {
	// Top is the target's top edge relative to the viewport, in pixels.
	Top(target string) (float64, bool)
	ViewportHeight() float64
}

// Bus is an in-process Observer that delivers entries pushed to it.
type Bus struct {
	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	opts ObserveOptions
	cb   func(Entry)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]subscription)}
}

func (b *Bus) Observe(target string, opts ObserveOptions, cb func(Entry)) {
	b.mu.Lock()
	b.subs[target] = subscription{opts: opts, cb: cb}
	b.mu.Unlock()
}

func (b *Bus) Unobserve(target string) {
	b.mu.Lock()
	delete(b.subs, target)
	b.mu.Unlock()
}

// Observing reports whether target currently has a subscriber.
func (b *Bus) Observing(target string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[target]
	return ok
}

// Options returns the options target was observed with.
func (b *Bus) Options(target string) (ObserveOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[target]
	return sub.opts, ok
}

// Len is the number of observed targets.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Deliver hands each entry to its target's callback, in order. Entries for
// targets nobody observes are dropped.
func (b *Bus) Deliver(entries ...Entry) {
	for _, e := range entries {
		b.mu.Lock()
		sub, ok := b.subs[e.Target]
		b.mu.Unlock()
		if ok {
			sub.cb(e)
		}
	}
}

// StaticLayout is a fixed Layout.
type StaticLayout struct {
	Tops     map[string]float64
	Viewport float64
}

func (l StaticLayout) Top(target string) (float64, bool) {
	top, ok := l.Tops[target]
	return top, ok
}

func (l StaticLayout) ViewportHeight() float64 {
	return l.Viewport
}
