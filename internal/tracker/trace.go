package tracker

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Trace is a scripted scroll session.
type Trace struct {
	Hero     string   `yaml:"hero"`
	Sections []string `yaml:"sections"`
	// Geometry for the deep-link check.
	FirstTop       float64      `yaml:"first_top"`
	ViewportHeight float64      `yaml:"viewport_height"`
	Events         []TraceEvent `yaml:"events"`
}

// TraceEvent is one visibility notification at an offset from mount.
type TraceEvent struct {
	At      time.Duration `yaml:"at"`
	Section string        `yaml:"section"`
	Hero    bool          `yaml:"hero"`
	Ratio   float64       `yaml:"ratio"`
	// Visible defaults to Ratio > 0.
	Visible *bool `yaml:"visible"`
}

// Step is a state change observed during replay.
type Step struct {
	At    time.Duration `json:"at" yaml:"at"`
	State State         `json:"state" yaml:"state"`
}

// LoadTrace reads a YAML trace file.
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return ParseTrace(data)
}

// ParseTrace decodes and checks a YAML trace.
func ParseTrace(data []byte) (*Trace, error) {
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	if len(tr.Sections) == 0 {
		return nil, fmt.Errorf("trace has no sections")
	}
	known := make(map[string]bool, len(tr.Sections))
	for _, s := range tr.Sections {
		known[s] = true
	}
	for i, ev := range tr.Events {
		if ev.Hero {
			if tr.Hero == "" {
				return nil, fmt.Errorf("event %d targets the hero but the trace has none", i)
			}
			continue
		}
		if !known[ev.Section] {
			return nil, fmt.Errorf("event %d: unknown section %q", i, ev.Section)
		}
		if ev.Ratio < 0 || ev.Ratio > 1 {
			return nil, fmt.Errorf("event %d: ratio %v out of range", i, ev.Ratio)
		}
	}
	return &tr, nil
}

// Replay runs the trace through a fresh Tracker on a virtual clock and
// returns every state change with the time it happened.
func Replay(tr *Trace, cfg Config, opts ...Option) []Step {
	clock := NewVirtualClock()
	bus := NewBus()

	var steps []Step
	layout := StaticLayout{Viewport: tr.ViewportHeight}
	if tr.ViewportHeight > 0 {
		layout.Tops = map[string]float64{tr.Sections[0]: tr.FirstTop}
	}

	opts = append(opts,
		WithConfig(cfg),
		WithScheduler(clock),
		WithLayout(layout),
		WithOnChange(func(s State) {
			steps = append(steps, Step{At: clock.Now(), State: s})
		}),
	)
	t := New(bus, opts...)
	defer t.Close()

	events := append([]TraceEvent(nil), tr.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	t.Mount(tr.Hero, tr.Sections)
	for _, ev := range events {
		clock.AdvanceTo(ev.At)
		target := ev.Section
		if ev.Hero {
			target = tr.Hero
		}
		visible := ev.Ratio > 0
		if ev.Visible != nil {
			visible = *ev.Visible
		}
		bus.Deliver(Entry{Target: target, Ratio: ev.Ratio, Intersecting: visible})
	}

	// Let every pending step play out.
	clock.Advance(cfg.MountDelay + cfg.InitialCheckDelay + cfg.Debounce + cfg.Settle)
	return steps
}
