// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import "time"

// fakeClock drives the scheduler and tracker timers deterministically.
// Tests run single-threaded on the fake loop, mirroring the engine's
// single event loop.
type fakeClock struct {
	now    time.Time
	seq    int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	when time.Time
	fn   func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		timers: make(map[int]*fakeTimer),
	}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// After is the AfterFunc the components under test are wired with.
func (c *fakeClock) After(d time.Duration, fn func()) func() {
	id := c.seq
	c.seq++
	c.timers[id] = &fakeTimer{when: c.now.Add(d), fn: fn}
	return func() { delete(c.timers, id) }
}

// advance moves the clock forward, firing due timers in order.
func (c *fakeClock) advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		bestID := -1
		var best *fakeTimer
		for id, t := range c.timers {
			if t.when.After(target) {
				continue
			}
			if best == nil || t.when.Before(best.when) {
				bestID, best = id, t
			}
		}
		if best == nil {
			break
		}
		c.now = best.when
		delete(c.timers, bestID)
		best.fn()
	}
	c.now = target
}

func (c *fakeClock) armedTimers() int {
	return len(c.timers)
}
