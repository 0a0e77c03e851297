/*
 * This file is part of SA818 Bridge (https://github.com/oe5xrx/sa818-bridge-go).
 * Copyright (C) 2025 OE5XRX
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package simaudio

import (
	"sync"
	"time"
)

// SampleClock invokes a registered function at a fixed sample rate. It is
// the heartbeat of the simulated pipeline, standing in for the hardware
// sample-conversion timer.
type SampleClock struct {
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// Start begins ticking at rateHz, calling fn on every tick. A zero rate or
// nil fn is ignored. Starting a running clock restarts it at the new rate.
func (c *SampleClock) Start(rateHz uint32, fn func()) {
	if rateHz == 0 || fn == nil {
		return
	}

	c.Stop()

	c.mu.Lock()
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	period := time.Second / time.Duration(rateHz)
	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop halts the clock and waits for an in-flight tick to complete. No tick
// runs after Stop returns.
func (c *SampleClock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the clock is currently ticking.
func (c *SampleClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
