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

package radio

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/oe5xrx/sa818-bridge-go/internal/audio"
)

// Test tone limits. The tone lives in the voice band; duration is bounded
// so a forgotten tone cannot key the transmitter forever.
const (
	ToneMinFreqHz   = 100
	ToneMaxFreqHz   = 3000
	ToneMaxDuration = time.Hour
	toneSampleRate  = 8000
)

// ToneGenerator plays a sine tone into the radio's DAC for TX audio
// checks. One tone at a time; starting a new tone replaces the running
// one.
type ToneGenerator struct {
	conv audio.Converter

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewToneGenerator builds a generator over the given converter.
func NewToneGenerator(conv audio.Converter) *ToneGenerator {
	return &ToneGenerator{conv: conv}
}

// Start begins tone output at freqHz with the given amplitude (0..1). A
// zero duration plays until Stop; otherwise the tone ends itself when the
// duration expires.
func (t *ToneGenerator) Start(freqHz int, amplitude float64, duration time.Duration) error {
	if freqHz < ToneMinFreqHz || freqHz > ToneMaxFreqHz {
		return fmt.Errorf("tone freq %d Hz outside %d-%d: %w",
			freqHz, ToneMinFreqHz, ToneMaxFreqHz, ErrInvalidParam)
	}
	if amplitude < 0 || amplitude > 1 {
		return fmt.Errorf("tone amplitude %.2f: %w", amplitude, ErrInvalidParam)
	}
	if duration < 0 || duration > ToneMaxDuration {
		return fmt.Errorf("tone duration %v: %w", duration, ErrInvalidParam)
	}
	if !t.conv.Ready() {
		return ErrNotReady
	}

	t.mu.Lock()
	if t.running {
		stop, done := t.stop, t.done
		t.mu.Unlock()
		close(stop)
		<-done
		t.mu.Lock()
	}

	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	stop, done := t.stop, t.done
	t.mu.Unlock()

	var deadline time.Time
	if duration > 0 {
		deadline = time.Now().Add(duration)
		log.Printf("🔊 Test tone: %d Hz for %v", freqHz, duration)
	} else {
		log.Printf("🔊 Test tone: %d Hz (continuous)", freqHz)
	}

	go t.run(freqHz, amplitude, deadline, stop, done)
	return nil
}

// Stop ends the tone and parks the DAC at midscale. No samples are
// written after Stop returns.
func (t *ToneGenerator) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether a tone is playing.
func (t *ToneGenerator) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *ToneGenerator) run(freqHz int, amplitude float64, deadline time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.parkDAC()
	defer t.clearRunning()

	ticker := time.NewTicker(time.Second / toneSampleRate)
	defer ticker.Stop()

	phaseInc := 2 * math.Pi * float64(freqHz) / toneSampleRate
	phase := 0.0
	shift := uint(t.conv.DACResolution() - audio.SampleBitDepth)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			log.Printf("🔊 Test tone finished")
			return
		}

		pcm := int16(math.Sin(phase) * amplitude * 32767)
		value := uint32(int32(pcm)+32768) << shift
		if err := t.conv.WriteDAC(value); err != nil {
			log.Printf("❌ DAC write failed during test tone: %v", err)
			return
		}

		phase += phaseInc
		if phase >= 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}
}

func (t *ToneGenerator) clearRunning() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// parkDAC returns the output to midscale so no DC offset reaches the
// transmitter after the tone ends.
func (t *ToneGenerator) parkDAC() {
	mid := uint32(1) << uint(t.conv.DACResolution()-1)
	if err := t.conv.WriteDAC(mid); err != nil {
		log.Printf("⚠️  DAC park failed: %v", err)
	}
}
