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
	"log"
	"sync"
)

// AudioPipeline pulls one sample per clock tick from a source and writes it
// to the ADC sink. Note that the clock runs at the SOURCE's sample rate: a
// WAV file recorded at 44100 Hz plays into the 8 kHz bridge pitch-shifted,
// there is no resampling.
type AudioPipeline struct {
	sink  *ADCSink
	clock SampleClock

	mu      sync.Mutex
	src     SampleSource
	running bool
}

func NewAudioPipeline(sink *ADCSink) *AudioPipeline {
	return &AudioPipeline{sink: sink}
}

// Start begins clocking samples from src into the sink at src's rate.
// Starting while already running switches to the new source.
func (p *AudioPipeline) Start(src SampleSource) error {
	if !p.sink.Ready() {
		return ErrNoDevice
	}

	p.mu.Lock()
	p.src = src
	p.running = true
	p.mu.Unlock()

	p.clock.Start(src.SampleRate(), p.onTick)
	log.Printf("🎛️  Sim pipeline started at %d Hz", src.SampleRate())
	return nil
}

// Stop halts the clock and parks the sink at the neutral midscale value.
func (p *AudioPipeline) Stop() {
	p.clock.Stop()

	p.mu.Lock()
	p.running = false
	p.src = nil
	p.mu.Unlock()

	p.sink.WriteNorm(0)
	log.Printf("🎛️  Sim pipeline stopped")
}

// Running reports whether the pipeline is currently playing a source.
func (p *AudioPipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AudioPipeline) onTick() {
	p.mu.Lock()
	src := p.src
	running := p.running
	p.mu.Unlock()

	if !running || src == nil {
		return
	}
	p.sink.WriteNorm(src.NextSample())
}
