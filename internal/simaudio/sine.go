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

import "math"

// Default sine generator settings used by the console when arguments are
// omitted.
const (
	DefaultSineFreqHz = 1000
	DefaultSineAmp    = 1.0
	DefaultSineRateHz = 8000
)

const twoPi = 2 * math.Pi

// SineSource generates a sine wave with a phase accumulator. The phase is
// wrapped back into [0, 2π) every step so it never grows without bound.
type SineSource struct {
	freqHz       uint32
	amp          float32
	sampleRateHz uint32
	phase        float64
}

// NewSineSource returns a generator at the default test-tone settings.
func NewSineSource() *SineSource {
	s := &SineSource{}
	s.Configure(DefaultSineFreqHz, DefaultSineAmp, DefaultSineRateHz)
	return s
}

// Configure sets frequency, amplitude (0..1) and sample rate, and resets
// the phase so playback restarts at sin(0).
func (s *SineSource) Configure(freqHz uint32, amp float32, sampleRateHz uint32) {
	s.freqHz = freqHz
	s.amp = amp
	s.sampleRateHz = sampleRateHz
	s.phase = 0
}

func (s *SineSource) SampleRate() uint32 {
	return s.sampleRateHz
}

func (s *SineSource) NextSample() float32 {
	v := float32(math.Sin(s.phase)) * s.amp

	s.phase += twoPi * float64(s.freqHz) / float64(s.sampleRateHz)
	if s.phase >= twoPi {
		s.phase -= twoPi
	}
	return v
}
