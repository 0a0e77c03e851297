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

// Package simaudio feeds deterministic waveforms into the bridge's audio
// path in place of a physical radio, for simulation builds and tests. A
// sample source generates normalized samples, the pipeline clocks them into
// the emulated ADC register at the source's rate.
package simaudio

import "errors"

// Failure conditions shared by the simulated pipeline and its sources.
var (
	// ErrInvalidParam marks an argument outside its valid range.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrNoDevice marks a start attempt with the sink hardware unavailable.
	ErrNoDevice = errors.New("device not ready")

	// ErrUnsupported marks a WAV file whose format the pipeline cannot play.
	ErrUnsupported = errors.New("unsupported wav format")

	// ErrMalformed marks a structurally invalid WAV container.
	ErrMalformed = errors.New("malformed wav file")
)

// SampleSource produces one normalized audio sample per call.
type SampleSource interface {
	// SampleRate returns the source's fixed sample rate in Hz.
	SampleRate() uint32

	// NextSample returns the next sample in [-1.0, +1.0) and advances the
	// source's internal state. Safe to call indefinitely.
	NextSample() float32
}
