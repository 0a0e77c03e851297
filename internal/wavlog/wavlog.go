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

// Package wavlog records the DAC output path to a WAV file. On simulation
// builds it stands in for (or taps) the audio converter, so TX audio can
// be inspected with ordinary sound tools.
package wavlog

import (
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/oe5xrx/sa818-bridge-go/internal/audio"
)

// Samples buffered before hitting the encoder. 512 samples is 64 ms at
// 8 kHz, small enough that a crash loses little audio.
const flushSamples = 512

const adcMidscale = 32768

// Recorder is an audio.Converter that appends every DAC sample to a WAV
// file. With an inner converter it acts as a tap: writes are forwarded
// after logging and ADC reads pass straight through. Without one it is a
// pure file sink and reads back silence.
type Recorder struct {
	inner audio.Converter

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	pending []int
	written int
	closed  bool
}

// NewRecorder creates path (truncating an existing file) and returns a
// recorder producing 16-bit mono PCM at sampleRate. inner may be nil.
func NewRecorder(path string, sampleRate int, inner audio.Converter) (*Recorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wavlog: sample rate %d", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavlog: %w", err)
	}

	return &Recorder{
		inner:   inner,
		file:    f,
		enc:     wav.NewEncoder(f, sampleRate, audio.SampleBitDepth, 1, 1),
		pending: make([]int, 0, flushSamples),
	}, nil
}

// Ready reports whether samples can be written.
func (r *Recorder) Ready() bool {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return false
	}
	if r.inner != nil {
		return r.inner.Ready()
	}
	return true
}

// WriteDAC logs one DAC sample and forwards it to the inner converter if
// present. The DAC code is folded back to signed PCM before encoding.
func (r *Recorder) WriteDAC(value uint32) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("wavlog: recorder closed")
	}

	shift := uint(r.dacResolution() - audio.SampleBitDepth)
	pcm := int(value>>shift) - 32768

	r.pending = append(r.pending, pcm)
	var err error
	if len(r.pending) >= flushSamples {
		err = r.flushLocked()
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if r.inner != nil {
		return r.inner.WriteDAC(value)
	}
	return nil
}

// ReadADC passes through to the inner converter, or returns silence on a
// file-only recorder.
func (r *Recorder) ReadADC() (uint16, error) {
	if r.inner != nil {
		return r.inner.ReadADC()
	}
	return adcMidscale, nil
}

// DACResolution matches the inner converter so the stream's scaling is
// unchanged by the tap.
func (r *Recorder) DACResolution() int {
	return r.dacResolution()
}

func (r *Recorder) dacResolution() int {
	if r.inner != nil {
		return r.inner.DACResolution()
	}
	return audio.SampleBitDepth
}

// Written returns the number of samples encoded so far, excluding any
// still buffered.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: r.enc.SampleRate, NumChannels: 1},
		Data:           r.pending,
		SourceBitDepth: audio.SampleBitDepth,
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("wavlog: encode: %w", err)
	}
	r.written += len(r.pending)
	r.pending = r.pending[:0]
	return nil
}

// Close flushes buffered samples, finalizes the WAV header, and closes
// the file. Safe to call twice.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	flushErr := r.flushLocked()
	encErr := r.enc.Close()
	fileErr := r.file.Close()

	if flushErr != nil {
		return flushErr
	}
	if encErr != nil {
		return fmt.Errorf("wavlog: finalize: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("wavlog: close: %w", fileErr)
	}
	return nil
}
