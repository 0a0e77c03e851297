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

package audio

import (
	"encoding/binary"
	"errors"
	"log"
	"sync"
	"time"
)

// Sample geometry is fixed end-to-end: 16-bit signed little-endian mono PCM.
const (
	SampleSizeBytes = 2
	SampleBitDepth  = 16

	// txBufferSamples is the maximum number of samples requested from the
	// TX producer per tick.
	txBufferSamples = 32
)

// ErrInvalidFormat is returned by Start for a format the pipeline cannot
// drive (zero sample rate, non-16-bit depth, non-mono).
var ErrInvalidFormat = errors.New("invalid audio format")

// Format describes one streaming session's sample format. It is fixed for
// the lifetime of the session; changing it requires Stop + Start.
type Format struct {
	SampleRate uint32 // Hz, typically 8000
	BitDepth   uint8  // bits per sample, typically 16
	Channels   uint8  // 1 = mono
}

// Callbacks connects the streaming engine to whatever transport the radio
// audio is bridged to (USB, network, files). The engine pulls TX audio and
// pushes RX audio; it has no knowledge of where the bytes come from or go.
type Callbacks struct {
	// TxRequest is invoked once per tick when the TX path is enabled.
	// The producer fills up to len(buf) bytes of PCM and returns how many
	// it supplied. Returning 0 (no data ready) skips the DAC writes for
	// this tick.
	TxRequest func(buf []byte) int

	// RxData is invoked once per tick with one newly captured sample.
	// The consumer must copy the data before returning; the buffer is
	// reused on the next tick. There is no backpressure: a slow consumer
	// loses samples, it does not stall the pipeline.
	RxData func(data []byte)
}

// Gate controls which directions of the audio path are live. The radio
// driver implements it from PTT and power state; tests use an always-on
// gate.
type Gate interface {
	TxEnabled() bool
	RxEnabled() bool
}

// OpenGate is a Gate with both directions always enabled.
type OpenGate struct{}

func (OpenGate) TxEnabled() bool { return true }
func (OpenGate) RxEnabled() bool { return true }

// Stream drives bidirectional fixed-rate audio conversion between the
// registered callbacks and a Converter. One Stream owns one Converter; the
// single-active-session rule of the bridge is enforced by constructing
// exactly one Stream and by Start being idempotent.
type Stream struct {
	conv Converter
	gate Gate

	mu        sync.Mutex
	callbacks Callbacks
	format    Format
	streaming bool
	stop      chan struct{}
	done      chan struct{}

	// Conversion error accounting. A failed DAC/ADC operation costs one
	// tick of audio, never the stream.
	dacErrors uint64
	adcErrors uint64
}

// NewStream creates a streaming engine bound to the given converter. A nil
// gate means both directions are always enabled.
func NewStream(conv Converter, gate Gate) *Stream {
	if gate == nil {
		gate = OpenGate{}
	}
	return &Stream{conv: conv, gate: gate}
}

// RegisterCallbacks installs the TX/RX callbacks. Must not be called while
// streaming is active.
func (s *Stream) RegisterCallbacks(cb Callbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// Start begins periodic sample conversion at the format's sample rate.
// Calling Start while already streaming is a no-op returning nil; it never
// spawns a second tick loop.
func (s *Stream) Start(format Format) error {
	if format.SampleRate == 0 || format.BitDepth != 16 || format.Channels != 1 {
		return ErrInvalidFormat
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaming {
		log.Printf("⚠️  Audio streaming already active")
		return nil
	}

	s.format = format
	s.streaming = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(format, s.callbacks, s.stop, s.done)

	log.Printf("🎵 Audio streaming started: %d Hz, %d-bit, %d ch",
		format.SampleRate, format.BitDepth, format.Channels)
	return nil
}

// Stop halts streaming and waits for any in-flight tick to finish. After
// Stop returns, no further callback invocation or converter access happens,
// so shared buffers may be torn down safely. Stopping a stopped stream is a
// no-op.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return
	}
	s.streaming = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	log.Printf("🎵 Audio streaming stopped")
}

// Streaming reports whether the periodic conversion is currently running.
func (s *Stream) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// StreamFormat returns the format of the current (or most recent) session.
func (s *Stream) StreamFormat() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// ConversionErrors returns the cumulative DAC and ADC failure counts.
func (s *Stream) ConversionErrors() (dac, adc uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dacErrors, s.adcErrors
}

// run is the tick loop. The ticker fires on an absolute period grid, so
// callback execution time does not accumulate into long-run drift the way a
// reschedule-from-completion timer would.
func (s *Stream) run(format Format, cb Callbacks, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := time.Second / time.Duration(format.SampleRate)
	// One tick still converts a single RX sample; the TX side may drain
	// several buffered samples per tick to catch up after a skipped one.
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	txBuf := make([]byte, txBufferSamples*SampleSizeBytes)
	rxBuf := make([]byte, SampleSizeBytes)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(cb, txBuf, rxBuf)
		}
	}
}

// tick performs one conversion cycle: TX first, then RX. The order is
// arbitrary but fixed; the two paths share nothing but the converter.
func (s *Stream) tick(cb Callbacks, txBuf, rxBuf []byte) {
	if cb.TxRequest != nil && s.gate.TxEnabled() {
		n := cb.TxRequest(txBuf)

		shift := uint(s.conv.DACResolution() - SampleBitDepth)
		for i := 0; i+SampleSizeBytes <= n; i += SampleSizeBytes {
			pcm := int16(binary.LittleEndian.Uint16(txBuf[i:]))
			// Scale signed 16-bit PCM to the DAC's unsigned range.
			value := uint32(int32(pcm)+32768) << shift
			if err := s.conv.WriteDAC(value); err != nil {
				s.countDACError(err)
				break
			}
		}
	}

	if cb.RxData != nil && s.gate.RxEnabled() {
		raw, err := s.conv.ReadADC()
		if err != nil {
			s.countADCError(err)
			return
		}
		// Full-range unsigned 16-bit to signed PCM: shift the midpoint.
		pcm := int16(int32(raw) - 32768)
		binary.LittleEndian.PutUint16(rxBuf, uint16(pcm))
		cb.RxData(rxBuf)
	}
}

func (s *Stream) countDACError(err error) {
	s.mu.Lock()
	s.dacErrors++
	n := s.dacErrors
	s.mu.Unlock()
	if n == 1 {
		log.Printf("❌ DAC write failed: %v", err)
	}
}

func (s *Stream) countADCError(err error) {
	s.mu.Lock()
	s.adcErrors++
	n := s.adcErrors
	s.mu.Unlock()
	if n == 1 {
		log.Printf("❌ ADC read failed: %v", err)
	}
}
