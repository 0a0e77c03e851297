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
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WAV intake limits. Files longer than the preallocated buffer are
// truncated silently, never grown.
const (
	WavMaxRateHz    = 48000
	WavMaxDurationS = 20
	WavMaxSamples   = WavMaxRateHz * WavMaxDurationS
)

// WavSource plays a mono 16-bit PCM WAV file loaded into a fixed-size
// in-memory buffer. Playback loops forever: the cursor wraps to the first
// sample after the last one.
type WavSource struct {
	buf          []int16
	countSamples int
	idxSamples   int
	sampleRateHz uint32
}

// NewWavSource returns an empty (not loaded) source with its sample buffer
// preallocated at the maximum intake size.
func NewWavSource() *WavSource {
	return &WavSource{buf: make([]int16, WavMaxSamples)}
}

// Loaded reports whether a file has been parsed successfully since the last
// failed Load.
func (w *WavSource) Loaded() bool {
	return w.countSamples > 0 && w.sampleRateHz > 0
}

// SampleRate returns the loaded file's declared rate, or 0 if not loaded.
// The rate is informational: the bridge pipeline always runs at its own
// fixed tick rate and does not resample.
func (w *WavSource) SampleRate() uint32 {
	return w.sampleRateHz
}

// CountSamples returns the number of samples held in the buffer.
func (w *WavSource) CountSamples() int {
	return w.countSamples
}

// Pos returns the current playback cursor, for the console's info command.
func (w *WavSource) Pos() int {
	return w.idxSamples
}

// NextSample returns the sample under the cursor scaled into [-1, +1)
// (divide by 32768 so -32768 maps to exactly -1.0) and advances the cursor,
// wrapping at the end for infinite looping playback. Returns 0 when no file
// is loaded.
func (w *WavSource) NextSample() float32 {
	if !w.Loaded() {
		return 0
	}

	s := w.buf[w.idxSamples]
	w.idxSamples++
	if w.idxSamples >= w.countSamples {
		w.idxSamples = 0
	}
	return float32(s) / 32768.0
}

// Load parses the WAV file at path into the sample buffer. On any failure
// the source is left in the not-loaded state so a partially parsed buffer
// can never play.
func (w *WavSource) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		w.clear()
		return fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	if err := w.parseInto(f); err != nil {
		w.clear()
		return err
	}
	return nil
}

func (w *WavSource) clear() {
	w.countSamples = 0
	w.idxSamples = 0
	w.sampleRateHz = 0
}

// parseInto validates the RIFF/WAVE container, scans for the fmt and data
// chunks, checks the constrained format subset (PCM, mono, 16-bit), and
// reads up to WavMaxSamples samples.
func (w *WavSource) parseInto(f *os.File) error {
	var riffHdr [12]byte
	if _, err := io.ReadFull(f, riffHdr[:]); err != nil {
		return fmt.Errorf("%w: short riff header", ErrMalformed)
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing RIFF/WAVE magic", ErrMalformed)
	}

	haveFmt := false
	haveData := false

	var audioFormat, numChannels, bitsPerSample uint16
	var sampleRateHz, dataBytes uint32
	var dataOff int64

	for {
		var chunkHdr [8]byte
		n, err := io.ReadFull(f, chunkHdr[:])
		if err == io.EOF && n == 0 {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read chunk header: %w", err)
		}

		chunkSize := binary.LittleEndian.Uint32(chunkHdr[4:8])

		switch string(chunkHdr[0:4]) {
		case "fmt ":
			if chunkSize < 16 || chunkSize > 32 {
				return fmt.Errorf("%w: fmt chunk size %d", ErrMalformed, chunkSize)
			}
			var fmtBuf [32]byte
			if _, err := io.ReadFull(f, fmtBuf[:chunkSize]); err != nil {
				return fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			audioFormat = binary.LittleEndian.Uint16(fmtBuf[0:2])
			numChannels = binary.LittleEndian.Uint16(fmtBuf[2:4])
			sampleRateHz = binary.LittleEndian.Uint32(fmtBuf[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(fmtBuf[14:16])
			haveFmt = true

		case "data":
			dataBytes = chunkSize
			off, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return fmt.Errorf("failed to locate data chunk: %w", err)
			}
			dataOff = off
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return fmt.Errorf("failed to skip data chunk: %w", err)
			}
			haveData = true

		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return fmt.Errorf("failed to skip chunk: %w", err)
			}
		}

		if haveFmt && haveData {
			break
		}
	}

	if !haveFmt || !haveData {
		return fmt.Errorf("%w: fmt or data chunk missing", ErrMalformed)
	}
	if audioFormat != 1 {
		return fmt.Errorf("%w: audio format %d (PCM only)", ErrUnsupported, audioFormat)
	}
	if numChannels != 1 {
		return fmt.Errorf("%w: %d channels (mono only)", ErrUnsupported, numChannels)
	}
	if bitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample (s16 only)", ErrUnsupported, bitsPerSample)
	}
	if sampleRateHz == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrMalformed)
	}

	if _, err := f.Seek(dataOff, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to data chunk: %w", err)
	}

	samplesToRead := int(dataBytes / 2)
	if samplesToRead > len(w.buf) {
		samplesToRead = len(w.buf)
	}

	raw := make([]byte, 2)
	for i := 0; i < samplesToRead; i++ {
		if _, err := io.ReadFull(f, raw); err != nil {
			return fmt.Errorf("failed to read sample %d: %w", i, err)
		}
		w.buf[i] = int16(binary.LittleEndian.Uint16(raw))
	}

	w.countSamples = samplesToRead
	w.idxSamples = 0
	w.sampleRateHz = sampleRateHz
	return nil
}
