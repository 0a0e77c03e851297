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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wavSpec struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
	samples       []int16
	omitData      bool
	badMagic      bool
}

func defaultWavSpec(samples []int16) wavSpec {
	return wavSpec{
		audioFormat:   1,
		channels:      1,
		sampleRate:    8000,
		bitsPerSample: 16,
		samples:       samples,
	}
}

// buildWav writes a synthetic WAV file and returns its path.
func buildWav(t *testing.T, spec wavSpec) string {
	t.Helper()

	dataBytes := len(spec.samples) * 2
	var out []byte

	le16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}
	le32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}

	magic := "RIFF"
	if spec.badMagic {
		magic = "RIFX"
	}
	out = append(out, magic...)
	out = append(out, le32(uint32(36+dataBytes))...)
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = append(out, le32(16)...)
	out = append(out, le16(spec.audioFormat)...)
	out = append(out, le16(spec.channels)...)
	out = append(out, le32(spec.sampleRate)...)
	out = append(out, le32(spec.sampleRate*uint32(spec.channels)*uint32(spec.bitsPerSample)/8)...)
	out = append(out, le16(spec.channels*spec.bitsPerSample/8)...)
	out = append(out, le16(spec.bitsPerSample)...)

	if !spec.omitData {
		out = append(out, "data"...)
		out = append(out, le32(uint32(dataBytes))...)
		for _, s := range spec.samples {
			out = append(out, le16(uint16(s))...)
		}
	}

	path := filepath.Join(t.TempDir(), "test.wav")
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestWavSource_RoundTripAndLoop(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	src := NewWavSource()

	require.NoError(t, src.Load(buildWav(t, defaultWavSpec(samples))))
	require.True(t, src.Loaded())
	assert.Equal(t, len(samples), src.CountSamples())
	assert.Equal(t, uint32(8000), src.SampleRate())

	for i, s := range samples {
		assert.Equal(t, float32(s)/32768.0, src.NextSample(), "sample %d", i)
	}
	// Call N+1 wraps back to the first sample.
	assert.Equal(t, float32(samples[0])/32768.0, src.NextSample())
	assert.Equal(t, 1, src.Pos())
}

func TestWavSource_Rejections(t *testing.T) {
	samples := []int16{1, 2, 3}

	testCases := []struct {
		name    string
		mutate  func(*wavSpec)
		wantErr error
	}{
		{"stereo", func(s *wavSpec) { s.channels = 2 }, ErrUnsupported},
		{"eight_bit", func(s *wavSpec) { s.bitsPerSample = 8 }, ErrUnsupported},
		{"non_pcm", func(s *wavSpec) { s.audioFormat = 3 }, ErrUnsupported},
		{"zero_rate", func(s *wavSpec) { s.sampleRate = 0 }, ErrMalformed},
		{"missing_data_chunk", func(s *wavSpec) { s.omitData = true }, ErrMalformed},
		{"bad_riff_magic", func(s *wavSpec) { s.badMagic = true }, ErrMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := defaultWavSpec(samples)
			tc.mutate(&spec)

			src := NewWavSource()
			err := src.Load(buildWav(t, spec))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, src.Loaded())
			assert.Equal(t, float32(0), src.NextSample(), "unloaded source must be silent")
		})
	}
}

func TestWavSource_FailedLoadClearsPreviousState(t *testing.T) {
	src := NewWavSource()
	require.NoError(t, src.Load(buildWav(t, defaultWavSpec([]int16{5, 6, 7}))))
	require.True(t, src.Loaded())

	bad := defaultWavSpec([]int16{9})
	bad.channels = 2
	require.Error(t, src.Load(buildWav(t, bad)))

	// A failed load must not leave the earlier buffer playable.
	assert.False(t, src.Loaded())
	assert.Equal(t, 0, src.CountSamples())
	assert.Equal(t, uint32(0), src.SampleRate())
}

func TestWavSource_TruncatesToBufferCapacity(t *testing.T) {
	samples := make([]int16, WavMaxSamples+100)
	for i := range samples {
		samples[i] = int16(i)
	}

	src := NewWavSource()
	require.NoError(t, src.Load(buildWav(t, defaultWavSpec(samples))))
	assert.Equal(t, WavMaxSamples, src.CountSamples(), "oversized file must truncate, not grow")
}

func TestWavSource_MissingFileFails(t *testing.T) {
	src := NewWavSource()
	err := src.Load(filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
	assert.False(t, src.Loaded())
}
