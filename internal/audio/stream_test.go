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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGate is a Gate with independently switchable directions.
type testGate struct {
	tx atomic.Bool
	rx atomic.Bool
}

func (g *testGate) TxEnabled() bool { return g.tx.Load() }
func (g *testGate) RxEnabled() bool { return g.rx.Load() }

func openTestGate() *testGate {
	g := &testGate{}
	g.tx.Store(true)
	g.rx.Store(true)
	return g
}

func TestStream_RejectsInvalidFormat(t *testing.T) {
	s := NewStream(NewSimConverter(), nil)

	testCases := []struct {
		name   string
		format Format
	}{
		{"zero_rate", Format{SampleRate: 0, BitDepth: 16, Channels: 1}},
		{"eight_bit", Format{SampleRate: 8000, BitDepth: 8, Channels: 1}},
		{"stereo", Format{SampleRate: 8000, BitDepth: 16, Channels: 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Start(tc.format)
			require.ErrorIs(t, err, ErrInvalidFormat)
			assert.False(t, s.Streaming())
		})
	}
}

func TestStream_StopIsSynchronous(t *testing.T) {
	conv := NewSimConverter()
	s := NewStream(conv, nil)

	var rxTicks atomic.Uint64
	s.RegisterCallbacks(Callbacks{
		RxData: func(data []byte) { rxTicks.Add(1) },
	})

	require.NoError(t, s.Start(Format{SampleRate: 1000, BitDepth: 16, Channels: 1}))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	after := rxTicks.Load()
	assert.Greater(t, after, uint64(0), "stream should have ticked while running")

	// No tick may execute after Stop returns.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, rxTicks.Load(), "tick ran after Stop returned")
	assert.False(t, s.Streaming())

	// Stopping again is a no-op.
	s.Stop()
}

func TestStream_StartIsIdempotent(t *testing.T) {
	conv := NewSimConverter()
	s := NewStream(conv, nil)

	var rxTicks atomic.Uint64
	s.RegisterCallbacks(Callbacks{
		RxData: func(data []byte) { rxTicks.Add(1) },
	})

	format := Format{SampleRate: 1000, BitDepth: 16, Channels: 1}
	require.NoError(t, s.Start(format))
	require.NoError(t, s.Start(format), "second start must succeed as a no-op")

	// At 1 kHz a single tick loop produces roughly one tick per
	// millisecond. A duplicate loop would double the count; allow ample
	// scheduling slack but stay well below 2x.
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	ticks := rxTicks.Load()
	assert.Greater(t, ticks, uint64(30), "expected ticks from one loop")
	assert.Less(t, ticks, uint64(160), "tick rate suggests two concurrent loops")
}

func TestStream_TXScalesPCMToDAC(t *testing.T) {
	conv := NewSimConverter()
	s := NewStream(conv, nil)

	pcm := []int16{-32768, -1, 0, 1, 32767}
	var sent atomic.Bool
	s.RegisterCallbacks(Callbacks{
		TxRequest: func(buf []byte) int {
			if !sent.CompareAndSwap(false, true) {
				return 0
			}
			for i, v := range pcm {
				binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
			}
			return len(pcm) * 2
		},
	})

	require.NoError(t, s.Start(Format{SampleRate: 1000, BitDepth: 16, Channels: 1}))
	require.Eventually(t, func() bool {
		return len(conv.DACWrites()) == len(pcm)
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	writes := conv.DACWrites()
	for i, v := range pcm {
		// 16-bit DAC: signed PCM shifted to the unsigned range.
		assert.Equal(t, uint32(int32(v)+32768), writes[i], "sample %d", i)
	}
}

func TestStream_RXConvertsADCToPCM(t *testing.T) {
	conv := NewSimConverter()
	conv.SetADCRaw(4095) // full scale on the 12-bit register
	s := NewStream(conv, nil)

	var mu sync.Mutex
	var samples []int16
	s.RegisterCallbacks(Callbacks{
		RxData: func(data []byte) {
			mu.Lock()
			samples = append(samples, int16(binary.LittleEndian.Uint16(data)))
			mu.Unlock()
		},
	})

	require.NoError(t, s.Start(Format{SampleRate: 1000, BitDepth: 16, Channels: 1}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(samples) > 0
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	// 4095 << 4 = 65520 raw, minus the 32768 midpoint.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int16(32752), samples[0])
}

func TestStream_GateBlocksDisabledDirections(t *testing.T) {
	conv := NewSimConverter()
	gate := openTestGate()
	gate.tx.Store(false)
	s := NewStream(conv, gate)

	var txCalls, rxCalls atomic.Uint64
	s.RegisterCallbacks(Callbacks{
		TxRequest: func(buf []byte) int { txCalls.Add(1); return 0 },
		RxData:    func(data []byte) { rxCalls.Add(1) },
	})

	require.NoError(t, s.Start(Format{SampleRate: 1000, BitDepth: 16, Channels: 1}))
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	assert.Zero(t, txCalls.Load(), "TX producer must not be polled while gated off")
	assert.Greater(t, rxCalls.Load(), uint64(0))
}

func TestStream_ConversionErrorsAreCountedNotFatal(t *testing.T) {
	conv := NewSimConverter()
	conv.SetADCError(errors.New("injected adc fault"))
	s := NewStream(conv, nil)

	var rxCalls atomic.Uint64
	s.RegisterCallbacks(Callbacks{
		TxRequest: func(buf []byte) int { return 0 },
		RxData:    func(data []byte) { rxCalls.Add(1) },
	})

	require.NoError(t, s.Start(Format{SampleRate: 1000, BitDepth: 16, Channels: 1}))

	require.Eventually(t, func() bool {
		_, adc := s.ConversionErrors()
		return adc > 5
	}, time.Second, 5*time.Millisecond, "faulty ticks should keep running and counting")

	// Clearing the fault resumes delivery on the same session.
	conv.SetADCError(nil)
	require.Eventually(t, func() bool {
		return rxCalls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	s.Stop()
}
