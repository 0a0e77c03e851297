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

// Package bridge adapts host-side terminal lifecycle events and buffer
// exchange into ring-buffer traffic for the radio's audio stream.
//
// Audio flow, steady state:
//
//	host OUT frames -> TX ring -> stream TxRequest -> DAC (radio TX)
//	radio RX -> ADC -> stream RxData -> RX ring -> sender task -> host IN
//
// The ring buffers decouple the host's 1 kHz service interval from the
// 8 kHz sample clock; sustained rate mismatch degrades into logged sample
// drops, never into a stalled stream.
package bridge

import (
	"log"
	"sync"
	"time"

	"github.com/oe5xrx/sa818-bridge-go/internal/audio"
	"github.com/oe5xrx/sa818-bridge-go/internal/ringbuf"
	"github.com/oe5xrx/sa818-bridge-go/internal/transport"
)

// Audio configuration, fixed end-to-end.
const (
	SampleRateHz    = 8000
	SampleSizeBytes = 2 // 16-bit PCM
	Channels        = 1 // mono

	// Full-speed service interval is 1 ms: 8 samples per frame at 8 kHz.
	SamplesPerFrame = 8
	BytesPerFrame   = SamplesPerFrame * SampleSizeBytes
	frameInterval   = time.Millisecond

	// Ring buffer sizes (must be a power of two). 512 bytes holds 256
	// samples, 32 ms of slack in each direction.
	txRingSize = 512
	rxRingSize = 512

	// Scratch buffer pool for host transfers. The pool must outnumber the
	// transfers in flight; buffers are reused round-robin without
	// tracking.
	poolCount   = 8
	poolBufSize = 32
)

// Bridge owns the two ring buffers, the terminal state, and the periodic
// IN-terminal sender. It implements transport.Handler toward the host link
// and produces audio.Callbacks toward the streaming engine.
//
// One mutex guards all cross-context state (rings, enabled flags, pool
// cursor) so a terminal reset can never race an in-flight push or pull on
// the same buffer.
type Bridge struct {
	sender transport.Sender

	mu        sync.Mutex
	txRing    *ringbuf.RingBuffer
	rxRing    *ringbuf.RingBuffer
	pool      [poolCount][poolBufSize]byte
	poolIdx   int
	txEnabled bool
	rxEnabled bool

	running bool
	stop    chan struct{}
	done    chan struct{}

	// Loss accounting. Overflow is expected under rate mismatch and is
	// tolerated, not escalated.
	txDroppedBytes uint64
	rxDroppedBytes uint64
	sendFailures   uint64
}

// New creates a bridge that hands IN-terminal audio to the given sender.
func New(sender transport.Sender) (*Bridge, error) {
	txRing, err := ringbuf.New("tx", txRingSize)
	if err != nil {
		return nil, err
	}
	rxRing, err := ringbuf.New("rx", rxRingSize)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		sender: sender,
		txRing: txRing,
		rxRing: rxRing,
	}, nil
}

// SetSender swaps the IN-terminal sender. The transport usually needs the
// bridge as its handler before it exists itself, so the bridge starts on a
// placeholder sender and gets the real one here. Must be called before
// Start.
func (b *Bridge) SetSender(sender transport.Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = sender
}

// TerminalUpdate implements transport.Handler. Disabling a terminal resets
// its ring buffer so stale audio is discarded rather than played when the
// host resumes the stream.
func (b *Bridge) TerminalUpdate(terminal uint8, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch terminal {
	case transport.TerminalOut:
		b.txEnabled = enabled
		log.Printf("🔌 OUT (TX) terminal %s", enabledStr(enabled))
		if !enabled {
			b.txRing.Reset()
		}
	case transport.TerminalIn:
		b.rxEnabled = enabled
		log.Printf("🔌 IN (RX) terminal %s", enabledStr(enabled))
		if !enabled {
			b.rxRing.Reset()
		}
	default:
		log.Printf("⚠️  Terminal update for unknown terminal %d", terminal)
	}
}

func enabledStr(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// RecvBuffer implements transport.Handler: returns a pool buffer for an
// inbound OUT transfer, or nil if the terminal is inactive or the transfer
// would not fit a pool buffer.
func (b *Bridge) RecvBuffer(terminal uint8, size int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if terminal != transport.TerminalOut || !b.txEnabled {
		return nil
	}
	if size > poolBufSize {
		log.Printf("❌ Requested buffer size %d exceeds max %d", size, poolBufSize)
		return nil
	}

	buf := b.pool[b.poolIdx][:]
	b.poolIdx = (b.poolIdx + 1) % poolCount
	return buf
}

// DataReceived implements transport.Handler: pushes host OUT audio into
// the TX ring. Bytes that do not fit are dropped and counted.
func (b *Bridge) DataReceived(terminal uint8, buf []byte) {
	if terminal != transport.TerminalOut {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.txEnabled {
		return
	}

	put := b.txRing.Put(buf)
	if put < len(buf) {
		b.txDroppedBytes += uint64(len(buf) - put)
		log.Printf("⚠️  TX ring overflow: %d/%d bytes dropped", len(buf)-put, len(buf))
	}
}

// BufferRelease implements transport.Handler. Buffers are pool-owned, so
// there is nothing to free.
func (b *Bridge) BufferRelease(terminal uint8, buf []byte) {}

// TxRequest is the stream's TX pull callback: it drains buffered host
// audio for DAC conversion. Returns 0 when the OUT terminal is inactive or
// the ring is empty; the stream skips the DAC write for that tick.
func (b *Bridge) TxRequest(buf []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.txEnabled {
		return 0
	}
	return b.txRing.Get(buf)
}

// RxData is the stream's RX push callback: it buffers captured radio audio
// for the IN-terminal sender. Overflow is dropped and counted.
func (b *Bridge) RxData(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.rxEnabled {
		return
	}

	put := b.rxRing.Put(data)
	if put < len(data) {
		b.rxDroppedBytes += uint64(len(data) - put)
		log.Printf("⚠️  RX ring overflow: %d/%d bytes dropped", len(data)-put, len(data))
	}
}

// Callbacks returns the bridge's ends of the audio stream contract.
func (b *Bridge) Callbacks() audio.Callbacks {
	return audio.Callbacks{
		TxRequest: b.TxRequest,
		RxData:    b.RxData,
	}
}

// Start launches the IN-terminal sender task. IN transfers are host-polled
// on real hardware, so a proactive sender paces radio audio out at the
// service-interval rate.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return
	}
	b.running = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})

	go b.senderLoop(b.stop, b.done)
	log.Printf("🌉 Bridge started (8kHz, 16-bit, mono; %dB/frame)", BytesPerFrame)
}

// Stop halts the sender task and waits for it to exit.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	stop, done := b.stop, b.done
	b.mu.Unlock()

	close(stop)
	<-done
	log.Printf("🌉 Bridge stopped")
}

// senderLoop pushes one frame of RX audio to the host per service
// interval. A tick with less than a full frame buffered sends nothing;
// partial frames are never sent. A failed send costs only that tick.
func (b *Bridge) senderLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	// The sender owns its frame buffer outright. Pool slots cycle under
	// RecvBuffer, so a shared slot could be handed to an OUT transfer
	// while a send is still reading it.
	var frame [BytesPerFrame]byte

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if !b.rxEnabled || b.rxRing.Size() < BytesPerFrame {
			b.mu.Unlock()
			continue
		}

		buf := frame[:]
		n := b.rxRing.Get(buf)
		sender := b.sender
		b.mu.Unlock()

		if n == 0 {
			continue
		}

		if err := sender.Send(transport.TerminalIn, buf[:n]); err != nil {
			b.mu.Lock()
			b.sendFailures++
			b.mu.Unlock()
			log.Printf("⚠️  IN send failed: %v", err)
		}
	}
}

// TerminalEnabled reports a terminal's activation state.
func (b *Bridge) TerminalEnabled(terminal uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch terminal {
	case transport.TerminalOut:
		return b.txEnabled
	case transport.TerminalIn:
		return b.rxEnabled
	}
	return false
}

// TxBuffered returns the bytes currently queued toward the radio.
func (b *Bridge) TxBuffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.txRing.Size()
}

// RxBuffered returns the bytes currently queued toward the host.
func (b *Bridge) RxBuffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rxRing.Size()
}

// Stats returns the cumulative drop and failure counters.
func (b *Bridge) Stats() (txDropped, rxDropped, sendFailures uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.txDroppedBytes, b.rxDroppedBytes, b.sendFailures
}
