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

package transport

import (
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNATSConnection is an in-process NATSConnection that delivers
// published messages straight to matching subscribers.
type fakeNATSConnection struct {
	mu       sync.Mutex
	handlers map[string]nats.MsgHandler
	closed   bool
}

func newFakeNATSConnection() *fakeNATSConnection {
	return &fakeNATSConnection{handlers: make(map[string]nats.MsgHandler)}
}

func (f *fakeNATSConnection) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[subject] = cb
	return &nats.Subscription{}, nil
}

func (f *fakeNATSConnection) Publish(subject string, data []byte) error {
	f.mu.Lock()
	cb := f.handlers[subject]
	f.mu.Unlock()
	if cb != nil {
		cb(&nats.Msg{Subject: subject, Data: data})
	}
	return nil
}

func (f *fakeNATSConnection) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// recordingHandler implements Handler with a fixed scratch buffer.
type recordingHandler struct {
	mu       sync.Mutex
	updates  []struct {
		terminal uint8
		enabled  bool
	}
	received [][]byte
	scratch  [64]byte
	refuse   bool
}

func (h *recordingHandler) TerminalUpdate(terminal uint8, enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, struct {
		terminal uint8
		enabled  bool
	}{terminal, enabled})
}

func (h *recordingHandler) RecvBuffer(terminal uint8, size int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refuse || size > len(h.scratch) {
		return nil
	}
	return h.scratch[:]
}

func (h *recordingHandler) DataReceived(terminal uint8, buf []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, append([]byte(nil), buf...))
}

func (h *recordingHandler) BufferRelease(terminal uint8, buf []byte) {}

func TestNATSTransport_OutAudioReachesHandler(t *testing.T) {
	conn := newFakeNATSConnection()
	handler := &recordingHandler{}
	tr := NewNATSTransportWithConnection(conn, "sa818", handler)
	require.NoError(t, tr.Start())

	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wire, err := NewFrame(FrameTypeAudioData, TerminalOut, 1, 0, pcm).Serialize()
	require.NoError(t, err)
	require.NoError(t, conn.Publish("sa818.audio.out", wire))

	require.Len(t, handler.received, 1)
	assert.Equal(t, pcm, handler.received[0])
}

func TestNATSTransport_RefusedBufferDropsTransfer(t *testing.T) {
	conn := newFakeNATSConnection()
	handler := &recordingHandler{refuse: true}
	tr := NewNATSTransportWithConnection(conn, "sa818", handler)
	require.NoError(t, tr.Start())

	wire, err := NewFrame(FrameTypeAudioData, TerminalOut, 1, 0, []byte{1, 2}).Serialize()
	require.NoError(t, err)
	require.NoError(t, conn.Publish("sa818.audio.out", wire))

	assert.Empty(t, handler.received)
}

func TestNATSTransport_MalformedFrameIgnored(t *testing.T) {
	conn := newFakeNATSConnection()
	handler := &recordingHandler{}
	tr := NewNATSTransportWithConnection(conn, "sa818", handler)
	require.NoError(t, tr.Start())

	require.NoError(t, conn.Publish("sa818.audio.out", []byte("garbage")))
	assert.Empty(t, handler.received)
}

func TestNATSTransport_ControlDrivesTerminalUpdates(t *testing.T) {
	conn := newFakeNATSConnection()
	handler := &recordingHandler{}
	tr := NewNATSTransportWithConnection(conn, "sa818", handler)
	require.NoError(t, tr.Start())

	enable, err := NewFrame(FrameTypeTerminalEnable, TerminalIn, 1, 0, nil).Serialize()
	require.NoError(t, err)
	disable, err := NewFrame(FrameTypeTerminalDisable, TerminalIn, 2, 0, nil).Serialize()
	require.NoError(t, err)

	require.NoError(t, conn.Publish("sa818.control", enable))
	require.NoError(t, conn.Publish("sa818.control", disable))

	require.Len(t, handler.updates, 2)
	assert.Equal(t, TerminalIn, handler.updates[0].terminal)
	assert.True(t, handler.updates[0].enabled)
	assert.False(t, handler.updates[1].enabled)
}

func TestNATSTransport_SendPublishesAudioFrame(t *testing.T) {
	conn := newFakeNATSConnection()
	handler := &recordingHandler{}
	tr := NewNATSTransportWithConnection(conn, "sa818", handler)

	var got *Frame
	_, err := conn.Subscribe("sa818.audio.in", func(msg *nats.Msg) {
		frame, err := DeserializeFrame(msg.Data)
		require.NoError(t, err)
		got = frame
	})
	require.NoError(t, err)

	pcm := []byte{9, 8, 7, 6}
	require.NoError(t, tr.Send(TerminalIn, pcm))

	require.NotNil(t, got)
	assert.Equal(t, FrameTypeAudioData, got.Type)
	assert.Equal(t, TerminalIn, got.Terminal)
	assert.Equal(t, uint32(1), got.Sequence)
	assert.Equal(t, pcm, got.Data)
}
