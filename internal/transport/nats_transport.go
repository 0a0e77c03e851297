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
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConnection interface for dependency injection
type NATSConnection interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	Close()
}

// NATSConnectionAdapter adapts *nats.Conn to the NATSConnection interface
type NATSConnectionAdapter struct {
	conn *nats.Conn
}

func NewNATSConnectionAdapter(conn *nats.Conn) *NATSConnectionAdapter {
	return &NATSConnectionAdapter{conn: conn}
}

func (a *NATSConnectionAdapter) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return a.conn.Subscribe(subject, cb)
}

func (a *NATSConnectionAdapter) Publish(subject string, data []byte) error {
	return a.conn.Publish(subject, data)
}

func (a *NATSConnectionAdapter) Close() {
	a.conn.Close()
}

// NATSTransport carries the bridge's audio terminals over NATS subjects,
// standing in for the USB isochronous link when the bridge runs host-side:
//
//	<prefix>.audio.out  host -> radio PCM frames (OUT terminal)
//	<prefix>.audio.in   radio -> host PCM frames (IN terminal)
//	<prefix>.control    terminal enable/disable and heartbeats
//
// Inbound frames are delivered through the Handler exactly the way the USB
// stack would: buffer request, copy, data-received, release.
type NATSTransport struct {
	natsConn NATSConnection
	bridgeID string
	handler  Handler
	sequence atomic.Uint32
}

// NewNATSTransport connects to natsURL with retry and binds the transport
// to the given handler.
func NewNATSTransport(natsURL, bridgeID string, handler Handler) (*NATSTransport, error) {
	var nc *nats.Conn
	var err error

	for i := 0; i < 5; i++ {
		nc, err = nats.Connect(natsURL)
		if err == nil {
			break
		}
		log.Printf("⚠️  Failed to connect to NATS (attempt %d/5): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after 5 attempts: %w", err)
	}

	log.Printf("✅ Connected to NATS at %s", natsURL)
	return NewNATSTransportWithConnection(NewNATSConnectionAdapter(nc), bridgeID, handler), nil
}

// NewNATSTransportWithConnection creates a transport over an existing
// connection (for testing).
func NewNATSTransportWithConnection(natsConn NATSConnection, bridgeID string, handler Handler) *NATSTransport {
	return &NATSTransport{
		natsConn: natsConn,
		bridgeID: bridgeID,
		handler:  handler,
	}
}

// Start subscribes to the host-to-radio audio and control subjects.
func (t *NATSTransport) Start() error {
	outSubject := fmt.Sprintf("%s.audio.out", t.bridgeID)
	if _, err := t.natsConn.Subscribe(outSubject, t.handleAudioOut); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", outSubject, err)
	}

	controlSubject := fmt.Sprintf("%s.control", t.bridgeID)
	if _, err := t.natsConn.Subscribe(controlSubject, t.handleControl); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", controlSubject, err)
	}

	log.Printf("🎧 Subscribed to bridge subjects: %s, %s", outSubject, controlSubject)
	return nil
}

// Send publishes one audio frame for the given terminal. Implements Sender.
func (t *NATSTransport) Send(terminal uint8, data []byte) error {
	frame := NewFrame(FrameTypeAudioData, terminal, t.sequence.Add(1), nowMicros(), data)

	wire, err := frame.Serialize()
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.audio.in", t.bridgeID)
	if err := t.natsConn.Publish(subject, wire); err != nil {
		return fmt.Errorf("failed to publish audio frame: %w", err)
	}
	return nil
}

// handleAudioOut feeds a host audio frame into the bridge via the standard
// buffer-request / data-received sequence.
func (t *NATSTransport) handleAudioOut(msg *nats.Msg) {
	frame, err := DeserializeFrame(msg.Data)
	if err != nil {
		log.Printf("❌ Dropping malformed audio frame: %v", err)
		return
	}
	if frame.Type != FrameTypeAudioData {
		return
	}

	buf := t.handler.RecvBuffer(frame.Terminal, len(frame.Data))
	if buf == nil {
		// Terminal inactive or frame oversized; the drop is the
		// handler's call, not an error here.
		return
	}

	n := copy(buf, frame.Data)
	t.handler.DataReceived(frame.Terminal, buf[:n])
	t.handler.BufferRelease(frame.Terminal, buf)
}

// handleControl applies terminal activation changes from the host.
func (t *NATSTransport) handleControl(msg *nats.Msg) {
	frame, err := DeserializeFrame(msg.Data)
	if err != nil {
		log.Printf("❌ Dropping malformed control frame: %v", err)
		return
	}

	switch frame.Type {
	case FrameTypeTerminalEnable:
		t.handler.TerminalUpdate(frame.Terminal, true)
	case FrameTypeTerminalDisable:
		t.handler.TerminalUpdate(frame.Terminal, false)
	case FrameTypeHeartbeat:
		// Host is alive, no action needed
	default:
		log.Printf("⚠️  Unknown control frame type: %d", frame.Type)
	}
}

// Close closes the NATS connection.
func (t *NATSTransport) Close() {
	if t.natsConn != nil {
		t.natsConn.Close()
		log.Println("🔌 NATS connection closed")
	}
}

func nowMicros() uint64 {
	micros := time.Now().UnixMicro()
	if micros < 0 {
		return 0
	}
	return uint64(micros)
}
