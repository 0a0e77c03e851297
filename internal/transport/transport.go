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

// Package transport defines the contract between the audio bridge and the
// host link carrying the isochronous audio terminals. The bridge sees two
// logical terminals: OUT (host to radio, TX audio) and IN (radio to host,
// RX audio). The concrete link (USB audio class on real hardware, a NATS
// link here) drives the Handler callbacks and accepts Send calls.
package transport

// Terminal entity IDs as exposed by the USB audio function.
const (
	TerminalOut uint8 = 1 // host -> radio (TX audio)
	TerminalIn  uint8 = 4 // radio -> host (RX audio)
)

// Handler is the device side of the link: the transport invokes these as
// the host activates terminals and delivers audio. The audio bridge
// implements it.
type Handler interface {
	// TerminalUpdate signals that the host enabled or disabled a terminal.
	TerminalUpdate(terminal uint8, enabled bool)

	// RecvBuffer requests a scratch buffer for an inbound transfer of up
	// to size bytes. Returns nil if the terminal is inactive or size is
	// too large, telling the transport to drop the transfer.
	RecvBuffer(terminal uint8, size int) []byte

	// DataReceived delivers a completed inbound transfer. buf is a buffer
	// previously handed out by RecvBuffer.
	DataReceived(terminal uint8, buf []byte)

	// BufferRelease returns a buffer to the handler once the transport is
	// done with it. Pool-owned buffers make this a no-op.
	BufferRelease(terminal uint8, buf []byte)
}

// Sender is the outbound side of the link: the bridge hands it one audio
// frame per service interval for the IN terminal.
type Sender interface {
	Send(terminal uint8, data []byte) error
}
