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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary frame protocol for the network audio link. One frame carries one
// service interval's worth of PCM (or a control event), so the host side
// can reconstruct the isochronous cadence.

// FrameType represents the type of frame being transmitted.
type FrameType uint8

const (
	// Audio frame types
	FrameTypeAudioData FrameType = 0x01

	// Control frame types
	FrameTypeTerminalEnable  FrameType = 0x10
	FrameTypeTerminalDisable FrameType = 0x11
	FrameTypeHeartbeat       FrameType = 0x12
)

// Frame represents a binary frame in the protocol.
type Frame struct {
	Type      FrameType
	Terminal  uint8
	Sequence  uint32
	Timestamp uint64
	Data      []byte
}

// FrameHeader is the fixed-size wire header.
type FrameHeader struct {
	Magic     uint32    // 0x53413831 ("SA81")
	Type      FrameType // Frame type (1 byte)
	Terminal  uint8     // Audio terminal ID (1 byte)
	Length    uint16    // Data payload length (2 bytes)
	Sequence  uint32    // Sequence number (4 bytes)
	Timestamp uint64    // Unix timestamp microseconds (8 bytes)
}

const (
	// FrameMagic validates frame boundaries on the wire.
	FrameMagic = 0x53413831 // "SA81" in big-endian

	// Audio payloads are a handful of 8 kHz samples per service interval;
	// 512 bytes leaves generous headroom without inviting abuse.
	MaxDataSize = 512
	HeaderSize  = 20
)

// Serialize converts a frame to binary format.
func (f *Frame) Serialize() ([]byte, error) {
	if len(f.Data) > MaxDataSize {
		return nil, fmt.Errorf("frame data too large: %d bytes (max %d)", len(f.Data), MaxDataSize)
	}

	header := FrameHeader{
		Magic:     FrameMagic,
		Type:      f.Type,
		Terminal:  f.Terminal,
		Length:    uint16(len(f.Data)),
		Sequence:  f.Sequence,
		Timestamp: f.Timestamp,
	}

	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.BigEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write frame header: %w", err)
	}

	if len(f.Data) > 0 {
		if _, err := buf.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write frame data: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// DeserializeFrame converts binary data to a frame.
func DeserializeFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("frame too small: %d bytes (min %d)", len(data), HeaderSize)
	}

	buf := bytes.NewReader(data)
	var header FrameHeader

	if err := binary.Read(buf, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	if header.Magic != FrameMagic {
		return nil, fmt.Errorf("invalid frame magic: 0x%08X (expected 0x%08X)", header.Magic, FrameMagic)
	}

	if header.Length > MaxDataSize {
		return nil, fmt.Errorf("frame data too large: %d bytes (max %d)", header.Length, MaxDataSize)
	}

	expectedSize := HeaderSize + int(header.Length)
	if len(data) != expectedSize {
		return nil, fmt.Errorf("frame size mismatch: got %d bytes, expected %d", len(data), expectedSize)
	}

	frame := &Frame{
		Type:      header.Type,
		Terminal:  header.Terminal,
		Sequence:  header.Sequence,
		Timestamp: header.Timestamp,
	}

	if header.Length > 0 {
		frame.Data = make([]byte, header.Length)
		if _, err := io.ReadFull(buf, frame.Data); err != nil {
			return nil, fmt.Errorf("failed to read frame data: %w", err)
		}
	}

	return frame, nil
}

// NewFrame creates a new frame with the specified parameters.
func NewFrame(frameType FrameType, terminal uint8, sequence uint32, timestamp uint64, data []byte) *Frame {
	return &Frame{
		Type:      frameType,
		Terminal:  terminal,
		Sequence:  sequence,
		Timestamp: timestamp,
		Data:      data,
	}
}

// IsValid checks if the frame is structurally valid.
func (f *Frame) IsValid() bool {
	switch f.Type {
	case FrameTypeAudioData, FrameTypeTerminalEnable, FrameTypeTerminalDisable, FrameTypeHeartbeat:
	default:
		return false
	}
	return len(f.Data) <= MaxDataSize
}
