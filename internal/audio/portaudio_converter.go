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
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// paBlockFrames is the PortAudio buffer size in frames. 64 frames is 8 ms
// at 8 kHz, small enough to keep the radio path responsive.
const paBlockFrames = 64

// PortAudioConverter implements Converter on the host's sound card: DAC
// writes go to the default output device, ADC reads come from the default
// input device. Used when the bridge runs on a host whose line-out/line-in
// are wired to the radio instead of a discrete DAC/ADC.
//
// The streaming engine converts one sample per tick; PortAudio works in
// blocks. The converter batches DAC samples until a block is full and
// refills its ADC block when drained, so each blocking transfer happens
// once per paBlockFrames ticks.
type PortAudioConverter struct {
	initialized bool
	stream      *portaudio.Stream

	outBlock []float32
	outPos   int

	inBlock []float32
	inPos   int
}

// NewPortAudioConverter creates an unopened sound-card converter. Call
// Initialize before handing it to a Stream.
func NewPortAudioConverter() *PortAudioConverter {
	return &PortAudioConverter{
		outBlock: make([]float32, paBlockFrames),
		inBlock:  make([]float32, paBlockFrames),
		inPos:    paBlockFrames, // force a refill on first read
	}
}

// Initialize starts PortAudio and opens a mono 8 kHz duplex stream on the
// default devices.
func (p *PortAudioConverter) Initialize(sampleRate uint32) error {
	if p.initialized {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		1, // input channels (radio RX audio)
		1, // output channels (radio TX audio)
		float64(sampleRate),
		paBlockFrames,
		p.inBlock,
		p.outBlock,
	)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open duplex stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to start duplex stream: %w", err)
	}

	p.stream = stream
	p.initialized = true
	return nil
}

// Terminate stops the stream and shuts PortAudio down.
func (p *PortAudioConverter) Terminate() error {
	if !p.initialized {
		return nil
	}

	_ = p.stream.Stop()
	_ = p.stream.Close()
	err := portaudio.Terminate()
	p.stream = nil
	p.initialized = false
	return err
}

func (p *PortAudioConverter) Ready() bool {
	return p.initialized
}

func (p *PortAudioConverter) DACResolution() int {
	return 16
}

// WriteDAC buffers one raw 16-bit sample; a full block is pushed to the
// output device in one blocking write.
func (p *PortAudioConverter) WriteDAC(value uint32) error {
	if !p.initialized {
		return fmt.Errorf("PortAudio converter not initialized")
	}

	// Unsigned 16-bit DAC range back to [-1, 1).
	p.outBlock[p.outPos] = (float32(value&0xFFFF) - 32768) / 32768
	p.outPos++

	if p.outPos < paBlockFrames {
		return nil
	}
	p.outPos = 0

	if err := p.stream.Write(); err != nil {
		return fmt.Errorf("failed to write output block: %w", err)
	}
	return nil
}

// ReadADC returns one conversion from the input device, refilling the block
// buffer when it runs dry.
func (p *PortAudioConverter) ReadADC() (uint16, error) {
	if !p.initialized {
		return 0, fmt.Errorf("PortAudio converter not initialized")
	}

	if p.inPos >= paBlockFrames {
		if err := p.stream.Read(); err != nil {
			return 0, fmt.Errorf("failed to read input block: %w", err)
		}
		p.inPos = 0
	}

	sample := p.inBlock[p.inPos]
	p.inPos++

	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}

	// [-1, 1] to the full unsigned 16-bit range the engine expects.
	raw := int32((sample + 1) * 32768)
	if raw > 0xFFFF {
		raw = 0xFFFF
	}
	return uint16(raw), nil
}
