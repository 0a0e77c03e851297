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

// Converter abstracts the sample-conversion hardware on the radio side of
// the bridge: the DAC that modulates the transmitter and the ADC that
// samples the receiver's audio output.
//
// This enables dependency injection and makes the streaming engine
// hardware-independent: real deployments use a sound-card backed converter,
// tests and simulation builds use SimConverter.
type Converter interface {
	// Ready reports whether the conversion hardware is usable.
	Ready() bool

	// WriteDAC writes one raw sample to the DAC output. The value is
	// already scaled to the DAC's native resolution.
	WriteDAC(value uint32) error

	// ReadADC performs one ADC conversion and returns the raw sample in
	// the full unsigned 16-bit range.
	ReadADC() (uint16, error)

	// DACResolution returns the DAC's native resolution in bits.
	// Must be at least 16 so that 16-bit PCM scales without loss of the
	// sign bit.
	DACResolution() int
}
