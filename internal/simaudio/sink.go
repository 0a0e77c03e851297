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

// Emulated ADC register range.
const (
	ADCRawMin      = 0
	ADCRawMax12Bit = 4095
	ADCRawMid12Bit = ADCRawMax12Bit / 2
)

// ADCRegister is the writable side of the emulated ADC front end. The
// audio.SimConverter satisfies it.
type ADCRegister interface {
	Ready() bool
	SetADCRaw(raw uint16)
}

// ADCSink maps normalized samples onto the emulated 12-bit ADC register, so
// whatever the simulated pipeline plays shows up on the bridge's RX path as
// if the radio were receiving it.
type ADCSink struct {
	reg ADCRegister
}

func NewADCSink(reg ADCRegister) *ADCSink {
	return &ADCSink{reg: reg}
}

// Ready reports whether the underlying register is usable.
func (s *ADCSink) Ready() bool {
	return s.reg != nil && s.reg.Ready()
}

// WriteRaw writes a raw 12-bit value, clamped to the register range.
func (s *ADCSink) WriteRaw(raw uint16) {
	if !s.Ready() {
		return
	}
	if raw > ADCRawMax12Bit {
		raw = ADCRawMax12Bit
	}
	s.reg.SetADCRaw(raw)
}

// WriteNorm maps a sample in [-1, +1] onto the 12-bit register:
// raw = round(((s+1)/2) * 4095), clamped to [0, 4095].
func (s *ADCSink) WriteNorm(sample float32) {
	if sample < -1 {
		sample = -1
	}
	if sample > 1 {
		sample = 1
	}

	mapped := (sample + 1) / 2
	raw := int32(mapped*ADCRawMax12Bit + 0.5)
	if raw < ADCRawMin {
		raw = ADCRawMin
	}
	if raw > ADCRawMax12Bit {
		raw = ADCRawMax12Bit
	}
	s.WriteRaw(uint16(raw))
}
