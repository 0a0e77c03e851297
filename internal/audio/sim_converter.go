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
	"errors"
	"sync"
)

// adcEmulBits is the emulated ADC front end's native resolution. Reads are
// upscaled to the full 16-bit range the streaming engine expects, matching
// a converter that oversamples a 12-bit part.
const adcEmulBits = 12

// SimConverter implements Converter without hardware. The ADC side reads a
// settable 12-bit register (the simulated audio pipeline writes into it);
// the DAC side records every written value for inspection.
//
// It doubles as the converter for simulation builds and as the test stand-in
// for the real sound-card converter.
type SimConverter struct {
	mu        sync.Mutex
	ready     bool
	adcRaw    uint16 // current 12-bit register value
	dacWrites []uint32

	// Injectable faults for error-path testing.
	dacErr error
	adcErr error
}

// NewSimConverter creates a ready simulated converter with the ADC register
// at midscale (silence).
func NewSimConverter() *SimConverter {
	return &SimConverter{
		ready:  true,
		adcRaw: 1 << (adcEmulBits - 1),
	}
}

func (c *SimConverter) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// SetReady flips device availability, for exercising not-ready paths.
func (c *SimConverter) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// SetDACError configures WriteDAC to fail with err (nil clears the fault).
func (c *SimConverter) SetDACError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dacErr = err
}

// SetADCError configures ReadADC to fail with err (nil clears the fault).
func (c *SimConverter) SetADCError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adcErr = err
}

// SetADCRaw stores a 12-bit conversion value into the emulated register.
// Values above 12 bits are clamped, mirroring the hardware register width.
func (c *SimConverter) SetADCRaw(raw uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if raw > (1<<adcEmulBits)-1 {
		raw = (1 << adcEmulBits) - 1
	}
	c.adcRaw = raw
}

// ADCRaw returns the current 12-bit register value.
func (c *SimConverter) ADCRaw() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adcRaw
}

func (c *SimConverter) WriteDAC(value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return errors.New("sim converter: not ready")
	}
	if c.dacErr != nil {
		return c.dacErr
	}
	c.dacWrites = append(c.dacWrites, value)
	return nil
}

func (c *SimConverter) ReadADC() (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return 0, errors.New("sim converter: not ready")
	}
	if c.adcErr != nil {
		return 0, c.adcErr
	}
	return c.adcRaw << (16 - adcEmulBits), nil
}

func (c *SimConverter) DACResolution() int {
	return 16
}

// DACWrites returns a copy of every value written to the DAC so far.
func (c *SimConverter) DACWrites() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint32, len(c.dacWrites))
	copy(out, c.dacWrites)
	return out
}

// ResetDACWrites clears the recorded DAC history.
func (c *SimConverter) ResetDACWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dacWrites = nil
}
