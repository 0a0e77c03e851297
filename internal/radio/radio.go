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

// Package radio controls an SA818 VHF transceiver module: GPIO power and
// PTT lines, the UART AT configuration protocol, and a TX test tone
// generator. Hardware access goes through the GPIO and io.ReadWriter
// interfaces so simulation builds and tests run against in-memory fakes.
package radio

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Control errors. AT protocol failures wrap these with command context.
var (
	ErrInvalidParam = errors.New("invalid parameter")
	ErrTimeout      = errors.New("response timeout")
	ErrATCommand    = errors.New("at command rejected")
	ErrNotReady     = errors.New("radio not ready")
)

// GPIO is the radio's discrete control interface.
//
// The SA818's power-down and PTT pins are active-low on the wire; that
// inversion belongs to the GPIO implementation. This interface speaks in
// logical states: SetPowerDown(false) powers the module up.
type GPIO interface {
	SetPowerDown(down bool) error
	SetPTT(on bool) error
	SetHighPower(high bool) error
	// SquelchOpen reads the SQL pin: true means squelch open (no signal).
	SquelchOpen() (bool, error)
}

// Hardware settle times from the module datasheet.
const (
	DefaultPowerOnDelay  = 100 * time.Millisecond
	DefaultTxEnableDelay = 50 * time.Millisecond
	DefaultVolume        = 4
)

// Config carries the per-board timing parameters.
type Config struct {
	PowerOnDelay  time.Duration
	TxEnableDelay time.Duration
}

// DefaultConfig returns the stock SA818 timings.
func DefaultConfig() Config {
	return Config{
		PowerOnDelay:  DefaultPowerOnDelay,
		TxEnableDelay: DefaultTxEnableDelay,
	}
}

// Status is a snapshot of the radio's control state.
type Status struct {
	Powered     bool
	PTT         bool
	HighPower   bool
	SquelchOpen bool
	Volume      uint8
}

// Radio is the SA818 control handle. All state transitions hold one
// mutex, so PTT cannot flip mid power cycle.
//
// Radio implements the audio stream's Gate: the TX path is live while
// transmitting (powered with PTT on), the RX path while receiving
// (powered with PTT off).
type Radio struct {
	gpio GPIO
	cfg  Config

	mu        sync.Mutex
	at        *AT
	powered   bool
	ptt       bool
	highPower bool
	volume    uint8
}

// New creates a radio handle over the given GPIO lines. The module starts
// powered down with PTT released and low TX power.
func New(gpio GPIO, cfg Config) (*Radio, error) {
	if gpio == nil {
		return nil, ErrInvalidParam
	}
	if cfg.PowerOnDelay <= 0 {
		cfg.PowerOnDelay = DefaultPowerOnDelay
	}
	if cfg.TxEnableDelay <= 0 {
		cfg.TxEnableDelay = DefaultTxEnableDelay
	}

	r := &Radio{gpio: gpio, cfg: cfg, volume: DefaultVolume}

	if err := gpio.SetPowerDown(true); err != nil {
		return nil, err
	}
	if err := gpio.SetPTT(false); err != nil {
		return nil, err
	}
	if err := gpio.SetHighPower(false); err != nil {
		return nil, err
	}

	return r, nil
}

// SetPower drives the power-down line. Powering on blocks for the power-on
// settle time before returning.
func (r *Radio) SetPower(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gpio.SetPowerDown(!on); err != nil {
		return err
	}
	if on && !r.powered {
		time.Sleep(r.cfg.PowerOnDelay)
		log.Printf("📻 SA818 powered ON")
	} else if !on && r.powered {
		log.Printf("📻 SA818 powered OFF")
	}
	r.powered = on
	return nil
}

// SetPTT keys or unkeys the transmitter. Keying blocks for the TX enable
// settle time so audio does not start before the carrier is up.
func (r *Radio) SetPTT(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if on && !r.powered {
		return ErrNotReady
	}
	if err := r.gpio.SetPTT(on); err != nil {
		return err
	}
	if on {
		time.Sleep(r.cfg.TxEnableDelay)
		log.Printf("📻 PTT ON")
	} else {
		log.Printf("📻 PTT OFF")
	}
	r.ptt = on
	return nil
}

// SetPowerLevel selects high (1 W) or low (0.5 W) TX power.
func (r *Radio) SetPowerLevel(high bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gpio.SetHighPower(high); err != nil {
		return err
	}
	r.highPower = high
	return nil
}

// Squelch reads the SQL pin: true means squelch open (no carrier).
func (r *Radio) Squelch() (bool, error) {
	return r.gpio.SquelchOpen()
}

// Status returns a consistent snapshot of the control state. A SQL pin
// read failure is reported as squelch open.
func (r *Radio) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	open, err := r.gpio.SquelchOpen()
	if err != nil {
		open = true
	}
	return Status{
		Powered:     r.powered,
		PTT:         r.ptt,
		HighPower:   r.highPower,
		SquelchOpen: open,
		Volume:      r.volume,
	}
}

// TxEnabled implements the audio gate: DAC output is live only while
// transmitting.
func (r *Radio) TxEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powered && r.ptt
}

// RxEnabled implements the audio gate: ADC capture is live only while
// receiving.
func (r *Radio) RxEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powered && !r.ptt
}

func (r *Radio) setVolume(v uint8) {
	r.mu.Lock()
	r.volume = v
	r.mu.Unlock()
}

// SimGPIO is an in-memory GPIO implementation for simulation builds and
// tests. The squelch input is settable; pin write errors are injectable.
type SimGPIO struct {
	mu          sync.Mutex
	powerDown   bool
	ptt         bool
	highPower   bool
	squelchOpen bool
	pinErr      error
}

// NewSimGPIO returns sim pins in the hardware reset state: powered down,
// PTT released, squelch open.
func NewSimGPIO() *SimGPIO {
	return &SimGPIO{powerDown: true, squelchOpen: true}
}

func (g *SimGPIO) SetPowerDown(down bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinErr != nil {
		return g.pinErr
	}
	g.powerDown = down
	return nil
}

func (g *SimGPIO) SetPTT(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinErr != nil {
		return g.pinErr
	}
	g.ptt = on
	return nil
}

func (g *SimGPIO) SetHighPower(high bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinErr != nil {
		return g.pinErr
	}
	g.highPower = high
	return nil
}

func (g *SimGPIO) SquelchOpen() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinErr != nil {
		return true, g.pinErr
	}
	return g.squelchOpen, nil
}

// SetSquelchOpen simulates the SQL pin changing state.
func (g *SimGPIO) SetSquelchOpen(open bool) {
	g.mu.Lock()
	g.squelchOpen = open
	g.mu.Unlock()
}

// SetPinError makes subsequent pin operations fail with err (nil clears).
func (g *SimGPIO) SetPinError(err error) {
	g.mu.Lock()
	g.pinErr = err
	g.mu.Unlock()
}

// Pins returns the current output pin states for assertions.
func (g *SimGPIO) Pins() (powerDown, ptt, highPower bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.powerDown, g.ptt, g.highPower
}
