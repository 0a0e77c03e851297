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

// Package console implements the interactive operator shell: thin command
// parsing over the radio, bridge, and simulated-audio APIs.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/oe5xrx/sa818-bridge-go/internal/bridge"
	"github.com/oe5xrx/sa818-bridge-go/internal/radio"
	"github.com/oe5xrx/sa818-bridge-go/internal/simaudio"
)

const prompt = "sa818> "

// Console dispatches operator commands. Optional fields are nil when the
// matching subsystem is not part of the build: gpio and pipeline exist
// only on simulation setups, tone only when a converter is attached.
type Console struct {
	radio    *radio.Radio
	bridge   *bridge.Bridge
	gpio     *radio.SimGPIO
	tone     *radio.ToneGenerator
	pipeline *simaudio.AudioPipeline
	wavSrc   *simaudio.WavSource
	sine     *simaudio.SineSource

	out io.Writer
}

// Options carries the optional subsystems a console can drive.
type Options struct {
	SimGPIO  *radio.SimGPIO
	Tone     *radio.ToneGenerator
	Pipeline *simaudio.AudioPipeline
	WavSrc   *simaudio.WavSource
	Sine     *simaudio.SineSource
}

// New builds a console writing responses to out.
func New(r *radio.Radio, b *bridge.Bridge, out io.Writer, opts Options) *Console {
	return &Console{
		radio:    r,
		bridge:   b,
		gpio:     opts.SimGPIO,
		tone:     opts.Tone,
		pipeline: opts.Pipeline,
		wavSrc:   opts.WavSrc,
		sine:     opts.Sine,
		out:      out,
	}
}

// Run reads commands line by line until EOF or an exit command.
func (c *Console) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(c.out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		if line != "" {
			c.Execute(line)
		}
		fmt.Fprint(c.out, prompt)
	}
	return scanner.Err()
}

// Execute parses and runs one command line; errors become messages on the
// console output, never panics or process exits.
func (c *Console) Execute(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	var err error
	switch args[0] {
	case "help":
		c.printHelp()
	case "power":
		err = c.cmdPower(args[1:])
	case "ptt":
		err = c.cmdPTT(args[1:])
	case "power-level":
		err = c.cmdPowerLevel(args[1:])
	case "status":
		c.cmdStatus()
	case "volume":
		err = c.cmdVolume(args[1:])
	case "group":
		err = c.cmdGroup(args[1:])
	case "filters":
		err = c.cmdFilters(args[1:])
	case "rssi":
		err = c.cmdRSSI()
	case "version":
		err = c.cmdVersion()
	case "squelch":
		err = c.cmdSquelch(args[1:])
	case "wav":
		err = c.cmdWav(args[1:])
	case "sine":
		err = c.cmdSine(args[1:])
	case "tone":
		err = c.cmdTone(args[1:])
	default:
		err = fmt.Errorf("unknown command %q (try help)", args[0])
	}

	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  power on|off            radio module power
  ptt on|off              key / unkey the transmitter
  power-level high|low    TX power level
  status                  control state and stream counters
  volume <1-8>            audio output level
  group <bw> <tx> <rx> <sq> [ctx crx]   program frequency group
  filters <pre> <hp> <lp> audio filters, each on|off
  rssi                    read signal strength
  version                 read module firmware version
  squelch open|closed     force SQL pin state (sim only)
  wav load <path> | start | stop | info  RX audio from a WAV file (sim only)
  sine [freq [amp [rate]]] | sine stop   RX sine source (sim only)
  tone <freq> [amp [ms]] | tone stop     TX test tone
  exit
`)
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

func (c *Console) cmdPower(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: power on|off")
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if err := c.radio.SetPower(on); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "power %s\n", args[0])
	return nil
}

func (c *Console) cmdPTT(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ptt on|off")
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if err := c.radio.SetPTT(on); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "ptt %s\n", args[0])
	return nil
}

func (c *Console) cmdPowerLevel(args []string) error {
	if len(args) != 1 || (args[0] != "high" && args[0] != "low") {
		return fmt.Errorf("usage: power-level high|low")
	}
	if err := c.radio.SetPowerLevel(args[0] == "high"); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "power-level %s\n", args[0])
	return nil
}

func (c *Console) cmdStatus() {
	s := c.radio.Status()
	fmt.Fprintf(c.out, "power:     %s\n", onOff(s.Powered))
	fmt.Fprintf(c.out, "ptt:       %s\n", onOff(s.PTT))
	fmt.Fprintf(c.out, "tx power:  %s\n", highLow(s.HighPower))
	fmt.Fprintf(c.out, "squelch:   %s\n", openClosed(s.SquelchOpen))
	fmt.Fprintf(c.out, "volume:    %d\n", s.Volume)

	if c.bridge != nil {
		txDropped, rxDropped, sendFailures := c.bridge.Stats()
		fmt.Fprintf(c.out, "tx buffered: %d B  rx buffered: %d B\n",
			c.bridge.TxBuffered(), c.bridge.RxBuffered())
		fmt.Fprintf(c.out, "dropped: tx %d B, rx %d B  send failures: %d\n",
			txDropped, rxDropped, sendFailures)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func highLow(b bool) string {
	if b {
		return "high"
	}
	return "low"
}

func openClosed(b bool) string {
	if b {
		return "open"
	}
	return "closed"
}

func (c *Console) cmdVolume(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: volume <1-8>")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("volume %q: not a number", args[0])
	}
	if err := c.radio.SetVolume(v); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "volume %d\n", v)
	return nil
}

func (c *Console) cmdGroup(args []string) error {
	if len(args) != 4 && len(args) != 6 {
		return fmt.Errorf("usage: group <bw> <tx_mhz> <rx_mhz> <squelch> [ctcss_tx ctcss_rx]")
	}
	at := c.radio.AT()
	if at == nil {
		return fmt.Errorf("no serial link to the module")
	}

	bw, err := strconv.Atoi(args[0])
	if err != nil || (bw != 0 && bw != 1) {
		return fmt.Errorf("bandwidth %q: want 0 (12.5k) or 1 (25k)", args[0])
	}
	tx, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("tx freq %q: not a number", args[1])
	}
	rx, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("rx freq %q: not a number", args[2])
	}
	sq, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("squelch %q: not a number", args[3])
	}

	g := radio.Group{
		Bandwidth: radio.Bandwidth(bw),
		TxFreqMHz: tx,
		RxFreqMHz: rx,
		Squelch:   sq,
	}
	if len(args) == 6 {
		if g.CTCSSTx, err = strconv.Atoi(args[4]); err != nil {
			return fmt.Errorf("ctcss tx %q: not a number", args[4])
		}
		if g.CTCSSRx, err = strconv.Atoi(args[5]); err != nil {
			return fmt.Errorf("ctcss rx %q: not a number", args[5])
		}
	}

	if err := at.SetGroup(g); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "group set: tx %.4f rx %.4f sq %d\n", tx, rx, sq)
	return nil
}

func (c *Console) cmdFilters(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: filters <pre-emphasis> <high-pass> <low-pass> (on|off each)")
	}
	at := c.radio.AT()
	if at == nil {
		return fmt.Errorf("no serial link to the module")
	}

	var flags [3]bool
	for i, arg := range args {
		on, err := parseOnOff(arg)
		if err != nil {
			return err
		}
		flags[i] = on
	}
	if err := at.SetFilters(flags[0], flags[1], flags[2]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "filters: pre %s, hp %s, lp %s\n", args[0], args[1], args[2])
	return nil
}

func (c *Console) cmdRSSI() error {
	at := c.radio.AT()
	if at == nil {
		return fmt.Errorf("no serial link to the module")
	}
	rssi, err := at.ReadRSSI()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "rssi: %d\n", rssi)
	return nil
}

func (c *Console) cmdVersion() error {
	at := c.radio.AT()
	if at == nil {
		return fmt.Errorf("no serial link to the module")
	}
	version, err := at.ReadVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "version: %s\n", version)
	return nil
}

func (c *Console) cmdSquelch(args []string) error {
	if c.gpio == nil {
		return fmt.Errorf("squelch injection needs the sim backend")
	}
	if len(args) != 1 || (args[0] != "open" && args[0] != "closed") {
		return fmt.Errorf("usage: squelch open|closed")
	}
	c.gpio.SetSquelchOpen(args[0] == "open")
	fmt.Fprintf(c.out, "squelch forced %s\n", args[0])
	return nil
}

func (c *Console) cmdWav(args []string) error {
	if c.wavSrc == nil || c.pipeline == nil {
		return fmt.Errorf("wav playback needs the sim backend")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: wav load <path> | start | stop | info")
	}

	switch args[0] {
	case "load":
		if len(args) != 2 {
			return fmt.Errorf("usage: wav load <path>")
		}
		if err := c.wavSrc.Load(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "loaded %s: %d samples at %d Hz\n",
			args[1], c.wavSrc.CountSamples(), c.wavSrc.SampleRate())
		return nil
	case "start":
		if !c.wavSrc.Loaded() {
			return fmt.Errorf("no wav file loaded")
		}
		if err := c.pipeline.Start(c.wavSrc); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "wav playback started")
		return nil
	case "stop":
		c.pipeline.Stop()
		fmt.Fprintln(c.out, "playback stopped")
		return nil
	case "info":
		if !c.wavSrc.Loaded() {
			fmt.Fprintln(c.out, "no wav file loaded")
			return nil
		}
		fmt.Fprintf(c.out, "samples: %d  rate: %d Hz  pos: %d  playing: %v\n",
			c.wavSrc.CountSamples(), c.wavSrc.SampleRate(), c.wavSrc.Pos(), c.pipeline.Running())
		return nil
	}
	return fmt.Errorf("usage: wav load <path> | start | stop | info")
}

func (c *Console) cmdSine(args []string) error {
	if c.sine == nil || c.pipeline == nil {
		return fmt.Errorf("sine source needs the sim backend")
	}

	if len(args) == 1 && args[0] == "stop" {
		c.pipeline.Stop()
		fmt.Fprintln(c.out, "playback stopped")
		return nil
	}

	freq := uint32(simaudio.DefaultSineFreqHz)
	amp := float32(simaudio.DefaultSineAmp)
	rate := uint32(simaudio.DefaultSineRateHz)

	if len(args) > 3 {
		return fmt.Errorf("usage: sine [freq [amp [rate]]] | sine stop")
	}
	if len(args) >= 1 {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil || v == 0 {
			return fmt.Errorf("freq %q: want a positive number", args[0])
		}
		freq = uint32(v)
	}
	if len(args) >= 2 {
		v, err := strconv.ParseFloat(args[1], 32)
		if err != nil || v < 0 || v > 1 {
			return fmt.Errorf("amp %q: want 0..1", args[1])
		}
		amp = float32(v)
	}
	if len(args) == 3 {
		v, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil || v == 0 {
			return fmt.Errorf("rate %q: want a positive number", args[2])
		}
		rate = uint32(v)
	}

	c.sine.Configure(freq, amp, rate)
	if err := c.pipeline.Start(c.sine); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "sine started: %d Hz, amp %.2f, %d S/s\n", freq, amp, rate)
	return nil
}

func (c *Console) cmdTone(args []string) error {
	if c.tone == nil {
		return fmt.Errorf("no tone generator attached")
	}

	if len(args) == 1 && args[0] == "stop" {
		c.tone.Stop()
		fmt.Fprintln(c.out, "tone stopped")
		return nil
	}

	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("usage: tone <freq> [amp [duration_ms]] | tone stop")
	}

	freq, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("freq %q: not a number", args[0])
	}
	amp := 0.5
	if len(args) >= 2 {
		if amp, err = strconv.ParseFloat(args[1], 64); err != nil {
			return fmt.Errorf("amp %q: not a number", args[1])
		}
	}
	var duration time.Duration
	if len(args) == 3 {
		ms, err := strconv.Atoi(args[2])
		if err != nil || ms < 0 {
			return fmt.Errorf("duration %q: want milliseconds", args[2])
		}
		duration = time.Duration(ms) * time.Millisecond
	}

	if err := c.tone.Start(freq, amp, duration); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "tone started: %d Hz\n", freq)
	return nil
}
