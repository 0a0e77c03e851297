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

package console

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oe5xrx/sa818-bridge-go/internal/audio"
	"github.com/oe5xrx/sa818-bridge-go/internal/bridge"
	"github.com/oe5xrx/sa818-bridge-go/internal/radio"
	"github.com/oe5xrx/sa818-bridge-go/internal/simaudio"
	"github.com/oe5xrx/sa818-bridge-go/internal/transport"
)

// scriptedPort answers every AT command like a healthy module.
type scriptedPort struct {
	mu      sync.Mutex
	pending []byte
	pr      *io.PipeReader
	pw      *io.PipeWriter
}

func newScriptedPort() *scriptedPort {
	pr, pw := io.Pipe()
	return &scriptedPort{pr: pr, pw: pw}
}

func (p *scriptedPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.pending = append(p.pending, b...)
	var replies []string
	for {
		idx := strings.Index(string(p.pending), "\r\n")
		if idx < 0 {
			break
		}
		cmd := string(p.pending[:idx])
		p.pending = p.pending[idx+2:]
		replies = append(replies, moduleReply(cmd))
	}
	p.mu.Unlock()

	for _, r := range replies {
		if _, err := io.WriteString(p.pw, r+"\r\n"); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func moduleReply(cmd string) string {
	switch {
	case cmd == "AT+DMOCONNECT":
		return "+DMOCONNECT:0"
	case strings.HasPrefix(cmd, "AT+DMOSETGROUP="):
		return "+DMOSETGROUP:0"
	case strings.HasPrefix(cmd, "AT+DMOSETVOLUME="):
		return "+DMOSETVOLUME:0"
	case strings.HasPrefix(cmd, "AT+SETFILTER="):
		return "+DMOSETFILTER:0"
	case cmd == "RSSI?":
		return "RSSI=97"
	case cmd == "AT+VERSION":
		return "SA818_V4.0"
	}
	return "+ERROR"
}

type testRig struct {
	console *Console
	radio   *radio.Radio
	gpio    *radio.SimGPIO
	conv    *audio.SimConverter
	out     *bytes.Buffer
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	gpio := radio.NewSimGPIO()
	r, err := radio.New(gpio, radio.Config{
		PowerOnDelay:  time.Millisecond,
		TxEnableDelay: time.Millisecond,
	})
	require.NoError(t, err)
	r.AttachAT(radio.NewAT(newScriptedPort(), time.Second))

	b, err := bridge.New(transport.NewNullSender())
	require.NoError(t, err)

	conv := audio.NewSimConverter()
	sink := simaudio.NewADCSink(conv)
	out := &bytes.Buffer{}

	c := New(r, b, out, Options{
		SimGPIO:  gpio,
		Tone:     radio.NewToneGenerator(conv),
		Pipeline: simaudio.NewAudioPipeline(sink),
		WavSrc:   simaudio.NewWavSource(),
		Sine:     simaudio.NewSineSource(),
	})
	return &testRig{console: c, radio: r, gpio: gpio, conv: conv, out: out}
}

func (r *testRig) run(line string) string {
	r.out.Reset()
	r.console.Execute(line)
	return r.out.String()
}

func TestPowerAndPTTCommands(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("power on"), "power on")
	assert.True(t, rig.radio.Status().Powered)

	assert.Contains(t, rig.run("ptt on"), "ptt on")
	assert.True(t, rig.radio.Status().PTT)

	assert.Contains(t, rig.run("ptt off"), "ptt off")
	assert.Contains(t, rig.run("power off"), "power off")
	assert.False(t, rig.radio.Status().Powered)
}

func TestPTTWithoutPowerReportsError(t *testing.T) {
	rig := newTestRig(t)
	assert.Contains(t, rig.run("ptt on"), "error:")
	assert.False(t, rig.radio.Status().PTT)
}

func TestStatusShowsControlState(t *testing.T) {
	rig := newTestRig(t)
	rig.run("power on")
	rig.run("power-level high")

	out := rig.run("status")
	assert.Contains(t, out, "power:     on")
	assert.Contains(t, out, "tx power:  high")
	assert.Contains(t, out, "squelch:   open")
	assert.Contains(t, out, "volume:    4")
	assert.Contains(t, out, "dropped:")
}

func TestVolumeCommand(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("volume 6"), "volume 6")
	assert.Equal(t, uint8(6), rig.radio.Status().Volume)

	assert.Contains(t, rig.run("volume 9"), "error:")
	assert.Contains(t, rig.run("volume x"), "error:")
}

func TestGroupCommand(t *testing.T) {
	rig := newTestRig(t)

	out := rig.run("group 0 145.500 145.500 4")
	assert.Contains(t, out, "group set")

	assert.Contains(t, rig.run("group 0 999 145.5 4"), "error:")
	assert.Contains(t, rig.run("group 0 145.5"), "usage")
}

func TestFiltersRSSIVersion(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("filters on off on"), "filters: pre on, hp off, lp on")
	assert.Contains(t, rig.run("rssi"), "rssi: 97")
	assert.Contains(t, rig.run("version"), "SA818_V4.0")
}

func TestSquelchInjection(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("squelch closed"), "squelch forced closed")
	open, err := rig.radio.Squelch()
	require.NoError(t, err)
	assert.False(t, open)

	rig.run("squelch open")
	open, _ = rig.radio.Squelch()
	assert.True(t, open)
}

func TestSineStartStop(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("sine 440 0.8"), "sine started: 440 Hz")
	assert.Contains(t, rig.run("sine stop"), "playback stopped")

	assert.Contains(t, rig.run("sine 0"), "error:")
	assert.Contains(t, rig.run("sine 440 2.0"), "error:")
}

func TestWavCommandsWithoutFile(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("wav start"), "error: no wav file loaded")
	assert.Contains(t, rig.run("wav info"), "no wav file loaded")
	assert.Contains(t, rig.run("wav load /nonexistent/file.wav"), "error:")
}

func TestToneStartStop(t *testing.T) {
	rig := newTestRig(t)

	assert.Contains(t, rig.run("tone 1000"), "tone started: 1000 Hz")
	assert.Contains(t, rig.run("tone stop"), "tone stopped")

	assert.Contains(t, rig.run("tone 50"), "error:")
}

func TestUnknownCommand(t *testing.T) {
	rig := newTestRig(t)
	assert.Contains(t, rig.run("frobnicate"), "unknown command")
}

func TestRunLoopExits(t *testing.T) {
	rig := newTestRig(t)
	err := rig.console.Run(strings.NewReader("status\nexit\npower on\n"))
	require.NoError(t, err)
	// Nothing after exit runs.
	assert.False(t, rig.radio.Status().Powered)
}
