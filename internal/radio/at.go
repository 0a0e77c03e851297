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

package radio

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AT response timeout from the SA818 datasheet. The module answers slow
// commands (group programming) well inside this bound.
const ATTimeout = 2000 * time.Millisecond

const atResponseMax = 128

// Valid parameter ranges for group and volume programming.
const (
	SquelchMin = 0
	SquelchMax = 8
	VolumeMin  = 1
	VolumeMax  = 8
	FreqMinMHz = 134.0
	FreqMaxMHz = 174.0
)

// Bandwidth selects the channel spacing in a group command.
type Bandwidth int

const (
	Bandwidth12k5 Bandwidth = 0
	Bandwidth25k  Bandwidth = 1
)

// Group is one AT+DMOSETGROUP programming: channel bandwidth, TX/RX
// frequencies in MHz, CTCSS/DCS tone codes, and squelch threshold.
type Group struct {
	Bandwidth Bandwidth
	TxFreqMHz float64
	RxFreqMHz float64
	CTCSSTx   int
	CTCSSRx   int
	Squelch   int
}

// AT speaks the SA818's line-based configuration protocol over a serial
// port. Commands are serialized; each write waits for one response line or
// times out. Timeouts are surfaced, never retried here.
type AT struct {
	port    io.Writer
	timeout time.Duration

	mu    sync.Mutex // one command in flight
	lines chan string
}

// NewAT wraps a serial port. A background reader splits the inbound byte
// stream into lines; it exits when the port reader returns an error or
// EOF.
func NewAT(port io.ReadWriter, timeout time.Duration) *AT {
	if timeout <= 0 {
		timeout = ATTimeout
	}
	a := &AT{
		port:    port,
		timeout: timeout,
		lines:   make(chan string, 4),
	}
	go a.readLines(port)
	return a
}

// readLines consumes the port byte stream. CR is stripped, LF terminates a
// line. Oversized lines are truncated at the response maximum, matching
// the module's own response bound.
func (a *AT) readLines(r io.Reader) {
	defer close(a.lines)

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			switch buf[0] {
			case '\r':
			case '\n':
				a.lines <- string(line)
				line = line[:0]
			default:
				if len(line) < atResponseMax {
					line = append(line, buf[0])
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// send transmits one command and waits for the next response line.
func (a *AT) send(cmd string) (string, error) {
	if cmd == "" {
		return "", ErrInvalidParam
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Discard responses left over from a timed-out command. A closed
	// channel means the port reader has exited, so bail out instead of
	// receiving the zero value forever.
	for drained := false; !drained; {
		select {
		case _, ok := <-a.lines:
			if !ok {
				return "", fmt.Errorf("%q: port closed: %w", cmd, ErrTimeout)
			}
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(a.port, cmd+"\r\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}

	select {
	case line, ok := <-a.lines:
		if !ok {
			return "", fmt.Errorf("%q: port closed: %w", cmd, ErrTimeout)
		}
		return line, nil
	case <-time.After(a.timeout):
		log.Printf("❌ AT command timeout: %s", cmd)
		return "", fmt.Errorf("%q: %w", cmd, ErrTimeout)
	}
}

// expect runs cmd and checks the response for the module's success marker.
func (a *AT) expect(cmd, marker string) error {
	resp, err := a.send(cmd)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, marker) {
		log.Printf("❌ %s failed: %s", cmd, resp)
		return fmt.Errorf("%q answered %q: %w", cmd, resp, ErrATCommand)
	}
	return nil
}

// Connect performs the AT+DMOCONNECT handshake that verifies the UART
// link to the module.
func (a *AT) Connect() error {
	if err := a.expect("AT+DMOCONNECT", "+DMOCONNECT:0"); err != nil {
		return err
	}
	log.Printf("📻 SA818 handshake ok")
	return nil
}

// SetGroup programs frequency, tones, and squelch. Parameter errors are
// rejected before anything reaches the module.
func (a *AT) SetGroup(g Group) error {
	if g.Squelch < SquelchMin || g.Squelch > SquelchMax {
		return fmt.Errorf("squelch %d: %w", g.Squelch, ErrInvalidParam)
	}
	if g.TxFreqMHz < FreqMinMHz || g.TxFreqMHz > FreqMaxMHz {
		return fmt.Errorf("tx freq %.4f MHz: %w", g.TxFreqMHz, ErrInvalidParam)
	}
	if g.RxFreqMHz < FreqMinMHz || g.RxFreqMHz > FreqMaxMHz {
		return fmt.Errorf("rx freq %.4f MHz: %w", g.RxFreqMHz, ErrInvalidParam)
	}
	if g.CTCSSTx < 0 || g.CTCSSTx > 9999 || g.CTCSSRx < 0 || g.CTCSSRx > 9999 {
		return fmt.Errorf("tone code: %w", ErrInvalidParam)
	}

	cmd := fmt.Sprintf("AT+DMOSETGROUP=%d,%.4f,%.4f,%04d,%d,%04d",
		g.Bandwidth, g.TxFreqMHz, g.RxFreqMHz, g.CTCSSTx, g.Squelch, g.CTCSSRx)
	if err := a.expect(cmd, "+DMOSETGROUP:0"); err != nil {
		return err
	}
	log.Printf("📻 Group set: TX=%.4f RX=%.4f SQ=%d", g.TxFreqMHz, g.RxFreqMHz, g.Squelch)
	return nil
}

// SetVolume programs the audio output level, 1 through 8.
func (a *AT) SetVolume(volume int) error {
	if volume < VolumeMin || volume > VolumeMax {
		return fmt.Errorf("volume %d: %w", volume, ErrInvalidParam)
	}
	return a.expect(fmt.Sprintf("AT+DMOSETVOLUME=%d", volume), "+DMOSETVOLUME:0")
}

// SetFilters enables or bypasses the pre-emphasis, high-pass, and low-pass
// audio filters.
func (a *AT) SetFilters(preEmphasis, highPass, lowPass bool) error {
	cmd := fmt.Sprintf("AT+SETFILTER=%d,%d,%d",
		boolBit(preEmphasis), boolBit(highPass), boolBit(lowPass))
	return a.expect(cmd, "+DMOSETFILTER:0")
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReadRSSI queries signal strength. Response format: RSSI=nnn.
func (a *AT) ReadRSSI() (uint8, error) {
	resp, err := a.send("RSSI?")
	if err != nil {
		return 0, err
	}
	idx := strings.Index(resp, "RSSI=")
	if idx < 0 {
		return 0, fmt.Errorf("rssi response %q: %w", resp, ErrATCommand)
	}
	val, err := strconv.Atoi(strings.TrimSpace(resp[idx+len("RSSI="):]))
	if err != nil || val < 0 || val > 255 {
		return 0, fmt.Errorf("rssi response %q: %w", resp, ErrATCommand)
	}
	return uint8(val), nil
}

// ReadVersion returns the module's firmware version string.
func (a *AT) ReadVersion() (string, error) {
	return a.send("AT+VERSION")
}

// AttachAT wires an AT client into the radio handle so volume programming
// is tracked in the control state.
func (r *Radio) AttachAT(at *AT) {
	r.mu.Lock()
	r.at = at
	r.mu.Unlock()
}

// AT returns the attached AT client, or nil on GPIO-only setups.
func (r *Radio) AT() *AT {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.at
}

// SetVolume programs the module volume and records it in the status
// snapshot.
func (r *Radio) SetVolume(volume int) error {
	at := r.AT()
	if at == nil {
		return ErrNotReady
	}
	if err := at.SetVolume(volume); err != nil {
		return err
	}
	r.setVolume(uint8(volume))
	return nil
}
