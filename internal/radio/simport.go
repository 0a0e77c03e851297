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
	"io"
	"strconv"
	"strings"
	"sync"
)

// SimPort emulates the SA818 module's side of the UART for simulation
// builds: every well-formed command is acknowledged the way a healthy
// module would, and the reported RSSI is settable.
type SimPort struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	pending []byte
	rssi    uint8
	version string
}

// NewSimPort returns an emulated module with a quiet channel.
func NewSimPort() *SimPort {
	pr, pw := io.Pipe()
	return &SimPort{pr: pr, pw: pw, rssi: 30, version: "SA818_SIM_V1.0"}
}

// SetRSSI changes the value returned for RSSI? queries.
func (p *SimPort) SetRSSI(rssi uint8) {
	p.mu.Lock()
	p.rssi = rssi
	p.mu.Unlock()
}

func (p *SimPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *SimPort) Write(b []byte) (int, error) {
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
		replies = append(replies, p.reply(cmd))
	}
	p.mu.Unlock()

	for _, r := range replies {
		if _, err := io.WriteString(p.pw, r+"\r\n"); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// reply is called with the mutex held.
func (p *SimPort) reply(cmd string) string {
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
		return "RSSI=" + strconv.Itoa(int(p.rssi))
	case cmd == "AT+VERSION":
		return p.version
	}
	return "+ERROR"
}

// Close shuts the emulated module's transmit side.
func (p *SimPort) Close() error { return p.pw.Close() }
