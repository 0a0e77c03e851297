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
	"errors"
	"sync"
)

// NullSender discards outbound frames. Used on simulation builds with no
// host link configured.
type NullSender struct{}

func NewNullSender() NullSender { return NullSender{} }

func (NullSender) Send(terminal uint8, data []byte) error { return nil }

// SentFrame is one payload captured by a CaptureSender.
type SentFrame struct {
	Terminal uint8
	Data     []byte
}

// CaptureSender records every outbound frame for inspection. Tests use it
// as the host end of the link; an injectable error exercises the bridge's
// send-failure path.
type CaptureSender struct {
	mu      sync.Mutex
	frames  []SentFrame
	sendErr error
}

func NewCaptureSender() *CaptureSender {
	return &CaptureSender{}
}

// SetSendError makes subsequent Send calls fail with err (nil clears it).
func (c *CaptureSender) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *CaptureSender) Send(terminal uint8, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, SentFrame{
		Terminal: terminal,
		Data:     append([]byte(nil), data...),
	})
	return nil
}

// Count returns the number of frames captured so far.
func (c *CaptureSender) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// Frames returns a copy of all captured frames in send order.
func (c *CaptureSender) Frames() []SentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentFrame, len(c.frames))
	for i, f := range c.frames {
		out[i] = SentFrame{Terminal: f.Terminal, Data: append([]byte(nil), f.Data...)}
	}
	return out
}

// ErrLinkDown is a canned send failure for tests.
var ErrLinkDown = errors.New("host link down")
