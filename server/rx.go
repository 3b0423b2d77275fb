// Copyright 2026 The DraftWS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"crypto/sha1"
	"errors"
)

// Frame receiver states. Which states are reachable depends on the
// revision negotiated at handshake time.
type rxState int

const (
	rxStateNew rxState = iota
	rxState04MaskNonce1
	rxState04MaskNonce2
	rxState04MaskNonce3
	rxState04FrameHdr1
	rxStateEatUntil76FF
	rxStateSeen76FF
	// Declared gates. They never transition; the packet driver stops
	// feeding on the exhausted gate.
	rxStatePulling76Length
	rxStatePayloadUntilLengthExhausted
)

// Returned by the receiver when the peer completed the close handshake.
// The ack has already been sent; the caller tears the connection down.
var errClientClose = errors.New("client close")

// rxFrame drives the frame state machine with one inbound byte. Payload
// chunks are handed to the protocol callback as they fill; a non-nil error
// tells the driver to close the connection.
func (c *Client) rxFrame(b byte) error {
	switch c.rxState {
	case rxStateNew:
		switch c.revision {
		case 4:
			c.frameNonce[0] = b
			c.rxState = rxState04MaskNonce1
		default:
			// The sentinel-framed dialects: 0x00 opens a text
			// frame, 0xFF announces a client close.
			if b == 0x00 {
				c.rxState = rxStateEatUntil76FF
				c.rxHead = 0
			} else if b == 0xff {
				c.rxState = rxStateSeen76FF
			}
		}

	case rxState04MaskNonce1:
		c.frameNonce[1] = b
		c.rxState = rxState04MaskNonce2

	case rxState04MaskNonce2:
		c.frameNonce[2] = b
		c.rxState = rxState04MaskNonce3

	case rxState04MaskNonce3:
		c.frameNonce[3] = b

		// The frame key is SHA1(nonce || connection masking key), a
		// fresh digest on every inbound frame. Expensive, but that is
		// what the draft-04 wire requires.
		var seed [24]byte
		copy(seed[:4], c.frameNonce[:])
		copy(seed[4:], c.maskingKey[:])
		c.frameMask = sha1.Sum(seed[:])

		// New frame, new key, start from its zeroth byte.
		c.frameMaskIndex = 0
		c.rxState = rxState04FrameHdr1

	case rxState04FrameHdr1:
		// Unmask and hold. Opcode and length decode for this dialect
		// sits behind the length gates below.
		c.unmaskByte(b)

	case rxStateEatUntil76FF:
		if b == 0xff {
			c.rxState = rxStateNew
			c.rxDeliver()
			break
		}
		c.rxBuf.Payload()[c.rxHead] = b
		c.rxHead++
		if c.rxHead != maxUserRxBuffer {
			break
		}
		// Buffer full mid-frame: hand the chunk up and keep going.
		c.rxDeliver()

	case rxStateSeen76FF:
		if b != 0 {
			break
		}
		c.srv.Debugf("%s - client requested close, sending ack", c.cid)
		if _, err := c.sendRaw([]byte{0xff, 0x00}); err != nil {
			c.srv.Errorf("%s - error writing close ack: %v", c.cid, err)
			return err
		}
		return errClientClose

	case rxStatePulling76Length:
	case rxStatePayloadUntilLengthExhausted:
	}

	return nil
}

// rxDeliver hands the accumulated payload to the protocol callback and
// resets the fill. Delivery is synchronous, so chunks reach user code in
// arrival order.
func (c *Client) rxDeliver() {
	c.rxBuf.n = c.rxHead
	if c.proto != nil && c.proto.Callback != nil {
		c.proto.Callback(c, CallbackReceive, c.user, c.rxBuf.Payload()[:c.rxHead])
	}
	c.rxHead = 0
}

// unmaskByte XORs one byte against the recirculating 20-byte frame key.
func (c *Client) unmaskByte(b byte) byte {
	b ^= c.frameMask[c.frameMaskIndex]
	c.frameMaskIndex++
	if c.frameMaskIndex == 20 {
		c.frameMaskIndex = 0
	}
	return b
}

// interpretIncomingPacket lets the rx state machine have as much of the
// packet as it will take.
func (c *Client) interpretIncomingPacket(buf []byte) error {
	for n := 0; c.rxState != rxStatePayloadUntilLengthExhausted && n < len(buf); n++ {
		if err := c.rxFrame(buf[n]); err != nil {
			return err
		}
	}
	return nil
}
